// Command fta-server accepts one rtp connection at a time and serves
// GET/PUT requests against files in its working directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arlyon/rtp/fta"
	"github.com/arlyon/rtp/rtp"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		localPort   int
		receiveWnd  uint32
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "fta-server",
		Short: "File-transfer server over the rtp reliable-transport protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, localPort, receiveWnd, metricsAddr)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&localPort, "local-port", 9001, "local UDP port to bind")
	flags.Uint32Var(&receiveWnd, "receive-window", rtp.DefaultReceiveWindow, "advertised receive window size")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9100)")
	return cmd
}

func run(cmd *cobra.Command, localPort int, receiveWnd uint32, metricsAddr string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	reg := prometheus.NewRegistry()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Error("metrics server exited", "err", err)
			}
		}()
		cmd.Println("serving metrics on", metricsAddr)
	}

	for {
		if err := serveOnce(cmd, localPort, receiveWnd, log, reg); err != nil {
			log.Error("connection failed", "err", err)
		}
	}
}

func serveOnce(cmd *cobra.Command, localPort int, receiveWnd uint32, log *slog.Logger, reg *prometheus.Registry) error {
	ep, err := rtp.Open(localPort,
		rtp.WithLogger(log),
		rtp.WithReceiveWindow(receiveWnd),
		rtp.WithMetricsRegistry(reg),
	)
	if err != nil {
		return err
	}
	defer ep.Close()

	cmd.Println("waiting for a connection on port", localPort)
	if err := ep.Accept(context.Background()); err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	cmd.Println("client connected:", ep.ID())

	server := fta.NewServer(ep, log)
	for {
		if err := server.HandleOne(); err != nil {
			if ep.State() == rtp.StateClosed {
				cmd.Println("client disconnected")
				return nil
			}
			return err
		}
	}
}
