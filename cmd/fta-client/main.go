// Command fta-client is an interactive file-transfer client built on
// the rtp package: it connects to an fta-server over UDP and accepts
// "get", "post", "window" and "disconnect" commands from stdin.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

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
		localPort int
		peerHost  string
		peerPort  int
	)

	cmd := &cobra.Command{
		Use:   "fta-client",
		Short: "Interactive file-transfer client over the rtp reliable-transport protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, localPort, peerHost, peerPort)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&localPort, "local-port", 9000, "local UDP port to bind")
	flags.StringVar(&peerHost, "host", "127.0.0.1", "fta-server host")
	flags.IntVar(&peerPort, "port", 9001, "fta-server UDP port")
	return cmd
}

func run(cmd *cobra.Command, localPort int, peerHost string, peerPort int) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ep, err := rtp.Open(localPort, rtp.WithLogger(log))
	if err != nil {
		return err
	}
	defer ep.Close()

	peerAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", peerHost, peerPort))
	if err != nil {
		return fmt.Errorf("resolve server address: %w", err)
	}

	ctx := context.Background()
	if err := ep.Connect(ctx, peerAddr); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	cmd.Println("connected to", peerAddr)

	client := fta.NewClient(ep, log)
	client.OnProgress = func(pct int) {
		cmd.Printf("%d%%\n", pct)
	}

	scanner := bufio.NewScanner(os.Stdin)
	cmd.Print(">")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "disconnect":
			ep.Disconnect()
			return nil
		case strings.HasPrefix(line, "window "):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "window "))
			if err != nil {
				cmd.Println("usage: window <n>")
				break
			}
			ep.SetReceiveWindow(uint32(n))
			cmd.Println("receive window set to", n)
		case strings.HasPrefix(line, "get "):
			runGet(cmd, client, strings.TrimPrefix(line, "get "))
		case strings.HasPrefix(line, "post "):
			runPost(cmd, client, strings.TrimPrefix(line, "post "))
		default:
			cmd.Println("commands: get <file>, post <file>, window <n>, disconnect")
		}
		cmd.Print(">")
	}
	return nil
}

func runGet(cmd *cobra.Command, client *fta.Client, filename string) {
	start := time.Now()
	data, err := client.Get(filename)
	if err != nil {
		cmd.Println("get failed:", err)
		return
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		cmd.Println("write failed:", err)
		return
	}
	elapsed := time.Since(start).Seconds()
	cmd.Printf("downloaded %q (%d bytes in %.2fs)\n", filename, len(data), elapsed)
}

func runPost(cmd *cobra.Command, client *fta.Client, filename string) {
	data, err := os.ReadFile(filename)
	if err != nil {
		cmd.Println("file not found:", err)
		return
	}
	start := time.Now()
	if err := client.Put(filename, data); err != nil {
		cmd.Println("post failed:", err)
		return
	}
	elapsed := time.Since(start).Seconds()
	cmd.Printf("uploaded %q (%d bytes in %.2fs)\n", filename, len(data), elapsed)
}
