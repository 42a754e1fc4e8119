package rtp

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the counters and gauges an Endpoint updates as it
// runs. Registering is optional: an Endpoint opened without
// WithMetricsRegistry gets a Metrics whose instruments are created but
// never registered, so updating them is always safe.
type Metrics struct {
	PacketsSent      prometheus.Counter
	PacketsReceived  prometheus.Counter
	PacketsDropped   prometheus.Counter
	Retransmits      prometheus.Counter
	BytesDelivered   prometheus.Counter
	SendWindowInUse  prometheus.Gauge
	ReceiveWindowLen prometheus.Gauge
}

func newMetrics(reg *prometheus.Registry, id string) *Metrics {
	labels := prometheus.Labels{"endpoint": id}
	m := &Metrics{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtp_packets_sent_total",
			Help:        "Datagrams transmitted by this endpoint, including retransmissions.",
			ConstLabels: labels,
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtp_packets_received_total",
			Help:        "Datagrams accepted (checksum-valid) by this endpoint.",
			ConstLabels: labels,
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtp_packets_dropped_total",
			Help:        "Datagrams dropped as truncated or corrupt (failed checksum or unparseable header).",
			ConstLabels: labels,
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtp_retransmits_total",
			Help:        "Packets retransmitted after their deadline expired.",
			ConstLabels: labels,
		}),
		BytesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rtp_bytes_delivered_total",
			Help:        "Payload bytes handed to the application via Receive.",
			ConstLabels: labels,
		}),
		SendWindowInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "rtp_send_window_in_use",
			Help:        "Number of currently unacknowledged in-flight packets.",
			ConstLabels: labels,
		}),
		ReceiveWindowLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "rtp_receive_staging_len",
			Help:        "Number of out-of-order packets currently staged by the receiver.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PacketsSent, m.PacketsReceived, m.PacketsDropped,
			m.Retransmits, m.BytesDelivered, m.SendWindowInUse, m.ReceiveWindowLen)
	}
	return m
}
