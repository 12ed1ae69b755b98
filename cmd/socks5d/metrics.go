package main

import (
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quayside/socks5"
)

// serverMetrics instruments the daemon's accept path. A nil *serverMetrics is
// valid and counts nothing, for runs without a debug listener.
type serverMetrics struct {
	accepted prometheus.Counter
}

// newServerMetrics builds the metrics registry and the debug mux serving
// /metrics and /debug/pprof.
func newServerMetrics(srv *socks5.Server) (*serverMetrics, *http.ServeMux, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &serverMetrics{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socks5d_connections_total",
			Help: "Total client connections accepted.",
		}),
	}
	if err := reg.Register(m.accepted); err != nil {
		return nil, nil, err
	}

	if err := reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "socks5d_active_connections",
		Help: "Number of client connections currently being served.",
	}, func() float64 { return float64(srv.ConnectionCount()) })); err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	// net/http/pprof registers on the default mux.
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return m, mux, nil
}

// Wrap counts connections accepted from ln.
func (m *serverMetrics) Wrap(ln net.Listener) net.Listener {
	if m == nil {
		return ln
	}
	return &countingListener{Listener: ln, accepted: m.accepted}
}

type countingListener struct {
	net.Listener
	accepted prometheus.Counter
}

func (l *countingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		l.accepted.Inc()
	}
	return conn, err
}
