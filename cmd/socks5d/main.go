// Command socks5d is a standalone SOCKS5 proxy daemon built on the socks5
// package: CONNECT, BIND, and UDP ASSOCIATE, optional username/password
// authentication, and optional chaining through an upstream SOCKS5 proxy.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/quayside/socks5"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen     = pflag.String("listen", "127.0.0.1:1080", "SOCKS5 listen address")
		configPath = pflag.String("config", "", "Path to YAML config file")

		upstream = pflag.String("upstream", defaultUpstream(), "Upstream forwarding target URL: direct:// | socks5://[user:pass@]host:port")

		debugListen        = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof and /metrics (e.g. 127.0.0.1:6060). Empty disables.")
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for protocol negotiation to set up connection")
		bindTimeout        = pflag.Duration("bind-timeout", 30*time.Second, "Timeout waiting for the inbound BIND connection")
		udpTTL             = pflag.Duration("udp-ttl", 2*time.Minute, "How long a UDP association accepts replies from an idle target")
		maxConnections     = pflag.Int("max-connections", 0, "Maximum concurrent client connections (0 = unlimited)")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		verbose            = pflag.Bool("verbose", false, "Enable per-connection debug logging")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	var fileCfg fileConfig
	if *configPath != "" {
		fileCfg, err = loadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("invalid --config: %w", err)
		}
	}

	// Flags given on the command line win over the config file.
	if fileCfg.Listen != "" && !pflag.CommandLine.Changed("listen") {
		*listen = fileCfg.Listen
	}
	if fileCfg.Upstream != "" && !pflag.CommandLine.Changed("upstream") {
		*upstream = fileCfg.Upstream
	}
	if fileCfg.DebugListen != "" && !pflag.CommandLine.Changed("debug-listen") {
		*debugListen = fileCfg.DebugListen
	}
	if fileCfg.MaxConnections > 0 && !pflag.CommandLine.Changed("max-connections") {
		*maxConnections = fileCfg.MaxConnections
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	outbound, err := socks5.NewDialer(*upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}
	switch d := outbound.(type) {
	case *net.Dialer:
		d.Timeout = *dialTimeout
	case *socks5.ProxyDialer:
		d.Forward = &net.Dialer{Timeout: *dialTimeout}
	}

	srv := socks5.New(socks5.Config{
		Authenticators:     fileCfg.authenticators(),
		Dialer:             outbound,
		Logger:             logger,
		MaxConnections:     *maxConnections,
		NegotiationTimeout: *negotiationTimeout,
		BindTimeout:        *bindTimeout,
		UDPTargetTTL:       *udpTTL,
	})

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *serverMetrics
	if *debugListen != "" {
		var mux *http.ServeMux
		metrics, mux, err = newServerMetrics(srv)
		if err != nil {
			return fmt.Errorf("debug metrics: %w", err)
		}
		debugSrv := &http.Server{Handler: mux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		logger.Info("debug listening", "addr", *debugListen)
	}

	ln, err := socks5.ListenTCP("tcp", *listen, ka)
	if err != nil {
		return fmt.Errorf("socks5 listen: %w", err)
	}
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
		_ = srv.Close()
	})

	g.Go(func() error {
		if err := srv.Serve(metrics.Wrap(ln)); err != nil {
			return fmt.Errorf("socks5 serve: %w", err)
		}
		return nil
	})
	logger.Info("socks5 listening", "addr", *listen, "upstream", *upstream)

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		err = nil
	}

	logger.Info("shutting down")
	return err
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func defaultUpstream() string {
	if p := os.Getenv("ALL_PROXY"); p != "" {
		return p
	}

	if p := os.Getenv("all_proxy"); p != "" {
		return p
	}

	return "direct://"
}
