package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/socksrelay/internal/config"
	"github.com/die-net/socksrelay/internal/conn"
	"github.com/die-net/socksrelay/internal/dialer"
	"github.com/die-net/socksrelay/internal/proxy"
	"github.com/die-net/socksrelay/internal/udprelay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   = pflag.StringP("config", "c", "", "Path to the JSON config file (default client.json, or server.json with --remote)")
		remote       = pflag.Bool("remote", false, "Run the remote half: accept tunnel streams and UDP datagrams instead of SOCKS5 clients")
		dialTimeout  = pflag.Duration("dial-timeout", 0, "Timeout for outbound DNS lookup and TCP connect; 0 waits indefinitely")
		tcpKeepAlive = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		verbose      = pflag.Bool("verbose", false, "Enable per-connection error logging")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	dialCfg := dialer.Config{
		DialTimeout: *dialTimeout,
		KeepAlive:   ka,
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *remote {
		path := *configPath
		if path == "" {
			path = "server.json"
		}
		cfg, err := config.LoadServer(path)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := startRemote(ctx, g, cfg, dialCfg, ka, *verbose); err != nil {
			return err
		}
	} else {
		path := *configPath
		if path == "" {
			path = "client.json"
		}
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := startLocal(ctx, g, cfg, dialCfg, ka, *verbose); err != nil {
			return err
		}
	}

	err = g.Wait()

	log.Print("shutting down")
	return err
}

func startLocal(ctx context.Context, g *errgroup.Group, cfg config.Config, dialCfg dialer.Config, ka net.KeepAliveConfig, verbose bool) error {
	relay, err := cfg.Relay()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	rd := dialer.NewRelayDialer(dialCfg, relay.Host)
	pcfg := proxy.Config{
		Dialer:    rd,
		UDP:       cfg.UDP,
		RelayAddr: rd.RelayAddr(),
	}

	ln, err := conn.ListenTCP(ctx, "tcp", cfg.Host, ka)
	if err != nil {
		return fmt.Errorf("socks5 listen: %w", err)
	}
	s5 := proxy.NewSOCKS5Server(ctx, pcfg, verbose)
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := s5.Serve(ln); err != nil {
			return fmt.Errorf("socks5 serve: %w", err)
		}
		return nil
	})

	mode := "tcp"
	if cfg.UDP {
		mode = "udp"
	}
	log.Printf("socks5 proxy listening on %s, relaying via %s (%s)", cfg.Host, rd.RelayAddr(), mode)
	return nil
}

func startRemote(ctx context.Context, g *errgroup.Group, cfg config.ServerConfig, dialCfg dialer.Config, ka net.KeepAliveConfig, verbose bool) error {
	direct := dialer.NewDirectDialer(dialCfg)

	ln, err := conn.ListenTCP(ctx, "tcp", cfg.Host, ka)
	if err != nil {
		return fmt.Errorf("tunnel listen: %w", err)
	}
	ts := proxy.NewTunnelServer(ctx, proxy.Config{Dialer: direct}, verbose)
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := ts.Serve(ln); err != nil {
			return fmt.Errorf("tunnel serve: %w", err)
		}
		return nil
	})
	log.Printf("tunnel listening on %s", cfg.Host)

	if !cfg.UDP {
		return nil
	}

	pc, err := conn.ListenUDP(ctx, "udp", cfg.Host)
	if err != nil {
		return fmt.Errorf("udp listen: %w", err)
	}

	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	mux := udprelay.NewMultiplexer(pc, direct, log.New(w, "udprelay: ", log.LstdFlags|log.Lmsgprefix))

	g.Go(func() error {
		defer pc.Close()
		if err := mux.Serve(ctx); err != nil {
			return fmt.Errorf("udp relay: %w", err)
		}
		return nil
	})
	log.Printf("udp relay listening on %s", cfg.Host)
	return nil
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
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
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
