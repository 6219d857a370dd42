package proxy

import (
	"context"
	"fmt"
	"net"

	"github.com/die-net/socksrelay/internal/socks5"
	"github.com/die-net/socksrelay/internal/udprelay"
)

// SOCKS5Server is the local half: it accepts SOCKS5 clients and relays each
// CONNECT to the configured relay endpoint.
type SOCKS5Server struct {
	ctx     context.Context
	cfg     Config
	verbose bool
}

func NewSOCKS5Server(ctx context.Context, cfg Config, verbose bool) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SOCKS5Server{ctx: ctx, cfg: cfg, verbose: verbose}
}

// Serve accepts connections on ln until ln is closed.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	return serve(ln, "socks5", s.verbose, s.handle)
}

func (s *SOCKS5Server) handle(conn net.Conn) error {
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// The success reply goes out here, before anything is dialed.
	dst, err := socks5.Negotiate(conn)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	if s.cfg.UDP {
		sess := udprelay.ClientSession{Relay: s.cfg.RelayAddr, Destination: dst.String()}
		if err := sess.Run(ctx, conn); err != nil {
			return fmt.Errorf("udp relay %s: %w", dst, err)
		}
		return nil
	}

	up, err := s.cfg.Dialer.DialContext(ctx, "tcp", dst.String())
	if err != nil {
		return err
	}

	if err := CopyBidirectional(ctx, conn, up); err != nil {
		return fmt.Errorf("relay %s: %w", dst, err)
	}
	return nil
}
