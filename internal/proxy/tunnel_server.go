package proxy

import (
	"context"
	"fmt"
	"net"

	"github.com/die-net/socksrelay/internal/tunnel"
)

// TunnelServer is the TCP side of the remote half. Each accepted stream
// starts with a tunnel header naming the destination; the rest of the stream
// is spliced to a fresh connection to that destination.
type TunnelServer struct {
	ctx     context.Context
	cfg     Config
	verbose bool
}

func NewTunnelServer(ctx context.Context, cfg Config, verbose bool) *TunnelServer {
	if ctx == nil {
		ctx = context.Background()
	}
	return &TunnelServer{ctx: ctx, cfg: cfg, verbose: verbose}
}

// Serve accepts connections on ln until ln is closed.
func (s *TunnelServer) Serve(ln net.Listener) error {
	return serve(ln, "tunnel", s.verbose, s.handle)
}

func (s *TunnelServer) handle(conn net.Conn) error {
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	dst, err := tunnel.ReadHeader(conn)
	if err != nil {
		return err
	}

	up, err := s.cfg.Dialer.DialContext(ctx, "tcp", dst)
	if err != nil {
		return err
	}

	if err := CopyBidirectional(ctx, conn, up); err != nil {
		return fmt.Errorf("relay %s: %w", dst, err)
	}
	return nil
}
