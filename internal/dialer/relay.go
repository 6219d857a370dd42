package dialer

import (
	"context"
	"fmt"
	"net"

	"github.com/die-net/socksrelay/internal/tunnel"
)

// RelayDialer connects to a relay endpoint instead of the destination and
// writes a tunnel header naming the destination before handing the
// connection back. Everything written afterwards is relayed verbatim.
type RelayDialer struct {
	relayAddr string
	direct    Dialer
}

func NewRelayDialer(cfg Config, relayAddr string) *RelayDialer {
	return &RelayDialer{relayAddr: relayAddr, direct: NewDirectDialer(cfg)}
}

// RelayAddr is the endpoint all connections go to.
func (d *RelayDialer) RelayAddr() string {
	return d.relayAddr
}

func (d *RelayDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return nil, fmt.Errorf("relay dial %s %s: unsupported network", network, address)
	}

	c, err := d.direct.DialContext(ctx, network, d.relayAddr)
	if err != nil {
		return nil, err
	}

	if err := tunnel.WriteHeader(c, address); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("relay %s: %w", d.relayAddr, err)
	}

	return c, nil
}
