package testutil

import (
	"context"
	"net"
	"sync"
)

// CountingDialer dials with net.Dialer and records every address it was
// asked for.
type CountingDialer struct {
	// Before, if set, runs ahead of each dial with the 1-based call number.
	// A non-nil error fails that dial.
	Before func(ctx context.Context, call int) error

	mu    sync.Mutex
	dials []string
}

func (d *CountingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, address)
	call := len(d.dials)
	d.mu.Unlock()

	if d.Before != nil {
		if err := d.Before(ctx, call); err != nil {
			return nil, err
		}
	}

	var nd net.Dialer
	return nd.DialContext(ctx, network, address)
}

// Count is the number of dials so far.
func (d *CountingDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

// Dials returns a copy of the dialed addresses in order.
func (d *CountingDialer) Dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}
