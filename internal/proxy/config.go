package proxy

import (
	"github.com/die-net/socksrelay/internal/dialer"
)

type Config struct {
	// Dialer opens the upstream leg of each TCP relay: a RelayDialer on the
	// local half, a direct dialer on the remote half.
	Dialer dialer.Dialer

	// UDP switches the local half to relaying through UDP datagrams sent to
	// RelayAddr instead of Dialer.
	UDP       bool
	RelayAddr string
}
