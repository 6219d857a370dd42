package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds DNS lookup and TCP connect. Zero means no limit.
	DialTimeout time.Duration
	KeepAlive   net.KeepAliveConfig
}
