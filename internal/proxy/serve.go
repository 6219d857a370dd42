package proxy

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/die-net/socksrelay/internal/errs"
)

// serve accepts on ln until it is closed, running handle for each
// connection in its own goroutine. Per-connection errors are logged when
// verbose and never stop the loop.
func serve(ln net.Listener, name string, verbose bool, handle func(net.Conn) error) error {
	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				log.Printf("%s: accept: %v; retrying in %v", name, err, backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("%s: accept: %w", name, err)
		}
		backoff = 0

		go func() {
			if err := handle(c); err != nil && verbose {
				logConnError(name, c.RemoteAddr(), err)
			}
		}()
	}
}

// logConnError logs a per-connection failure with its kind and, when one
// was recorded, the stack where it arose.
func logConnError(name string, remote net.Addr, err error) {
	kind := errs.Kind(err)
	if kind == nil {
		log.Printf("%s: %s: %v", name, remote, err)
		return
	}
	if st := errs.StackTrace(err); st != nil {
		log.Printf("%s: %s: %v: %v%+v", name, remote, kind, err, st)
		return
	}
	log.Printf("%s: %s: %v: %v", name, remote, kind, err)
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
