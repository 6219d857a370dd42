package udprelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/die-net/socksrelay/internal/conn"
	"github.com/die-net/socksrelay/internal/tunnel"
)

// ClientSession relays one SOCKS5 client connection over UDP: every chunk
// read from the client becomes one datagram to Relay, prefixed with a
// tunnel header naming Destination, and every datagram received from Relay
// is written to the client as is.
type ClientSession struct {
	Relay       string
	Destination string
}

// Run relays until either direction ends, then closes client. Neither
// direction is retried.
func (s ClientSession) Run(ctx context.Context, client net.Conn) error {
	framer, err := tunnel.NewFramer(s.Destination)
	if err != nil {
		_ = client.Close()
		return err
	}

	uc, err := conn.DialUDP(ctx, s.Relay)
	if err != nil {
		_ = client.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = client.Close()
			_ = uc.Close()
		})
	}
	defer closeBoth()

	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	g.Go(func() error {
		defer closeBoth()
		return ignoreClosed(clientToRelay(client, uc, framer))
	})

	g.Go(func() error {
		defer closeBoth()
		return ignoreClosed(relayToClient(uc, client))
	})

	return g.Wait()
}

func clientToRelay(client io.Reader, uc io.Writer, framer *tunnel.Framer) error {
	buf := make([]byte, ChunkSize)
	for {
		n, err := client.Read(buf)
		if n > 0 {
			if _, werr := uc.Write(framer.Frame(buf[:n])); werr != nil {
				return fmt.Errorf("udp send: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("client read: %w", err)
		}
	}
}

func relayToClient(uc io.Reader, client io.Writer) error {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, err := uc.Read(buf)
		if err != nil {
			return fmt.Errorf("udp receive: %w", err)
		}
		if n == 0 {
			continue
		}
		if _, err := client.Write(buf[:n]); err != nil {
			return fmt.Errorf("client write: %w", err)
		}
	}
}

// ignoreClosed hides the error a leg sees after the other leg closed both
// connections.
func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
