package dialer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/die-net/socksrelay/internal/errs"
	"github.com/die-net/socksrelay/internal/testutil"
	"github.com/die-net/socksrelay/internal/tunnel"
)

func TestDirectDialer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	d := NewDirectDialer(Config{DialTimeout: 2 * time.Second})
	c, err := d.DialContext(ctx, "tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	testutil.AssertEcho(t, c, c, []byte("hello"))
}

func TestDirectDialerRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = NewDirectDialer(Config{}).DialContext(ctx, "tcp", addr)
	if !errors.Is(err, errs.ErrIO) {
		t.Fatalf("expected i/o error, got %v", err)
	}
}

func TestRelayDialerWritesHeader(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan string, 1)
	relayLn, waitRelay := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		dst, err := tunnel.ReadHeader(c)
		if err != nil {
			got <- "error: " + err.Error()
			return
		}
		got <- dst
		buf := make([]byte, 5)
		n, _ := c.Read(buf)
		_, _ = c.Write(buf[:n])
	})

	d := NewRelayDialer(Config{DialTimeout: 2 * time.Second}, relayLn.Addr().String())
	if d.RelayAddr() != relayLn.Addr().String() {
		t.Fatalf("relay addr %q", d.RelayAddr())
	}

	c, err := d.DialContext(ctx, "tcp", "example.com:443")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if dst := <-got; dst != "example.com:443" {
		t.Fatalf("relay saw %q", dst)
	}
	testutil.AssertEcho(t, c, c, []byte("hello"))

	waitRelay()
}

func TestRelayDialerRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		network string
		address string
	}{
		{name: "udp network", network: "udp", address: "example.com:53"},
		{name: "unreachable relay", network: "tcp", address: "example.com:80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Port 1 on loopback is closed in test environments.
			d := NewRelayDialer(Config{DialTimeout: time.Second}, "127.0.0.1:1")
			if _, err := d.DialContext(context.Background(), tt.network, tt.address); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDialFunc(t *testing.T) {
	called := false
	var d Dialer = DialFunc(func(context.Context, string, string) (net.Conn, error) {
		called = true
		return nil, errors.New("no")
	})
	if _, err := d.DialContext(context.Background(), "tcp", "x:1"); err == nil || !called {
		t.Fatalf("err=%v called=%v", err, called)
	}
}
