package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/txthinking/socks5"

	"github.com/die-net/socksrelay/internal/conn"
	"github.com/die-net/socksrelay/internal/dialer"
	"github.com/die-net/socksrelay/internal/testutil"
	"github.com/die-net/socksrelay/internal/udprelay"
)

var greeting = []byte{0x05, 0x01, 0x00}

func startSOCKS5(t *testing.T, ctx context.Context, cfg Config) net.Listener {
	t.Helper()

	ln, err := conn.ListenTCP(ctx, "tcp", "127.0.0.1:0", net.KeepAliveConfig{Enable: false})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	srv := NewSOCKS5Server(ctx, cfg, true)
	go func() { _ = srv.Serve(ln) }()
	return ln
}

func startTunnel(t *testing.T, ctx context.Context, d dialer.Dialer) net.Listener {
	t.Helper()

	ln, err := conn.ListenTCP(ctx, "tcp", "127.0.0.1:0", net.KeepAliveConfig{Enable: false})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	srv := NewTunnelServer(ctx, Config{Dialer: d}, true)
	go func() { _ = srv.Serve(ln) }()
	return ln
}

func socksClient(t *testing.T, addr string) *socks5.Client {
	t.Helper()

	client, err := socks5.NewClient(addr, "", "", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestSOCKS5ThroughTunnel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	remote := &testutil.CountingDialer{}
	tunnelLn := startTunnel(t, ctx, remote)

	ln := startSOCKS5(t, ctx, Config{
		Dialer: dialer.NewRelayDialer(dialer.Config{DialTimeout: 2 * time.Second}, tunnelLn.Addr().String()),
	})

	c, err := socksClient(t, ln.Addr().String()).Dial("tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	testutil.AssertEcho(t, c, c, []byte("hello"))
	testutil.AssertEcho(t, c, c, bytes.Repeat([]byte("0123456789"), 500))

	if got := remote.Dials(); len(got) != 1 || got[0] != echoLn.Addr().String() {
		t.Fatalf("remote half dialed %v", got)
	}
}

func TestSOCKS5UDPMode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	pc, err := conn.ListenUDP(ctx, "udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer pc.Close()

	d := &testutil.CountingDialer{}
	mux := udprelay.NewMultiplexer(pc, d, nil)
	go func() { _ = mux.Serve(ctx) }()

	ln := startSOCKS5(t, ctx, Config{UDP: true, RelayAddr: pc.LocalAddr().String()})

	c, err := socksClient(t, ln.Addr().String()).Dial("tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	testutil.AssertEcho(t, c, c, []byte("hello"))
	testutil.AssertEcho(t, c, c, []byte("again"))

	if got := d.Count(); got != 1 {
		t.Fatalf("dials=%d want 1", got)
	}
}

func TestSuccessReplyPrecedesDial(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	release := make(chan struct{})
	dialed := make(chan string, 1)
	d := dialer.DialFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		dialed <- address
		<-release
		var nd net.Dialer
		return nd.DialContext(ctx, network, echoLn.Addr().String())
	})

	ln := startSOCKS5(t, ctx, Config{Dialer: d})

	var nd net.Dialer
	c, err := nd.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	req := []byte{0x05, 0x01, 0x00, 0x01, 93, 184, 216, 34, 0x00, 0x50}
	if _, err := c.Write(append(append([]byte{}, greeting...), req...)); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 12)
	if _, err := io.ReadFull(c, got); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x05, 0x00, 0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	if addr := <-dialed; addr != "93.184.216.34:80" {
		t.Fatalf("dialed %q", addr)
	}
	close(release)

	testutil.AssertEcho(t, c, c, []byte("ping"))
}

func TestDialFailureClosesClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := dialer.DialFunc(func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("unreachable")
	})
	ln := startSOCKS5(t, ctx, Config{Dialer: d})

	var nd net.Dialer
	c, err := nd.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	req := []byte{0x05, 0x01, 0x00, 0x03, 11, 'e', 'x', 'a', 'm', 'p', 'l', 'e', '.', 'c', 'o', 'm', 0x00, 0x50}
	if _, err := c.Write(append(append([]byte{}, greeting...), req...)); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 12)
	if _, err := io.ReadFull(c, got); err != nil {
		t.Fatal(err)
	}
	if got[3] != 0x00 {
		t.Fatalf("expected optimistic success reply, got %v", got)
	}

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if n, err := c.Read(make([]byte, 1)); n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got n=%d err=%v", n, err)
	}
}

func TestSOCKS5BindAbortsWithoutReply(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := &testutil.CountingDialer{}
	ln := startSOCKS5(t, ctx, Config{Dialer: d})

	var nd net.Dialer
	c, err := nd.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Write(greeting); err != nil {
		t.Fatal(err)
	}
	method := make([]byte, 2)
	if _, err := io.ReadFull(c, method); err != nil {
		t.Fatal(err)
	}

	bind := []byte{0x05, 0x02, 0x00, 0x01, 127, 0, 0, 1, 0x00, 0x50}
	if _, err := c.Write(bind); err != nil {
		t.Fatal(err)
	}

	// The unread address bytes may turn the close into a reset; either way
	// nothing but the method reply may have been sent.
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	rest, err := io.ReadAll(c)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		t.Fatal("connection was not closed")
	}
	if len(rest) != 0 {
		t.Fatalf("server replied %v", rest)
	}
	if d.Count() != 0 {
		t.Fatal("bind request was dialed")
	}
}

func TestTunnelServerRejectsShortHeader(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := &testutil.CountingDialer{}
	ln := startTunnel(t, ctx, d)

	var nd net.Dialer
	c, err := nd.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Write([]byte{20, 'a', 'b'}); err != nil {
		t.Fatal(err)
	}
	_ = c.(*net.TCPConn).CloseWrite()

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	rest, err := io.ReadAll(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 || d.Count() != 0 {
		t.Fatalf("unexpected reply %v, dials %d", rest, d.Count())
	}
}
