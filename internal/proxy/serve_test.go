package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"testing"

	"github.com/die-net/socksrelay/internal/errs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestLogConnError(t *testing.T) {
	remote := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}

	tests := []struct {
		name      string
		err       error
		want      string
		wantStack bool
	}{
		{
			name:      "protocol",
			err:       fmt.Errorf("handshake: %w", errs.Protocolf("unsupported command")),
			want:      "socks5: 127.0.0.1:4000: protocol error: handshake: unsupported command",
			wantStack: true,
		},
		{
			name: "unclassified",
			err:  errors.New("boom"),
			want: "socks5: 127.0.0.1:4000: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			logConnError("socks5", remote, tt.err)

			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Fatalf("log %q does not contain %q", out, tt.want)
			}
			if got := strings.Contains(out, "/serve_test.go"); got != tt.wantStack {
				t.Fatalf("stack logged=%v want %v: %q", got, tt.wantStack, out)
			}
		})
	}
}

func TestNextBackoff(t *testing.T) {
	d := nextBackoff(0)
	if d <= 0 {
		t.Fatalf("first backoff %v", d)
	}
	for range 20 {
		d = nextBackoff(d)
	}
	if d != nextBackoff(d) {
		t.Fatalf("backoff not capped: %v", d)
	}
}
