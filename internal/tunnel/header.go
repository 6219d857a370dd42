// Package tunnel implements the length-prefixed destination header that the
// local half prepends to relayed data.
//
// The wire format is one length byte followed by that many bytes of UTF-8
// "host:port", then the raw payload:
//
//	[len][host:port][payload...]
//
// It is written once at the start of each relayed TCP stream and once at the
// start of every UDP datagram sent towards the remote half.
package tunnel

import (
	"io"
	"unicode/utf8"

	"github.com/die-net/socksrelay/internal/errs"
)

// MaxAddrLen is the longest address a header can carry.
const MaxAddrLen = 255

// EncodeHeader returns the header naming addr.
func EncodeHeader(addr string) ([]byte, error) {
	return AppendHeader(nil, addr)
}

// AppendHeader appends the header naming addr to b.
func AppendHeader(b []byte, addr string) ([]byte, error) {
	if len(addr) > MaxAddrLen {
		return nil, errs.Protocolf("tunnel header: address is %d bytes, limit %d", len(addr), MaxAddrLen)
	}
	b = append(b, byte(len(addr)))
	return append(b, addr...), nil
}

// DecodeHeader splits b into the destination address and the payload that
// follows the header. The returned payload aliases b.
func DecodeHeader(b []byte) (addr string, payload []byte, err error) {
	if len(b) == 0 {
		return "", nil, errs.Protocolf("tunnel header: empty input")
	}
	n := int(b[0])
	if n > len(b)-1 {
		return "", nil, errs.Protocolf("tunnel header: declared length %d exceeds %d available bytes", n, len(b)-1)
	}
	raw := b[1 : 1+n]
	if !utf8.Valid(raw) {
		return "", nil, errs.Encodingf("tunnel header: address is not valid utf-8")
	}
	return string(raw), b[1+n:], nil
}

// ReadHeader reads one header from the start of a stream.
func ReadHeader(r io.Reader) (string, error) {
	var l [1]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return "", errs.Protocol(err, "tunnel header: read length")
	}
	raw := make([]byte, int(l[0]))
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", errs.Protocol(err, "tunnel header: read address")
	}
	if !utf8.Valid(raw) {
		return "", errs.Encodingf("tunnel header: address is not valid utf-8")
	}
	return string(raw), nil
}

// WriteHeader writes the header naming addr as a single Write call.
func WriteHeader(w io.Writer, addr string) error {
	hdr, err := EncodeHeader(addr)
	if err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return errs.IO(err, "tunnel header: write")
	}
	return nil
}

// Framer prefixes payloads with a fixed header. It is how the client-facing
// UDP path turns each chunk read from the SOCKS5 client into one datagram.
type Framer struct {
	header []byte
}

// NewFramer builds a Framer for addr.
func NewFramer(addr string) (*Framer, error) {
	hdr, err := EncodeHeader(addr)
	if err != nil {
		return nil, err
	}
	return &Framer{header: hdr}, nil
}

// Frame returns a freshly allocated header+payload.
func (f *Framer) Frame(payload []byte) []byte {
	out := make([]byte, 0, len(f.header)+len(payload))
	out = append(out, f.header...)
	return append(out, payload...)
}
