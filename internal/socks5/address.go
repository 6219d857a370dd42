package socks5

import (
	"encoding/binary"
	"io"
	"net"
	"net/netip"
	"strconv"
	"unicode/utf8"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/socksrelay/internal/errs"
)

// HostKind discriminates the variants of Host.
type HostKind uint8

const (
	HostNone HostKind = iota
	HostIPv4
	HostIPv6
	HostDomain
)

func (k HostKind) String() string {
	switch k {
	case HostNone:
		return "none"
	case HostIPv4:
		return "ipv4"
	case HostIPv6:
		return "ipv6"
	case HostDomain:
		return "domain"
	default:
		return "HostKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Host is a destination host: an IPv4 address, an IPv6 address, a domain
// name, or nothing. The zero value is HostNone.
type Host struct {
	kind   HostKind
	ip     netip.Addr
	domain string
}

// IPv4Host returns an IPv4 Host.
func IPv4Host(b [4]byte) Host {
	return Host{kind: HostIPv4, ip: netip.AddrFrom4(b)}
}

// IPv6Host returns an IPv6 Host.
func IPv6Host(b [16]byte) Host {
	return Host{kind: HostIPv6, ip: netip.AddrFrom16(b)}
}

// DomainHost returns a domain name Host.
func DomainHost(name string) Host {
	return Host{kind: HostDomain, domain: name}
}

func (h Host) Kind() HostKind {
	return h.kind
}

// IP returns the address of an IPv4 or IPv6 Host.
func (h Host) IP() (netip.Addr, bool) {
	if h.kind != HostIPv4 && h.kind != HostIPv6 {
		return netip.Addr{}, false
	}
	return h.ip, true
}

// Domain returns the name of a domain Host.
func (h Host) Domain() (string, bool) {
	if h.kind != HostDomain {
		return "", false
	}
	return h.domain, true
}

func (h Host) String() string {
	switch h.kind {
	case HostIPv4, HostIPv6:
		return h.ip.String()
	case HostDomain:
		return h.domain
	default:
		return ""
	}
}

// Address is a Host paired with a port.
type Address struct {
	Host Host
	Port uint16
}

// String formats the address as host:port, bracketing IPv6 hosts.
func (a Address) String() string {
	return net.JoinHostPort(a.Host.String(), strconv.Itoa(int(a.Port)))
}

// ReadAddress reads a DST.ADDR and DST.PORT of the given address type from r.
// It either returns a complete address or an error; a short read, an unknown
// atyp or a domain that is not valid UTF-8 all fail.
func ReadAddress(r io.Reader, atyp byte) (Address, error) {
	var host Host

	switch atyp {
	case txsocks5.ATYPIPv4:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Address{}, errs.Protocol(err, "read ipv4 address")
		}
		host = IPv4Host(b)
	case txsocks5.ATYPDomain:
		var l [1]byte
		if _, err := io.ReadFull(r, l[:]); err != nil {
			return Address{}, errs.Protocol(err, "read domain length")
		}
		b := make([]byte, int(l[0]))
		if _, err := io.ReadFull(r, b); err != nil {
			return Address{}, errs.Protocol(err, "read domain")
		}
		if !utf8.Valid(b) {
			return Address{}, errs.Encodingf("domain is not valid utf-8")
		}
		host = DomainHost(string(b))
	case txsocks5.ATYPIPv6:
		var b [16]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Address{}, errs.Protocol(err, "read ipv6 address")
		}
		host = IPv6Host(b)
	default:
		return Address{}, errs.Protocolf("unknown address type 0x%02x", atyp)
	}

	var p [2]byte
	if _, err := io.ReadFull(r, p[:]); err != nil {
		return Address{}, errs.Protocol(err, "read port")
	}

	return Address{Host: host, Port: binary.BigEndian.Uint16(p[:])}, nil
}
