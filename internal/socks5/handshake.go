package socks5

import (
	"bytes"
	"fmt"
	"io"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/socksrelay/internal/errs"
)

// State is a step of the server-side handshake.
type State uint8

const (
	StateWaitGreeting State = iota
	StateWaitMethodList
	StateWaitRequest
	StateEstablished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateWaitGreeting:
		return "wait-greeting"
	case StateWaitMethodList:
		return "wait-method-list"
	case StateWaitRequest:
		return "wait-request"
	case StateEstablished:
		return "established"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

var (
	// ErrNoAcceptableMethod is returned when the client does not offer the
	// no-authentication method. The message is historical and reads
	// backwards: the handshake fails here because no-auth is absent.
	ErrNoAcceptableMethod = errs.Protocolf("auth not required")

	ErrBadVersion         = errs.Protocolf("unsupported socks version")
	ErrUnsupportedCommand = errs.Protocolf("unsupported command")
	ErrBadRequest         = errs.Protocolf("malformed request")
	ErrHandshakeDone      = errs.Protocolf("handshake already finished")
)

// Handshake negotiates one SOCKS5 CONNECT on a client connection.
//
// Every failure moves it to StateAborted without writing anything; the
// caller is expected to close the connection.
type Handshake struct {
	rw    io.ReadWriter
	state State
	dst   Address
	err   error
}

func NewHandshake(rw io.ReadWriter) *Handshake {
	return &Handshake{rw: rw}
}

func (h *Handshake) State() State {
	return h.state
}

// Destination is the CONNECT target once the handshake is established.
func (h *Handshake) Destination() Address {
	return h.dst
}

// Step performs one state transition.
func (h *Handshake) Step() error {
	var (
		next State
		err  error
	)

	switch h.state {
	case StateWaitGreeting:
		next, err = StateWaitMethodList, h.readGreeting()
	case StateWaitMethodList:
		next, err = StateWaitRequest, h.readMethods()
	case StateWaitRequest:
		next, err = StateEstablished, h.readRequest()
	case StateAborted:
		return h.err
	default:
		return ErrHandshakeDone
	}

	if err != nil {
		h.state = StateAborted
		h.err = err
		return err
	}
	h.state = next
	return nil
}

// Run steps until the handshake is established or aborted.
func (h *Handshake) Run() (Address, error) {
	for h.state != StateEstablished {
		if err := h.Step(); err != nil {
			return Address{}, err
		}
	}
	return h.dst, nil
}

// Negotiate runs a full handshake on rw and returns the CONNECT target.
func Negotiate(rw io.ReadWriter) (Address, error) {
	return NewHandshake(rw).Run()
}

func (h *Handshake) readGreeting() error {
	var v [1]byte
	if _, err := io.ReadFull(h.rw, v[:]); err != nil {
		return errs.Protocol(err, "read greeting")
	}
	if v[0] != txsocks5.Ver {
		return fmt.Errorf("%w: 0x%02x", ErrBadVersion, v[0])
	}
	return nil
}

func (h *Handshake) readMethods() error {
	var n [1]byte
	if _, err := io.ReadFull(h.rw, n[:]); err != nil {
		return errs.Protocol(err, "read method count")
	}
	methods := make([]byte, int(n[0]))
	if _, err := io.ReadFull(h.rw, methods); err != nil {
		return errs.Protocol(err, "read methods")
	}
	if !bytes.Contains(methods, []byte{txsocks5.MethodNone}) {
		return ErrNoAcceptableMethod
	}
	return writeMethodReply(h.rw)
}

func (h *Handshake) readRequest() error {
	var hdr [4]byte
	if _, err := io.ReadFull(h.rw, hdr[:]); err != nil {
		return errs.Protocol(err, "read request")
	}
	if hdr[0] != txsocks5.Ver || hdr[2] != 0x00 {
		return fmt.Errorf("%w: % x", ErrBadRequest, hdr[:3])
	}
	if hdr[1] != txsocks5.CmdConnect {
		return fmt.Errorf("%w: 0x%02x", ErrUnsupportedCommand, hdr[1])
	}

	dst, err := ReadAddress(h.rw, hdr[3])
	if err != nil {
		return err
	}
	if err := writeSuccessReply(h.rw); err != nil {
		return err
	}
	h.dst = dst
	return nil
}
