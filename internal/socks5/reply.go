package socks5

import (
	"bytes"
	"io"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/socksrelay/internal/errs"
)

// SuccessReply is the only reply ever sent: success, bound to 0.0.0.0:0.
var SuccessReply = []byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}

func writeMethodReply(w io.Writer) error {
	if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(w); err != nil {
		return errs.IO(err, "write method reply")
	}
	return nil
}

// writeSuccessReply sends SuccessReply as one write. The bound address is
// always reported as 0.0.0.0:0 since the reply precedes any upstream dial.
func writeSuccessReply(w io.Writer) error {
	var buf bytes.Buffer
	rep := txsocks5.NewReply(txsocks5.RepSuccess, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
	if _, err := rep.WriteTo(&buf); err != nil {
		return errs.IO(err, "encode success reply")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errs.IO(err, "write success reply")
	}
	return nil
}
