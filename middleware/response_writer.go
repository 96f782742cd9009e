package middleware

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/semihalev/dnsredir/dnsmsg"
)

// PacketWriter sends datagrams. It is satisfied by net.PacketConn.
type PacketWriter interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
	LocalAddr() net.Addr
}

// ResponseWriter sends at most one datagram per received datagram and
// remembers what was sent.
type ResponseWriter interface {
	// WriteMsg encodes m and sends it to the peer.
	WriteMsg(m *dnsmsg.Message) error
	// WriteMsgTo encodes m and sends it to addr.
	WriteMsgTo(m *dnsmsg.Message, addr net.Addr) error
	// Relay sends raw, the wire form of m, to addr with its transaction
	// id replaced by id. raw itself is not modified.
	Relay(m *dnsmsg.Message, raw []byte, id uint16, addr net.Addr) error

	Msg() *dnsmsg.Message
	Dest() net.Addr
	Size() int
	Written() bool

	RemoteAddr() net.Addr
	RemoteIP() net.IP
	LocalAddr() net.Addr

	Reset(w PacketWriter, peer net.Addr)
}

type responseWriter struct {
	PacketWriter

	peer     net.Addr
	remoteip net.IP

	msg  *dnsmsg.Message
	dest net.Addr
	size int
}

var _ ResponseWriter = &responseWriter{}
var errAlreadyWritten = errors.New("msg already written")

func (w *responseWriter) Reset(pw PacketWriter, peer net.Addr) {
	w.PacketWriter = pw
	w.peer = peer
	w.msg = nil
	w.dest = nil
	w.size = -1

	w.remoteip = nil

	switch addr := peer.(type) {
	case nil:
	case *net.UDPAddr:
		if addr != nil {
			w.remoteip = addr.IP
		}
	case *net.TCPAddr:
		if addr != nil {
			w.remoteip = addr.IP
		}
	default:
		if host, _, err := net.SplitHostPort(peer.String()); err == nil {
			w.remoteip = net.ParseIP(host)
		}
	}
}

func (w *responseWriter) WriteMsg(m *dnsmsg.Message) error {
	return w.WriteMsgTo(m, w.peer)
}

func (w *responseWriter) WriteMsgTo(m *dnsmsg.Message, addr net.Addr) error {
	if w.Written() {
		return errAlreadyWritten
	}

	data, err := m.Encode()
	if err != nil {
		return err
	}

	return w.write(m, data, addr)
}

func (w *responseWriter) Relay(m *dnsmsg.Message, raw []byte, id uint16, addr net.Addr) error {
	if w.Written() {
		return errAlreadyWritten
	}

	if len(raw) < 2 {
		return dnsmsg.ErrTruncatedData
	}

	data := make([]byte, len(raw))
	copy(data, raw)
	binary.BigEndian.PutUint16(data, id)

	sent := *m
	sent.ID = id

	return w.write(&sent, data, addr)
}

func (w *responseWriter) write(m *dnsmsg.Message, data []byte, addr net.Addr) error {
	n, err := w.PacketWriter.WriteTo(data, addr)

	w.msg = m
	w.dest = addr
	w.size = n
	if w.size < 0 {
		w.size = 0
	}

	if err != nil {
		return err
	}

	if n != len(data) {
		return fmt.Errorf("%w: sent %d of %d octets to %s", io.ErrShortWrite, n, len(data), addr)
	}

	return nil
}

func (w *responseWriter) Msg() *dnsmsg.Message { return w.msg }

func (w *responseWriter) Dest() net.Addr { return w.dest }

func (w *responseWriter) Size() int { return w.size }

func (w *responseWriter) Written() bool { return w.size != -1 }

func (w *responseWriter) RemoteAddr() net.Addr { return w.peer }

func (w *responseWriter) RemoteIP() net.IP { return w.remoteip }
