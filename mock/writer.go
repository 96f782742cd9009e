package mock

import (
	"errors"
	"net"
	"sync"

	"github.com/semihalev/dnsredir/dnsmsg"
)

// Datagram is one packet sent through a Writer.
type Datagram struct {
	Addr net.Addr
	Data []byte
}

// Writer records sent datagrams instead of putting them on the wire.
type Writer struct {
	mu   sync.Mutex
	sent []Datagram

	localAddr  net.Addr
	remoteAddr net.Addr

	// Short makes every write report one octet less than was given.
	Short bool
	// Err is returned by every write when set.
	Err error
}

// NewWriter return writer. addr is the remote peer the tests pretend to
// have received from.
func NewWriter(addr string) *Writer {
	w := &Writer{
		localAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 53},
	}

	w.remoteAddr, _ = net.ResolveUDPAddr("udp", addr)

	return w
}

// WriteTo func
func (w *Writer) WriteTo(p []byte, addr net.Addr) (int, error) {
	if w.Err != nil {
		return 0, w.Err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	data := make([]byte, len(p))
	copy(data, p)
	w.sent = append(w.sent, Datagram{Addr: addr, Data: data})

	if w.Short && len(p) > 0 {
		return len(p) - 1, nil
	}

	return len(p), nil
}

// Sent returns every datagram written so far.
func (w *Writer) Sent() []Datagram {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]Datagram(nil), w.sent...)
}

// Written func
func (w *Writer) Written() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.sent) > 0
}

// Last returns the most recent datagram.
func (w *Writer) Last() (Datagram, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.sent) == 0 {
		return Datagram{}, false
	}

	return w.sent[len(w.sent)-1], true
}

// Msg decodes the most recent datagram.
func (w *Writer) Msg() (*dnsmsg.Message, error) {
	d, ok := w.Last()
	if !ok {
		return nil, errors.New("nothing written")
	}

	return dnsmsg.Decode(d.Data)
}

// Reset forgets every sent datagram.
func (w *Writer) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sent = nil
}

// LocalAddr func
func (w *Writer) LocalAddr() net.Addr { return w.localAddr }

// RemoteAddr func
func (w *Writer) RemoteAddr() net.Addr { return w.remoteAddr }
