package middleware

import (
	"context"
	"net"

	"github.com/semihalev/dnsredir/dnsmsg"
)

// Chain carries one received datagram through the handlers.
type Chain struct {
	Writer  ResponseWriter
	Request *dnsmsg.Message

	// Raw is the datagram Request was decoded from. It is only valid
	// until the chain is reset.
	Raw []byte

	handlers []Handler

	head  int
	count int
}

// NewChain return new fresh chain.
func NewChain(handlers []Handler) *Chain {
	return &Chain{
		Writer:   &responseWriter{},
		handlers: handlers,
		count:    len(handlers),
	}
}

// Next calls the next handler in the chain.
func (ch *Chain) Next(ctx context.Context) {
	if ch.count == 0 {
		return
	}

	handler := ch.handlers[ch.head]
	ch.head++
	ch.count--

	handler.ServeDNS(ctx, ch)
}

// Cancel stops the remaining handlers from running.
func (ch *Chain) Cancel() {
	ch.count = 0
}

// Reset prepares the chain for a new datagram from peer.
func (ch *Chain) Reset(w PacketWriter, peer net.Addr, req *dnsmsg.Message, raw []byte) {
	ch.Writer.Reset(w, peer)
	ch.Request = req
	ch.Raw = raw
	ch.count = len(ch.handlers)
	ch.head = 0
}
