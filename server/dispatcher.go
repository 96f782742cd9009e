package server

import (
	"context"
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/semihalev/dnsredir/dnsmsg"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/zlog/v2"
)

var (
	datagramsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_datagrams_received_total",
		Help: "Total number of datagrams received",
	})

	decodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_decode_errors_total",
		Help: "Total number of datagrams dropped because they did not decode",
	})
)

func init() {
	prometheus.MustRegister(datagramsReceived)
	prometheus.MustRegister(decodeErrors)
}

// Dispatcher handles one datagram at a time: expired state is swept, the
// datagram is decoded and the decoded message is run through the handler
// chain. Datagrams that do not decode are dropped.
type Dispatcher struct {
	handlers []middleware.Handler
	sweepers []middleware.Sweeper

	chainPool sync.Pool
}

// NewDispatcher returns a dispatcher running handlers in order.
func NewDispatcher(handlers []middleware.Handler) *Dispatcher {
	d := &Dispatcher{handlers: handlers}

	for _, h := range handlers {
		if s, ok := h.(middleware.Sweeper); ok {
			d.sweepers = append(d.sweepers, s)
		}
	}

	d.chainPool.New = func() any {
		return middleware.NewChain(d.handlers)
	}

	return d
}

// ServeDatagram handles buf received from peer. Replies are sent with w.
// buf must stay unchanged until ServeDatagram returns.
func (d *Dispatcher) ServeDatagram(ctx context.Context, w middleware.PacketWriter, buf []byte, peer net.Addr) {
	datagramsReceived.Inc()

	for _, s := range d.sweepers {
		s.Sweep()
	}

	zlog.Debug("Datagram received", "peer", peer, "size", len(buf))

	msg, err := dnsmsg.Decode(buf)
	if err != nil {
		decodeErrors.Inc()
		zlog.Warn("Error parsing msg", "peer", peer, "error", err.Error())
		return
	}

	zlog.Debug("Message decoded", "peer", peer, "msg", msg)

	ch := d.chainPool.Get().(*middleware.Chain)

	ch.Reset(w, peer, msg, buf)
	ch.Next(ctx)

	ch.Reset(nil, nil, nil, nil)
	d.chainPool.Put(ch)
}

// Handlers returns the handler chain.
func (d *Dispatcher) Handlers() []middleware.Handler { return d.handlers }
