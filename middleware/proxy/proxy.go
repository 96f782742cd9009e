// Package proxy forwards queries that were not answered locally to the
// upstream server and returns the upstream responses to their clients.
//
// Each forwarded query gets an internal transaction id so that queries from
// different clients that happen to share an id cannot be confused.
package proxy

import (
	"context"
	"errors"
	"net"

	"github.com/jonboulle/clockwork"
	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/dnsredir/session"
	"github.com/semihalev/zlog/v2"
)

// Proxy type
type Proxy struct {
	upstream net.Addr
	sessions *session.Table
}

// New return proxy
func New(cfg *config.Config) *Proxy {
	return NewWithClock(cfg, clockwork.NewRealClock())
}

// NewWithClock returns a proxy whose sessions expire by clock.
func NewWithClock(cfg *config.Config, clock clockwork.Clock) *Proxy {
	p := &Proxy{
		sessions: session.New(clock, cfg.Timeout.Duration),
	}

	upstream, err := net.ResolveUDPAddr("udp", cfg.UpstreamAddr())
	if err != nil {
		zlog.Error("Upstream address resolve failed", "upstream", cfg.UpstreamAddr(), "error", err.Error())
	} else {
		p.upstream = upstream
	}

	return p
}

// Name return middleware name
func (p *Proxy) Name() string { return name }

// ServeDNS implements the Handle interface.
func (p *Proxy) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	if ch.Request.Response {
		p.relay(ch)
	} else {
		p.forward(ch)
	}

	proxySessions.Set(float64(p.sessions.Len()))
}

func (p *Proxy) forward(ch *middleware.Chain) {
	w, req := ch.Writer, ch.Request

	if p.upstream == nil {
		zlog.Error("No upstream server, query dropped", "client", w.RemoteAddr())
		return
	}

	id, err := p.sessions.Create(w.RemoteAddr(), req.ID)
	if err != nil {
		if errors.Is(err, session.ErrIDCollision) {
			proxyCollisions.Inc()
		}
		zlog.Error("Proxy session failed, query dropped", "client", w.RemoteAddr(), "id", req.ID, "error", err.Error())
		return
	}

	zlog.Info("Proxy msg from client to server", "client", w.RemoteAddr(), "id", req.ID, "server", p.upstream, "proxyid", id)

	if err := w.Relay(req, ch.Raw, id, p.upstream); err != nil {
		zlog.Error("Send to upstream failed", "server", p.upstream, "error", err.Error())
		return
	}

	proxyForwarded.Inc()
}

func (p *Proxy) relay(ch *middleware.Chain) {
	w, req := ch.Writer, ch.Request

	s, ok := p.sessions.Resolve(req.ID)
	if !ok {
		proxyUnexpected.Inc()
		zlog.Warn("Unexpected response", "server", w.RemoteAddr(), "id", req.ID)
		return
	}

	zlog.Info("Proxy msg from server to client", "server", w.RemoteAddr(), "proxyid", req.ID, "client", s.Client, "id", s.OriginalID)

	if err := w.Relay(req, ch.Raw, s.OriginalID, s.Client); err != nil {
		zlog.Error("Send to client failed", "client", s.Client, "error", err.Error())
		return
	}

	proxyRelayed.Inc()
}

// Sweep drops sessions whose response never arrived.
func (p *Proxy) Sweep() {
	expired := p.sessions.Sweep(p.sessions.Now())

	for _, s := range expired {
		zlog.Info("Expire proxy request", "proxyid", s.ID, "client", s.Client, "id", s.OriginalID)
	}

	if len(expired) > 0 {
		proxyExpired.Add(float64(len(expired)))
		proxySessions.Set(float64(p.sessions.Len()))
	}
}

// Sessions returns the session table.
func (p *Proxy) Sessions() *session.Table { return p.sessions }

// Upstream returns the upstream server address.
func (p *Proxy) Upstream() net.Addr { return p.upstream }

const name = "proxy"
