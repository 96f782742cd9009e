package ratelimit

import (
	"context"
	"net"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/zlog/v2"
)

// RateLimit type
type RateLimit struct {
	store *LimiterStore
	rate  int
}

// New return ratelimit
func New(cfg *config.Config) *RateLimit {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock returns a ratelimit reading time from now.
func NewWithClock(cfg *config.Config, now func() time.Time) *RateLimit {
	return &RateLimit{
		store: NewLimiterStore(storeSize, cfg.ClientRateLimit, now),
		rate:  cfg.ClientRateLimit,
	}
}

// Name return middleware name
func (r *RateLimit) Name() string { return name }

// ServeDNS implements the Handle interface.
func (r *RateLimit) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	w, req := ch.Writer, ch.Request

	if r.rate == 0 || req.Response {
		ch.Next(ctx)
		return
	}

	if w.RemoteIP() == nil {
		ch.Next(ctx)
		return
	} else if w.RemoteIP().IsLoopback() {
		ch.Next(ctx)
		return
	}

	if !r.store.Allow(key(w.RemoteIP())) {
		zlog.Debug("Query dropped by rate limit", "client", w.RemoteAddr())
		// no reply to client
		ch.Cancel()
		return
	}

	ch.Next(ctx)
}

// Sweep forgets clients idle for longer than a minute.
func (r *RateLimit) Sweep() {
	if r.rate == 0 {
		return
	}

	r.store.Cleanup(idleTimeout)
}

func key(remoteip net.IP) uint64 {
	if ip4 := remoteip.To4(); ip4 != nil {
		remoteip = ip4
	}

	return xxhash.Sum64(remoteip)
}

const (
	storeSize   = 256 * 100
	idleTimeout = time.Minute

	name = "ratelimit"
)
