package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/dnsmsg"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/dnsredir/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct{ calls int }

func (s *sink) Name() string { return "sink" }
func (s *sink) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	s.calls++
}

func serve(t *testing.T, r *RateLimit, addr string, response bool) bool {
	req := &dnsmsg.Message{
		Header:   dnsmsg.Header{ID: 1, Response: response},
		Question: []dnsmsg.Question{{Name: "example.com.", Qtype: dnsmsg.TypeA, Qclass: dnsmsg.ClassIN}},
	}
	raw, err := req.Encode()
	require.NoError(t, err)

	s := &sink{}
	mw := mock.NewWriter(addr)
	ch := middleware.NewChain([]middleware.Handler{r, s})
	ch.Reset(mw, mw.RemoteAddr(), req, raw)
	ch.Next(context.Background())

	return s.calls == 1
}

func Test_RateLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()

	cfg := config.New("0.0.0")
	cfg.ClientRateLimit = 2

	r := NewWithClock(cfg, clock.Now)
	assert.Equal(t, "ratelimit", r.Name())

	assert.True(t, serve(t, r, "10.0.0.1:5300", false))
	assert.True(t, serve(t, r, "10.0.0.1:5301", false))
	assert.False(t, serve(t, r, "10.0.0.1:5302", false))

	// other clients have their own bucket
	assert.True(t, serve(t, r, "10.0.0.2:5300", false))

	// loopback and upstream responses are never limited
	for i := 0; i < 5; i++ {
		assert.True(t, serve(t, r, "127.0.0.1:5300", false))
		assert.True(t, serve(t, r, "10.0.0.1:53", true))
	}

	clock.Advance(30 * time.Second)
	assert.True(t, serve(t, r, "10.0.0.1:5300", false))
}

func Test_RateLimitDisabled(t *testing.T) {
	r := New(config.New("0.0.0"))

	for i := 0; i < 10; i++ {
		assert.True(t, serve(t, r, "10.0.0.1:5300", false))
	}

	r.Sweep()
	assert.Equal(t, 0, r.store.Len())
}

func Test_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()

	cfg := config.New("0.0.0")
	cfg.ClientRateLimit = 10

	r := NewWithClock(cfg, clock.Now)
	assert.True(t, serve(t, r, "10.0.0.1:5300", false))
	assert.Equal(t, 1, r.store.Len())

	r.Sweep()
	assert.Equal(t, 1, r.store.Len())

	clock.Advance(2 * time.Minute)
	r.Sweep()
	assert.Equal(t, 0, r.store.Len())
}

func Test_LimiterStoreEviction(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewLimiterStore(2, 1, clock.Now)

	assert.True(t, s.Allow(1))
	clock.Advance(time.Second)
	assert.True(t, s.Allow(2))
	clock.Advance(time.Second)
	assert.True(t, s.Allow(3))

	assert.Equal(t, 2, s.Len())

	// key 1 was evicted, so it starts with a full bucket again
	assert.True(t, s.Allow(1))
	assert.False(t, s.Allow(1))
}
