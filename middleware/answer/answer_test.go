package answer

import (
	"context"
	"testing"

	"github.com/miekg/dns"
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

func newAnswer() *Answer {
	cfg := config.New("0.0.0")
	cfg.Rules = []string{`A:host\.example\.:10.0.0.5`}
	cfg.TTL = 30

	return New(cfg)
}

func serve(t *testing.T, a *Answer, req *dnsmsg.Message) (*mock.Writer, *sink) {
	raw, err := req.Encode()
	require.NoError(t, err)

	s := &sink{}
	mw := mock.NewWriter("192.0.2.10:5353")
	ch := middleware.NewChain([]middleware.Handler{a, s})
	ch.Reset(mw, mw.RemoteAddr(), req, raw)
	ch.Next(context.Background())

	return mw, s
}

func query(name string, qtype dnsmsg.RecordType) *dnsmsg.Message {
	return &dnsmsg.Message{
		Header: dnsmsg.Header{ID: 0x1234, RecursionDesired: true},
		Question: []dnsmsg.Question{
			{Name: name, Qtype: qtype, Qclass: dnsmsg.ClassIN},
		},
	}
}

func Test_Answer(t *testing.T) {
	a := newAnswer()
	assert.Equal(t, "answer", a.Name())
	assert.Equal(t, 1, a.Rules().Len())

	mw, s := serve(t, a, query("host.example.", dnsmsg.TypeA))
	assert.Equal(t, 0, s.calls)

	sent, ok := mw.Last()
	require.True(t, ok)
	assert.Equal(t, "192.0.2.10:5353", sent.Addr.String())

	resp := new(dns.Msg)
	require.NoError(t, resp.Unpack(sent.Data))

	assert.Equal(t, uint16(0x1234), resp.Id)
	assert.True(t, resp.Response)
	assert.Equal(t, dns.OpcodeQuery, resp.Opcode)
	assert.False(t, resp.RecursionDesired)
	assert.False(t, resp.RecursionAvailable)
	assert.False(t, resp.Authoritative)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)

	require.Len(t, resp.Question, 1)
	assert.Equal(t, "host.example.", resp.Question[0].Name)

	require.Len(t, resp.Answer, 1)
	rr, ok := resp.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "host.example.", rr.Hdr.Name)
	assert.Equal(t, uint32(30), rr.Hdr.Ttl)
	assert.Equal(t, "10.0.0.5", rr.A.String())
	assert.Empty(t, resp.Ns)
	assert.Empty(t, resp.Extra)
}

func Test_AnswerPassThrough(t *testing.T) {
	a := newAnswer()

	tests := map[string]*dnsmsg.Message{
		"miss": query("other.example.", dnsmsg.TypeA),
		"type": query("host.example.", dnsmsg.TypeAAAA),
	}

	chaos := query("host.example.", dnsmsg.TypeA)
	chaos.Question[0].Qclass = 3
	tests["class"] = chaos

	status := query("host.example.", dnsmsg.TypeA)
	status.Opcode = dnsmsg.OpcodeStatus
	tests["opcode"] = status

	two := query("host.example.", dnsmsg.TypeA)
	two.Question = append(two.Question, two.Question[0])
	tests["questions"] = two

	response := query("host.example.", dnsmsg.TypeA)
	response.Response = true
	tests["response"] = response

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			mw, s := serve(t, a, req)
			assert.Equal(t, 1, s.calls)
			assert.False(t, mw.Written())
		})
	}
}

func Test_AnswerBadRules(t *testing.T) {
	cfg := config.New("0.0.0")
	cfg.Rules = []string{"MX:host.:10.0.0.1"}

	a := New(cfg)
	assert.Equal(t, 0, a.Rules().Len())
}
