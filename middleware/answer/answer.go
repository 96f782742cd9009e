// Package answer replies to queries covered by a local rule without
// consulting the upstream server.
package answer

import (
	"context"

	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/dnsmsg"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/dnsredir/rules"
	"github.com/semihalev/zlog/v2"
)

// Answer type
type Answer struct {
	rules *rules.Table
	ttl   uint32
}

// New return answer. cfg must have passed config.Validate, which
// middleware.Setup enforces; a rule that still fails to parse here is
// logged and leaves the table empty.
func New(cfg *config.Config) *Answer {
	table, err := rules.New(cfg.Rules)
	if err != nil {
		zlog.Error("Rules parse failed", "error", err.Error())
		table, _ = rules.New(nil)
	}

	return &Answer{rules: table, ttl: cfg.TTL}
}

// Name return middleware name
func (a *Answer) Name() string { return name }

// ServeDNS implements the Handle interface.
func (a *Answer) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	req := ch.Request

	if !req.IsStandardQuery() || req.Question[0].Qclass != dnsmsg.ClassIN {
		ch.Next(ctx)
		return
	}

	q := req.Question[0]

	value, ok := a.rules.Match(q.Qtype, q.Name)
	if !ok {
		ch.Next(ctx)
		return
	}

	resp := Synthesize(req, value, a.ttl)

	zlog.Info("Query answered", "client", ch.Writer.RemoteAddr(), "question", q.String(), "answer", value.String())

	if err := ch.Writer.WriteMsg(resp); err != nil {
		zlog.Error("Answer send failed", "client", ch.Writer.RemoteAddr(), "error", err.Error())
	}

	ch.Cancel()
}

// Rules returns the rule table.
func (a *Answer) Rules() *rules.Table { return a.rules }

// Synthesize builds the reply to req carrying a single answer record.
// Only the id and opcode are copied from the query header.
func Synthesize(req *dnsmsg.Message, value dnsmsg.RData, ttl uint32) *dnsmsg.Message {
	q := req.Question[0]

	return &dnsmsg.Message{
		Header: dnsmsg.Header{
			ID:       req.ID,
			Response: true,
			Opcode:   req.Opcode,
		},
		Question: []dnsmsg.Question{q},
		Answer: []dnsmsg.ResourceRecord{
			{
				Name:  q.Name,
				Type:  value.Type(),
				Class: q.Qclass,
				TTL:   ttl,
				Data:  value,
			},
		},
	}
}

const name = "answer"
