package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/middleware"
)

// Results of handling one message.
const (
	ResultAnswered  = "answered"
	ResultForwarded = "forwarded"
	ResultRelayed   = "relayed"
	ResultDropped   = "dropped"
)

var queries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dns_messages_total",
		Help: "How many DNS messages processed",
	},
	[]string{"qtype", "result"},
)

func init() {
	prometheus.MustRegister(queries)
}

// Metrics type
type Metrics struct {
	queries *prometheus.CounterVec
}

// New return new metrics
func New(cfg *config.Config) *Metrics {
	return &Metrics{queries: queries}
}

// Name return middleware name
func (m *Metrics) Name() string { return name }

// ServeDNS implements the Handle interface.
func (m *Metrics) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	ch.Next(ctx)

	req := ch.Request

	qtype := "NONE"
	if len(req.Question) > 0 {
		qtype = req.Question[0].Qtype.String()
	}

	m.queries.With(prometheus.Labels{
		"qtype":  qtype,
		"result": Result(ch),
	}).Inc()
}

// Result classifies what the chain did with its datagram.
func Result(ch *middleware.Chain) string {
	w := ch.Writer

	switch {
	case !w.Written():
		return ResultDropped
	case ch.Request.Response:
		return ResultRelayed
	case w.Msg() != nil && w.Msg().Response:
		return ResultAnswered
	default:
		return ResultForwarded
	}
}

const name = "metrics"
