package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	proxyForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_proxy_forwarded_total",
		Help: "Total number of queries forwarded to the upstream server",
	})

	proxyRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_proxy_relayed_total",
		Help: "Total number of upstream responses relayed to clients",
	})

	proxyUnexpected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_proxy_unexpected_total",
		Help: "Total number of responses without a matching session",
	})

	proxyExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_proxy_expired_total",
		Help: "Total number of sessions expired without a response",
	})

	proxyCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dns_proxy_id_collisions_total",
		Help: "Total number of queries dropped on a proxy id collision",
	})

	proxySessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dns_proxy_sessions",
		Help: "Current number of sessions waiting for a response",
	})
)

func init() {
	prometheus.MustRegister(proxyForwarded)
	prometheus.MustRegister(proxyRelayed)
	prometheus.MustRegister(proxyUnexpected)
	prometheus.MustRegister(proxyExpired)
	prometheus.MustRegister(proxyCollisions)
	prometheus.MustRegister(proxySessions)
}
