package main

import (
	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/dnsredir/middleware/accesslist"
	"github.com/semihalev/dnsredir/middleware/accesslog"
	"github.com/semihalev/dnsredir/middleware/answer"
	"github.com/semihalev/dnsredir/middleware/metrics"
	"github.com/semihalev/dnsredir/middleware/proxy"
	"github.com/semihalev/dnsredir/middleware/ratelimit"
	"github.com/semihalev/dnsredir/middleware/recovery"
)

// The chain runs in this order.
func init() {
	middleware.Register("recovery", func(cfg *config.Config) middleware.Handler { return recovery.New(cfg) })
	middleware.Register("metrics", func(cfg *config.Config) middleware.Handler { return metrics.New(cfg) })
	middleware.Register("accesslist", func(cfg *config.Config) middleware.Handler { return accesslist.New(cfg) })
	middleware.Register("ratelimit", func(cfg *config.Config) middleware.Handler { return ratelimit.New(cfg) })
	middleware.Register("accesslog", func(cfg *config.Config) middleware.Handler { return accesslog.New(cfg) })
	middleware.Register("answer", func(cfg *config.Config) middleware.Handler { return answer.New(cfg) })
	middleware.Register("proxy", func(cfg *config.Config) middleware.Handler { return proxy.New(cfg) })
}
