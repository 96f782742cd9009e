package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/dnsredir/middleware/answer"
	"github.com/semihalev/dnsredir/middleware/proxy"
	"github.com/semihalev/zlog/v2"
)

// API type
type API struct {
	addr   string
	router *Router

	answer *answer.Answer
	proxy  *proxy.Proxy
}

var debugpprof bool

func init() {
	_, debugpprof = os.LookupEnv("DNSREDIR_PPROF")
}

// New return new api
func New(cfg *config.Config) *API {
	a := &API{
		addr:   cfg.API,
		router: NewRouter(),
	}

	if h, ok := middleware.Get("answer").(*answer.Answer); ok {
		a.answer = h
	}

	if h, ok := middleware.Get("proxy").(*proxy.Proxy); ok {
		a.proxy = h
	}

	a.routes()

	return a
}

func (a *API) routes() {
	if debugpprof {
		profiler := a.router.Group("/debug")
		{
			profiler.GET("/{$}", func(ctx *Context) {
				http.Redirect(ctx.Writer, ctx.Request, profiler.path+"/pprof/", http.StatusMovedPermanently)
			})
			profiler.GET("/pprof/", func(ctx *Context) { pprof.Index(ctx.Writer, ctx.Request) })
			profiler.GET("/pprof/cmdline", func(ctx *Context) { pprof.Cmdline(ctx.Writer, ctx.Request) })
			profiler.GET("/pprof/profile", func(ctx *Context) { pprof.Profile(ctx.Writer, ctx.Request) })
			profiler.GET("/pprof/symbol", func(ctx *Context) { pprof.Symbol(ctx.Writer, ctx.Request) })
			profiler.GET("/pprof/trace", func(ctx *Context) { pprof.Trace(ctx.Writer, ctx.Request) })
		}
	}

	v1 := a.router.Group("/api/v1")
	{
		v1.GET("/middleware", a.listMiddleware)

		if a.answer != nil {
			v1.GET("/rules", a.listRules)
		}

		if a.proxy != nil {
			v1.GET("/sessions", a.listSessions)
			v1.GET("/sessions/{id}", a.getSession)
		}
	}

	a.router.GET("/metrics", a.metrics)
}

func (a *API) metrics(ctx *Context) {
	promhttp.Handler().ServeHTTP(ctx.Writer, ctx.Request)
}

func (a *API) listMiddleware(ctx *Context) {
	ctx.JSON(http.StatusOK, Json{"middleware": middleware.List()})
}

func (a *API) listRules(ctx *Context) {
	rules := []Json{}
	for _, r := range a.answer.Rules().Rules() {
		rules = append(rules, Json{
			"type":    r.Type.String(),
			"pattern": r.Pattern.String(),
			"value":   r.Value.String(),
		})
	}

	ctx.JSON(http.StatusOK, Json{"rules": rules})
}

func (a *API) listSessions(ctx *Context) {
	table := a.proxy.Sessions()
	now := table.Now()

	sessions := []Json{}
	for _, s := range table.List() {
		sessions = append(sessions, Json{
			"id":         s.ID,
			"client":     s.Client.String(),
			"originalid": s.OriginalID,
			"expiresin":  s.ExpiresAt.Sub(now).Round(time.Second).String(),
		})
	}

	ctx.JSON(http.StatusOK, Json{"upstream": upstream(a.proxy), "sessions": sessions})
}

func (a *API) getSession(ctx *Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 16)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, Json{"error": "bad session id " + ctx.Param("id")})
		return
	}

	table := a.proxy.Sessions()
	for _, s := range table.List() {
		if s.ID == uint16(id) {
			ctx.JSON(http.StatusOK, Json{
				"id":         s.ID,
				"client":     s.Client.String(),
				"originalid": s.OriginalID,
				"expiresin":  s.ExpiresAt.Sub(table.Now()).Round(time.Second).String(),
			})
			return
		}
	}

	ctx.JSON(http.StatusNotFound, Json{"error": ctx.Param("id") + " not found"})
}

func upstream(p *proxy.Proxy) string {
	if p.Upstream() == nil {
		return ""
	}
	return p.Upstream().String()
}

// Handler returns the http handler serving every route.
func (a *API) Handler() http.Handler { return a.router }

// Run serves the API until ctx is done. It returns immediately when no
// address is configured.
func (a *API) Run(ctx context.Context) error {
	if a.addr == "" {
		return nil
	}

	srv := &http.Server{
		Addr:              a.addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		zlog.Info("API server stopping...", "addr", a.addr)

		apiCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(apiCtx); err != nil {
			zlog.Error("Shutdown API server failed:", "error", err.Error())
		}
	}()

	zlog.Info("API server listening...", "addr", a.addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Error("Start API server failed", "error", err.Error())
		return err
	}

	return nil
}
