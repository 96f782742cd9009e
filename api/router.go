package api

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"sync"

	"github.com/semihalev/zlog/v2"
)

type Router struct {
	mux *http.ServeMux

	ctxPool sync.Pool
}

var extraHeaders = map[string]string{
	"Server":                       "dnsredir",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET",
	"Cache-Control":                "no-cache, no-store, no-transform, must-revalidate, private, max-age=0",
	"Pragma":                       "no-cache",
}

func NewRouter() *Router {
	r := &Router{mux: http.NewServeMux()}

	r.ctxPool.New = func() any {
		return &Context{}
	}

	return r
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if r := recover(); r != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			zlog.Error("Recovered in API", "recover", r)

			_, _ = os.Stderr.WriteString(fmt.Sprintf("panic: %v\n\n", r))
			debug.PrintStack()
		}
	}()

	for k, v := range extraHeaders {
		w.Header().Set(k, v)
	}

	rt.mux.ServeHTTP(w, r)
}

// Handle registers handle for method and path. Path segments written as
// {name} are available from Context.Param.
func (rt *Router) Handle(method, path string, handle Handler) {
	rt.mux.HandleFunc(method+" "+path, func(w http.ResponseWriter, r *http.Request) {
		ctx := rt.getContext(w, r)
		ctx.Handler = handle

		handle(ctx)

		rt.putContext(ctx)
	})
}

func (rt *Router) GET(path string, handle Handler) {
	rt.Handle(http.MethodGet, path, handle)
}

func (rt *Router) Group(path string) *Group {
	return &Group{parent: rt, path: path}
}

func (rt *Router) getContext(w http.ResponseWriter, r *http.Request) *Context {
	ctx := rt.ctxPool.Get().(*Context)
	ctx.Request = r
	ctx.Writer = w

	return ctx
}

func (rt *Router) putContext(ctx *Context) {
	ctx.Request = nil
	ctx.Writer = nil
	ctx.Handler = nil

	rt.ctxPool.Put(ctx)
}
