package api

import (
	"encoding/json"
	"net/http"
)

type (
	Context struct {
		Request *http.Request
		Writer  http.ResponseWriter
		Handler Handler
	}

	Handler func(ctx *Context)

	Json map[string]any
)

func (ctx *Context) JSON(code int, data any) {
	buf, err := json.Marshal(data)
	if err != nil {
		ctx.Writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	ctx.Writer.Header().Set("Content-Type", "application/json")
	ctx.Writer.WriteHeader(code)

	_, _ = ctx.Writer.Write(buf)
}

func (ctx *Context) Param(key string) string {
	return ctx.Request.PathValue(key)
}
