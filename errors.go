package strand

import (
	"net/http"

	"github.com/dormoron/strand/internal/errs"
	"github.com/dormoron/strand/registry"
	"go.uber.org/zap"
)

// ErrHandlerPanic is wrapped by the error a panicking handler is
// reported with.
var ErrHandlerPanic = errs.ErrPanicked

// ServerErrorHandler answers requests whose handling failed with err.
// It is looked up in the registry on every ctx.Error, so a handler
// registered with NextWith or InsertWith takes over for the requests,
// or the parts of the chain, it was registered for.
type ServerErrorHandler interface {
	Error(ctx *Context, err error)
}

// ClientErrorHandler answers requests with a 4xx status, such as a
// request that no handler answered.
type ClientErrorHandler interface {
	ClientError(ctx *Context, status int)
}

// ServerErrorHandlerFunc adapts a function to ServerErrorHandler.
type ServerErrorHandlerFunc func(ctx *Context, err error)

func (f ServerErrorHandlerFunc) Error(ctx *Context, err error) { f(ctx, err) }

// ClientErrorHandlerFunc adapts a function to ClientErrorHandler.
type ClientErrorHandlerFunc func(ctx *Context, status int)

func (f ClientErrorHandlerFunc) ClientError(ctx *Context, status int) { f(ctx, status) }

// defaultServerErrorHandler writes an *HTTPError found in err's chain
// as is. Anything else becomes an opaque 500 and is logged.
type defaultServerErrorHandler struct{}

func (defaultServerErrorHandler) Error(ctx *Context, err error) {
	e := errs.WrapError(err)
	if e == nil {
		e = errs.NewInternalError("")
	}
	if e.Code >= http.StatusInternalServerError {
		ctx.Logger().Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.String("route", ctx.MatchedRoute()),
			zap.Error(err))
	}
	if ctx.Response.Committed() {
		return
	}
	if cfg, ok := registry.Lookup[ServerConfig](ctx); ok && cfg.Development && e.Details == nil {
		detailed := *e
		detailed.Details = err.Error()
		e = &detailed
	}
	writeHTTPError(ctx, e)
}

type defaultClientErrorHandler struct{}

func (defaultClientErrorHandler) ClientError(ctx *Context, status int) {
	writeHTTPError(ctx, errs.NewErrorFromStatus(status, ""))
}

// StatusOf reports the status an error resolves to under the default
// server error handler.
func StatusOf(err error) int {
	if e := errs.WrapError(err); e != nil {
		return e.Code
	}
	return http.StatusInternalServerError
}
