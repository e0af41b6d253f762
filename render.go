package strand

import (
	"encoding/json"

	"github.com/dormoron/strand/internal/errs"
	"github.com/dormoron/strand/registry"
)

// ErrNoSuchRenderer is wrapped by the error Render raises when no
// renderer in the registry accepts the object.
var ErrNoSuchRenderer = errs.ErrNoSuchRenderer

// Renderer turns objects into responses. ctx.Render uses the first
// renderer in the registry that accepts the object, so renderers
// registered by the application take precedence over the defaults.
type Renderer interface {
	Accepts(obj any) bool
	Render(ctx *Context, obj any) error
}

type typedRenderer[T any] struct {
	fn func(ctx *Context, v T) error
}

// RendererFor builds a Renderer that accepts values of type T.
func RendererFor[T any](fn func(ctx *Context, v T) error) Renderer {
	return typedRenderer[T]{fn: fn}
}

func (r typedRenderer[T]) Accepts(obj any) bool {
	_, ok := obj.(T)
	return ok
}

func (r typedRenderer[T]) Render(ctx *Context, obj any) error {
	return r.fn(ctx, obj.(T))
}

// JSONValue renders Value as a JSON document.
type JSONValue struct {
	Value any
}

func JSON(v any) JSONValue {
	return JSONValue{Value: v}
}

// TemplateValue renders the named template of the registered
// TemplateEngine with Data.
type TemplateValue struct {
	Name string
	Data any
}

func Template(name string, data any) TemplateValue {
	return TemplateValue{Name: name, Data: data}
}

func defaultRenderers() []Renderer {
	return []Renderer{
		RendererFor(func(ctx *Context, s string) error {
			return ctx.Response.SendString(s)
		}),
		RendererFor(func(ctx *Context, b []byte) error {
			return ctx.Response.Send(b)
		}),
		RendererFor(func(ctx *Context, v JSONValue) error {
			data, err := json.Marshal(v.Value)
			if err != nil {
				return err
			}
			ctx.Response.ContentType("application/json")
			return ctx.Response.Send(data)
		}),
		RendererFor(func(ctx *Context, v TemplateValue) error {
			engine, ok := registry.Lookup[TemplateEngine](ctx)
			if !ok {
				return errs.ErrTemplateEngineNil()
			}
			data, err := engine.Render(ctx, v.Name, v.Data)
			if err != nil {
				return err
			}
			if ctx.Response.Header().Get("Content-Type") == "" {
				ctx.Response.ContentType("text/html; charset=utf-8")
			}
			return ctx.Response.Send(data)
		}),
	}
}

// HTTPError is an error that the default server error handler answers
// with its own status and message.
type HTTPError = errs.APIError

// NewHTTPError returns an *HTTPError for status. An empty message uses
// the status text.
func NewHTTPError(status int, message string) *HTTPError {
	return errs.NewErrorFromStatus(status, message)
}

func writeHTTPError(ctx *Context, e *HTTPError) {
	if ctx.Response.Committed() {
		return
	}
	ctx.Response.Status(e.Code).ContentType("application/json")
	_ = ctx.Response.Send(e.ToJSON())
}
