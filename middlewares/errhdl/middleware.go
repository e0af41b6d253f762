package errhdl

import (
	"github.com/dormoron/strand"
	"github.com/dormoron/strand/registry"
)

// MiddlewareBuilder replaces the body of error responses with fixed
// pages per status, e.g. an HTML 404 page. Statuses without a page are
// answered by the handlers that were in scope.
type MiddlewareBuilder struct {
	resp        map[int][]byte
	contentType string
}

func InitMiddlewareBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{resp: make(map[int][]byte), contentType: "text/html; charset=utf-8"}
}

func (m *MiddlewareBuilder) AddCode(status int, data []byte) *MiddlewareBuilder {
	m.resp[status] = data
	return m
}

func (m *MiddlewareBuilder) ContentType(contentType string) *MiddlewareBuilder {
	m.contentType = contentType
	return m
}

func (m *MiddlewareBuilder) send(ctx *strand.Context, status int) bool {
	data, ok := m.resp[status]
	if !ok || ctx.Response.Committed() {
		return false
	}
	ctx.Response.Status(status).ContentType(m.contentType)
	_ = ctx.Response.Send(data)
	return true
}

func (m *MiddlewareBuilder) Build() strand.Handler {
	return func(ctx *strand.Context) {
		outerClient := registry.MustGet[strand.ClientErrorHandler](ctx)
		outerServer := registry.MustGet[strand.ServerErrorHandler](ctx)
		ctx.NextWith(registry.Of(func(b *registry.Builder) {
			registry.Add[strand.ClientErrorHandler](b, strand.ClientErrorHandlerFunc(func(c *strand.Context, status int) {
				if !m.send(c, status) {
					outerClient.ClientError(c, status)
				}
			}))
			registry.Add[strand.ServerErrorHandler](b, strand.ServerErrorHandlerFunc(func(c *strand.Context, err error) {
				if !m.send(c, strand.StatusOf(err)) {
					outerServer.Error(c, err)
				}
			}))
		}))
	}
}
