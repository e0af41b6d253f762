package recovery

import (
	"errors"
	"net/http"

	"github.com/dormoron/strand"
	"github.com/dormoron/strand/registry"
	"go.uber.org/zap"
)

// MiddlewareBuilder answers requests whose handler panicked with
// StatusCode and ErrMsg instead of the server's default error body.
// Other errors still reach the error handler that was in scope.
type MiddlewareBuilder struct {
	StatusCode int
	ErrMsg     []byte

	// LogFunc 默认用请求的 logger 记录 panic 和调用栈
	LogFunc func(ctx *strand.Context, err error)
}

func InitMiddlewareBuilder(statusCode int, errMsg []byte) *MiddlewareBuilder {
	return &MiddlewareBuilder{StatusCode: statusCode, ErrMsg: errMsg}
}

func (m MiddlewareBuilder) Build() strand.Handler {
	status := m.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	logFn := m.LogFunc
	if logFn == nil {
		logFn = func(ctx *strand.Context, err error) {
			// 在 recover 的 defer 中调用, 调用栈仍包含 panic 位置
			ctx.Logger().Error("handler panicked",
				zap.String("method", ctx.Request.Method),
				zap.String("path", ctx.Request.URL.Path),
				zap.Error(err),
				zap.Stack("stack"))
		}
	}

	return func(ctx *strand.Context) {
		outer, ok := registry.Lookup[strand.ServerErrorHandler](ctx)
		handler := strand.ServerErrorHandlerFunc(func(c *strand.Context, err error) {
			if !errors.Is(err, strand.ErrHandlerPanic) {
				if ok {
					outer.Error(c, err)
					return
				}
				// 没有外层处理器时交给默认实现
				_ = c.Response.SendStatus(strand.StatusOf(err))
				return
			}
			logFn(c, err)
			if c.Response.Committed() {
				return
			}
			_ = c.Response.Status(status).Send(m.ErrMsg)
		})
		ctx.NextWith(registry.Single[strand.ServerErrorHandler](handler))
	}
}
