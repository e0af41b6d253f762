package bodylimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dormoron/strand"
)

// Config 配置请求体大小限制中间件
type Config struct {
	// 最大允许大小(字节数)
	MaxSize int64

	// 白名单路径 - 不受限制的路径前缀
	WhitelistPaths []string

	// 跳过OPTIONS/HEAD请求的检查
	SkipOptions bool
	SkipHead    bool

	SkipFunc func(ctx *strand.Context) bool
}

func DefaultConfig() Config {
	return Config{
		MaxSize:     1 << 20,
		SkipOptions: true,
		SkipHead:    true,
	}
}

// BodyLimit limits request bodies to maxSize, e.g. "512K" or "2MB".
// It panics on a malformed size.
func BodyLimit(maxSize string) strand.Handler {
	size, err := ParseSize(maxSize)
	if err != nil {
		panic(fmt.Sprintf("bodylimit: %v", err))
	}
	cfg := DefaultConfig()
	cfg.MaxSize = size
	return WithConfig(cfg)
}

// WithConfig answers a declared Content-Length above the limit with a
// 413 client error. Other bodies are wrapped in http.MaxBytesReader, so
// reading past the limit fails with an error the server error handler
// answers with 413.
func WithConfig(cfg Config) strand.Handler {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	return func(ctx *strand.Context) {
		if shouldSkip(ctx, cfg) || ctx.Request.Body == nil || ctx.Request.Body == http.NoBody {
			ctx.Next()
			return
		}
		if ctx.Request.ContentLength > cfg.MaxSize {
			ctx.ClientError(http.StatusRequestEntityTooLarge)
			return
		}
		ctx.Request.Body = http.MaxBytesReader(ctx.Response, ctx.Request.Body, cfg.MaxSize)
		ctx.Next()
	}
}

func shouldSkip(ctx *strand.Context, cfg Config) bool {
	if cfg.SkipFunc != nil && cfg.SkipFunc(ctx) {
		return true
	}
	method := ctx.Request.Method
	if (cfg.SkipOptions && method == http.MethodOptions) ||
		(cfg.SkipHead && method == http.MethodHead) {
		return true
	}
	path := ctx.Request.URL.Path
	for _, prefix := range cfg.WhitelistPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ParseSize 解析人类可读的大小字符串
// 支持单位: B, K/KB, M/MB, G/GB
func ParseSize(sizeStr string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(sizeStr))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	multiplier := float64(1)
	for _, u := range []struct {
		suffix string
		mul    float64
	}{
		{"KB", 1 << 10}, {"MB", 1 << 20}, {"GB", 1 << 30},
		{"K", 1 << 10}, {"M", 1 << 20}, {"G", 1 << 30},
		{"B", 1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			multiplier = u.mul
			break
		}
	}
	size, err := strconv.ParseFloat(s, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid size %q", sizeStr)
	}
	return int64(size * multiplier), nil
}
