package cors

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dormoron/strand"
)

type cors struct {
	allowAllOrigins            bool
	allowOriginFunc            func(string) bool
	allowOriginWithContextFunc func(*strand.Context, string) bool
	allowOrigins               []string
	wildcardOrigins            [][2]string
	normalHeaders              http.Header
	preflightHeaders           http.Header
	optionsResponseStatusCode  int
}

func newCors(cfg Config) *cors {
	if slices.Contains(cfg.AllowOrigins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowOrigins = nil
	}
	if cfg.OptionsResponseStatusCode == 0 {
		cfg.OptionsResponseStatusCode = http.StatusNoContent
	}
	c := &cors{
		allowAllOrigins:            cfg.AllowAllOrigins,
		allowOriginFunc:            cfg.AllowOriginFunc,
		allowOriginWithContextFunc: cfg.AllowOriginWithContextFunc,
		normalHeaders:              normalHeaders(cfg),
		preflightHeaders:           preflightHeaders(cfg),
		optionsResponseStatusCode:  cfg.OptionsResponseStatusCode,
	}
	for _, o := range normalize(cfg.AllowOrigins) {
		i := strings.Index(o, "*")
		switch {
		case i < 0:
			c.allowOrigins = append(c.allowOrigins, o)
		case cfg.AllowWildcard:
			c.wildcardOrigins = append(c.wildcardOrigins, [2]string{o[:i], o[i+1:]})
		}
	}
	return c
}

func (c *cors) handle(ctx *strand.Context) {
	origin := ctx.Request.Header.Get("Origin")
	if origin == "" {
		ctx.Next()
		return
	}
	// 同源请求也可能带 Origin (fetch API)
	host := ctx.Request.Host
	if origin == "http://"+host || origin == "https://"+host {
		ctx.Next()
		return
	}
	if !c.originAllowed(ctx, origin) {
		ctx.ClientError(http.StatusForbidden)
		return
	}

	header := ctx.Response.Header()
	preflight := ctx.Request.Method == http.MethodOptions &&
		ctx.Request.Header.Get("Access-Control-Request-Method") != ""
	src := c.normalHeaders
	if preflight {
		src = c.preflightHeaders
	}
	for k, v := range src {
		header[k] = v
	}
	if !c.allowAllOrigins {
		header.Set("Access-Control-Allow-Origin", origin)
	}
	if preflight {
		_ = ctx.Response.SendStatus(c.optionsResponseStatusCode)
		return
	}
	ctx.Next()
}

func (c *cors) originAllowed(ctx *strand.Context, origin string) bool {
	if c.allowAllOrigins {
		return true
	}
	lower := strings.ToLower(origin)
	if slices.Contains(c.allowOrigins, lower) {
		return true
	}
	for _, w := range c.wildcardOrigins {
		if len(lower) >= len(w[0])+len(w[1]) && strings.HasPrefix(lower, w[0]) && strings.HasSuffix(lower, w[1]) {
			return true
		}
	}
	if c.allowOriginFunc != nil && c.allowOriginFunc(origin) {
		return true
	}
	return c.allowOriginWithContextFunc != nil && c.allowOriginWithContextFunc(ctx, origin)
}

func normalHeaders(cfg Config) http.Header {
	headers := make(http.Header)
	if cfg.AllowCredentials {
		headers.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(cfg.ExposeHeaders) > 0 {
		headers.Set("Access-Control-Expose-Headers", strings.Join(convert(normalize(cfg.ExposeHeaders), http.CanonicalHeaderKey), ","))
	}
	if cfg.AllowAllOrigins {
		headers.Set("Access-Control-Allow-Origin", "*")
	} else {
		headers.Set("Vary", "Origin")
	}
	return headers
}

func preflightHeaders(cfg Config) http.Header {
	headers := make(http.Header)
	if cfg.AllowCredentials {
		headers.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(cfg.AllowMethods) > 0 {
		headers.Set("Access-Control-Allow-Methods", strings.Join(convert(normalize(cfg.AllowMethods), strings.ToUpper), ","))
	}
	if len(cfg.AllowHeaders) > 0 {
		headers.Set("Access-Control-Allow-Headers", strings.Join(convert(normalize(cfg.AllowHeaders), http.CanonicalHeaderKey), ","))
	}
	if cfg.MaxAge > 0 {
		headers.Set("Access-Control-Max-Age", strconv.FormatInt(int64(cfg.MaxAge/time.Second), 10))
	}
	if cfg.AllowPrivateNetwork {
		headers.Set("Access-Control-Allow-Private-Network", "true")
	}
	if cfg.AllowAllOrigins {
		headers.Set("Access-Control-Allow-Origin", "*")
	} else {
		headers.Add("Vary", "Origin")
		headers.Add("Vary", "Access-Control-Request-Method")
		headers.Add("Vary", "Access-Control-Request-Headers")
	}
	return headers
}

// normalize trims, lowercases and dedupes values.
func normalize(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func convert(s []string, fn func(string) string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		out = append(out, fn(v))
	}
	return out
}
