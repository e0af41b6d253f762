package https

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dormoron/strand"
)

type RedirectConfig struct {
	Enabled           bool   `config:"enabled"`
	HSTSMaxAge        int    `config:"hsts_max_age"`
	CSP               string `config:"csp"`
	IncludeSubDomains bool   `config:"include_sub_domains"`
	PreloadHSTS       bool   `config:"preload_hsts"`
	// TrustForwarded 信任 X-Forwarded-Proto / X-Forwarded-Host
	TrustForwarded bool `config:"trust_forwarded"`
}

// MiddlewareBuilder redirects plain HTTP requests to HTTPS with 307,
// and adds HSTS to requests that arrived over HTTPS.
type MiddlewareBuilder struct {
	Config RedirectConfig
}

func InitMiddlewareBuilder(cfg RedirectConfig) *MiddlewareBuilder {
	return &MiddlewareBuilder{Config: cfg}
}

func (m *MiddlewareBuilder) Build() strand.Handler {
	cfg := m.Config
	hsts := ""
	if cfg.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.IncludeSubDomains {
			hsts += "; includeSubDomains"
		}
		if cfg.PreloadHSTS {
			hsts += "; preload"
		}
	}

	return func(ctx *strand.Context) {
		if !cfg.Enabled {
			ctx.Next()
			return
		}
		secure := ctx.Request.TLS != nil
		host := ctx.Request.Host
		if cfg.TrustForwarded {
			proto := strings.TrimSpace(strings.Split(ctx.Request.Header.Get("X-Forwarded-Proto"), ",")[0])
			secure = secure || strings.EqualFold(proto, "https")
			if fwd := ctx.Request.Header.Get("X-Forwarded-Host"); fwd != "" {
				host = fwd
			}
		}
		if !secure {
			ctx.Redirect(http.StatusTemporaryRedirect, "https://"+host+ctx.Request.URL.RequestURI())
			return
		}
		header := ctx.Response.Header()
		if hsts != "" {
			header.Set("Strict-Transport-Security", hsts)
		}
		if cfg.CSP != "" {
			header.Set("Content-Security-Policy", cfg.CSP)
		}
		ctx.Next()
	}
}
