package secureheader

import (
	"strconv"

	"github.com/dormoron/strand"
)

// Options 安全响应头, 空值表示不设置
type Options struct {
	XSSProtection      string `config:"xss_protection"`
	ContentTypeNosniff string `config:"content_type_nosniff"`
	XFrameOptions      string `config:"x_frame_options"`

	// HSTS 只对 TLS 请求生效
	HSTSMaxAge            int  `config:"hsts_max_age"`
	HSTSExcludeSubdomains bool `config:"hsts_exclude_subdomains"`

	ContentSecurityPolicy     string `config:"content_security_policy"`
	ReferrerPolicy            string `config:"referrer_policy"`
	PermissionsPolicy         string `config:"permissions_policy"`
	CrossOriginOpenerPolicy   string `config:"cross_origin_opener_policy"`
	CrossOriginEmbedderPolicy string `config:"cross_origin_embedder_policy"`
	CrossOriginResourcePolicy string `config:"cross_origin_resource_policy"`
}

func DefaultOptions() Options {
	return Options{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "SAMEORIGIN",
		HSTSMaxAge:                31536000,
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
	}
}

func NewMiddleware(options Options) strand.Handler {
	static := []struct{ name, value string }{
		{"X-XSS-Protection", options.XSSProtection},
		{"X-Content-Type-Options", options.ContentTypeNosniff},
		{"X-Frame-Options", options.XFrameOptions},
		{"Content-Security-Policy", options.ContentSecurityPolicy},
		{"Referrer-Policy", options.ReferrerPolicy},
		{"Permissions-Policy", options.PermissionsPolicy},
		{"Cross-Origin-Opener-Policy", options.CrossOriginOpenerPolicy},
		{"Cross-Origin-Embedder-Policy", options.CrossOriginEmbedderPolicy},
		{"Cross-Origin-Resource-Policy", options.CrossOriginResourcePolicy},
	}
	hsts := ""
	if options.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(options.HSTSMaxAge)
		if !options.HSTSExcludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(ctx *strand.Context) {
		header := ctx.Response.Header()
		for _, h := range static {
			if h.value != "" {
				header.Set(h.name, h.value)
			}
		}
		if hsts != "" && ctx.Request.TLS != nil {
			header.Set("Strict-Transport-Security", hsts)
		}
		ctx.Next()
	}
}

func WithSecureHeaders() strand.Handler {
	return NewMiddleware(DefaultOptions())
}

func WithCustomSecureHeaders(configurator func(*Options)) strand.Handler {
	options := DefaultOptions()
	configurator(&options)
	return NewMiddleware(options)
}
