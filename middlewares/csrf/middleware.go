package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dormoron/strand"
	"github.com/dormoron/strand/registry"
	"github.com/patrickmn/go-cache"
)

const (
	defaultTokenLength = 32
	defaultTokenExpiry = time.Hour
	defaultCookieName  = "csrf_token"
	defaultHeaderName  = "X-CSRF-Token"
	defaultFormField   = "_csrf"
)

var (
	ErrNoToken      = errors.New("csrf: 没有提供令牌")
	ErrInvalidToken = errors.New("csrf: 无效的令牌")
)

// Token is the CSRF token of the current request. Downstream handlers
// look it up in the registry to embed it in forms.
type Token string

type Options struct {
	TokenLength    int
	TokenExpiry    time.Duration
	CookieName     string
	HeaderName     string
	FormField      string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite

	// 来自这些来源的请求不校验
	TrustedOrigins []string
	// 不校验的方法, 默认 GET HEAD OPTIONS TRACE
	IgnoreMethods []string

	// ErrorHandler 默认回复 403
	ErrorHandler func(ctx *strand.Context, err error)
}

func DefaultOptions() Options {
	return Options{
		TokenLength:    defaultTokenLength,
		TokenExpiry:    defaultTokenExpiry,
		CookieName:     defaultCookieName,
		HeaderName:     defaultHeaderName,
		FormField:      defaultFormField,
		CookiePath:     "/",
		CookieSecure:   true,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteStrictMode,
		IgnoreMethods:  []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace},
		ErrorHandler:   defaultErrorHandler,
	}
}

func defaultErrorHandler(ctx *strand.Context, err error) {
	ctx.Error(strand.NewHTTPError(http.StatusForbidden, err.Error()))
}

type csrfMiddleware struct {
	options Options
	tokens  *cache.Cache
}

// NewMiddleware issues a token cookie to clients that have none and,
// for unsafe methods, requires the same token back in the header or
// form field. Issued tokens live in memory for TokenExpiry.
func NewMiddleware(opts Options) strand.Handler {
	def := DefaultOptions()
	if opts.TokenLength == 0 {
		opts.TokenLength = def.TokenLength
	}
	if opts.TokenExpiry == 0 {
		opts.TokenExpiry = def.TokenExpiry
	}
	if opts.CookieName == "" {
		opts.CookieName = def.CookieName
	}
	if opts.HeaderName == "" {
		opts.HeaderName = def.HeaderName
	}
	if opts.FormField == "" {
		opts.FormField = def.FormField
	}
	if opts.CookiePath == "" {
		opts.CookiePath = def.CookiePath
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = def.ErrorHandler
	}
	if len(opts.IgnoreMethods) == 0 {
		opts.IgnoreMethods = def.IgnoreMethods
	}
	m := &csrfMiddleware{
		options: opts,
		tokens:  cache.New(opts.TokenExpiry, 2*opts.TokenExpiry),
	}
	return m.handle
}

func WithDefaultCSRF() strand.Handler {
	return NewMiddleware(DefaultOptions())
}

func (m *csrfMiddleware) handle(ctx *strand.Context) {
	safe := slices.Contains(m.options.IgnoreMethods, ctx.Request.Method)
	if !safe && m.trusted(ctx) {
		ctx.Next()
		return
	}

	token := m.tokenFromCookie(ctx)
	if token == "" || !m.known(token) {
		if !safe {
			m.options.ErrorHandler(ctx, ErrNoToken)
			return
		}
		token = m.issue(ctx)
	}

	if !safe {
		clientToken := m.tokenFromRequest(ctx)
		if clientToken == "" {
			m.options.ErrorHandler(ctx, ErrNoToken)
			return
		}
		if subtle.ConstantTimeCompare([]byte(clientToken), []byte(token)) != 1 {
			m.options.ErrorHandler(ctx, ErrInvalidToken)
			return
		}
	}

	ctx.Response.Header().Set(m.options.HeaderName, token)
	ctx.NextWith(registry.Single(Token(token)))
}

func (m *csrfMiddleware) trusted(ctx *strand.Context) bool {
	for _, h := range []string{ctx.Request.Header.Get("Origin"), ctx.Request.Header.Get("Referer")} {
		if h == "" {
			continue
		}
		for _, trusted := range m.options.TrustedOrigins {
			if strings.HasPrefix(h, trusted) {
				return true
			}
		}
	}
	return false
}

func (m *csrfMiddleware) issue(ctx *strand.Context) string {
	b := make([]byte, m.options.TokenLength)
	// crypto/rand.Read 不会失败
	_, _ = rand.Read(b)
	token := base64.RawURLEncoding.EncodeToString(b)
	m.tokens.SetDefault(token, struct{}{})
	ctx.Response.Cookie(&http.Cookie{
		Name:     m.options.CookieName,
		Value:    token,
		Path:     m.options.CookiePath,
		Domain:   m.options.CookieDomain,
		Expires:  time.Now().Add(m.options.TokenExpiry),
		Secure:   m.options.CookieSecure,
		HttpOnly: m.options.CookieHTTPOnly,
		SameSite: m.options.CookieSameSite,
	})
	return token
}

func (m *csrfMiddleware) known(token string) bool {
	_, ok := m.tokens.Get(token)
	return ok
}

func (m *csrfMiddleware) tokenFromCookie(ctx *strand.Context) string {
	c, err := ctx.Request.Cookie(m.options.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (m *csrfMiddleware) tokenFromRequest(ctx *strand.Context) string {
	if token := ctx.Request.Header.Get(m.options.HeaderName); token != "" {
		return token
	}
	return ctx.FormValue(m.options.FormField).StringOr("")
}
