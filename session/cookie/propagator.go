package cookie

import (
	"net/http"

	"github.com/dormoron/strand/internal/errs"
)

type PropagatorOptions func(p *Propagator)

// Propagator 通过 cookie 传递 session id
type Propagator struct {
	cookieName   string
	cookieOption func(cookie *http.Cookie)
}

// InitPropagator 默认 cookie 为 sessionId, HttpOnly, SameSite=Lax, Path=/
func InitPropagator(opts ...PropagatorOptions) *Propagator {
	p := &Propagator{
		cookieName: "sessionId",
		cookieOption: func(c *http.Cookie) {
			c.Path = "/"
			c.HttpOnly = true
			c.SameSite = http.SameSiteLaxMode
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithCookieName(name string) PropagatorOptions {
	return func(p *Propagator) {
		p.cookieName = name
	}
}

// WithCookieOption 在默认设置之后调整 cookie
func WithCookieOption(fn func(c *http.Cookie)) PropagatorOptions {
	return func(p *Propagator) {
		prev := p.cookieOption
		p.cookieOption = func(c *http.Cookie) {
			prev(c)
			fn(c)
		}
	}
}

func (p *Propagator) Inject(id string, writer http.ResponseWriter) error {
	c := &http.Cookie{Name: p.cookieName, Value: id}
	p.cookieOption(c)
	http.SetCookie(writer, c)
	return nil
}

func (p *Propagator) Extract(req *http.Request) (string, error) {
	c, err := req.Cookie(p.cookieName)
	if err != nil {
		return "", err
	}
	if c.Value == "" {
		return "", errs.ErrIdSessionNotFound("")
	}
	return c.Value, nil
}

func (p *Propagator) Remove(writer http.ResponseWriter) error {
	c := &http.Cookie{Name: p.cookieName}
	p.cookieOption(c)
	c.MaxAge = -1
	http.SetCookie(writer, c)
	return nil
}
