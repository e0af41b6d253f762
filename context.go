package strand

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dormoron/strand/internal/errs"
	"github.com/dormoron/strand/registry"
	"go.uber.org/zap"
)

// Context is the per-request object passed through the handler chain.
//
// It carries the request and response, the path binding in scope and
// the operations that steer the chain. It is also a registry.Registry:
// every lookup is forwarded to the registry in scope for the running
// handler. That is the server's base registry, joined with whatever
// upstream handlers added through NextWith and InsertWith.
//
// A Context belongs to the goroutine serving its request and must not
// be retained after the handler chain returns.
type Context struct {
	registry.Delegating

	Request  *http.Request
	Response *Response

	frame        *frame
	matchedRoute string
	allowed      []string

	queryValues url.Values
	keys        map[string]any
	mutex       sync.RWMutex
}

// frame is one segment of the pipeline: the handlers inserted together,
// the cursor into them, and what is in scope while they run.
type frame struct {
	handlers []Handler
	next     int
	registry registry.Registry
	binding  *PathBinding
	parent   *frame
}

func newContext(w http.ResponseWriter, r *http.Request, reg registry.Registry, root Handler) *Context {
	c := &Context{
		Request:  r,
		Response: newResponse(w),
	}
	c.Delegating = registry.DelegateFunc(c.currentRegistry)
	c.frame = &frame{
		handlers: []Handler{root},
		registry: reg,
		binding:  rootBinding(r.URL),
	}
	return c
}

func (c *Context) currentRegistry() registry.Registry {
	return c.frame.registry
}

// Next passes control to the next handler. When the handlers of the
// current segment are exhausted, execution resumes in the segment that
// inserted them. Past the last handler the request is answered with a
// 404 client error, or with 405 if a route bound the path but not the
// method.
func (c *Context) Next() {
	f := c.frame
	for f != nil && f.next >= len(f.handlers) {
		f = f.parent
	}
	if f == nil {
		c.endOfChain()
		return
	}
	h := f.handlers[f.next]
	f.next++
	c.run(f, h)
}

// NextWith joins reg over the registry in scope for every downstream
// handler, including those that run after the current segment is
// exhausted, and passes control on.
func (c *Context) NextWith(reg registry.Registry) {
	for f := c.frame; f != nil; f = f.parent {
		f.registry = registry.Join(f.registry, reg)
	}
	c.Next()
}

// Insert runs handlers next, before the rest of the current segment.
func (c *Context) Insert(handlers ...Handler) {
	c.insert(c.frame.registry, c.frame.binding, handlers)
}

// InsertWith runs handlers next with reg joined over the registry in
// scope. reg is visible only to the inserted handlers and to what they
// insert themselves; once they are exhausted the pipeline continues
// with the registry it had before.
func (c *Context) InsertWith(reg registry.Registry, handlers ...Handler) {
	c.insert(registry.Join(c.frame.registry, reg), c.frame.binding, handlers)
}

func (c *Context) insertBound(binding *PathBinding, handlers ...Handler) {
	c.insert(c.frame.registry, binding, handlers)
}

func (c *Context) insert(reg registry.Registry, binding *PathBinding, handlers []Handler) {
	if len(handlers) == 0 {
		c.Next()
		return
	}
	f := &frame{
		handlers: handlers,
		next:     1,
		registry: reg,
		binding:  binding,
		parent:   c.frame,
	}
	c.run(f, handlers[0])
}

// run invokes h with f in scope and restores the caller's segment when
// h returns, so code after ctx.Next sees its own registry and binding.
func (c *Context) run(f *frame, h Handler) {
	prev := c.frame
	c.frame = f
	defer func() { c.frame = prev }()
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			c.Error(errs.ErrHandlerPanic(v))
		}
	}()
	h(c)
}

func (c *Context) endOfChain() {
	if len(c.allowed) > 0 {
		c.Response.Header().Set("Allow", strings.Join(c.allowed, ", "))
		c.ClientError(http.StatusMethodNotAllowed)
		return
	}
	c.ClientError(http.StatusNotFound)
}

func (c *Context) allowMethod(method string) {
	if !slices.Contains(c.allowed, method) {
		c.allowed = append(c.allowed, method)
	}
}

// PathBinding returns the binding in scope for the running handler.
func (c *Context) PathBinding() *PathBinding {
	return c.frame.binding
}

// PathTokens returns every token bound so far, including those bound by
// enclosing prefixes.
func (c *Context) PathTokens() map[string]string {
	return c.frame.binding.Tokens()
}

func (c *Context) PathToken(name string) StringValue {
	val, ok := c.frame.binding.tokens[name]
	if !ok {
		return StringValue{err: errs.ErrKeyNil()}
	}
	return StringValue{val: val}
}

// MatchedRoute is the description of the last route that bound the
// request path exactly, e.g. "api/users/:id". It is empty until a route
// matched.
func (c *Context) MatchedRoute() string {
	return c.matchedRoute
}

// ByMethod dispatches on the request method to the handlers declared in
// fn. OPTIONS is answered with the allowed methods. Any other undeclared
// method is a 405 client error.
func (c *Context) ByMethod(fn func(m *MethodSpec)) {
	spec := &MethodSpec{handlers: make(map[string]Handler)}
	fn(spec)

	method := c.Request.Method
	if h, ok := spec.handlers[method]; ok {
		c.Insert(h)
		return
	}
	if h, ok := spec.handlers[http.MethodGet]; ok && method == http.MethodHead {
		c.Insert(h)
		return
	}

	allow := spec.allowed()
	c.Response.Header().Set("Allow", allow)
	if method == http.MethodOptions {
		_ = c.Response.SendStatus(http.StatusOK)
		return
	}
	c.ClientError(http.StatusMethodNotAllowed)
}

// Render sends obj through the first Renderer in the registry that
// accepts it. Failures, including the absence of a renderer, go to the
// server error handler.
func (c *Context) Render(obj any) {
	for r := range registry.All[Renderer](c) {
		if !r.Accepts(obj) {
			continue
		}
		if err := r.Render(c, obj); err != nil {
			c.Error(err)
		}
		return
	}
	c.Error(errs.ErrNoRendererFor(fmt.Sprintf("%T", obj)))
}

// Error hands err to the ServerErrorHandler in the registry.
func (c *Context) Error(err error) {
	h, ok := registry.Lookup[ServerErrorHandler](c)
	if !ok {
		h = defaultServerErrorHandler{}
	}
	c.guard(err, func() { h.Error(c, err) })
}

// ClientError hands status, a 4xx code, to the ClientErrorHandler in the
// registry.
func (c *Context) ClientError(status int) {
	h, ok := registry.Lookup[ClientErrorHandler](c)
	if !ok {
		h = defaultClientErrorHandler{}
	}
	c.guard(nil, func() { h.ClientError(c, status) })
}

// guard runs an error handler and falls back to a bare 500 when the
// handler itself panics.
func (c *Context) guard(cause error, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			c.Logger().Error("error handler failed",
				zap.Any("panic", v),
				zap.NamedError("cause", cause))
			if !c.Response.Committed() {
				_ = c.Response.SendStatus(http.StatusInternalServerError)
			}
		}
	}()
	fn()
}

func (c *Context) Redirect(code int, location string) {
	c.Response.Header().Set("Location", location)
	_ = c.Response.SendStatus(code)
}

// RequestID returns the id assigned to this request by the server.
func (c *Context) RequestID() RequestID {
	id, _ := registry.Lookup[RequestID](c)
	return id
}

// Logger returns the server's logger with the request id attached.
func (c *Context) Logger() *zap.Logger {
	l, ok := registry.Lookup[*zap.Logger](c)
	if !ok {
		l = zap.L()
	}
	if id := c.RequestID(); id != "" {
		return l.With(zap.String("request_id", string(id)))
	}
	return l
}

// Deadline, Done, Err and Value make Context a context.Context bound to
// the request's lifetime.
func (c *Context) Deadline() (deadline time.Time, ok bool) {
	return c.Request.Context().Deadline()
}

func (c *Context) Done() <-chan struct{} {
	return c.Request.Context().Done()
}

func (c *Context) Err() error {
	return c.Request.Context().Err()
}

// Value looks string keys up in the values set with Set first.
func (c *Context) Value(key any) any {
	if s, ok := key.(string); ok {
		if val, exists := c.Get(s); exists {
			return val
		}
	}
	return c.Request.Context().Value(key)
}

func (c *Context) Set(key string, value any) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.keys == nil {
		c.keys = make(map[string]any)
	}
	c.keys[key] = value
}

func (c *Context) Get(key string) (value any, exists bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	value, exists = c.keys[key]
	return
}

func (c *Context) MustGet(key string) any {
	if value, exists := c.Get(key); exists {
		return value
	}
	panic("Key \"" + key + "\" does not exist")
}

func (c *Context) GetString(key string) (s string) {
	if val, ok := c.Get(key); ok && val != nil {
		s, _ = val.(string)
	}
	return
}

// BindJSON decodes the request body into val.
func (c *Context) BindJSON(val any) error {
	return c.BindJSONOpt(val, false, false)
}

// BindJSONOpt is BindJSON with json.Decoder's UseNumber and
// DisallowUnknownFields switches.
func (c *Context) BindJSONOpt(val any, useNumber bool, disallowUnknown bool) error {
	if val == nil {
		return errs.ErrInputNil()
	}
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return errs.ErrBodyNil()
	}
	decoder := json.NewDecoder(c.Request.Body)
	if useNumber {
		decoder.UseNumber()
	}
	if disallowUnknown {
		decoder.DisallowUnknownFields()
	}
	return decoder.Decode(val)
}

func (c *Context) QueryValue(key string) StringValue {
	if c.queryValues == nil {
		c.queryValues = c.Request.URL.Query()
	}
	vals, ok := c.queryValues[key]
	if !ok {
		return StringValue{err: errs.ErrKeyNil()}
	}
	return StringValue{val: vals[0]}
}

func (c *Context) FormValue(key string) StringValue {
	if err := c.Request.ParseForm(); err != nil {
		return StringValue{err: err}
	}
	return StringValue{val: c.Request.FormValue(key)}
}

// MethodSpec declares the handlers of a ByMethod dispatch.
type MethodSpec struct {
	handlers map[string]Handler
	order    []string
}

func (m *MethodSpec) Named(method string, h Handler) *MethodSpec {
	method = strings.ToUpper(method)
	if _, ok := m.handlers[method]; !ok {
		m.order = append(m.order, method)
	}
	m.handlers[method] = h
	return m
}

func (m *MethodSpec) Get(h Handler) *MethodSpec    { return m.Named(http.MethodGet, h) }
func (m *MethodSpec) Post(h Handler) *MethodSpec   { return m.Named(http.MethodPost, h) }
func (m *MethodSpec) Put(h Handler) *MethodSpec    { return m.Named(http.MethodPut, h) }
func (m *MethodSpec) Patch(h Handler) *MethodSpec  { return m.Named(http.MethodPatch, h) }
func (m *MethodSpec) Delete(h Handler) *MethodSpec { return m.Named(http.MethodDelete, h) }

func (m *MethodSpec) allowed() string {
	methods := append([]string(nil), m.order...)
	if !slices.Contains(methods, http.MethodOptions) {
		methods = append(methods, http.MethodOptions)
	}
	return strings.Join(methods, ", ")
}
