package strand

import (
	"net/http"
	"net/url"
	"path"
	"path/filepath"

	"github.com/dormoron/strand/registry"
)

// Chain collects the handlers of an application, in the order they are
// tried. Route methods bind path patterns (see PathBinder) relative to
// the binding of the enclosing Prefix; an empty path means the current
// binding exactly.
//
//	strand.BuildChain(func(c *strand.Chain) {
//		c.All(accesslog.NewBuilder().Build())
//		c.Prefix("api", func(api *strand.Chain) {
//			api.Get("users/:id", getUser)
//			api.Post("users", createUser)
//		})
//		c.Files("public")
//	})
//
// Invalid patterns panic while the chain is built.
type Chain struct {
	handlers []Handler
}

// BuildChain runs fn against a new Chain and returns its handlers as one.
func BuildChain(fn func(c *Chain)) Handler {
	c := &Chain{}
	if fn != nil {
		fn(c)
	}
	return c.Handler()
}

// All appends handlers that run for every request reaching them.
func (c *Chain) All(handlers ...Handler) *Chain {
	c.handlers = append(c.handlers, handlers...)
	return c
}

// Path routes any method on an exact path to h.
func (c *Chain) Path(p string, h Handler) *Chain {
	return c.route(p, "", h)
}

func (c *Chain) Get(p string, h Handler) *Chain     { return c.route(p, http.MethodGet, h) }
func (c *Chain) Post(p string, h Handler) *Chain    { return c.route(p, http.MethodPost, h) }
func (c *Chain) Put(p string, h Handler) *Chain     { return c.route(p, http.MethodPut, h) }
func (c *Chain) Patch(p string, h Handler) *Chain   { return c.route(p, http.MethodPatch, h) }
func (c *Chain) Delete(p string, h Handler) *Chain  { return c.route(p, http.MethodDelete, h) }
func (c *Chain) Options(p string, h Handler) *Chain { return c.route(p, http.MethodOptions, h) }

func (c *Chain) route(p, method string, h Handler) *Chain {
	binder := NewPathBinder(p, true)
	return c.All(func(ctx *Context) {
		binding, ok := binder.Bind(ctx.PathBinding())
		if !ok {
			ctx.Next()
			return
		}
		if method != "" && !methodMatches(ctx.Request.Method, method) {
			ctx.allowMethod(method)
			ctx.Next()
			return
		}
		ctx.matchedRoute = binding.Description()
		ctx.insertBound(binding, h)
	})
}

func methodMatches(requested, declared string) bool {
	return requested == declared || (requested == http.MethodHead && declared == http.MethodGet)
}

// Prefix runs the handlers built by fn when the pattern binds a leading
// part of the path. Nested routes bind against the remainder and see the
// prefix's tokens.
func (c *Chain) Prefix(prefix string, fn func(c *Chain)) *Chain {
	binder := NewPathBinder(prefix, false)
	nested := BuildChain(fn)
	return c.All(func(ctx *Context) {
		binding, ok := binder.Bind(ctx.PathBinding())
		if !ok {
			ctx.Next()
			return
		}
		ctx.insertBound(binding, nested)
	})
}

// When runs the handlers built by fn only for requests satisfying pred.
func (c *Chain) When(pred func(ctx *Context) bool, fn func(c *Chain)) *Chain {
	nested := BuildChain(fn)
	return c.All(func(ctx *Context) {
		if !pred(ctx) {
			ctx.Next()
			return
		}
		ctx.Insert(nested)
	})
}

// Register runs the handlers built by fn with reg joined over the
// registry in scope.
func (c *Chain) Register(reg registry.Registry, fn func(c *Chain)) *Chain {
	nested := BuildChain(fn)
	return c.All(func(ctx *Context) {
		ctx.InsertWith(reg, nested)
	})
}

// Redirect answers an exact path with a redirect.
func (c *Chain) Redirect(p string, code int, location string) *Chain {
	return c.Path(p, func(ctx *Context) {
		ctx.Redirect(code, location)
	})
}

// Files serves files under dir, addressed by the remainder of the path
// binding in scope. Missing files pass on to the next handler.
func (c *Chain) Files(dir string) *Chain {
	return c.All(files(dir))
}

// FilesAt is Files under a prefix.
func (c *Chain) FilesAt(prefix, dir string) *Chain {
	return c.Prefix(prefix, func(nested *Chain) {
		nested.Files(dir)
	})
}

// Handler returns the collected handlers as one.
func (c *Chain) Handler() Handler {
	return Handlers(c.handlers...)
}

const indexFile = "index.html"

func files(dir string) Handler {
	root := http.Dir(dir)
	return func(ctx *Context) {
		if m := ctx.Request.Method; m != http.MethodGet && m != http.MethodHead {
			ctx.Next()
			return
		}
		name := "/" + ctx.PathBinding().PastBinding()
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
		name = path.Clean(name)

		f, err := root.Open(name)
		if err != nil {
			ctx.Next()
			return
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			ctx.Next()
			return
		}
		if stat.IsDir() {
			index, err := root.Open(path.Join(name, indexFile))
			if err != nil {
				ctx.Next()
				return
			}
			defer index.Close()
			indexStat, err := index.Stat()
			if err != nil || indexStat.IsDir() {
				ctx.Next()
				return
			}
			http.ServeContent(ctx.Response, ctx.Request, indexFile, indexStat.ModTime(), index)
			return
		}
		http.ServeContent(ctx.Response, ctx.Request, filepath.Base(stat.Name()), stat.ModTime(), f)
	}
}
