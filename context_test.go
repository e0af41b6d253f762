package strand

import (
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dormoron/strand/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_NextWithReachesDownstream(t *testing.T) {
	s := newTestServer(BuildChain(func(c *Chain) {
		c.All(func(ctx *Context) {
			ctx.NextWith(registry.Single("outer"))
		})
		c.Prefix("api", func(api *Chain) {
			api.All(func(ctx *Context) {
				ctx.NextWith(registry.Single(7))
			})
		})
		c.All(func(ctx *Context) {
			out := registry.MustGet[string](ctx)
			if _, ok := registry.Lookup[int](ctx); ok {
				out += "+int"
			}
			ctx.Render(out)
		})
	}))

	assert.Equal(t, "outer", serve(s, http.MethodGet, "/").Body.String())
	// a registry added inside a prefix stays visible after the prefix's
	// handlers are exhausted
	assert.Equal(t, "outer+int", serve(s, http.MethodGet, "/api").Body.String())
}

func TestContext_InsertWithIsScoped(t *testing.T) {
	var inserted string
	s := newTestServer(BuildChain(func(c *Chain) {
		c.All(func(ctx *Context) {
			ctx.InsertWith(registry.Single("inner"), func(ctx *Context) {
				inserted = registry.MustGet[string](ctx)
				ctx.Next()
			})
		})
		c.All(func(ctx *Context) {
			_, ok := registry.Lookup[string](ctx)
			ctx.Render(map[bool]string{true: "visible", false: "scoped"}[ok])
		})
	}))

	assert.Equal(t, "scoped", serve(s, http.MethodGet, "/").Body.String())
	assert.Equal(t, "inner", inserted)
}

func TestContext_RegistryRestoredAfterNext(t *testing.T) {
	var before, after bool
	s := newTestServer(BuildChain(func(c *Chain) {
		c.All(func(ctx *Context) {
			ctx.InsertWith(registry.Single("inner"), func(ctx *Context) {
				_, before = registry.Lookup[string](ctx)
				ctx.Next()
				_, after = registry.Lookup[string](ctx)
			})
		})
		c.All(func(ctx *Context) { ctx.Render("done") })
	}))

	serve(s, http.MethodGet, "/")
	assert.True(t, before)
	assert.True(t, after)
}

func TestContext_CodeAfterNextObservesResponse(t *testing.T) {
	var status int
	s := newTestServer(BuildChain(func(c *Chain) {
		c.All(func(ctx *Context) {
			ctx.Next()
			status = ctx.Response.StatusCode()
		})
		c.All(func(ctx *Context) {
			_ = ctx.Response.SendStatus(http.StatusAccepted)
		})
	}))
	serve(s, http.MethodGet, "/")
	assert.Equal(t, http.StatusAccepted, status)
}

func TestContext_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		handler  Handler
		opts     []ServerOption
		wantCode int
		wantBody string
	}{
		{
			name:     "opaque error",
			handler:  func(ctx *Context) { ctx.Error(errors.New("db down")) },
			wantCode: http.StatusInternalServerError,
			wantBody: `{"type":"INTERNAL_ERROR","code":500,"message":"Internal Server Error"}`,
		},
		{
			name:     "http error",
			handler:  func(ctx *Context) { ctx.Error(NewHTTPError(http.StatusConflict, "already exists")) },
			wantCode: http.StatusConflict,
			wantBody: `{"type":"INPUT_ERROR","code":409,"message":"already exists"}`,
		},
		{
			name:     "panic",
			handler:  func(ctx *Context) { panic("boom") },
			wantCode: http.StatusInternalServerError,
			wantBody: `{"type":"INTERNAL_ERROR","code":500,"message":"Internal Server Error"}`,
		},
		{
			name:     "client error",
			handler:  func(ctx *Context) { ctx.ClientError(http.StatusUnauthorized) },
			wantCode: http.StatusUnauthorized,
			wantBody: `{"type":"AUTH_ERROR","code":401,"message":"Unauthorized"}`,
		},
		{
			name:    "development details",
			handler: func(ctx *Context) { ctx.Error(errors.New("db down")) },
			opts: []ServerOption{WithServerConfig(func() ServerConfig {
				cfg := DefaultServerConfig()
				cfg.Development = true
				return cfg
			}())},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"type":"INTERNAL_ERROR","code":500,"message":"Internal Server Error","details":"db down"}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(newTestServer(tc.handler, tc.opts...), http.MethodGet, "/")
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
		})
	}
}

func TestContext_ErrorHandlerFromRegistry(t *testing.T) {
	teapot := ServerErrorHandlerFunc(func(ctx *Context, err error) {
		ctx.Response.Status(http.StatusTeapot)
		ctx.Render("teapot: " + err.Error())
	})
	s := newTestServer(BuildChain(func(c *Chain) {
		c.Get("default", func(ctx *Context) { ctx.Error(errors.New("x")) })
		c.All(func(ctx *Context) {
			ctx.NextWith(registry.Single[ServerErrorHandler](teapot))
		})
		c.Get("custom", func(ctx *Context) { ctx.Error(errors.New("x")) })
	}))

	assert.Equal(t, http.StatusInternalServerError, serve(s, http.MethodGet, "/default").Code)

	rec := serve(s, http.MethodGet, "/custom")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "teapot: x", rec.Body.String())
}

func TestContext_PanickingErrorHandler(t *testing.T) {
	broken := ServerErrorHandlerFunc(func(ctx *Context, err error) {
		panic("broken")
	})
	s := newTestServer(func(ctx *Context) {
		ctx.Error(errors.New("x"))
	}, WithRegistry(registry.Single[ServerErrorHandler](broken)))

	rec := serve(s, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestContext_ClientErrorHandlerFromRegistry(t *testing.T) {
	plain := ClientErrorHandlerFunc(func(ctx *Context, status int) {
		ctx.Response.Status(status)
		ctx.Render(http.StatusText(status))
	})
	s := newTestServer(BuildChain(nil), WithRegistry(registry.Single[ClientErrorHandler](plain)))

	rec := serve(s, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", rec.Body.String())
}

func TestContext_Render(t *testing.T) {
	tpl := template.Must(template.New("hello").Parse("Hello {{.}}"))

	testCases := []struct {
		name     string
		value    any
		opts     []ServerOption
		wantCode int
		wantType string
		wantBody string
	}{
		{name: "string", value: "hi", wantCode: http.StatusOK, wantType: "text/plain; charset=utf-8", wantBody: "hi"},
		{name: "bytes", value: []byte{1, 2}, wantCode: http.StatusOK, wantType: "application/octet-stream", wantBody: "\x01\x02"},
		{name: "json", value: JSON(map[string]int{"a": 1}), wantCode: http.StatusOK, wantType: "application/json", wantBody: `{"a":1}`},
		{
			name:     "template",
			value:    Template("hello", "bob"),
			opts:     []ServerOption{WithTemplateEngine(&GoTemplateEngine{T: tpl})},
			wantCode: http.StatusOK,
			wantType: "text/html; charset=utf-8",
			wantBody: "Hello bob",
		},
		{name: "template without engine", value: Template("hello", "bob"), wantCode: http.StatusInternalServerError, wantType: "application/json"},
		{name: "no renderer", value: struct{}{}, wantCode: http.StatusInternalServerError, wantType: "application/json"},
		{
			name:  "custom renderer",
			value: 5,
			opts: []ServerOption{WithRegistry(registry.Single(RendererFor(func(ctx *Context, v int) error {
				return ctx.Response.SendString(strings.Repeat("*", v))
			})))},
			wantCode: http.StatusOK,
			wantType: "text/plain; charset=utf-8",
			wantBody: "*****",
		},
		{
			name:  "registered renderer shadows default",
			value: "hi",
			opts: []ServerOption{WithRegistry(registry.Single(RendererFor(func(ctx *Context, v string) error {
				return ctx.Response.SendString("<" + v + ">")
			})))},
			wantCode: http.StatusOK,
			wantType: "text/plain; charset=utf-8",
			wantBody: "<hi>",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(func(ctx *Context) { ctx.Render(tc.value) }, tc.opts...)
			rec := serve(s, http.MethodGet, "/")
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantType, rec.Header().Get("Content-Type"))
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestContext_ByMethod(t *testing.T) {
	s := newTestServer(BuildChain(func(c *Chain) {
		c.Path("items", func(ctx *Context) {
			ctx.ByMethod(func(m *MethodSpec) {
				m.Get(func(ctx *Context) { ctx.Render("list") }).
					Post(func(ctx *Context) { ctx.Render("create") })
			})
		})
	}))

	assert.Equal(t, "list", serve(s, http.MethodGet, "/items").Body.String())
	assert.Equal(t, "create", serve(s, http.MethodPost, "/items").Body.String())
	assert.Equal(t, http.StatusOK, serve(s, http.MethodHead, "/items").Code)

	rec := serve(s, http.MethodDelete, "/items")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Allow"))

	rec = serve(s, http.MethodOptions, "/items")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Allow"))
	assert.Empty(t, rec.Body.String())
}

func TestContext_Values(t *testing.T) {
	s := newTestServer(BuildChain(func(c *Chain) {
		c.Get("users/:id", func(ctx *Context) {
			id, err := ctx.PathToken("id").AsInt64()
			require.NoError(t, err)
			_, missing := ctx.PathToken("nope").String()
			page, err := ctx.QueryValue("page").AsInt64()
			require.NoError(t, err)
			assert.Error(t, missing)
			assert.Error(t, ctx.QueryValue("absent").Err())
			ctx.Render(JSON(map[string]int64{"id": id, "page": page}))
		})
	}))

	rec := serve(s, http.MethodGet, "/users/12?page=3")
	assert.JSONEq(t, `{"id":12,"page":3}`, rec.Body.String())
}

func TestContext_BindJSON(t *testing.T) {
	type input struct {
		Name string `json:"name"`
	}
	s := newTestServer(func(ctx *Context) {
		var in input
		if err := ctx.BindJSONOpt(&in, false, true); err != nil {
			ctx.Error(NewHTTPError(http.StatusBadRequest, err.Error()))
			return
		}
		ctx.Render(in.Name)
	})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ann"}`)))
	assert.Equal(t, "ann", rec.Body.String())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"age":3}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContext_SetGet(t *testing.T) {
	s := newTestServer(BuildChain(func(c *Chain) {
		c.All(func(ctx *Context) {
			ctx.Set("user", "ann")
			ctx.Next()
		})
		c.All(func(ctx *Context) {
			assert.Equal(t, "ann", ctx.Value("user"))
			assert.Panics(t, func() { ctx.MustGet("missing") })
			ctx.Render(ctx.GetString("user"))
		})
	}))
	assert.Equal(t, "ann", serve(s, http.MethodGet, "/").Body.String())
}

func TestContext_RequestID(t *testing.T) {
	var seen RequestID
	s := newTestServer(func(ctx *Context) {
		seen = ctx.RequestID()
		ctx.Render("ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, RequestID("abc"), seen)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))

	rec = serve(s, http.MethodGet, "/")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	assert.Equal(t, string(seen), rec.Header().Get(RequestIDHeader))
}
