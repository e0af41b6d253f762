package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dormoron/strand"
	"github.com/dormoron/strand/middlewares/auth"
	"github.com/dormoron/strand/registry"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMiddlewareBuilder_Build(t *testing.T) {
	builder, err := InitMiddlewareBuilder([]byte("secret")).IgnorePaths("^/public")
	require.NoError(t, err)

	s := strand.InitServer(
		strand.WithLogger(zap.NewNop()),
		strand.WithHandlers(builder.Build(), func(ctx *strand.Context) {
			p, ok := auth.Current(ctx)
			if !ok {
				ctx.Render("anonymous")
				return
			}
			rc := registry.MustGet[*jwt.RegisteredClaims](ctx)
			ctx.Render(p.Name + ":" + p.Source + ":" + rc.Issuer)
		}),
	)

	valid, err := builder.Sign(&Claims{
		Roles: []string{"admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ann",
			Issuer:    "tests",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	expired, err := builder.Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "ann",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})
	require.NoError(t, err)

	noExpiry, err := builder.Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ann"}})
	require.NoError(t, err)

	otherKey, err := InitMiddlewareBuilder([]byte("other")).Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "ann",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	require.NoError(t, err)

	testCases := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "valid", path: "/", header: "Bearer " + valid, wantCode: http.StatusOK, wantBody: "ann:jwt:tests"},
		{name: "lower case scheme", path: "/", header: "bearer " + valid, wantCode: http.StatusOK, wantBody: "ann:jwt:tests"},
		{name: "missing", path: "/", wantCode: http.StatusUnauthorized},
		{name: "bad format", path: "/", header: "Token " + valid, wantCode: http.StatusUnauthorized},
		{name: "expired", path: "/", header: "Bearer " + expired, wantCode: http.StatusUnauthorized},
		{name: "no expiry", path: "/", header: "Bearer " + noExpiry, wantCode: http.StatusUnauthorized},
		{name: "wrong key", path: "/", header: "Bearer " + otherKey, wantCode: http.StatusUnauthorized},
		{name: "ignored path", path: "/public/x", wantCode: http.StatusOK, wantBody: "anonymous"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			}
			if tc.wantCode == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestMiddlewareBuilder_IgnorePathsInvalid(t *testing.T) {
	_, err := InitMiddlewareBuilder(nil).IgnorePaths("(")
	assert.Error(t, err)
}
