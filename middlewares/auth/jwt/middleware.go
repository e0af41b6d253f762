package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dormoron/strand"
	"github.com/dormoron/strand/middlewares/auth"
	"github.com/dormoron/strand/registry"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	errMissingToken = errors.New("jwt: 缺少认证令牌")
	errHeaderFormat = errors.New("jwt: Authorization 头格式错误")
)

// Claims are the claims accepted in bearer tokens. Roles become the
// roles of the registered auth.Principal.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// MiddlewareBuilder builds a handler validating HMAC signed bearer
// tokens. For a valid token the downstream registry gains the
// auth.Principal, the *Claims and the *jwt.RegisteredClaims. Requests
// without a valid token are answered with 401.
type MiddlewareBuilder struct {
	secret []byte
	realm  string
	paths  []*regexp.Regexp
	leeway time.Duration
}

func InitMiddlewareBuilder(secret []byte) *MiddlewareBuilder {
	return &MiddlewareBuilder{secret: secret, realm: "strand"}
}

func (m *MiddlewareBuilder) Realm(realm string) *MiddlewareBuilder {
	m.realm = realm
	return m
}

// Leeway tolerates clock skew when checking exp and nbf.
func (m *MiddlewareBuilder) Leeway(d time.Duration) *MiddlewareBuilder {
	m.leeway = d
	return m
}

// IgnorePaths skips token validation for request paths matching any of
// the patterns.
func (m *MiddlewareBuilder) IgnorePaths(patterns ...string) (*MiddlewareBuilder, error) {
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile path pattern '%s': %w", pattern, err)
		}
		m.paths = append(m.paths, re)
	}
	return m, nil
}

// Sign issues a token for claims with the builder's secret.
func (m *MiddlewareBuilder) Sign(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *MiddlewareBuilder) Build() strand.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.leeway),
	)
	return func(ctx *strand.Context) {
		for _, pattern := range m.paths {
			if pattern.MatchString(ctx.Request.URL.Path) {
				ctx.Next()
				return
			}
		}

		claims, err := m.validate(parser, ctx.Request)
		if err != nil {
			ctx.Logger().Debug("jwt: token rejected", zap.Error(err))
			ctx.Response.Header().Set("WWW-Authenticate", `Bearer realm="`+m.realm+`", charset="UTF-8"`)
			ctx.ClientError(http.StatusUnauthorized)
			return
		}

		ctx.NextWith(registry.Of(func(b *registry.Builder) {
			registry.Add(b, claims)
			registry.Add(b, &claims.RegisteredClaims)
			registry.Add(b, auth.Principal{Name: claims.Subject, Roles: claims.Roles, Source: "jwt"})
		}))
	}
}

func (m *MiddlewareBuilder) validate(parser *jwt.Parser, r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return nil, errHeaderFormat
	}

	claims := &Claims{}
	_, err := parser.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
