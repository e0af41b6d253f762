package basic

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"regexp"

	"github.com/dormoron/strand"
	"github.com/dormoron/strand/middlewares/auth"
	"github.com/dormoron/strand/registry"
	"golang.org/x/crypto/bcrypt"
)

// MiddlewareBuilder builds a handler checking HTTP basic credentials
// against bcrypt hashes. The authenticated user is registered as an
// auth.Principal for downstream handlers.
type MiddlewareBuilder struct {
	users        map[string][]byte
	roles        map[string][]string
	realm        string
	paths        []*regexp.Regexp
	requireHTTPS bool
	dummyHash    []byte
}

func InitMiddlewareBuilder(realm string) *MiddlewareBuilder {
	// checked for unknown users
	dummy, _ := bcrypt.GenerateFromPassword([]byte("strand"), bcrypt.MinCost)
	return &MiddlewareBuilder{
		users:        make(map[string][]byte),
		roles:        make(map[string][]string),
		realm:        realm,
		requireHTTPS: true,
		dummyHash:    dummy,
	}
}

// AddUser registers a user with its password in clear text.
func (m *MiddlewareBuilder) AddUser(user, password string, roles ...string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	return m.AddUserHash(user, hash, roles...)
}

// AddUserHash registers a user with a bcrypt hash of its password.
func (m *MiddlewareBuilder) AddUserHash(user string, hash []byte, roles ...string) error {
	if _, err := bcrypt.Cost(hash); err != nil {
		return fmt.Errorf("invalid password hash for %q: %w", user, err)
	}
	m.users[user] = hash
	m.roles[user] = roles
	return nil
}

// AllowHTTP accepts credentials over plain connections.
func (m *MiddlewareBuilder) AllowHTTP() *MiddlewareBuilder {
	m.requireHTTPS = false
	return m
}

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

func (m *MiddlewareBuilder) Build() strand.Handler {
	return func(ctx *strand.Context) {
		for _, pattern := range m.paths {
			if pattern.MatchString(ctx.Request.URL.Path) {
				ctx.Next()
				return
			}
		}
		if m.requireHTTPS && ctx.Request.TLS == nil {
			m.unauthorized(ctx)
			return
		}

		user, password, ok := ctx.Request.BasicAuth()
		if !ok || !m.check(user, password) {
			m.unauthorized(ctx)
			return
		}
		ctx.NextWith(registry.Single(auth.Principal{Name: user, Roles: m.roles[user], Source: "basic"}))
	}
}

func (m *MiddlewareBuilder) check(user, password string) bool {
	hash, known := m.users[user]
	if !known {
		hash = m.dummyHash
	}
	match := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
	return subtle.ConstantTimeEq(boolInt(known), 1)&subtle.ConstantTimeEq(boolInt(match), 1) == 1
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (m *MiddlewareBuilder) unauthorized(ctx *strand.Context) {
	ctx.Response.Header().Set("WWW-Authenticate", `Basic realm="`+m.realm+`"`)
	ctx.ClientError(http.StatusUnauthorized)
}
