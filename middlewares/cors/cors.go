package cors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dormoron/strand"
)

// Config 跨域配置。带 config 标签的字段可以直接从配置文件解码:
//
//	var cfg cors.Config
//	provider.Unmarshal("cors", &cfg)
type Config struct {
	AllowAllOrigins bool     `config:"allow_all_origins"`
	AllowOrigins    []string `config:"allow_origins"`

	AllowOriginFunc            func(origin string) bool
	AllowOriginWithContextFunc func(ctx *strand.Context, origin string) bool

	AllowMethods        []string      `config:"allow_methods"`
	AllowHeaders        []string      `config:"allow_headers"`
	ExposeHeaders       []string      `config:"expose_headers"`
	AllowCredentials    bool          `config:"allow_credentials"`
	AllowPrivateNetwork bool          `config:"allow_private_network"`
	MaxAge              time.Duration `config:"max_age"`

	// AllowWildcard enables origins such as "https://*.example.com".
	AllowWildcard          bool     `config:"allow_wildcard"`
	AllowBrowserExtensions bool     `config:"allow_browser_extensions"`
	AllowWebSockets        bool     `config:"allow_websockets"`
	AllowFiles             bool     `config:"allow_files"`
	CustomSchemas          []string `config:"custom_schemas"`

	// 预检请求的响应码, 默认 204
	OptionsResponseStatusCode int `config:"options_response_status_code"`
}

var (
	DefaultSchemas   = []string{"http://", "https://"}
	ExtensionSchemas = []string{
		"chrome-extension://",
		"safari-extension://",
		"moz-extension://",
		"ms-browser-extension://",
	}
	FileSchemas      = []string{"file://"}
	WebSocketSchemas = []string{"ws://", "wss://"}
)

func (c *Config) AddAllowMethods(methods ...string) {
	c.AllowMethods = append(c.AllowMethods, methods...)
}

func (c *Config) AddAllowHeaders(headers ...string) {
	c.AllowHeaders = append(c.AllowHeaders, headers...)
}

func (c *Config) AddExposeHeaders(headers ...string) {
	c.ExposeHeaders = append(c.ExposeHeaders, headers...)
}

func (c *Config) allowedSchemas() []string {
	schemas := append([]string(nil), DefaultSchemas...)
	if c.AllowBrowserExtensions {
		schemas = append(schemas, ExtensionSchemas...)
	}
	if c.AllowWebSockets {
		schemas = append(schemas, WebSocketSchemas...)
	}
	if c.AllowFiles {
		schemas = append(schemas, FileSchemas...)
	}
	return append(schemas, c.CustomSchemas...)
}

// Validate reports conflicting origin settings and origins with an
// unsupported schema.
func (c *Config) Validate() error {
	hasOriginFn := c.AllowOriginFunc != nil || c.AllowOriginWithContextFunc != nil
	if c.AllowAllOrigins && (hasOriginFn || len(c.AllowOrigins) > 0) {
		return errors.New("cors: all origins enabled, AllowOriginFunc, AllowOriginWithContextFunc or AllowOrigins is not needed")
	}
	if !c.AllowAllOrigins && !hasOriginFn && len(c.AllowOrigins) == 0 {
		return errors.New("cors: all origins disabled")
	}
	schemas := c.allowedSchemas()
	for _, origin := range c.AllowOrigins {
		if strings.Contains(origin, "*") {
			if strings.Count(origin, "*") > 1 {
				return fmt.Errorf("cors: only one * is allowed in %q", origin)
			}
			continue
		}
		if !hasAnyPrefix(origin, schemas) {
			return fmt.Errorf("cors: bad origin %q, origins must contain '*' or start with one of %s",
				origin, strings.Join(schemas, ","))
		}
	}
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func DefaultConfig() Config {
	return Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
}

// Default allows every origin with the default methods and headers.
func Default() strand.Handler {
	cfg := DefaultConfig()
	cfg.AllowAllOrigins = true
	return New(cfg)
}

// New builds the handler. Preflight requests are answered here;
// requests from a rejected origin get a 403 client error. It panics on
// an invalid Config.
func New(cfg Config) strand.Handler {
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return newCors(cfg).handle
}
