package strand

import (
	"time"

	"github.com/dormoron/strand/config"
)

// ServerConfig holds the settings of a Server. Field tags name the keys
// under the "server" section of a config.Provider.
type ServerConfig struct {
	Address           string        `config:"address"`
	ReadTimeout       time.Duration `config:"read_timeout"`
	WriteTimeout      time.Duration `config:"write_timeout"`
	IdleTimeout       time.Duration `config:"idle_timeout"`
	ReadHeaderTimeout time.Duration `config:"read_header_timeout"`
	MaxHeaderBytes    int           `config:"max_header_bytes"`

	// ShutdownTimeout bounds the graceful shutdown run by strandfx.
	ShutdownTimeout time.Duration `config:"shutdown_timeout"`

	// Development includes error details in default server error responses.
	Development bool `config:"development"`

	// RegistryCacheSize bounds the type lookups memoized over the base
	// registry. Zero disables the cache.
	RegistryCacheSize int `config:"registry_cache_size"`

	HTTP3 HTTP3Config `config:"http3"`
	Log   LogConfig   `config:"log"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:           ":8080",
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
		ShutdownTimeout:   15 * time.Second,
		RegistryCacheSize: 256,
		HTTP3:             DefaultHTTP3Config(),
		Log:               DefaultLogConfig(),
	}
}

// ServerConfigFrom reads the "server" section of p over the defaults. A
// missing section yields the defaults.
func ServerConfigFrom(p config.Provider) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if !p.Has("server") {
		return cfg, nil
	}
	if err := p.Unmarshal("server", &cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}
