// Package strandfx wires a strand Server into an fx application: the
// configuration, the logger and the server are provided, and the server
// is started and stopped with the application lifecycle.
package strandfx

import (
	"context"
	"net"

	"github.com/dormoron/strand"
	"github.com/dormoron/strand/config"
	"github.com/dormoron/strand/registry"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// RegistryGroup is the value group collecting registries layered over the
// server's base registry.
const RegistryGroup = "strand.registry"

type Config struct {
	ConfigFile string
	EnvPrefix  string
}

type Option func(*Config)

func WithConfigFile(path string) Option  { return func(c *Config) { c.ConfigFile = path } }
func WithEnvPrefix(prefix string) Option { return func(c *Config) { c.EnvPrefix = prefix } }

func defaultConfig() Config {
	return Config{EnvPrefix: "STRAND_"}
}

// Module provides config.Provider, strand.ServerConfig, *zap.Logger and
// *strand.Server. The root handler is an optional strand.Handler in the
// graph; registries join through AsRegistry.
func Module(opts ...Option) fx.Option {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return fx.Module("strand",
		fx.Provide(func() Config { return cfg }),
		fx.Provide(fx.Annotate(provideConfig, fx.As(new(config.Provider)))),
		fx.Provide(strand.ServerConfigFrom),
		fx.Provide(provideLogger),
		fx.Provide(provideServer),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(registerHooks),
	)
}

// AsRegistry annotates a constructor of registry.Registry so its result
// is layered over the server's base registry.
func AsRegistry(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"`+RegistryGroup+`"`))
}

func provideConfig(lc fx.Lifecycle, cfg Config) (*config.Configuration, error) {
	opts := []config.Option{config.WithEnvPrefix(cfg.EnvPrefix)}
	if cfg.ConfigFile != "" {
		opts = append(opts, config.WithConfigFile(cfg.ConfigFile))
	}
	c, err := config.New(opts...)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(c.Close))
	return c, nil
}

func provideLogger(sc strand.ServerConfig) (*zap.Logger, error) {
	return strand.NewLogger(sc.Log)
}

type serverDeps struct {
	fx.In
	Config     strand.ServerConfig
	Logger     *zap.Logger
	Provider   config.Provider
	Root       strand.Handler      `optional:"true"`
	Registries []registry.Registry `group:"strand.registry"`
}

func provideServer(d serverDeps) *strand.Server {
	opts := []strand.ServerOption{
		strand.WithServerConfig(d.Config),
		strand.WithLogger(d.Logger),
		strand.WithConfig(d.Provider),
	}
	for _, r := range d.Registries {
		if r != nil {
			opts = append(opts, strand.WithRegistry(r))
		}
	}
	if d.Root != nil {
		opts = append(opts, strand.WithHandlers(d.Root))
	}
	return strand.InitServer(opts...)
}

func registerHooks(lc fx.Lifecycle, srv *strand.Server, sc strand.ServerConfig, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			l, err := net.Listen("tcp", sc.Address)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(l); err != nil {
					log.Error("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if sc.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, sc.ShutdownTimeout)
				defer cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
}
