package strand

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/dormoron/strand/config"
	"github.com/dormoron/strand/internal/errs"
	"github.com/dormoron/strand/registry"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var _ http.Handler = &Server{}

// Server serves a handler chain over HTTP.
//
// Every request gets a Context whose registry is the server's base
// registry joined with the request's RequestID. The base registry holds
// the defaults (logger, server config, renderers, error handlers,
// request id generator) with the registries passed to WithRegistry
// layered over them, so an application overrides a default by
// registering its own value of the same type.
type Server struct {
	cfg      ServerConfig
	log      *zap.Logger
	handler  Handler
	provider config.Provider
	engine   TemplateEngine
	idGen    RequestIDGenerator
	layers   []registry.Registry

	registry registry.Registry

	mu         sync.Mutex
	httpServer *http.Server
	h3         *http3Server
	listener   net.Listener

	inFlight atomic.Int64
	served   atomic.Int64
}

type ServerOption func(s *Server)

func WithServerConfig(cfg ServerConfig) ServerOption {
	return func(s *Server) {
		s.cfg = cfg
	}
}

func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithConfig makes p available to handlers as a config.Provider.
func WithConfig(p config.Provider) ServerOption {
	return func(s *Server) {
		s.provider = p
	}
}

// WithRegistry layers r over the base registry. Later registries take
// precedence over earlier ones.
func WithRegistry(r registry.Registry) ServerOption {
	return func(s *Server) {
		s.layers = append(s.layers, r)
	}
}

// WithHandlers appends handlers to the server's chain.
func WithHandlers(handlers ...Handler) ServerOption {
	return func(s *Server) {
		if s.handler != nil {
			handlers = append([]Handler{s.handler}, handlers...)
		}
		s.handler = Handlers(handlers...)
	}
}

func WithTemplateEngine(engine TemplateEngine) ServerOption {
	return func(s *Server) {
		s.engine = engine
	}
}

func WithRequestIDGenerator(gen RequestIDGenerator) ServerOption {
	return func(s *Server) {
		s.idGen = gen
	}
}

// InitServer builds a Server. Without WithHandlers every request is
// answered with 404.
func InitServer(opts ...ServerOption) *Server {
	s := &Server{
		cfg: DefaultServerConfig(),
		log: zap.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.handler == nil {
		s.handler = Next
	}
	if s.idGen == nil {
		s.idGen = UUIDGenerator{}
	}
	s.registry = s.buildRegistry()
	// 以注册表中的生成器为准，WithRegistry 可以覆盖默认值
	s.idGen = registry.MustGet[RequestIDGenerator](s.registry)
	return s
}

func (s *Server) buildRegistry() registry.Registry {
	b := registry.NewBuilder()
	registry.Add(b, s.log)
	registry.Add(b, s.cfg)
	registry.Add[RequestIDGenerator](b, s.idGen)
	registry.Add[ServerErrorHandler](b, defaultServerErrorHandler{})
	registry.Add[ClientErrorHandler](b, defaultClientErrorHandler{})
	for _, r := range defaultRenderers() {
		registry.Add(b, r)
	}
	if s.engine != nil {
		registry.Add(b, s.engine)
	}
	if s.provider != nil {
		registry.Add(b, s.provider)
	}

	base := b.Build()
	for _, layer := range s.layers {
		base = registry.Join(base, layer)
	}
	if s.cfg.RegistryCacheSize > 0 {
		base = registry.Caching(base, s.cfg.RegistryCacheSize)
	}
	return base
}

// Registry is the base registry every request starts from.
func (s *Server) Registry() registry.Registry {
	return s.registry
}

func (s *Server) Config() ServerConfig {
	return s.cfg
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.inFlight.Inc()
	defer func() {
		s.inFlight.Dec()
		s.served.Inc()
	}()

	id := s.idGen.Generate(r)
	w.Header().Set(RequestIDHeader, string(id))

	c := newContext(w, r, registry.Join(s.registry, registry.Single(id)), s.handler)
	c.Next()

	if !c.Response.Committed() {
		c.Logger().Warn("no response sent",
			zap.Error(errs.ErrNoResponseSent(r.Method, r.URL.Path)),
			zap.String("route", c.MatchedRoute()))
		_ = c.Response.SendStatus(http.StatusInternalServerError)
	}
}

func (s *Server) newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
		ErrorLog:          zap.NewStdLog(s.log),
	}
}

// Start listens on addr, or the configured address when addr is empty,
// and serves until Shutdown.
func (s *Server) Start(addr string) error {
	l, err := net.Listen("tcp", s.address(addr))
	if err != nil {
		return err
	}
	return s.Serve(l)
}

func (s *Server) address(addr string) string {
	if addr == "" {
		return s.cfg.Address
	}
	return addr
}

// Serve serves on l. It returns nil after a graceful Shutdown.
func (s *Server) Serve(l net.Listener) error {
	srv := s.newHTTPServer(s)
	s.mu.Lock()
	s.httpServer = srv
	s.listener = l
	s.mu.Unlock()

	s.log.Info("server listening", zap.String("addr", l.Addr().String()))
	return ignoreClosed(srv.Serve(l))
}

func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	l, err := net.Listen("tcp", s.address(addr))
	if err != nil {
		return err
	}
	srv := s.newHTTPServer(s)
	srv.TLSConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"h2", "http/1.1"},
	}
	s.mu.Lock()
	s.httpServer = srv
	s.listener = l
	s.mu.Unlock()

	s.log.Info("server listening", zap.String("addr", l.Addr().String()), zap.Bool("tls", true))
	return ignoreClosed(srv.ServeTLS(l, certFile, keyFile))
}

// StartHTTP3 serves HTTP/3 over UDP and, on the same address, HTTPS over
// TCP advertising the HTTP/3 endpoint with Alt-Svc.
func (s *Server) StartHTTP3(addr, certFile, keyFile string) error {
	addr = s.address(addr)
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}

	h3, err := listenHTTP3(addr, s, tlsConfig, s.cfg.HTTP3, s.log)
	if err != nil {
		return err
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		_ = h3.shutdown(context.Background())
		return err
	}

	srv := s.newHTTPServer(s.cfg.HTTP3.altSvc(s))
	srv.TLSConfig = tlsConfig.Clone()
	srv.TLSConfig.NextProtos = []string{"h2", "http/1.1"}

	s.mu.Lock()
	s.httpServer = srv
	s.h3 = h3
	s.listener = l
	s.mu.Unlock()

	errCh := make(chan error, 2)
	go func() { errCh <- ignoreClosed(srv.ServeTLS(l, "", "")) }()
	go func() { errCh <- ignoreClosed(h3.serve()) }()
	return <-errCh
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, h3 := s.httpServer, s.h3
	s.mu.Unlock()

	var err error
	if h3 != nil {
		err = h3.shutdown(ctx)
	}
	if srv != nil {
		err = errors.Join(err, srv.Shutdown(ctx))
	}
	return err
}

// Addr is the address the server listens on, or nil before it started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stats counts requests being served and requests served so far.
type Stats struct {
	InFlight int64 `json:"in_flight"`
	Served   int64 `json:"served"`
}

func (s *Server) Stats() Stats {
	return Stats{InFlight: s.inFlight.Load(), Served: s.served.Load()}
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
