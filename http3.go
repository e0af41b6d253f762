package strand

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"go.uber.org/zap"
)

// HTTP3Config tunes the QUIC listener started by Server.StartHTTP3.
type HTTP3Config struct {
	MaxIdleTimeout        time.Duration `config:"max_idle_timeout"`
	MaxIncomingStreams    int64         `config:"max_incoming_streams"`
	MaxIncomingUniStreams int64         `config:"max_incoming_uni_streams"`
	HandshakeIdleTimeout  time.Duration `config:"handshake_idle_timeout"`
	EnableDatagrams       bool          `config:"enable_datagrams"`

	// AltSvcHeader is advertised on TCP responses so clients can upgrade.
	// Empty disables the header.
	AltSvcHeader string `config:"alt_svc_header"`
}

func DefaultHTTP3Config() HTTP3Config {
	return HTTP3Config{
		MaxIdleTimeout:        30 * time.Second,
		MaxIncomingStreams:    100,
		MaxIncomingUniStreams: 100,
		HandshakeIdleTimeout:  10 * time.Second,
		AltSvcHeader:          `h3=":443"; ma=2592000`,
	}
}

func (c HTTP3Config) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:        c.MaxIdleTimeout,
		MaxIncomingStreams:    c.MaxIncomingStreams,
		MaxIncomingUniStreams: c.MaxIncomingUniStreams,
		EnableDatagrams:       c.EnableDatagrams,
		HandshakeIdleTimeout:  c.HandshakeIdleTimeout,
	}
}

// altSvc wraps h so that every response advertises the HTTP/3 endpoint.
func (c HTTP3Config) altSvc(h http.Handler) http.Handler {
	if c.AltSvcHeader == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Alt-Svc", c.AltSvcHeader)
		h.ServeHTTP(w, r)
	})
}

type http3Server struct {
	quicServer   *http3.Server
	quicListener *quic.EarlyListener
	log          *zap.Logger
}

func listenHTTP3(addr string, handler http.Handler, tlsConfig *tls.Config, cfg HTTP3Config, log *zap.Logger) (*http3Server, error) {
	tlsConfig = tlsConfig.Clone()
	tlsConfig.NextProtos = []string{"h3"}

	quicConfig := cfg.quicConfig()
	listener, err := quic.ListenAddrEarly(addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("启动QUIC监听器失败: %w", err)
	}
	return &http3Server{
		quicServer: &http3.Server{
			Handler:    handler,
			TLSConfig:  tlsConfig,
			QuicConfig: quicConfig,
		},
		quicListener: listener,
		log:          log,
	}, nil
}

func (s *http3Server) serve() error {
	s.log.Info("HTTP/3 server listening", zap.String("addr", s.quicListener.Addr().String()))
	return s.quicServer.ServeListener(s.quicListener)
}

func (s *http3Server) shutdown(_ context.Context) error {
	if err := s.quicListener.Close(); err != nil {
		s.log.Warn("关闭QUIC监听器失败", zap.Error(err))
	}
	return s.quicServer.Close()
}
