package prometheus

import (
	"errors"
	"strconv"
	"time"

	"github.com/dormoron/strand"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MiddlewareBuilder builds a handler recording, per matched route,
// method and status, the latency of requests and their count.
type MiddlewareBuilder struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string

	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

func InitMiddlewareBuilder(namespace string, subsystem string, name string, help string) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *MiddlewareBuilder) WithRegisterer(r prometheus.Registerer) *MiddlewareBuilder {
	m.Registerer = r
	return m
}

var labels = []string{"pattern", "method", "status"}

// Build registers the collectors. Building twice against the same
// registerer reuses the collectors registered first.
func (m *MiddlewareBuilder) Build() strand.Handler {
	reg := m.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	latency := register(reg, prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: m.Namespace,
		Subsystem: m.Subsystem,
		Name:      m.Name,
		Help:      m.Help,
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.75:  0.01,
			0.90:  0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, labels))
	total := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.Namespace,
		Subsystem: m.Subsystem,
		Name:      m.Name + "_total",
		Help:      "Requests served, by route, method and status.",
	}, labels))

	return func(ctx *strand.Context) {
		start := time.Now()
		defer func() {
			pattern := ctx.MatchedRoute()
			if pattern == "" {
				pattern = "unknown"
			}
			values := []string{pattern, ctx.Request.Method, strconv.Itoa(ctx.Response.StatusCode())}
			latency.WithLabelValues(values...).Observe(float64(time.Since(start).Microseconds()))
			total.WithLabelValues(values...).Inc()
		}()
		ctx.Next()
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Handler exposes the metrics gathered by g, e.g. at c.Get("metrics", ...).
func Handler(g prometheus.Gatherer) strand.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	h := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	return func(ctx *strand.Context) {
		h.ServeHTTP(ctx.Response, ctx.Request)
	}
}
