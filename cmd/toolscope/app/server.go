package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolscope/auth"
	"github.com/jonwraymond/toolscope/config"
	"github.com/jonwraymond/toolscope/health"
	"github.com/jonwraymond/toolscope/interceptor"
	"github.com/jonwraymond/toolscope/observe"
	"github.com/jonwraymond/toolscope/policy"
	"github.com/jonwraymond/toolscope/resilience"
)

const (
	// InterceptPath receives gateway interceptor envelopes.
	InterceptPath = "/v1/intercept"

	defaultReadHeaderTimeout = 10 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
	upstreamProbeTimeout     = 3 * time.Second
)

// Server wires the interceptor, health, metrics and proxy routes.
type Server struct {
	cfg         *config.Config
	observer    observe.Observer
	logger      observe.Logger
	table       *policy.Table
	interceptor *interceptor.Interceptor
	aggregator  *health.Aggregator
	handler     http.Handler
}

// NewServer builds a Server from cfg. It fails only on telemetry setup and
// an unparsable upstream URL; permission problems degrade to the guest
// default.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ocfg := cfg.Observe.ObserverConfig(getVersion())
	ocfg.Metrics.Registerer = reg
	obs, err := observe.NewObserver(ctx, ocfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry setup failed: %w", err)
	}
	inst, err := observe.InstrumentationFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("instrumentation setup failed: %w", err)
	}
	logger := obs.Logger()

	table, _ := config.LoadPermissionTable(ctx, cfg.Permissions, logger)
	resolver := auth.NewResolver(auth.WithLogger(logger))
	icpt := interceptor.New(table,
		interceptor.WithResolver(resolver),
		interceptor.WithInstrumentation(inst),
	)

	agg := health.NewAggregator()
	agg.Register(health.NewPermissionsChecker(table))

	s := &Server{
		cfg:         cfg,
		observer:    obs,
		logger:      logger,
		table:       table,
		interceptor: icpt,
		aggregator:  agg,
	}

	var proxy http.Handler
	if cfg.ProxyEnabled() {
		if proxy, err = s.newReverseProxy(cfg.Upstream); err != nil {
			_ = obs.Shutdown(ctx)
			return nil, err
		}
		agg.Register(health.NewUpstreamChecker(cfg.Upstream, &http.Client{Timeout: upstreamProbeTimeout}))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	health.Mount(r, agg)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	limiter := newRateLimiter(cfg.Limits)
	exec := newExecutor(cfg.Limits, limiter)
	if b := exec.Bulkhead(); b != nil {
		agg.Register(admissionChecker(b))
	}
	r.With(resilience.Middleware(exec)).Method(http.MethodPost, InterceptPath, icpt.EnvelopeHandler(cfg.Proxy.MaxBodyBytes))

	if proxy != nil {
		// Proxied streams stay open as long as the upstream keeps them.
		// They share the request rate but hold no slot and get no deadline.
		r.Group(func(r chi.Router) {
			r.Use(resilience.Middleware(resilience.NewExecutor(resilience.WithRateLimiter(limiter))))
			r.Use(auth.Middleware(resolver))
			r.Use(icpt.Middleware(interceptor.ProxyOptions{
				EnforceCalls: cfg.Proxy.EnforceCalls,
				MaxBodyBytes: cfg.Proxy.MaxBodyBytes,
			}))
			r.Handle("/*", proxy)
		})
	}

	s.handler = r
	return s, nil
}

// newRateLimiter returns nil when no rate is configured.
func newRateLimiter(l config.LimitsConfig) *resilience.RateLimiter {
	if l.Rate <= 0 {
		return nil
	}
	return resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Rate:        l.Rate,
		Burst:       l.Burst,
		WaitOnLimit: l.MaxWait > 0,
		MaxWait:     l.MaxWait,
	})
}

// newExecutor builds the admission executor for envelope requests. Zero
// limits leave the corresponding pattern out.
func newExecutor(l config.LimitsConfig, limiter *resilience.RateLimiter) *resilience.Executor {
	var opts []resilience.ExecutorOption
	if limiter != nil {
		opts = append(opts, resilience.WithRateLimiter(limiter))
	}
	if l.MaxConcurrent > 0 {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: l.MaxConcurrent,
			MaxWait:       l.MaxWait,
		})))
	}
	if l.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(l.Timeout))
	}
	return resilience.NewExecutor(opts...)
}

// admissionChecker reports degraded while every envelope slot is taken.
func admissionChecker(b *resilience.Bulkhead) health.Checker {
	return health.NewCheckerFunc("admission", func(context.Context) health.Result {
		m := b.Metrics()
		details := map[string]any{
			"active":         m.Active,
			"max_active":     m.MaxActive,
			"max_concurrent": m.MaxConcurrent,
			"rejected":       m.Rejected,
		}
		if m.Available <= 0 {
			return health.Degraded("all envelope slots in use").WithDetails(details)
		}
		return health.Healthy("envelope slots available").WithDetails(details)
	})
}

func (s *Server) newReverseProxy(upstream string) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", upstream, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: scheme and host are required", upstream)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.FlushInterval = -1

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn(r.Context(), "upstream request failed",
				observe.F("upstream", target.Host),
				observe.F("status", status),
				observe.F("error", err.Error()))
		}
		w.WriteHeader(status)
	}
	return proxy, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Table returns the loaded permission table.
func (s *Server) Table() *policy.Table {
	return s.table
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down the HTTP
// server and flushes telemetry.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		_ = s.observer.Shutdown(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info(ctx, "toolscope listening",
		observe.F("addr", ln.Addr().String()),
		observe.F("proxy", s.cfg.ProxyEnabled()),
		observe.F("groups", s.table.Len()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		s.logger.Info(shutdownCtx, "shutting down")
		err := srv.Shutdown(shutdownCtx)
		return errors.Join(err, s.observer.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
