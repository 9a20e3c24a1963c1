// Package server hosts the greeter SOAP endpoint over HTTP and HTTPS.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foomo/soapgreeter/internal/config"
	"github.com/foomo/soapgreeter/internal/greeter"
	"github.com/foomo/soapgreeter/internal/logging"
	"github.com/foomo/soapgreeter/internal/telemetry"
	"github.com/foomo/soapgreeter/pkg/soap"
)

// Server wires the greeter endpoint into an HTTP host.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	handler http.Handler
	SOAP    *soap.Server
}

// Option configures a Server.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
}

// WithTracerProvider records request and operation spans with tp instead of
// the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// New builds the SOAP endpoint and the router in front of it. Metrics are
// registered with reg and exposed from gatherer.
func New(cfg *config.Config, logger *logging.Logger, build BuildInfo, reg prometheus.Registerer, gatherer prometheus.Gatherer, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = &logging.Logger{Logger: zap.NewNop()}
	}
	o := options{tracerProvider: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	metrics := telemetry.NewMetrics(reg)

	soapSrv := soap.NewServer()
	soapSrv.Logger = logger.Named("soap")
	soapSrv.UseTracerProvider(o.tracerProvider)
	if cfg.SOAPVersion == soap.SoapVersion12 {
		soapSrv.UseSoap12()
	}
	soapSrv.Metadata = cfg.Metadata()
	soapSrv.IncludeExceptionDetailInFaults = cfg.IsDevelopment()
	soapSrv.Observer = metrics
	if err := greeter.Register(soapSrv, cfg.SOAPPath, greeter.NewService()); err != nil {
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		logger:  logger.Logger,
		handler: newRouter(cfg, logger, build, metrics, o.tracerProvider, gatherer, soapSrv),
		SOAP:    soapSrv,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts the listeners down
// gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	var servers []*http.Server
	g, gctx := errgroup.WithContext(ctx)

	if s.cfg.HTTPAddr != "" {
		srv := s.httpServer(s.cfg.HTTPAddr)
		servers = append(servers, srv)
		g.Go(func() error {
			s.logger.Info("HTTP server starting", zap.String("addr", srv.Addr))
			return serveErr(srv.ListenAndServe())
		})
	}
	if s.cfg.HTTPSAddr != "" {
		srv := s.httpServer(s.cfg.HTTPSAddr)
		servers = append(servers, srv)
		g.Go(func() error {
			s.logger.Info("HTTPS server starting", zap.String("addr", srv.Addr))
			return serveErr(srv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile))
		})
	}
	if len(servers) == 0 {
		return errors.New("server: no listener configured")
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}
}

// Serve accepts connections on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := s.httpServer(l.Addr().String())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveErr(srv.Serve(l))
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func serveErr(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
