package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/remiblancher/derpki/internal/api/metrics"
	"github.com/remiblancher/derpki/internal/api/router"
	"github.com/remiblancher/derpki/internal/profile"
)

// Server represents the HTTP server.
type Server struct {
	cfg     *Config
	version string
	logger  *zap.Logger
	srv     *http.Server
}

// New creates a Server, loading the built-in profiles and any found in
// cfg.ProfilesDir.
func New(cfg *Config, version string, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	profiles, err := loadProfiles(cfg.ProfilesDir)
	if err != nil {
		return nil, err
	}

	handler := router.New(&router.Config{
		Version:  version,
		Logger:   logger.Named("http"),
		Metrics:  metrics.New(),
		Profiles: profiles,
	})
	return &Server{
		cfg:     cfg,
		version: version,
		logger:  logger,
		srv: &http.Server{
			Addr:         cfg.Address(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}, nil
}

func loadProfiles(dir string) (map[string]*profile.Profile, error) {
	profiles, err := profile.BuiltinProfiles()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return profiles, nil
	}
	extra, err := profile.LoadProfilesFromDirectory(dir)
	if err != nil {
		return nil, err
	}
	for name, p := range extra {
		profiles[name] = p
	}
	return profiles, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		if s.cfg.TLSCert != "" {
			errChan <- s.srv.ServeTLS(ln, s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			errChan <- s.srv.Serve(ln)
		}
	}()
	s.logger.Info("server started",
		zap.String("address", ln.Addr().String()),
		zap.String("version", s.version),
		zap.Bool("tls", s.cfg.TLSCert != ""),
	)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down", zap.Error(context.Cause(ctx)))
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// PrintStartupInfo prints the listen address and endpoints.
func (s *Server) PrintStartupInfo(w io.Writer) {
	scheme := "http"
	if s.cfg.TLSCert != "" {
		scheme = "https"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "derpki API Server")
	fmt.Fprintln(w, "=================")
	fmt.Fprintf(w, "  Version:  %s\n", s.version)
	fmt.Fprintf(w, "  Address:  %s://%s\n", scheme, s.cfg.Address())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Endpoints:")
	fmt.Fprintln(w, "  GET  /health              - Health check")
	fmt.Fprintln(w, "  GET  /ready               - Readiness check")
	fmt.Fprintln(w, "  GET  /metrics             - Prometheus metrics")
	fmt.Fprintln(w, "  GET  /api/openapi.yaml    - OpenAPI specification")
	fmt.Fprintln(w, "  POST /api/v1/inspect      - Decode PEM or DER")
	fmt.Fprintln(w, "  POST /api/v1/csr/verify   - Verify a CSR signature")
	fmt.Fprintln(w, "  GET  /api/v1/oids         - OID registry")
	fmt.Fprintln(w, "  GET  /api/v1/profiles     - Issuance profiles")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use Ctrl+C to stop")
	fmt.Fprintln(w)
}
