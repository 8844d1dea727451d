package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/remiblancher/derpki/internal/api/server"
)

// EnvPort overrides the default listen port of the serve command.
const EnvPort = "DERPKI_PORT"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the HTTP API for inspection, request verification and the OID and
profile registries.

Endpoints:
  GET  /health                 liveness
  GET  /ready                  readiness
  GET  /metrics                Prometheus metrics
  GET  /api/openapi.yaml       API description
  POST /api/v1/inspect         decode PEM, DER or PKCS#12 data
  POST /api/v1/csr/verify      verify a certification request
  GET  /api/v1/oids/           list the OID registry
  GET  /api/v1/oids/{name}     resolve a name or OID
  GET  /api/v1/profiles/       list issuance profiles
  GET  /api/v1/profiles/{name} show one profile

Examples:
  derpki serve
  derpki serve --port 8443 --tls-cert server.crt --tls-key server.key
  DERPKI_PORT=9000 derpki serve --profiles-dir ./profiles`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	servePort        int
	serveHost        string
	serveProfilesDir string
	serveTLSCert     string
	serveTLSKey      string
)

func init() {
	defaults := server.DefaultConfig()
	flags := serveCmd.Flags()
	flags.IntVar(&servePort, "port", defaults.Port, "Listen port (or set "+EnvPort+")")
	flags.StringVar(&serveHost, "host", defaults.Host, "Listen address")
	flags.StringVar(&serveProfilesDir, "profiles-dir", "", "Directory of extra YAML profiles")
	flags.StringVar(&serveTLSCert, "tls-cert", "", "TLS certificate file")
	flags.StringVar(&serveTLSKey, "tls-key", "", "TLS private key file")
}

func serveConfig(cmd *cobra.Command) (*server.Config, error) {
	cfg := server.DefaultConfig()
	cfg.Port = servePort
	if !cmd.Flags().Changed("port") {
		if v := os.Getenv(EnvPort); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
			}
			cfg.Port = port
		}
	}
	cfg.Host = serveHost
	cfg.ProfilesDir = serveProfilesDir
	cfg.TLSCert = serveTLSCert
	cfg.TLSKey = serveTLSKey
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}
	srv, err := server.New(cfg, version, logger)
	if err != nil {
		return err
	}
	srv.PrintStartupInfo(cmd.OutOrStdout())

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
