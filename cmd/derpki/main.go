// Command derpki builds, signs and inspects X.509 certificates, PKCS#10
// requests and PKCS#12 key stores.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remiblancher/derpki/internal/audit"
	"github.com/remiblancher/derpki/internal/logging"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	auditLogPath string
	logFormat    string
	logLevel     string
)

// logger is built by the root command before any subcommand runs.
var logger = zap.NewNop()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "derpki",
	Short: "derpki - DER codec and X.509 toolkit",
	Long: `derpki builds, signs and inspects X.509 artifacts with its own ASN.1 DER codec.

Supported algorithms:
  Classical: ECDSA (P-256, P-384), Ed25519, RSA (2048, 4096)
  PQC:       ML-DSA-65 (FIPS 204)

Examples:
  # Create a CA
  derpki ca init --dir ./ca --subject "CN=Demo Root,O=derpki"

  # Request and issue a server certificate
  derpki key gen --algorithm ecdsa-p256 --out server.key
  derpki csr create --key server.key --subject CN=www.example.com --dns www.example.com --out server.csr
  derpki issue --ca-dir ./ca --csr server.csr --profile server --out server.crt

  # Look inside any PEM or DER file
  derpki inspect server.crt`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logging.Config{Format: logFormat, Level: logLevel, Writer: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		logger = l

		initAudit := audit.InitFromEnv
		if auditLogPath != "" {
			initAudit = func() error { return audit.InitFile(auditLogPath) }
		}
		if err := initAudit(); err != nil {
			return fmt.Errorf("failed to initialize audit log: %w", err)
		}
		if audit.Enabled() {
			logger.Debug("audit log enabled")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = logger.Sync()
		return audit.Close()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set "+audit.EnvLog+")")
	flags.StringVar(&logFormat, "log-format", "",
		"Log format: console, json or logfmt (or set "+logging.EnvFormat+")")
	flags.StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (or set "+logging.EnvLevel+")")

	rootCmd.AddCommand(caCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(csrCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(oidCmd)
	rootCmd.AddCommand(serveCmd)
}
