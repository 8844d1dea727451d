package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remiblancher/derpki/internal/ca"
	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/x509util"
)

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Certificate Authority management",
	Long:  `Commands for creating and inspecting a file-backed Certificate Authority.`,
}

var caInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new self-signed CA",
	Long: `Initialize a new Certificate Authority in a directory.

The directory receives:
  ca.crt           CA certificate (PEM)
  private/ca.key   CA private key (PEM, optionally encrypted)
  certs/           issued certificates, one file per serial
  serial           next serial number (hex)
  index.txt        issuance index

Examples:
  derpki ca init --dir ./ca --subject "CN=Demo Root,O=derpki"
  derpki ca init --dir ./pqc-ca --subject "CN=PQC Root" --algorithm ml-dsa-65 --days 3650
  derpki ca init --dir ./ca --subject "CN=Root" --key existing.key`,
	RunE: runCAInit,
}

var caInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display CA information",
	Long: `Display the CA certificate and the issuance index of a CA directory.

Examples:
  derpki ca info --dir ./ca`,
	RunE: runCAInfo,
}

var (
	caInitDir        string
	caInitSubject    string
	caInitAlgorithm  string
	caInitKey        string
	caInitDays       int
	caInitPassphrase string

	caInfoDir string
)

func init() {
	caCmd.AddCommand(caInitCmd)
	caCmd.AddCommand(caInfoCmd)

	flags := caInitCmd.Flags()
	flags.StringVarP(&caInitDir, "dir", "d", "./ca", "CA directory")
	flags.StringVarP(&caInitSubject, "subject", "s", "", "CA subject DN, e.g. \"CN=Root,O=Org\" (required)")
	flags.StringVarP(&caInitAlgorithm, "algorithm", "a", string(pkicrypto.AlgECDSAP384), "Key algorithm for a new CA key")
	flags.StringVar(&caInitKey, "key", "", "Use an existing private key instead of generating one")
	flags.IntVar(&caInitDays, "days", 3650, "Validity period in days")
	flags.StringVarP(&caInitPassphrase, "passphrase", "p", "", "Passphrase for the CA key (or env:VAR)")
	_ = caInitCmd.MarkFlagRequired("subject")

	caInfoCmd.Flags().StringVarP(&caInfoDir, "dir", "d", "./ca", "CA directory")
}

func runCAInit(cmd *cobra.Command, args []string) error {
	if caInitDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	subject, err := x509util.ParseName(caInitSubject)
	if err != nil {
		return fmt.Errorf("invalid subject: %w", err)
	}
	passphrase := pkicrypto.ResolvePassphrase(caInitPassphrase)

	var signer *pkicrypto.SoftwareSigner
	if caInitKey != "" {
		signer, err = pkicrypto.LoadPrivateKey(caInitKey, passphrase)
	} else {
		var alg pkicrypto.AlgorithmID
		if alg, err = pkicrypto.ParseAlgorithm(caInitAlgorithm); err != nil {
			return fmt.Errorf("%w (supported: %s)", err, algorithmList())
		}
		signer, err = pkicrypto.GenerateSoftwareSigner(alg)
	}
	if err != nil {
		return err
	}

	store := ca.NewStore(caInitDir)
	authority, err := ca.Initialize(store, subject, signer, time.Duration(caInitDays)*24*time.Hour, passphrase)
	if err != nil {
		return err
	}
	c := authority.Certificate()
	logger.Info("CA initialized", zap.String("dir", store.BasePath()), zap.String("subject", c.Subject().String()))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "CA initialized: %s\n", store.BasePath())
	fmt.Fprintf(out, "  Subject:     %s\n", c.Subject())
	fmt.Fprintf(out, "  Algorithm:   %s\n", signer.Algorithm().Description())
	fmt.Fprintf(out, "  Serial:      %s\n", c.SerialNumber().Text(16))
	fmt.Fprintf(out, "  Valid until: %s\n", c.NotAfter().UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "  Certificate: %s\n", store.CACertPath())
	fmt.Fprintf(out, "  Private key: %s\n", store.CAKeyPath())
	return nil
}

func runCAInfo(cmd *cobra.Command, args []string) error {
	store := ca.NewStore(caInfoDir)
	if !store.Exists() {
		return fmt.Errorf("no CA found at %s", caInfoDir)
	}
	c, err := store.LoadCACert()
	if err != nil {
		return err
	}
	entries, err := store.ReadIndex()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "CA: %s\n", store.BasePath())
	fmt.Fprintf(out, "  Subject:     %s\n", c.Subject())
	fmt.Fprintf(out, "  Key:         %s\n", c.PublicKeyInfo().Algorithm.Name())
	fmt.Fprintf(out, "  Valid until: %s\n", c.NotAfter().UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "  Issued:      %d\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(out, "    %s  %s  %s\n", e.Serial.Text(16), e.Expiry.UTC().Format("2006-01-02"), e.Subject)
	}
	return nil
}
