package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remiblancher/derpki/internal/ca"
	"github.com/remiblancher/derpki/internal/cli"
	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/csr"
	"github.com/remiblancher/derpki/internal/pemutil"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a certificate from a request",
	Long: `Issue a certificate for a PKCS#10 request.

The CA is either a directory created by "ca init" (--ca-dir) or a
certificate and key pair (--ca-cert and --ca-key). The request signature is
verified before issuance. --profile names a builtin profile (server, client,
ca) or a YAML profile file.

Examples:
  derpki issue --ca-dir ./ca --csr server.csr --out server.crt
  derpki issue --ca-dir ./ca --csr alice.csr --profile client --out alice.crt
  derpki issue --ca-cert root.crt --ca-key root.key --csr svc.csr \
      --profile ./profiles/short-lived.yaml --out svc.crt`,
	RunE: runIssue,
}

var (
	issueCADir        string
	issueCACert       string
	issueCAKey        string
	issueCAPassphrase string
	issueCSR          string
	issueProfile      string
	issueOutput       string
)

func init() {
	flags := issueCmd.Flags()
	flags.StringVarP(&issueCADir, "ca-dir", "d", "", "CA directory")
	flags.StringVar(&issueCACert, "ca-cert", "", "CA certificate file")
	flags.StringVar(&issueCAKey, "ca-key", "", "CA private key file")
	flags.StringVar(&issueCAPassphrase, "ca-passphrase", "", "CA key passphrase (or env:VAR)")
	flags.StringVar(&issueCSR, "csr", "", "Certification request file (required)")
	flags.StringVarP(&issueProfile, "profile", "P", ca.ProfileServer, "Profile name or YAML file")
	flags.StringVarP(&issueOutput, "out", "o", "", "Output certificate file (required)")
	_ = issueCmd.MarkFlagRequired("csr")
	_ = issueCmd.MarkFlagRequired("out")
	issueCmd.MarkFlagsMutuallyExclusive("ca-dir", "ca-cert")
	issueCmd.MarkFlagsRequiredTogether("ca-cert", "ca-key")
}

func runIssue(cmd *cobra.Command, args []string) error {
	authority, err := loadIssuingCA()
	if err != nil {
		return err
	}

	b, err := cli.ReadDER(issueCSR, pemutil.LabelCertificateRequest)
	if err != nil {
		return err
	}
	req, err := csr.Parse(b)
	if err != nil {
		return err
	}

	issued, err := authority.IssueWithProfile(req, issueProfile)
	if err != nil {
		return err
	}
	if err := cli.WritePEMFile(issueOutput, pemutil.LabelCertificate, issued.Raw()); err != nil {
		return err
	}
	logger.Info("certificate issued",
		zap.String("serial", issued.SerialNumber().Text(16)),
		zap.String("subject", issued.Subject().String()),
		zap.String("profile", issueProfile))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Certificate issued: %s\n", issueOutput)
	fmt.Fprintf(out, "  Subject:     %s\n", issued.Subject())
	fmt.Fprintf(out, "  Issuer:      %s\n", issued.Issuer())
	fmt.Fprintf(out, "  Serial:      %s\n", issued.SerialNumber().Text(16))
	fmt.Fprintf(out, "  Valid until: %s\n", issued.NotAfter().UTC().Format(time.RFC3339))
	if names := issued.DNSNames(); len(names) > 0 {
		fmt.Fprintf(out, "  DNS names:   %v\n", names)
	}
	return nil
}

func loadIssuingCA() (*ca.CA, error) {
	passphrase := pkicrypto.ResolvePassphrase(issueCAPassphrase)
	if issueCADir != "" {
		store := ca.NewStore(issueCADir)
		if !store.Exists() {
			return nil, fmt.Errorf("no CA found at %s", issueCADir)
		}
		return ca.Load(store, passphrase)
	}
	if issueCACert == "" {
		return nil, fmt.Errorf("either --ca-dir or --ca-cert and --ca-key is required")
	}
	caCert, err := ca.LoadCertificate(issueCACert)
	if err != nil {
		return nil, err
	}
	signer, err := pkicrypto.LoadPrivateKey(issueCAKey, passphrase)
	if err != nil {
		return nil, err
	}
	return ca.New(caCert, signer)
}
