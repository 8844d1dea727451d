package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/remiblancher/derpki/internal/audit"
	"github.com/remiblancher/derpki/internal/cli"
	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
	"github.com/remiblancher/derpki/internal/csr"
	"github.com/remiblancher/derpki/internal/pemutil"
	"github.com/remiblancher/derpki/internal/x509util"
)

var csrCmd = &cobra.Command{
	Use:   "csr",
	Short: "Certificate Signing Request commands",
	Long:  `Commands for creating and verifying PKCS#10 certification requests.`,
}

var csrCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a signed certification request",
	Long: `Create a PKCS#10 certification request signed with an existing key.

Subject alternative names given with --dns, --ip, --email or --uri are
sent in an extensionRequest attribute.

Examples:
  derpki csr create --key server.key --subject "CN=www.example.com" \
      --dns www.example.com --dns example.com --out server.csr
  derpki csr create --key client.key --passphrase env:KEY_PASS \
      --subject "CN=alice,O=Example" --email alice@example.com --out alice.csr`,
	RunE: runCSRCreate,
}

var csrVerifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Verify the self-signature of a request",
	Long: `Verify that a certification request is signed by the key it carries.

Examples:
  derpki csr verify server.csr`,
	Args: cobra.ExactArgs(1),
	RunE: runCSRVerify,
}

var (
	csrKey        string
	csrPassphrase string
	csrSubject    string
	csrDNS        []string
	csrIPs        []string
	csrEmails     []string
	csrURIs       []string
	csrOutput     string
)

func init() {
	csrCmd.AddCommand(csrCreateCmd)
	csrCmd.AddCommand(csrVerifyCmd)

	flags := csrCreateCmd.Flags()
	flags.StringVarP(&csrKey, "key", "k", "", "Private key file (required)")
	flags.StringVarP(&csrPassphrase, "passphrase", "p", "", "Key passphrase (or env:VAR)")
	flags.StringVarP(&csrSubject, "subject", "s", "", "Subject DN (required)")
	flags.StringSliceVar(&csrDNS, "dns", nil, "DNS subject alternative name (repeatable)")
	flags.StringSliceVar(&csrIPs, "ip", nil, "IP subject alternative name (repeatable)")
	flags.StringSliceVar(&csrEmails, "email", nil, "Email subject alternative name (repeatable)")
	flags.StringSliceVar(&csrURIs, "uri", nil, "URI subject alternative name (repeatable)")
	flags.StringVarP(&csrOutput, "out", "o", "", "Output file (required)")
	_ = csrCreateCmd.MarkFlagRequired("key")
	_ = csrCreateCmd.MarkFlagRequired("subject")
	_ = csrCreateCmd.MarkFlagRequired("out")
}

func runCSRCreate(cmd *cobra.Command, args []string) error {
	subject, err := x509util.ParseName(csrSubject)
	if err != nil {
		return fmt.Errorf("invalid subject: %w", err)
	}
	signer, err := pkicrypto.LoadPrivateKey(csrKey, pkicrypto.ResolvePassphrase(csrPassphrase))
	if err != nil {
		_ = audit.LogKeyAccessed(csrKey, false, err.Error())
		return err
	}
	if err := audit.LogKeyAccessed(csrKey, true, ""); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	exts, err := sanExtensions()
	if err != nil {
		return err
	}
	req, err := csr.NewBuilder().Subject(subject).Extensions(exts).SignWithKey(signer)
	if err != nil {
		_ = audit.LogCSRSigned(csrOutput, subject.String(), string(signer.Algorithm()), false)
		return fmt.Errorf("failed to sign request: %w", err)
	}
	if err := cli.WritePEMFile(csrOutput, pemutil.LabelCertificateRequest, req.Raw()); err != nil {
		return err
	}
	if err := audit.LogCSRSigned(csrOutput, subject.String(), string(signer.Algorithm()), true); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Request written: %s\n", csrOutput)
	fmt.Fprintf(out, "  Subject:   %s\n", req.Subject())
	fmt.Fprintf(out, "  Signature: %s\n", req.SignatureAlgorithm().Name())
	if names := req.DNSNames(); len(names) > 0 {
		fmt.Fprintf(out, "  DNS names: %v\n", names)
	}
	return nil
}

func sanExtensions() (x509util.Extensions, error) {
	if len(csrDNS)+len(csrIPs)+len(csrEmails)+len(csrURIs) == 0 {
		return nil, nil
	}
	eb := x509util.NewExtensionsBuilder()
	for _, name := range csrDNS {
		eb.AddDNSName(name)
	}
	for _, s := range csrIPs {
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address: %s", s)
		}
		eb.AddIP(ip)
	}
	for _, addr := range csrEmails {
		eb.AddEmail(addr)
	}
	for _, uri := range csrURIs {
		eb.AddURI(uri)
	}
	return eb.Build()
}

func runCSRVerify(cmd *cobra.Command, args []string) error {
	b, err := cli.ReadDER(args[0], pemutil.LabelCertificateRequest)
	if err != nil {
		return err
	}
	req, err := csr.Parse(b)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Subject: %s\n", req.Subject())
	if err := req.Verify(); err != nil {
		fmt.Fprintf(out, "Signature: %s\n", cli.FormatStatus("invalid"))
		return err
	}
	fmt.Fprintf(out, "Signature: %s (%s)\n", cli.FormatStatus("valid"), req.SignatureAlgorithm().Name())
	return nil
}
