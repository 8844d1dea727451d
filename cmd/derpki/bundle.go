package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/derpki/internal/ca"
	"github.com/remiblancher/derpki/internal/cert"
	"github.com/remiblancher/derpki/internal/cli"
	"github.com/remiblancher/derpki/internal/inspect"
	"github.com/remiblancher/derpki/internal/pemutil"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle CERT...",
	Short: "Pack certificates into a PKCS#7 bundle",
	Long: `Pack one or more certificates into a degenerate PKCS#7 SignedData,
as used for certificate chain distribution (.p7b).

Examples:
  derpki bundle --out chain.p7b server.crt ca.crt
  derpki bundle --der --out chain.p7c server.crt ca.crt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBundle,
}

var (
	bundleOutput string
	bundleDER    bool
)

func init() {
	flags := bundleCmd.Flags()
	flags.StringVarP(&bundleOutput, "out", "o", "", "Output file (required)")
	flags.BoolVar(&bundleDER, "der", false, "Write binary DER instead of PEM")
	_ = bundleCmd.MarkFlagRequired("out")
}

func runBundle(cmd *cobra.Command, args []string) error {
	certs := make([]*cert.Certificate, 0, len(args))
	for _, path := range args {
		c, err := ca.LoadCertificate(path)
		if err != nil {
			return err
		}
		certs = append(certs, c)
	}
	b, err := inspect.EncodeBundle(certs)
	if err != nil {
		return err
	}

	if bundleDER {
		err = os.WriteFile(bundleOutput, b, 0644)
	} else {
		err = cli.WritePEMFile(bundleOutput, pemutil.LabelPKCS7, b)
	}
	if err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Bundle written: %s (%d certificates)\n", bundleOutput, len(certs))
	fmt.Fprint(out, cli.RenderBundle(certs))
	return nil
}
