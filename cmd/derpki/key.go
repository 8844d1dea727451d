package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remiblancher/derpki/internal/audit"
	pkicrypto "github.com/remiblancher/derpki/internal/crypto"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Key management commands",
	Long:  `Commands for generating cryptographic keys.`,
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a signing key pair",
	Long: `Generate a new signing key pair and save it as a PEM file.

Supported algorithms:
  ecdsa-p256       - ECDSA with P-256 curve (default)
  ecdsa-p384       - ECDSA with P-384 curve
  ed25519          - Ed25519 (EdDSA)
  rsa-2048         - RSA 2048-bit, SHA-256
  rsa-4096         - RSA 4096-bit, SHA-256
  rsa-4096-sha512  - RSA 4096-bit, SHA-512
  ml-dsa-65        - ML-DSA-65 (NIST Level 3)

The passphrase may be given as env:VAR to read it from the environment.

Examples:
  derpki key gen --algorithm ed25519 --out signer.key
  derpki key gen --algorithm ml-dsa-65 --out pqc.key --passphrase env:KEY_PASS`,
	RunE: runKeyGen,
}

var (
	keyGenAlgorithm  string
	keyGenOutput     string
	keyGenPassphrase string
)

func init() {
	keyCmd.AddCommand(keyGenCmd)

	flags := keyGenCmd.Flags()
	flags.StringVarP(&keyGenAlgorithm, "algorithm", "a", string(pkicrypto.AlgECDSAP256), "Key algorithm")
	flags.StringVarP(&keyGenOutput, "out", "o", "", "Output file (required)")
	flags.StringVarP(&keyGenPassphrase, "passphrase", "p", "", "Passphrase for encryption")
	_ = keyGenCmd.MarkFlagRequired("out")
}

func runKeyGen(cmd *cobra.Command, args []string) error {
	alg, err := pkicrypto.ParseAlgorithm(keyGenAlgorithm)
	if err != nil {
		return fmt.Errorf("%w (supported: %s)", err, algorithmList())
	}

	signer, err := pkicrypto.NewKeyProvider().Generate(alg, pkicrypto.KeyStorageConfig{
		KeyPath:    keyGenOutput,
		Passphrase: keyGenPassphrase,
	})
	if err != nil {
		_ = audit.LogKeyGenerated(keyGenOutput, string(alg), false)
		return err
	}
	if err := audit.LogKeyGenerated(keyGenOutput, string(alg), true); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	logger.Debug("key generated", zap.String("algorithm", string(alg)), zap.String("path", keyGenOutput))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Key generated: %s\n", keyGenOutput)
	fmt.Fprintf(out, "  Algorithm: %s\n", signer.Algorithm().Description())
	if keyGenPassphrase != "" {
		fmt.Fprintln(out, "  Encrypted: yes")
	}
	return nil
}

func algorithmList() string {
	algs := pkicrypto.AllAlgorithms()
	names := make([]string, len(algs))
	for i, a := range algs {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
