package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/remiblancher/derpki/internal/api/dto"
	"github.com/remiblancher/derpki/internal/cli"
	"github.com/remiblancher/derpki/internal/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Inspect a PEM or DER file",
	Long: `Decode a PEM or DER file and describe its contents.

The structure is detected: certificates, certification requests, PKCS#7
certificate bundles and PKCS#12 key stores are recognized. Anything else is
shown as a generic DER tree. Use "-" to read from stdin.

Output formats:
  text   - summary fields (default)
  tree   - indented DER node tree
  table  - summary fields as a table
  json   - summary and node tree as JSON
  cbor   - summary and node tree as CBOR

Examples:
  derpki inspect server.crt
  derpki inspect --format tree server.csr
  derpki inspect --p12 store.p12
  cat chain.pem | derpki inspect --format json -`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var (
	inspectFormat string
	inspectPKCS12 bool
)

func init() {
	flags := inspectCmd.Flags()
	flags.StringVarP(&inspectFormat, "format", "f", "text", "Output format: text, tree, table, json, cbor")
	flags.BoolVar(&inspectPKCS12, "p12", false, "Decode the input as a PKCS#12 PFX")
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := cli.ReadInput(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	var docs []inspect.Document
	if inspectPKCS12 {
		d, err := inspect.DecodePKCS12(data)
		if err != nil {
			return err
		}
		docs = []inspect.Document{d}
	} else if docs, err = inspect.Decode(data); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch inspectFormat {
	case "text":
		return eachDocument(out, docs, func(d inspect.Document) error { return d.WriteText(out) })
	case "tree":
		return eachDocument(out, docs, func(d inspect.Document) error { return d.WriteTree(out) })
	case "table":
		return eachDocument(out, docs, func(d inspect.Document) error {
			fmt.Fprintln(out, d.Title())
			if d.Kind == inspect.KindPKCS7 {
				_, err := io.WriteString(out, cli.RenderBundle(d.Bundle))
				return err
			}
			_, err := io.WriteString(out, cli.RenderFields(d.Summary()))
			return err
		})
	case "json", "cbor":
		resp := make([]dto.InspectDocument, 0, len(docs))
		for _, d := range docs {
			resp = append(resp, dto.NewInspectDocument(d, true))
		}
		if inspectFormat == "cbor" {
			b, err := cbor.Marshal(resp)
			if err != nil {
				return err
			}
			_, err = out.Write(b)
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		return fmt.Errorf("unknown format %q (want text, tree, table, json or cbor)", inspectFormat)
	}
}

func eachDocument(w io.Writer, docs []inspect.Document, fn func(inspect.Document) error) error {
	for i, d := range docs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
