package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/derpki/internal/cli"
	"github.com/remiblancher/derpki/internal/oid"
)

var oidCmd = &cobra.Command{
	Use:   "oid",
	Short: "Query the object identifier registry",
}

var oidListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known object identifiers",
	Long: `List the object identifiers known to derpki, ordered by arc.

Examples:
  derpki oid list
  derpki oid list --filter ecdsa`,
	Args: cobra.NoArgs,
	RunE: runOIDList,
}

var oidLookupCmd = &cobra.Command{
	Use:   "lookup NAME|OID",
	Short: "Resolve a name to its OID or an OID to its name",
	Long: `Resolve a registry name to its dotted OID, or a dotted OID to its name.

Examples:
  derpki oid lookup subjectAltName
  derpki oid lookup 1.2.840.10045.4.3.2`,
	Args: cobra.ExactArgs(1),
	RunE: runOIDLookup,
}

var oidFilter string

func init() {
	oidCmd.AddCommand(oidListCmd)
	oidCmd.AddCommand(oidLookupCmd)

	oidListCmd.Flags().StringVar(&oidFilter, "filter", "", "Only list entries whose name or OID contains this text")
}

func runOIDList(cmd *cobra.Command, args []string) error {
	entries := oid.All()
	if oidFilter != "" {
		needle := strings.ToLower(oidFilter)
		kept := entries[:0]
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Name), needle) || strings.Contains(e.OID, needle) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if len(entries) == 0 {
		return fmt.Errorf("no OID matches %q", oidFilter)
	}
	fmt.Fprint(cmd.OutOrStdout(), cli.RenderOIDs(entries))
	return nil
}

func runOIDLookup(cmd *cobra.Command, args []string) error {
	dotted, ok := oid.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown OID or name: %s", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", dotted, oid.Name(dotted))
	return nil
}
