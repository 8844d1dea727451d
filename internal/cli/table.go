package cli

import (
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/remiblancher/derpki/internal/cert"
	"github.com/remiblancher/derpki/internal/inspect"
	"github.com/remiblancher/derpki/internal/oid"
)

// RenderFields renders summary fields as a two-column table.
func RenderFields(fields []inspect.Field) string {
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []string{f.Name, f.Value})
	}
	return render([]string{"Field", "Value"}, rows)
}

// RenderOIDs renders registry entries.
func RenderOIDs(entries []oid.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.OID, e.Name})
	}
	return render([]string{"OID", "Name"}, rows)
}

// RenderBundle renders one row per certificate of a chain or bundle.
func RenderBundle(certs []*cert.Certificate) string {
	rows := make([][]string, 0, len(certs))
	for i, c := range certs {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			c.Subject().String(),
			c.Issuer().String(),
			c.NotAfter().UTC().Format("2006-01-02"),
			c.PublicKeyInfo().Algorithm.Name(),
		})
	}
	return render([]string{"#", "Subject", "Issuer", "Valid Until", "Key"}, rows)
}

func render(headers []string, rows [][]string) string {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf)
	table.Header(headers)
	table.Bulk(rows)
	table.Render()
	return buf.String()
}
