// Package cli holds output helpers shared by the derpki commands.
package cli

// ANSI color codes for terminal output.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
)

// FormatStatus returns a colored status string.
func FormatStatus(status string) string {
	switch status {
	case "valid", "success":
		return ColorGreen + status + ColorReset
	case "invalid", "expired", "failure":
		return ColorRed + status + ColorReset
	case "not yet valid":
		return ColorYellow + status + ColorReset
	default:
		return status
	}
}
