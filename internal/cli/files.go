package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/remiblancher/derpki/internal/pemutil"
)

// ReadInput reads path, or standard input when path is "-".
func ReadInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// WritePEMFile writes der as a single PEM block, creating parent
// directories as needed.
func WritePEMFile(path, label string, der []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, pemutil.Encode(label, der), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadDER reads path and returns the DER of its first PEM block with the
// given label, or the bytes unchanged when the file is binary.
func ReadDER(path, label string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	b, _, err := pemutil.ToDER(data, label)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
