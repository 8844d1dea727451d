package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// executeCommand executes a Cobra command with the given args and returns output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}

// clearChanged forgets which flags of cmd were set by an earlier Execute.
func clearChanged(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
}

// resetGlobalFlags resets the root persistent flags.
func resetGlobalFlags() {
	auditLogPath = ""
	logFormat = ""
	logLevel = ""
	clearChanged(rootCmd)
}

// testContext holds test resources.
type testContext struct {
	t       *testing.T
	tempDir string
}

// newTestContext creates a new test context with a temp directory.
func newTestContext(t *testing.T) *testContext {
	t.Helper()
	resetGlobalFlags()
	return &testContext{t: t, tempDir: t.TempDir()}
}

// path returns a path within the temp directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile writes content to a file in the temp directory.
func (tc *testContext) writeFile(name string, content []byte) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		tc.t.Fatalf("Failed to write file %s: %v", name, err)
	}
	return path
}

// initCA creates a CA directory with an ECDSA P-256 key.
func (tc *testContext) initCA(subject string) string {
	tc.t.Helper()
	resetCAFlags()
	dir := tc.path("ca")
	_, err := executeCommand(rootCmd, "ca", "init",
		"--dir", dir,
		"--subject", subject,
		"--algorithm", "ecdsa-p256",
	)
	assertNoError(tc.t, err)
	return dir
}

// genKey generates an unencrypted key.
func (tc *testContext) genKey(name, algorithm string) string {
	tc.t.Helper()
	resetKeyFlags()
	path := tc.path(name)
	_, err := executeCommand(rootCmd, "key", "gen", "--algorithm", algorithm, "--out", path)
	assertNoError(tc.t, err)
	return path
}

// createCSR creates a request for cn with one DNS name.
func (tc *testContext) createCSR(keyPath, cn string) string {
	tc.t.Helper()
	resetCSRFlags()
	path := tc.path(cn + ".csr")
	_, err := executeCommand(rootCmd, "csr", "create",
		"--key", keyPath,
		"--subject", "CN="+cn,
		"--dns", cn,
		"--out", path,
	)
	assertNoError(tc.t, err)
	return path
}

// issueCert issues a certificate for csrPath from the CA directory.
func (tc *testContext) issueCert(caDir, csrPath, profile, name string) string {
	tc.t.Helper()
	resetIssueFlags()
	path := tc.path(name)
	_, err := executeCommand(rootCmd, "issue",
		"--ca-dir", caDir,
		"--csr", csrPath,
		"--profile", profile,
		"--out", path,
	)
	assertNoError(tc.t, err)
	return path
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("expected file to exist: %s", path)
	}
}

func assertFileNotEmpty(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("failed to stat file %s: %v", path, err)
		return
	}
	if info.Size() == 0 {
		t.Errorf("expected file to be non-empty: %s", path)
	}
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Error("expected error, got nil")
	}
}
