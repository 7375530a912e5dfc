package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a redbiom.yaml pointing the KV store at a
// throwaway on-disk SQLite file under t.TempDir(), letting cobra
// command tests exercise the real appFromCmd wiring (including a fresh
// kv.Open per invocation, matching one-command-per-process usage)
// while still sharing state across multiple commands run against the
// same config, the way a user's shell session would.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "redbiom.yaml")
	dbPath := filepath.Join(dir, "redbiom.db")
	contents := "kv:\n  path: " + dbPath + "\n"
	if err := os.WriteFile(cfgPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return cfgPath
}

func TestCreateContextCmd(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := NewCreateContextCmd()
	cmd.Flags().String("config", "", "")
	cmd.Flags().Set("config", cfgPath)
	cmd.Flags().Set("description", "a test context")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ctx1"})
	cmd.SetContext(context.Background())

	if err := cmd.RunE(cmd, []string{"ctx1"}); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if !strings.Contains(out.String(), `created context "ctx1"`) {
		t.Fatalf("unexpected output: %q", out.String())
	}
}
