package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func newTestCmd(stdin string) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetOut(&bytes.Buffer{})
	return cmd
}

func TestReadIDsFromArgs(t *testing.T) {
	cmd := newTestCmd("")
	ids, err := readIDs(cmd, "", []string{"a", "b"})
	if err != nil {
		t.Fatalf("readIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestReadIDsFromStdin(t *testing.T) {
	cmd := newTestCmd("a\nb\n\nc\n")
	ids, err := readIDs(cmd, "-", nil)
	if err != nil {
		t.Fatalf("readIDs: %v", err)
	}
	if len(ids) != 3 || ids[2] != "c" {
		t.Fatalf("unexpected ids (blank lines should be skipped): %v", ids)
	}
}

func TestReadIDsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ids.txt")
	if err := os.WriteFile(path, []byte("x\ny\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cmd := newTestCmd("")
	ids, err := readIDs(cmd, path, nil)
	if err != nil {
		t.Fatalf("readIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "x" || ids[1] != "y" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestReadIDsRejectsBothSources(t *testing.T) {
	cmd := newTestCmd("")
	if _, err := readIDs(cmd, "-", []string{"a"}); err == nil {
		t.Fatal("expected an error when both --from and args are given")
	}
}

func TestPrintLines(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(&buf)
	printLines(cmd, []string{"one", "two"})
	if buf.String() != "one\ntwo\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
