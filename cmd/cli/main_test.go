package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickyhof/DuckDesk"
)

func setupTestCLI(t *testing.T) (*CLI, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	instance, err := DuckDesk.Open(DuckDesk.Options{
		StorageDir:        filepath.Join(dir, "databases"),
		UploadDir:         filepath.Join(dir, "uploads"),
		DefaultDatabase:   "default",
		AllowLocalImports: true,
	})
	if err != nil {
		t.Fatalf("Failed to open instance: %v", err)
	}
	t.Cleanup(func() { instance.Close() })

	var out bytes.Buffer
	return NewCLI(instance, &out, filepath.Join(dir, "history")), &out
}

func TestCLIRunMultiLineStatement(t *testing.T) {
	cli, out := setupTestCLI(t)

	input := "CREATE TABLE t (id INTEGER);\nINSERT INTO t VALUES (1), (2);\nSELECT id\nFROM t\nORDER BY id;\n.quit\n"
	cli.Run(context.Background(), strings.NewReader(input))

	output := out.String()
	if !strings.Contains(output, "2 rows") {
		t.Errorf("Expected '2 rows' in output, got:\n%s", output)
	}
	if !strings.Contains(output, "...>") {
		t.Error("Expected continuation prompt for multi-line statement")
	}
	if !strings.Contains(output, "Goodbye!") {
		t.Error("Expected goodbye on .quit")
	}
	if len(cli.history) != 3 {
		t.Errorf("Expected 3 history entries, got %d", len(cli.history))
	}
}

func TestCLIRunReportsErrors(t *testing.T) {
	cli, out := setupTestCLI(t)

	cli.Run(context.Background(), strings.NewReader("SELECT * FROM missing;\n"))

	if !strings.Contains(out.String(), "✗ Error:") {
		t.Errorf("Expected error output, got:\n%s", out.String())
	}
}

func TestCLIRunNoResults(t *testing.T) {
	cli, out := setupTestCLI(t)

	cli.Run(context.Background(), strings.NewReader("CREATE TABLE t (id INTEGER);\n"))

	if !strings.Contains(out.String(), "no results") {
		t.Errorf("Expected no-results message, got:\n%s", out.String())
	}
}

func TestCLIAddToHistory(t *testing.T) {
	cli, _ := setupTestCLI(t)

	cli.addToHistory("SELECT 1;")
	cli.addToHistory("SELECT 1;")
	cli.addToHistory("SELECT 2;")

	if len(cli.history) != 2 {
		t.Errorf("Expected 2 history entries (no consecutive duplicates), got %d", len(cli.history))
	}
}

func TestCLIHistoryLimit(t *testing.T) {
	cli, _ := setupTestCLI(t)

	for i := 0; i < maxHistory+50; i++ {
		cli.addToHistory(strings.Repeat("x", i%7+1) + string(rune('a'+i%26)))
	}

	if len(cli.history) > maxHistory {
		t.Errorf("History exceeds limit: %d", len(cli.history))
	}
}

func TestCLIHistoryPersistence(t *testing.T) {
	cli, _ := setupTestCLI(t)

	cli.addToHistory("SELECT 1;")
	cli.addToHistory("SELECT\n2;")
	cli.saveHistory()

	restored := &CLI{historyFile: cli.historyFile}
	restored.loadHistory()

	if len(restored.history) != 2 || restored.history[1] != "SELECT 2;" {
		t.Errorf("Unexpected restored history: %q", restored.history)
	}
}

func TestCLIGetPrompt(t *testing.T) {
	cli, _ := setupTestCLI(t)

	if prompt := cli.prompt(false); !strings.Contains(prompt, "duckdesk (default)>") {
		t.Errorf("Expected default database in prompt, got %q", prompt)
	}

	cli.database = "sales"
	if prompt := cli.prompt(false); !strings.Contains(prompt, "duckdesk (sales)>") {
		t.Errorf("Expected sales in prompt, got %q", prompt)
	}

	if prompt := cli.prompt(true); !strings.Contains(prompt, "...>") {
		t.Errorf("Expected continuation prompt, got %q", prompt)
	}
}

func TestCLIHandleCommand(t *testing.T) {
	cli, out := setupTestCLI(t)
	ctx := context.Background()

	for _, command := range []string{".help", ".version", ".history", ".databases", ".attached", ".schema"} {
		if cli.handleCommand(ctx, command) {
			t.Errorf("%s should not quit", command)
		}
	}

	for _, command := range []string{".quit", ".exit", ".q"} {
		if !cli.handleCommand(ctx, command) {
			t.Errorf("%s should quit", command)
		}
	}

	out.Reset()
	cli.handleCommand(ctx, ".bogus")
	if !strings.Contains(out.String(), "Unknown command") {
		t.Errorf("Expected unknown command message, got %q", out.String())
	}
}

func TestCLIUseDatabase(t *testing.T) {
	cli, out := setupTestCLI(t)
	ctx := context.Background()

	cli.handleCommand(ctx, ".use Sales")
	if cli.database != "sales" {
		t.Errorf("Expected database 'sales', got %q", cli.database)
	}

	out.Reset()
	cli.handleCommand(ctx, ".use bad-name")
	if cli.database != "sales" {
		t.Errorf("Invalid name should not switch database, got %q", cli.database)
	}
	if !strings.Contains(out.String(), "Error") {
		t.Errorf("Expected error for invalid name, got %q", out.String())
	}

	out.Reset()
	cli.handleCommand(ctx, ".databases")
	if !strings.Contains(out.String(), "sales") {
		t.Errorf("Expected sales in database listing, got:\n%s", out.String())
	}
}

func TestCLIAttachedAndClose(t *testing.T) {
	cli, out := setupTestCLI(t)
	ctx := context.Background()
	dir := t.TempDir()
	other := filepath.Join(dir, "other.db")

	cli.execute(ctx, "ATTACH '"+other+"' AS other")
	out.Reset()
	cli.handleCommand(ctx, ".attached")
	if !strings.Contains(out.String(), "other") {
		t.Errorf("Expected other in attachments, got %q", out.String())
	}

	cli.handleCommand(ctx, ".close")
	if cli.instance.Registry.Active("default") {
		t.Error("Expected default handle to be closed")
	}
}

func TestCLIImportAndSchema(t *testing.T) {
	cli, out := setupTestCLI(t)
	ctx := context.Background()

	csvPath := filepath.Join(t.TempDir(), "people.csv")
	if err := os.WriteFile(csvPath, []byte("id,name\n1,ada\n2,grace\n"), 0o644); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}

	cli.handleCommand(ctx, ".import "+csvPath+" crm.people")
	if !strings.Contains(out.String(), "crm.people (2 rows)") {
		t.Fatalf("Expected import success, got:\n%s", out.String())
	}

	out.Reset()
	cli.handleCommand(ctx, ".schema")
	output := out.String()
	for _, want := range []string{"crm", "people", "name", "VARCHAR"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in schema output, got:\n%s", want, output)
		}
	}

	out.Reset()
	cli.handleCommand(ctx, ".import")
	if !strings.Contains(out.String(), "Usage") {
		t.Errorf("Expected usage message, got %q", out.String())
	}
}

func TestVersionVariable(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"SELECT 1;", 1},
		{"SELECT 1; SELECT 2;", 2},
		{"SELECT 1;\nSELECT 2;\nSELECT 3", 3},
		{"SELECT 'a;b';", 1},
		{"SELECT \"x;y\" FROM t;", 1},
		{"-- comment; here\nSELECT 1;", 1},
		{"", 0},
		{";;", 0},
	}

	for _, tt := range tests {
		got := splitStatements(tt.input)
		if len(got) != tt.want {
			t.Errorf("splitStatements(%q) = %d statements %q, want %d", tt.input, len(got), got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long statement", 10, "this is..."},
		{"SELECT\n  1", 20, "SELECT 1"},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		0:           "0 B",
		512:         "512 B",
		2048:        "2.0 KiB",
		5 * 1 << 20: "5.0 MiB",
	}
	for size, want := range tests {
		if got := formatSize(size); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", size, got, want)
		}
	}
}

func TestReadFile(t *testing.T) {
	cli, out := setupTestCLI(t)

	path := filepath.Join(t.TempDir(), "setup.sql")
	content := "CREATE TABLE t (id INTEGER);\n-- seed\nINSERT INTO t VALUES (1);\nSELECT * FROM nope;\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write SQL file: %v", err)
	}

	if err := cli.readFile(context.Background(), path); err != nil {
		t.Fatalf("readFile failed: %v", err)
	}
	if !strings.Contains(out.String(), "2 succeeded, 1 failed") {
		t.Errorf("Unexpected summary:\n%s", out.String())
	}
}

func TestReadFileNotFound(t *testing.T) {
	cli, _ := setupTestCLI(t)

	if err := cli.readFile(context.Background(), "/nonexistent/file.sql"); err == nil {
		t.Error("Expected error for missing file")
	}
}
