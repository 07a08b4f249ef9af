package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bookforge/internal/api"
	"bookforge/internal/config"
	"bookforge/internal/export"
	"bookforge/internal/store"
	"bookforge/internal/testsupport"
)

func writeTestConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, cfg
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "bookforge", "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}
	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected existing config to be protected")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	path, _ := writeTestConfig(t)
	out, err := runCLI(t, "--config", path, "config", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestBookLifecycleCommands(t *testing.T) {
	path, _ := writeTestConfig(t)

	out, err := runCLI(t, "--config", path, "--json", "book", "create", "Tidal Gardens", "--pages", "30", "--images", "both")
	if err != nil {
		t.Fatalf("book create: %v", err)
	}
	var book store.Book
	if err := json.Unmarshal([]byte(out), &book); err != nil {
		t.Fatalf("decode created book: %v\n%s", err, out)
	}
	if book.Title != "Tidal Gardens" || book.TargetPages != 30 || book.ImagePolicy != store.ImagePolicyBoth {
		t.Fatalf("unexpected book: %+v", book)
	}

	out, err = runCLI(t, "--config", path, "--json", "book", "list")
	if err != nil {
		t.Fatalf("book list: %v", err)
	}
	var list api.BookListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Books) != 1 || list.Books[0].ID != book.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	out, err = runCLI(t, "--config", path, "book", "list")
	if err != nil {
		t.Fatalf("book list table: %v", err)
	}
	if !strings.Contains(out, "Tidal Gardens") || !strings.Contains(out, "French") {
		t.Fatalf("table missing book: %q", out)
	}

	out, err = runCLI(t, "--config", path, "book", "show", book.ID)
	if err != nil {
		t.Fatalf("book show: %v", err)
	}
	if !strings.Contains(out, string(store.StatusOutlinePending)) {
		t.Fatalf("show output missing status: %q", out)
	}

	out, err = runCLI(t, "--config", path, "--json", "progress", book.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	var progress store.Progress
	if err := json.Unmarshal([]byte(out), &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.BookID != book.ID || progress.TotalChapters != 0 {
		t.Fatalf("unexpected progress: %+v", progress)
	}

	if _, err := runCLI(t, "--config", path, "export", book.ID, "--format", "pdf"); err == nil {
		t.Fatal("expected export of a book without chapters to fail")
	}
	if _, err := runCLI(t, "--config", path, "chapter", "generate", book.ID, "zero"); err == nil {
		t.Fatal("expected invalid chapter argument to fail")
	}

	if _, err := runCLI(t, "--config", path, "book", "delete", book.ID); err != nil {
		t.Fatalf("book delete: %v", err)
	}
	if _, err := runCLI(t, "--config", path, "book", "show", book.ID); err == nil {
		t.Fatal("expected deleted book to be missing")
	}
}

func TestStatusCommandReportsProviders(t *testing.T) {
	path, _ := writeTestConfig(t)
	out, err := runCLI(t, "--config", path, "--json", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status localStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.DaemonRunning {
		t.Fatal("daemon should not be running")
	}
	if len(status.Providers) != 4 {
		t.Fatalf("expected 4 providers, got %d", len(status.Providers))
	}
}

func TestReadOutlineForms(t *testing.T) {
	array := `[{"chapter_number": 1, "title": "One", "estimated_pages": 3}]`
	entries, err := readOutline(strings.NewReader(array), "-")
	if err != nil || len(entries) != 1 || entries[0].Title != "One" {
		t.Fatalf("array form: %v %+v", err, entries)
	}

	object := `{"outline": [{"chapter_number": 1, "title": "One"}, {"chapter_number": 2, "title": "Two"}]}`
	path := filepath.Join(t.TempDir(), "outline.json")
	if err := os.WriteFile(path, []byte(object), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err = readOutline(nil, path)
	if err != nil || len(entries) != 2 || entries[1].Title != "Two" {
		t.Fatalf("object form: %v %+v", err, entries)
	}

	if _, err := readOutline(strings.NewReader("not json"), "-"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExportTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artifact := &export.Artifact{FileName: "Book_abcd1234.pdf"}
	dir := t.TempDir()

	tests := []struct {
		name   string
		output string
		path   string
		want   string
	}{
		{"export dir default", "", "", filepath.Join(cfg.Paths.ExportDir, "Book_abcd1234.pdf")},
		{"kept artifact", "", "/kept/Book_abcd1234.pdf", "/kept/Book_abcd1234.pdf"},
		{"directory", dir + string(filepath.Separator), "", filepath.Join(dir, "Book_abcd1234.pdf")},
		{"explicit file", filepath.Join(dir, "mine.pdf"), "", filepath.Join(dir, "mine.pdf")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := *artifact
			a.Path = tc.path
			got, err := exportTarget(&a, tc.output, cfg)
			if err != nil {
				t.Fatalf("exportTarget: %v", err)
			}
			if got != tc.want {
				t.Fatalf("target = %q, want %q", got, tc.want)
			}
		})
	}
}
