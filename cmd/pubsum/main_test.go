package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/pubsum/internal/catalog"
	"github.com/JonMunkholm/pubsum/internal/xlsx"
)

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	table := catalog.NewTable(
		[]string{catalog.ColumnTitle, catalog.ColumnAuthor, catalog.ColumnYear, catalog.ColumnType},
		[]catalog.Record{
			{"title": "Deep Learning", "author": "Smith", "year": int64(2020), "type": "journal"},
			{"title": "Graph Theory", "author": "Jones", "year": int64(2019), "type": "conference"},
		},
	)
	path := filepath.Join(dir, "publications.xlsx")
	if err := (xlsx.Writer{}).Write(path, "Sheet1", table); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_RunsMenu(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir)
	outDir := filepath.Join(dir, "exports")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "1\nlearning\n7\n", "--file", src, "--out", outDir)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "Found 1 matching publication(s)") {
		t.Errorf("output = %q", out)
	}

	exported, err := xlsx.Loader{}.Load(filepath.Join(outDir, "Filtered_By_Title.xlsx"))
	if err != nil {
		t.Fatalf("load export: %v", err)
	}
	if exported.Len() != 1 || exported.Value(0, catalog.ColumnTitle) != "Deep Learning" {
		t.Errorf("exported table has %d rows", exported.Len())
	}
}

func TestRootCmd_MissingSource(t *testing.T) {
	_, err := execute(t, "", "--file", filepath.Join(t.TempDir(), "missing.xlsx"))
	if err == nil {
		t.Fatal("Execute() expected error for a missing source file")
	}
	if !strings.Contains(err.Error(), "FILE001") {
		t.Errorf("error = %v, want FILE001", err)
	}
}

func TestRootCmd_UnsupportedType(t *testing.T) {
	_, err := execute(t, "", "--type", "csv")
	if err == nil || !strings.Contains(err.Error(), "CAT001") {
		t.Fatalf("Execute() error = %v, want CAT001", err)
	}
}

func TestRootCmd_BibTeXRunsWithEmptyTable(t *testing.T) {
	out, err := execute(t, "6\n7\n", "--type", "bibtex", "--out", t.TempDir())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "Code: COL001") {
		t.Errorf("output = %q, want missing column error", out)
	}
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	t.Setenv("PUBSUM_SOURCE_PATH", "env.xlsx")
	t.Setenv("PUBSUM_OUTPUT_DIR", "env-out")

	cfg, err := loadConfig(&flags{
		file:      "flag.xlsx",
		sheet:     "2024",
		outputDir: "flag-out",
		envFiles:  []string{filepath.Join(t.TempDir(), "none.env")},
	})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Source.Path != "flag.xlsx" || cfg.Source.Sheet != "2024" || cfg.Source.OutputDir != "flag-out" {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Source.Type != "excel" {
		t.Errorf("Source.Type = %q, want default excel", cfg.Source.Type)
	}
}
