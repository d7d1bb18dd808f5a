package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const migrationsTestPrefix = "db:migrations_test"

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("%s - write %s: %v", migrationsTestPrefix, name, err)
		}
	}
}

func TestLoadMigrationFiles(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  []string
	}{
		{
			name:  "sorted by file name",
			files: map[string]string{"0003_c.sql": "THIRD", "0001_a.sql": "FIRST", "0002_b.sql": "SECOND"},
			want:  []string{"FIRST", "SECOND", "THIRD"},
		},
		{
			name:  "non sql files skipped",
			files: map[string]string{"0001_a.sql": "A", "README.md": "# notes", "seed.json": "{}"},
			want:  []string{"A"},
		},
		{
			name:  "empty dir",
			files: map[string]string{},
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files)

			got, err := LoadMigrationFiles(dir)
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("%s - got %v, want %v", migrationsTestPrefix, got, tt.want)
			}
		})
	}
}

func TestLoadMigrationFiles_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "nested.sql"), 0o755); err != nil {
		t.Fatalf("%s - mkdir: %v", migrationsTestPrefix, err)
	}
	writeFiles(t, dir, map[string]string{"0001_a.sql": "A"})

	got, err := LoadMigrationFiles(dir)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(got) != 1 {
		t.Errorf("%s - expected 1 migration, got %d", migrationsTestPrefix, len(got))
	}
}

func TestLoadMigrationFiles_NonExistentDir(t *testing.T) {
	if _, err := LoadMigrationFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Errorf("%s - expected error for missing directory", migrationsTestPrefix)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := EmbeddedMigrations()
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(got) == 0 || !strings.Contains(got[0], "CREATE TABLE IF NOT EXISTS action_invocations") {
		t.Errorf("%s - first embedded migration should create action_invocations", migrationsTestPrefix)
	}
}

func TestResolveMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"0001_local.sql": "LOCAL"})

	got, err := ResolveMigrations(dir)
	if err != nil || len(got) != 1 || got[0] != "LOCAL" {
		t.Errorf("%s - directory migrations: got %v, %v", migrationsTestPrefix, got, err)
	}

	embedded, _ := EmbeddedMigrations()
	for _, path := range []string{"", filepath.Join(dir, "missing")} {
		got, err := ResolveMigrations(path)
		if err != nil || len(got) != len(embedded) {
			t.Errorf("%s - ResolveMigrations(%q) should fall back to embedded: got %d, %v", migrationsTestPrefix, path, len(got), err)
		}
	}
}

func TestStatusString(t *testing.T) {
	if got := (Status{Applied: true, Available: 1}).String(); !strings.HasPrefix(got, "applied") {
		t.Errorf("%s - applied status = %q", migrationsTestPrefix, got)
	}
	if got := (Status{Available: 2}).String(); got != "not applied (2 migrations available)" {
		t.Errorf("%s - pending status = %q", migrationsTestPrefix, got)
	}
}
