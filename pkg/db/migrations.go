package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsLogPrefix = "db:migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// readSQL returns the contents of every .sql file in fsys/dir ordered by file name.
func readSQL(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, name, err)
		}
		out = append(out, string(data))
	}
	return out, nil
}

// LoadMigrationFiles reads the .sql files in dir, sorted by name.
func LoadMigrationFiles(dir string) ([]string, error) {
	out, err := readSQL(os.DirFS(dir), ".")
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d migration files from %s", migrationsLogPrefix, len(out), dir))
	return out, nil
}

// EmbeddedMigrations returns the migrations compiled into the binary.
func EmbeddedMigrations() ([]string, error) {
	return readSQL(embeddedMigrations, "migrations")
}

// ResolveMigrations loads from dir when it exists and falls back to the embedded set,
// so a Lambda bundle without a migrations directory can still migrate.
func ResolveMigrations(dir string) ([]string, error) {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return LoadMigrationFiles(dir)
		}
	}
	slog.Info(fmt.Sprintf("%s - Migration dir %q not found, using embedded migrations", migrationsLogPrefix, dir))
	return EmbeddedMigrations()
}

// RunMigrations applies the migrations in order. Every migration is idempotent.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []string) error {
	slog.Info(fmt.Sprintf("%s - Running %d migrations", migrationsLogPrefix, len(migrations)))
	for i, sql := range migrations {
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("%s - migration %d failed: %w", migrationsLogPrefix, i+1, err)
		}
	}
	slog.Info(fmt.Sprintf("%s - Migrations complete", migrationsLogPrefix))
	return nil
}

// Status describes the journal schema of a database.
type Status struct {
	Applied   bool
	Available int
}

func (s Status) String() string {
	if s.Applied {
		return fmt.Sprintf("applied (journal schema present, %d migrations available)", s.Available)
	}
	return fmt.Sprintf("not applied (%d migrations available)", s.Available)
}

// MigrationStatus reports whether the journal table exists and how many migrations
// would be applied from migrationPath.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrationPath string) (Status, error) {
	var st Status
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'action_invocations')`).Scan(&st.Applied)
	if err != nil {
		return st, fmt.Errorf("%s - failed to check schema: %w", migrationsLogPrefix, err)
	}
	files, err := ResolveMigrations(migrationPath)
	if err != nil {
		return st, err
	}
	st.Available = len(files)
	return st, nil
}
