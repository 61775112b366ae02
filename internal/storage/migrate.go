package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationStatus represents the status of migrations.
type MigrationStatus struct {
	UpToDate bool
	Applied  []string
	Pending  []string
	Total    int
}

// Migrator applies the embedded schema migrations. Files ending in
// _sqlite.sql replace their base migration on SQLite and are ignored on
// PostgreSQL.
type Migrator struct {
	db     *sql.DB
	driver string
	files  fs.FS
}

func NewMigrator(db *sql.DB, driver string) *Migrator {
	return &Migrator{db: db, driver: driver, files: migrationFS}
}

// Status lists applied and pending migrations.
func (m *Migrator) Status(ctx context.Context) (*MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	all, err := m.list()
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}

	status := &MigrationStatus{Total: len(all)}
	for _, version := range all {
		if applied[version] {
			status.Applied = append(status.Applied, version)
		} else {
			status.Pending = append(status.Pending, version)
		}
	}
	status.UpToDate = len(status.Pending) == 0
	return status, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns the versions applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	for _, version := range status.Pending {
		if err := m.apply(ctx, version); err != nil {
			return nil, fmt.Errorf("run migration %s: %w", version, err)
		}
	}
	return status.Pending, nil
}

func (m *Migrator) apply(ctx context.Context, version string) error {
	body, err := fs.ReadFile(m.files, "migrations/"+m.fileFor(version))
	if err != nil {
		return err
	}

	return WithTx(ctx, m.db, func(tx DB) error {
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
		return err
	})
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

// list returns the migration versions (file names without the driver
// suffix and extension) in order.
func (m *Migrator) list() ([]string, error) {
	entries, err := fs.ReadDir(m.files, "migrations")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if base, ok := strings.CutSuffix(name, "_sqlite.sql"); ok {
			if m.driver == DriverSQLite {
				seen[base] = true
			}
			continue
		}
		seen[strings.TrimSuffix(name, ".sql")] = true
	}

	versions := make([]string, 0, len(seen))
	for v := range seen {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

func (m *Migrator) fileFor(version string) string {
	if m.driver == DriverSQLite {
		if _, err := fs.Stat(m.files, "migrations/"+version+"_sqlite.sql"); err == nil {
			return version + "_sqlite.sql"
		}
	}
	return version + ".sql"
}
