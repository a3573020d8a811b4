package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// migration is one embedded schema step. Files are named NNNN_label.sql and
// applied in ascending numeric order.
type migration struct {
	version int
	name    string
	stmts   string
}

func load() ([]migration, error) {
	entries, err := fs.ReadDir(schemaFS, "sql")
	if err != nil {
		return nil, err
	}
	seen := map[int]string{}
	var steps []migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migrate: %s has no version prefix", name)
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migrate: %s has no version prefix", name)
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migrate: version %d claimed by both %s and %s", v, prev, name)
		}
		seen[v] = name
		data, err := schemaFS.ReadFile("sql/" + name)
		if err != nil {
			return nil, err
		}
		steps = append(steps, migration{version: v, name: name, stmts: string(data)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func currentVersion(q queryer) (int, error) {
	if _, err := q.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("migrate: ensure schema_version: %w", err)
	}
	var v int
	err := q.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	if err == sql.ErrNoRows {
		if _, err := q.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return 0, fmt.Errorf("migrate: seed schema_version: %w", err)
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("migrate: read schema_version: %w", err)
	}
	return v, nil
}

// Version reports the applied schema version, 0 for a fresh database.
func Version(db *sql.DB) (int, error) {
	return currentVersion(db)
}

// Migrate brings the schema up to the newest embedded version. All pending
// steps run inside one transaction, so a failed step leaves the schema where
// it was.
func Migrate(db *sql.DB) error {
	steps, err := load()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	applied, err := currentVersion(tx)
	if err != nil {
		return err
	}
	for _, m := range steps {
		if m.version <= applied {
			continue
		}
		if _, err := tx.Exec(m.stmts); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, m.version); err != nil {
			return fmt.Errorf("migrate: record %s: %w", m.name, err)
		}
		applied = m.version
	}
	return tx.Commit()
}
