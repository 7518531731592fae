// Package journal keeps a local SQLite ledger of completed sync runs. The
// engine itself persists nothing; the CLI appends a record after each run
// so operators can review history without trawling logs.
package journal

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rcmelo/snkbridge/internal/hierarchy"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Journal wraps the ledger database.
type Journal struct {
	db   *sql.DB
	path string
}

// Record is one persisted run summary.
type Record struct {
	ID     string `json:"id" yaml:"id"`
	Entity string `json:"entity" yaml:"entity"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Total   int `json:"total" yaml:"total"`
	Created int `json:"created" yaml:"created"`
	Updated int `json:"updated" yaml:"updated"`
	Errors  int `json:"errors" yaml:"errors"`

	ParentsLinked int `json:"parents_linked" yaml:"parents_linked"`
	RunOrphans    int `json:"run_orphans" yaml:"run_orphans"`
	CycleSkips    int `json:"cycle_skips" yaml:"cycle_skips"`
	LinkErrors    int `json:"link_errors" yaml:"link_errors"`

	SelfRefs      int `json:"self_refs" yaml:"self_refs"`
	SourceOrphans int `json:"source_orphans" yaml:"source_orphans"`
	Cycles        int `json:"cycles" yaml:"cycles"`
}

// FromReport builds a Record with a fresh run id.
func FromReport(r *hierarchy.Report) Record {
	return Record{
		ID:            uuid.NewString(),
		Entity:        r.Entity,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		Total:         r.Total,
		Created:       r.Created,
		Updated:       r.Updated,
		Errors:        r.Errors,
		ParentsLinked: r.ParentsLinked,
		RunOrphans:    r.RunOrphans,
		CycleSkips:    r.CycleSkips,
		LinkErrors:    r.LinkErrors,
		SelfRefs:      r.SelfRefs,
		SourceOrphans: r.SourceOrphans,
		Cycles:        r.Cycles,
	}
}

// Open opens (creating if needed) the ledger at path and applies pending
// migrations.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: apply pragma %q: %w", pragma, err)
		}
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the ledger file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("journal: read migrations: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrations = append(migrations, entry.Name())
		}
	}
	sort.Strings(migrations)

	_, err = j.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("journal: create schema_migrations: %w", err)
	}

	for _, migration := range migrations {
		var count int
		if err := j.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", migration).Scan(&count); err != nil {
			return fmt.Errorf("journal: check migration %s: %w", migration, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(filepath.Join("migrations", migration))
		if err != nil {
			return fmt.Errorf("journal: read migration %s: %w", migration, err)
		}

		tx, err := j.db.Begin()
		if err != nil {
			return fmt.Errorf("journal: begin transaction for %s: %w", migration, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("journal: execute migration %s: %w", migration, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("journal: record migration %s: %w", migration, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("journal: commit migration %s: %w", migration, err)
		}
	}
	return nil
}

// Append persists one run record.
func (j *Journal) Append(rec Record) error {
	_, err := j.db.Exec(`
		INSERT INTO runs (
			id, entity, started_at, finished_at,
			total, created, updated, errors,
			parents_linked, run_orphans, cycle_skips, link_errors,
			self_refs, source_orphans, cycles
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Entity,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.UTC().Format(time.RFC3339),
		rec.Total, rec.Created, rec.Updated, rec.Errors,
		rec.ParentsLinked, rec.RunOrphans, rec.CycleSkips, rec.LinkErrors,
		rec.SelfRefs, rec.SourceOrphans, rec.Cycles,
	)
	if err != nil {
		return fmt.Errorf("journal: append run %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the most recent runs, newest first. An empty entity matches
// all entities; a limit of 0 means no limit.
func (j *Journal) List(entity string, limit int) ([]Record, error) {
	query := `
		SELECT id, entity, started_at, finished_at,
		       total, created, updated, errors,
		       parents_linked, run_orphans, cycle_skips, link_errors,
		       self_refs, source_orphans, cycles
		  FROM runs`
	var args []any
	if entity != "" {
		query += " WHERE entity = ?"
		args = append(args, entity)
	}
	query += " ORDER BY started_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var started, finished string
		err := rows.Scan(
			&rec.ID, &rec.Entity, &started, &finished,
			&rec.Total, &rec.Created, &rec.Updated, &rec.Errors,
			&rec.ParentsLinked, &rec.RunOrphans, &rec.CycleSkips, &rec.LinkErrors,
			&rec.SelfRefs, &rec.SourceOrphans, &rec.Cycles,
		)
		if err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate runs: %w", err)
	}
	return records, nil
}
