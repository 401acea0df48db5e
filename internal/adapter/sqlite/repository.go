package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"github.com/cwygoda/sts/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout keeps lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

// Repository implements domain.RunRepository using SQLite.
type Repository struct {
	db *sql.DB
}

// New opens the database at dbPath, creating it and applying migrations as
// needed.
func New(dbPath string) (*Repository, error) {
	registerHook()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save stores a finished run and its failures. Saving the same id twice
// replaces the earlier record.
func (r *Repository) Save(ctx context.Context, run domain.RunSummary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, direction, source_dir, target_dir, total, succeeded, failed, incomplete, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Direction), run.SourceDir, run.TargetDir,
		run.Total, run.Succeeded, run.Failed, run.Incomplete,
		formatTime(run.StartedAt), nullTime(run.FinishedAt),
	)
	if err != nil {
		return err
	}

	for i, f := range run.Failures {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_failures (run_id, seq, path, flags) VALUES (?, ?, ?, ?)`,
			run.ID, i, f.Path, int(f.Flags),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Get returns one run with its failures in recorded order.
func (r *Repository) Get(ctx context.Context, id string) (*domain.RunSummary, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, direction, source_dir, target_dir, total, succeeded, failed, incomplete, started_at, finished_at
		 FROM runs WHERE id = ?`, id,
	)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT path, flags FROM run_failures WHERE run_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.Failure
		var flags int
		if err := rows.Scan(&f.Path, &flags); err != nil {
			return nil, err
		}
		f.Flags = domain.ErrorFlags(flags)
		run.Failures = append(run.Failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns up to limit runs, newest first. Failures are not loaded.
func (r *Repository) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, direction, source_dir, target_dir, total, succeeded, failed, incomplete, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.RunSummary, error) {
	var run domain.RunSummary
	var direction, startedAt string
	var finishedAt sql.NullString
	err := row.Scan(
		&run.ID, &direction, &run.SourceDir, &run.TargetDir,
		&run.Total, &run.Succeeded, &run.Failed, &run.Incomplete,
		&startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	run.Direction = domain.Direction(direction)
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("run %s: started_at: %w", run.ID, err)
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = time.Parse(timeLayout, finishedAt.String); err != nil {
			return nil, fmt.Errorf("run %s: finished_at: %w", run.ID, err)
		}
	}
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

var _ domain.RunRepository = (*Repository)(nil)
