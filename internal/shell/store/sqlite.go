package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/yappa/internal/core/deployment"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeFormat sorts lexicographically in timestamp order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
// The DSN ":memory:" gives a private in-memory ledger.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID           string  `db:"id"`
	Kind         string  `db:"kind"`
	ProjectSlug  string  `db:"project_slug"`
	State        string  `db:"state"`
	CurrentStep  string  `db:"current_step"`
	FunctionID   string  `db:"function_id"`
	VersionID    string  `db:"version_id"`
	GatewayID    string  `db:"gateway_id"`
	Bucket       string  `db:"bucket"`
	ObjectKey    string  `db:"object_key"`
	ErrorMessage string  `db:"error_message"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
	CompletedAt  *string `db:"completed_at"`
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *deployment.Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*deployment.Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *deployment.Run) error {
	return updateRun(ctx, s.db, run)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]deployment.Run, error) {
	return listRuns(ctx, s.db, "", opts)
}

func (s *SQLiteStore) ListRunsByProject(ctx context.Context, slug string, opts ListOptions) ([]deployment.Run, error) {
	return listRuns(ctx, s.db, slug, opts)
}

func (s *SQLiteStore) LatestRun(ctx context.Context, slug string) (*deployment.Run, error) {
	return latestRun(ctx, s.db, slug)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *deployment.Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*deployment.Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateRun(ctx context.Context, run *deployment.Run) error {
	return updateRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]deployment.Run, error) {
	return listRuns(ctx, s.tx, "", opts)
}

func (s *txSQLiteStore) ListRunsByProject(ctx context.Context, slug string, opts ListOptions) ([]deployment.Run, error) {
	return listRuns(ctx, s.tx, slug, opts)
}

func (s *txSQLiteStore) LatestRun(ctx context.Context, slug string) (*deployment.Run, error) {
	return latestRun(ctx, s.tx, slug)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func runToRow(run *deployment.Run) map[string]any {
	var completedAt *string
	if run.CompletedAt != nil {
		t := formatTime(*run.CompletedAt)
		completedAt = &t
	}
	return map[string]any{
		"id":            run.ID,
		"kind":          string(run.Kind),
		"project_slug":  run.ProjectSlug,
		"state":         string(run.State),
		"current_step":  run.CurrentStep,
		"function_id":   run.FunctionID,
		"version_id":    run.VersionID,
		"gateway_id":    run.GatewayID,
		"bucket":        run.Bucket,
		"object_key":    run.ObjectKey,
		"error_message": run.ErrorMessage,
		"created_at":    formatTime(run.CreatedAt),
		"updated_at":    formatTime(run.UpdatedAt),
		"completed_at":  completedAt,
	}
}

func createRun(ctx context.Context, exec executor, run *deployment.Run) error {
	query := `
		INSERT INTO runs (
			id, kind, project_slug, state, current_step,
			function_id, version_id, gateway_id, bucket, object_key,
			error_message, created_at, updated_at, completed_at
		) VALUES (
			:id, :kind, :project_slug, :state, :current_step,
			:function_id, :version_id, :gateway_id, :bucket, :object_key,
			:error_message, :created_at, :updated_at, :completed_at
		)`

	_, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}
	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*deployment.Run, error) {
	query := `SELECT * FROM runs WHERE id = ?`

	var row runRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}
	return rowToRun(&row)
}

func updateRun(ctx context.Context, exec executor, run *deployment.Run) error {
	query := `
		UPDATE runs SET
			state = :state,
			current_step = :current_step,
			function_id = :function_id,
			version_id = :version_id,
			gateway_id = :gateway_id,
			bucket = :bucket,
			object_key = :object_key,
			error_message = :error_message,
			updated_at = :updated_at,
			completed_at = :completed_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("UpdateRun", "run", run.ID, "run not found", ErrNotFound)
	}
	return nil
}

func listRuns(ctx context.Context, exec executor, slug string, opts ListOptions) ([]deployment.Run, error) {
	opts = opts.Normalize()

	var rows []runRow
	var err error
	if slug == "" {
		query := `SELECT * FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
		err = exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	} else {
		query := `SELECT * FROM runs WHERE project_slug = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
		err = exec.SelectContext(ctx, &rows, query, slug, opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListRuns", "run", slug, err.Error(), err)
	}

	runs := make([]deployment.Run, 0, len(rows))
	for i := range rows {
		run, err := rowToRun(&rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func latestRun(ctx context.Context, exec executor, slug string) (*deployment.Run, error) {
	runs, err := listRuns(ctx, exec, slug, ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, NewStoreError("LatestRun", "run", slug, "no runs recorded", ErrNotFound)
	}
	return &runs[0], nil
}

func rowToRun(row *runRow) (*deployment.Run, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid created_at", ErrInvalidData)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid updated_at", ErrInvalidData)
	}

	run := &deployment.Run{
		ID:           row.ID,
		Kind:         deployment.Kind(row.Kind),
		ProjectSlug:  row.ProjectSlug,
		State:        deployment.State(row.State),
		CurrentStep:  row.CurrentStep,
		FunctionID:   row.FunctionID,
		VersionID:    row.VersionID,
		GatewayID:    row.GatewayID,
		Bucket:       row.Bucket,
		ObjectKey:    row.ObjectKey,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}

	if row.CompletedAt != nil {
		completedAt, err := parseTime(*row.CompletedAt)
		if err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "invalid completed_at", ErrInvalidData)
		}
		run.CompletedAt = &completedAt
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}
