package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/repositories"
)

//go:embed schema.sql
var schemaSQL string

const timeLayout = time.RFC3339Nano

// Store persists jobs and result blobs in SQLite or Postgres
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

var (
	_ repositories.JobRepository    = (*Store)(nil)
	_ repositories.ResultRepository = (*Store)(nil)
)

// Open connects to the database and applies the schema. driver is "sqlite3" or "postgres".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		// single writer avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, driver: driver, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema executes the embedded script one statement at a time
func applySchema(db *sql.DB) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var stmts []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// rebind rewrites ? placeholders to $n for postgres
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateJob inserts a new job
func (s *Store) CreateJob(ctx context.Context, job repositories.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id cannot be empty")
	}
	now := s.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO jobs (id, clinic, status, result_key, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.Clinic, string(job.Status), job.ResultKey, job.Error,
		job.CreatedAt.UTC().Format(timeLayout), job.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateJob overwrites the mutable fields of an existing job
func (s *Store) UpdateJob(ctx context.Context, job repositories.Job) error {
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE jobs SET status = ?, result_key = ?, error = ?, updated_at = ?
		WHERE id = ?`),
		string(job.Status), job.ResultKey, job.Error, job.UpdatedAt.UTC().Format(timeLayout), job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", entities.ErrJobNotFound, job.ID)
	}
	return nil
}

// GetJob loads a job by id
func (s *Store) GetJob(ctx context.Context, id string) (repositories.Job, error) {
	var (
		job                  repositories.Job
		status               string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, clinic, status, result_key, error, created_at, updated_at
		FROM jobs WHERE id = ?`), id,
	).Scan(&job.ID, &job.Clinic, &status, &job.ResultKey, &job.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return repositories.Job{}, fmt.Errorf("%w: %s", entities.ErrJobNotFound, id)
	}
	if err != nil {
		return repositories.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}

	job.Status = repositories.JobStatus(status)
	if job.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return repositories.Job{}, fmt.Errorf("job %s created_at: %w", id, err)
	}
	if job.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return repositories.Job{}, fmt.Errorf("job %s updated_at: %w", id, err)
	}
	return job, nil
}

// SaveResult stores blob under key, replacing any previous value
func (s *Store) SaveResult(ctx context.Context, key string, blob []byte) error {
	if key == "" {
		return fmt.Errorf("result key cannot be empty")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO results (result_key, body, stored_at) VALUES (?, ?, ?)
		ON CONFLICT (result_key) DO UPDATE SET body = excluded.body, stored_at = excluded.stored_at`),
		key, string(blob), s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save result %s: %w", key, err)
	}
	return nil
}

// LoadResult returns the blob stored under key
func (s *Store) LoadResult(ctx context.Context, key string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT body FROM results WHERE result_key = ?`), key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", entities.ErrResultNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load result %s: %w", key, err)
	}
	return []byte(body), nil
}
