// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metasim/ogcapi/internal/ogc"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const uniqueViolation = "23505"

// JobStoreConfig controls the Postgres connection pool used for job rows.
type JobStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobStore persists job records in Postgres. Conditional transitions
// are a single UPDATE guarded by a status predicate, so two concurrent
// callers cannot both succeed.
//
// Expected schema:
//
//	CREATE TABLE jobs (
//		job_id     UUID PRIMARY KEY,
//		process_id TEXT NOT NULL,
//		status     TEXT NOT NULL,
//		message    TEXT NOT NULL DEFAULT '',
//		created    TIMESTAMPTZ NOT NULL,
//		started    TIMESTAMPTZ,
//		finished   TIMESTAMPTZ,
//		results    JSONB
//	);
type JobStore struct {
	pool  pgxPool
	table string
}

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool, table: table}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(pool pgxPool, table string) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &JobStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a new job row.
func (s *JobStore) Create(ctx context.Context, job ogc.Job) error {
	query := fmt.Sprintf(`
INSERT INTO %s (job_id, process_id, status, message, created)
VALUES ($1, $2, $3, $4, $5)`, s.table)

	_, err := s.pool.Exec(ctx, query, job.ID, job.ProcessID, string(job.Status), job.Message, job.Created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("job %s: %w", job.ID, ogc.ErrConflict)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get returns the job row or ogc.ErrNotFound.
func (s *JobStore) Get(ctx context.Context, id string) (ogc.Job, error) {
	query := fmt.Sprintf(`
SELECT job_id, process_id, status, message, created, started, finished, results
FROM %s WHERE job_id = $1`, s.table)

	job, err := scanJob(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ogc.Job{}, fmt.Errorf("job %s: %w", id, ogc.ErrNotFound)
		}
		return ogc.Job{}, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// List returns matching job rows ordered by created then job_id, plus
// the total matching count ignoring paging.
func (s *JobStore) List(ctx context.Context, filter ogc.JobFilter, page ogc.PageQuery) ([]ogc.Job, int, error) {
	where := ""
	args := []any{}
	if filter.ProcessID != "" {
		args = append(args, filter.ProcessID)
		where = fmt.Sprintf(" WHERE process_id = $%d", len(args))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		if where == "" {
			where = fmt.Sprintf(" WHERE status = ANY($%d)", len(args))
		} else {
			where += fmt.Sprintf(" AND status = ANY($%d)", len(args))
		}
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table) + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	listArgs := append(args, page.Limit, page.Offset)
	listQuery := fmt.Sprintf(`
SELECT job_id, process_id, status, message, created, started, finished, results
FROM %s%s ORDER BY created, job_id LIMIT $%d OFFSET $%d`,
		s.table, where, len(listArgs)-1, len(listArgs))

	rows, err := s.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("select jobs: %w", err)
	}
	defer rows.Close()

	jobs := []ogc.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, total, nil
}

// UpdateStatus performs the conditional transition as a single UPDATE.
// started is stamped on entry to running, finished on entry to any
// terminal state; results is only carried by successful transitions.
func (s *JobStore) UpdateStatus(
	ctx context.Context,
	id string,
	from []ogc.JobStatus,
	to ogc.JobStatus,
	message string,
	result json.RawMessage,
) error {
	if result != nil && to != ogc.StatusSuccessful {
		return fmt.Errorf("result payload requires successful status: %w", ogc.ErrValidation)
	}

	now := time.Now().UTC()
	var started, finished any
	if to == ogc.StatusRunning {
		started = now
	}
	if to.Terminal() {
		finished = now
	}
	fromSet := make([]string, len(from))
	for i, st := range from {
		fromSet[i] = string(st)
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	status = $2,
	message = $3,
	results = $4,
	started = COALESCE(started, $5),
	finished = COALESCE($6, finished)
WHERE job_id = $1 AND status = ANY($7)`, s.table)

	var resultArg any
	if result != nil {
		resultArg = []byte(result)
	}
	tag, err := s.pool.Exec(ctx, query, id, string(to), message, resultArg, started, finished, fromSet)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// The predicate failed: distinguish a missing row from a lost race.
	var current string
	err = s.pool.QueryRow(ctx, fmt.Sprintf("SELECT status FROM %s WHERE job_id = $1", s.table), id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("job %s: %w", id, ogc.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("select job status: %w", err)
	}
	return fmt.Errorf("job %s is %s: %w", id, current, ogc.ErrInvalidTransition)
}

// Delete removes the job row regardless of its status.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE job_id = $1", s.table), id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, ogc.ErrNotFound)
	}
	return nil
}

func scanJob(row pgx.Row) (ogc.Job, error) {
	var (
		job     ogc.Job
		status  string
		results []byte
	)
	err := row.Scan(&job.ID, &job.ProcessID, &status, &job.Message, &job.Created, &job.Started, &job.Finished, &results)
	if err != nil {
		return ogc.Job{}, err
	}
	job.Status = ogc.JobStatus(status)
	if results != nil {
		job.Result = json.RawMessage(results)
	}
	return job, nil
}
