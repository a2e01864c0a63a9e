package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evanhartley/genforge/internal/domain/model"
	"github.com/evanhartley/genforge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobStore = (*JobRepo)(nil)

// JobRepo is the SQLite implementation of the JobStore port interface.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new JobRepo backed by the given DB.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// Record inserts or replaces a terminal job. Files are serialized as a JSON
// array in the TEXT column.
func (r *JobRepo) Record(ctx context.Context, job model.GenerationJob) error {
	const query = `
		INSERT INTO jobs (
			id, inference_id, type, prompt, state, fault_kind, fault_detail,
			attempts, polls, files, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			inference_id = excluded.inference_id,
			type = excluded.type,
			prompt = excluded.prompt,
			state = excluded.state,
			fault_kind = excluded.fault_kind,
			fault_detail = excluded.fault_detail,
			attempts = excluded.attempts,
			polls = excluded.polls,
			files = excluded.files,
			created_at = excluded.created_at,
			finished_at = excluded.finished_at
	`

	files := job.Files
	if files == nil {
		files = []model.GeneratedFile{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		job.ID, job.InferenceID, string(job.Type), job.Prompt, string(job.State),
		job.FaultKind, job.FaultDetail, job.Attempts, job.Polls, string(filesJSON),
		job.CreatedAt.UTC().Format(time.RFC3339Nano), job.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}

	return nil
}

// List returns the most recent jobs, newest first, at most limit.
func (r *JobRepo) List(ctx context.Context, limit int) ([]model.GenerationJob, error) {
	const query = `
		SELECT id, inference_id, type, prompt, state, fault_kind, fault_detail,
		       attempts, polls, files, created_at, finished_at
		FROM jobs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	if jobs == nil {
		jobs = []model.GenerationJob{}
	}

	return jobs, nil
}

// Get returns one archived job by its local ID.
func (r *JobRepo) Get(ctx context.Context, id string) (model.GenerationJob, error) {
	const query = `
		SELECT id, inference_id, type, prompt, state, fault_kind, fault_detail,
		       attempts, polls, files, created_at, finished_at
		FROM jobs
		WHERE id = ?
	`

	job, err := scanJob(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.GenerationJob{}, fmt.Errorf("get job %s: %w", id, driven.ErrJobNotFound)
	}
	if err != nil {
		return model.GenerationJob{}, fmt.Errorf("get job %s: %w", id, err)
	}

	return *job, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*model.GenerationJob, error) {
	var job model.GenerationJob
	var jobType, state, filesJSON string
	var createdAt, finishedAt string

	err := s.Scan(
		&job.ID, &job.InferenceID, &jobType, &job.Prompt, &state,
		&job.FaultKind, &job.FaultDetail, &job.Attempts, &job.Polls,
		&filesJSON, &createdAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = model.GenerationType(jobType)
	job.State = model.JobState(state)

	if err := json.Unmarshal([]byte(filesJSON), &job.Files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}

	job.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	job.FinishedAt, err = parseTime(finishedAt)
	if err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}

	return &job, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
