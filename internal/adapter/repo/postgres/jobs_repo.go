// Package postgres implements the repository ports on PostgreSQL through a
// minimal pgx pool interface.
package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jobintel/jobintel/internal/domain"
)

// JobRepo persists and loads job postings.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// Create inserts a new posting and returns its id (generates one if empty).
func (r *JobRepo) Create(ctx domain.Context, j domain.JobPosting) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "job_postings"),
	)
	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	meta, err := json.Marshal(j.Metadata)
	if err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO job_postings (id, source, external_id, source_url, title, company, location, description, embedding, relevance_score, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = r.Pool.Exec(ctx, q, id, j.Source, j.ExternalID, j.SourceURL, j.Title, j.Company, j.Location, j.Description, j.Embedding, j.RelevanceScore, meta, now, now)
	if err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	return id, nil
}

// Get loads a posting by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.JobPosting, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()
	q := `SELECT id, source, external_id, source_url, title, company, location, description, embedding, relevance_score, metadata, created_at, updated_at
FROM job_postings WHERE id=$1`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.JobPosting{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.JobPosting{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// TitlesBySourceURL returns the lowercased titles already stored for a source
// page, used to dedupe repeat scrapes.
func (r *JobRepo) TitlesBySourceURL(ctx domain.Context, sourceURL string) (map[string]bool, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.TitlesBySourceURL")
	defer span.End()
	q := `SELECT LOWER(title) FROM job_postings WHERE source_url=$1`
	rows, err := r.Pool.Query(ctx, q, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("op=job.titles_by_source: %w", err)
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("op=job.titles_by_source: %w", err)
		}
		out[title] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.titles_by_source: %w", err)
	}
	return out, nil
}

// SetEmbedding stores the vector for a posting, enabling it for matching.
func (r *JobRepo) SetEmbedding(ctx domain.Context, id string, vec []float32) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetEmbedding")
	defer span.End()
	q := `UPDATE job_postings SET embedding=$2, updated_at=$3 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id, vec, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=job.set_embedding: %w", err)
	}
	return nil
}

// CreatedSince lists postings created at or after the cutoff, newest first.
func (r *JobRepo) CreatedSince(ctx domain.Context, since time.Time) ([]domain.JobPosting, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.CreatedSince")
	defer span.End()
	q := `SELECT id, source, external_id, source_url, title, company, location, description, embedding, relevance_score, metadata, created_at, updated_at
FROM job_postings WHERE created_at >= $1 ORDER BY created_at DESC`
	rows, err := r.Pool.Query(ctx, q, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("op=job.created_since: %w", err)
	}
	defer rows.Close()
	var out []domain.JobPosting
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("op=job.created_since: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.created_since: %w", err)
	}
	return out, nil
}

func scanJob(row pgx.Row) (domain.JobPosting, error) {
	var j domain.JobPosting
	var meta []byte
	if err := row.Scan(&j.ID, &j.Source, &j.ExternalID, &j.SourceURL, &j.Title, &j.Company, &j.Location, &j.Description, &j.Embedding, &j.RelevanceScore, &meta, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return domain.JobPosting{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return domain.JobPosting{}, err
		}
	}
	return j, nil
}
