package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/jobintel/jobintel/internal/domain"
)

// ResumeRepo persists and loads résumés.
type ResumeRepo struct{ Pool PgxPool }

// NewResumeRepo constructs a ResumeRepo with the given pool.
func NewResumeRepo(p PgxPool) *ResumeRepo { return &ResumeRepo{Pool: p} }

const resumeColumns = `id, user_id, filename, format, label, raw_text, parsed, embedding, structural_score, semantic_score, status, created_at, updated_at`

// Get loads a résumé by id.
func (r *ResumeRepo) Get(ctx domain.Context, id string) (domain.Resume, error) {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.Get")
	defer span.End()
	q := `SELECT ` + resumeColumns + ` FROM resumes WHERE id=$1`
	res, err := scanResume(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Resume{}, fmt.Errorf("op=resume.get: %w", domain.ErrNotFound)
		}
		return domain.Resume{}, fmt.Errorf("op=resume.get: %w", err)
	}
	return res, nil
}

// EmbeddedByUser lists a user's résumés that completed ingest with an
// embedding, most recently updated first.
func (r *ResumeRepo) EmbeddedByUser(ctx domain.Context, userID string) ([]domain.Resume, error) {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.EmbeddedByUser")
	defer span.End()
	q := `SELECT ` + resumeColumns + ` FROM resumes
WHERE user_id=$1 AND status=$2 AND embedding IS NOT NULL ORDER BY updated_at DESC`
	rows, err := r.Pool.Query(ctx, q, userID, domain.ResumeCompleted)
	if err != nil {
		return nil, fmt.Errorf("op=resume.embedded_by_user: %w", err)
	}
	defer rows.Close()
	var out []domain.Resume
	for rows.Next() {
		res, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("op=resume.embedded_by_user: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=resume.embedded_by_user: %w", err)
	}
	return out, nil
}

// SetStatus transitions a résumé's pipeline status.
func (r *ResumeRepo) SetStatus(ctx domain.Context, id string, status domain.ResumeStatus) error {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.SetStatus")
	defer span.End()
	q := `UPDATE resumes SET status=$2, updated_at=$3 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=resume.set_status: %w", err)
	}
	return nil
}

// FinishParse writes the full ingest result in one statement so a résumé is
// never observable half-parsed.
func (r *ResumeRepo) FinishParse(ctx domain.Context, res domain.Resume) error {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.FinishParse")
	defer span.End()
	parsed, err := json.Marshal(res.Parsed)
	if err != nil {
		return fmt.Errorf("op=resume.finish_parse: %w", err)
	}
	q := `UPDATE resumes SET raw_text=$2, parsed=$3, embedding=$4, structural_score=$5, semantic_score=$6, status=$7, updated_at=$8 WHERE id=$1`
	_, err = r.Pool.Exec(ctx, q, res.ID, res.RawText, parsed, res.Embedding, res.StructuralScore, res.SemanticScore, res.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=resume.finish_parse: %w", err)
	}
	return nil
}

// CreatePending registers an upload before its asynchronous parse starts.
func (r *ResumeRepo) CreatePending(ctx domain.Context, res domain.Resume) (string, error) {
	tracer := otel.Tracer("repo.resumes")
	ctx, span := tracer.Start(ctx, "resumes.CreatePending")
	defer span.End()
	id := res.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	q := `INSERT INTO resumes (id, user_id, filename, format, label, raw_text, parsed, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,'','{}',$6,$7,$8)`
	_, err := r.Pool.Exec(ctx, q, id, res.UserID, res.Filename, res.Format, res.Label, domain.ResumePending, now, now)
	if err != nil {
		return "", fmt.Errorf("op=resume.create_pending: %w", err)
	}
	return id, nil
}

func scanResume(row pgx.Row) (domain.Resume, error) {
	var res domain.Resume
	var parsed []byte
	if err := row.Scan(&res.ID, &res.UserID, &res.Filename, &res.Format, &res.Label, &res.RawText, &parsed, &res.Embedding, &res.StructuralScore, &res.SemanticScore, &res.Status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return domain.Resume{}, err
	}
	if len(parsed) > 0 {
		if err := json.Unmarshal(parsed, &res.Parsed); err != nil {
			return domain.Resume{}, err
		}
	}
	return res, nil
}
