package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/jobintel/jobintel/internal/domain"
)

// ApplicationRepo persists and loads tracked applications.
type ApplicationRepo struct{ Pool PgxPool }

// NewApplicationRepo constructs an ApplicationRepo with the given pool.
func NewApplicationRepo(p PgxPool) *ApplicationRepo { return &ApplicationRepo{Pool: p} }

const applicationColumns = `id, user_id, job_id, resume_id, company_name, role, application_type, status, contact_name, contact_email, contact_role, source_url, location, notes, applied_at, created_at, updated_at`

// Create inserts a new application and returns its id.
func (r *ApplicationRepo) Create(ctx domain.Context, a domain.Application) (string, error) {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.Create")
	defer span.End()
	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	q := `INSERT INTO applications (` + applicationColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := r.Pool.Exec(ctx, q, id, a.UserID, a.JobID, a.ResumeID, a.CompanyName, a.Role, a.ApplicationType, a.Status,
		a.ContactName, a.ContactEmail, a.ContactRole, a.SourceURL, a.Location, a.Notes, a.AppliedAt, now, now)
	if err != nil {
		return "", fmt.Errorf("op=application.create: %w", err)
	}
	return id, nil
}

// Get loads an application by id.
func (r *ApplicationRepo) Get(ctx domain.Context, id string) (domain.Application, error) {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.Get")
	defer span.End()
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE id=$1`
	a, err := scanApplication(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Application{}, fmt.Errorf("op=application.get: %w", domain.ErrNotFound)
		}
		return domain.Application{}, fmt.Errorf("op=application.get: %w", err)
	}
	return a, nil
}

// ByUser lists a user's applications, most recently updated first.
func (r *ApplicationRepo) ByUser(ctx domain.Context, userID string) ([]domain.Application, error) {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.ByUser")
	defer span.End()
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE user_id=$1 ORDER BY updated_at DESC`
	rows, err := r.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("op=application.by_user: %w", err)
	}
	defer rows.Close()
	var out []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("op=application.by_user: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=application.by_user: %w", err)
	}
	return out, nil
}

// Update rewrites the mutable fields of an application.
func (r *ApplicationRepo) Update(ctx domain.Context, a domain.Application) error {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.Update")
	defer span.End()
	q := `UPDATE applications SET job_id=$2, resume_id=$3, company_name=$4, role=$5, application_type=$6, status=$7,
contact_name=$8, contact_email=$9, contact_role=$10, source_url=$11, location=$12, notes=$13, applied_at=$14, updated_at=$15
WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, a.ID, a.JobID, a.ResumeID, a.CompanyName, a.Role, a.ApplicationType, a.Status,
		a.ContactName, a.ContactEmail, a.ContactRole, a.SourceURL, a.Location, a.Notes, a.AppliedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=application.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=application.update: %w", domain.ErrNotFound)
	}
	return nil
}

func scanApplication(row pgx.Row) (domain.Application, error) {
	var a domain.Application
	if err := row.Scan(&a.ID, &a.UserID, &a.JobID, &a.ResumeID, &a.CompanyName, &a.Role, &a.ApplicationType, &a.Status,
		&a.ContactName, &a.ContactEmail, &a.ContactRole, &a.SourceURL, &a.Location, &a.Notes, &a.AppliedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}
