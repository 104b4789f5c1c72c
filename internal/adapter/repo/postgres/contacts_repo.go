package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/jobintel/jobintel/internal/domain"
)

// ContactRepo persists the shared recruiter/contact pool.
type ContactRepo struct{ Pool PgxPool }

// NewContactRepo constructs a ContactRepo with the given pool.
func NewContactRepo(p PgxPool) *ContactRepo { return &ContactRepo{Pool: p} }

// Create inserts a new contact and returns its id.
func (r *ContactRepo) Create(ctx domain.Context, c domain.ScrapedContact) (string, error) {
	tracer := otel.Tracer("repo.contacts")
	ctx, span := tracer.Start(ctx, "contacts.Create")
	defer span.End()
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO scraped_contacts (id, user_id, name, email, role, company, source_url, verified, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.Pool.Exec(ctx, q, id, c.UserID, c.Name, strings.ToLower(c.Email), c.Role, c.Company, c.SourceURL, c.Verified, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=contact.create: %w", err)
	}
	return id, nil
}

// ExistingEmails returns every stored email, lowercased. The pool is global
// so dedup spans all users.
func (r *ContactRepo) ExistingEmails(ctx domain.Context) (map[string]bool, error) {
	tracer := otel.Tracer("repo.contacts")
	ctx, span := tracer.Start(ctx, "contacts.ExistingEmails")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT LOWER(email) FROM scraped_contacts`)
	if err != nil {
		return nil, fmt.Errorf("op=contact.existing_emails: %w", err)
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("op=contact.existing_emails: %w", err)
		}
		out[email] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=contact.existing_emails: %w", err)
	}
	return out, nil
}
