package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/jobintel/jobintel/internal/domain"
)

// ActionLogRepo records audit entries for background runs.
type ActionLogRepo struct{ Pool PgxPool }

// NewActionLogRepo constructs an ActionLogRepo with the given pool.
func NewActionLogRepo(p PgxPool) *ActionLogRepo { return &ActionLogRepo{Pool: p} }

// Create inserts a new audit entry and returns its id.
func (r *ActionLogRepo) Create(ctx domain.Context, l domain.ActionLog) (string, error) {
	tracer := otel.Tracer("repo.actionlogs")
	ctx, span := tracer.Start(ctx, "actionlogs.Create")
	defer span.End()
	id := l.ID
	if id == "" {
		id = uuid.New().String()
	}
	status := l.Status
	if status == "" {
		status = domain.ActionPending
	}
	q := `INSERT INTO action_logs (id, user_id, action_type, status, message, created_at) VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.Pool.Exec(ctx, q, id, l.UserID, l.ActionType, status, l.Message, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=actionlog.create: %w", err)
	}
	return id, nil
}

// Finalize sets the terminal status and message of an entry.
func (r *ActionLogRepo) Finalize(ctx domain.Context, id string, status domain.ActionStatus, message string) error {
	tracer := otel.Tracer("repo.actionlogs")
	ctx, span := tracer.Start(ctx, "actionlogs.Finalize")
	defer span.End()
	q := `UPDATE action_logs SET status=$2, message=$3 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id, status, message)
	if err != nil {
		return fmt.Errorf("op=actionlog.finalize: %w", err)
	}
	return nil
}
