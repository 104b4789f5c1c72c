package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/jobintel/jobintel/internal/domain"
)

// SettingsRepo reads per-user settings and advances the inbox watermark.
type SettingsRepo struct{ Pool PgxPool }

// NewSettingsRepo constructs a SettingsRepo with the given pool.
func NewSettingsRepo(p PgxPool) *SettingsRepo { return &SettingsRepo{Pool: p} }

// Get loads one user's settings.
func (r *SettingsRepo) Get(ctx domain.Context, userID string) (domain.UserSettings, error) {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.Get")
	defer span.End()
	q := `SELECT user_id, COALESCE(llm_provider,''), COALESCE(llm_api_key,''), COALESCE(llm_base_url,''), COALESCE(preferred_model,''),
COALESCE(gmail_access_token,''), COALESCE(gmail_refresh_token,''), last_inbox_sync_at
FROM user_settings WHERE user_id=$1`
	var s domain.UserSettings
	err := r.Pool.QueryRow(ctx, q, userID).Scan(&s.UserID, &s.LLMProvider, &s.LLMAPIKey, &s.LLMBaseURL, &s.PreferredModel,
		&s.GmailAccessToken, &s.GmailRefreshToken, &s.LastInboxSyncAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.UserSettings{}, fmt.Errorf("op=settings.get: %w", domain.ErrNotFound)
		}
		return domain.UserSettings{}, fmt.Errorf("op=settings.get: %w", err)
	}
	return s, nil
}

// UserIDs lists every user with stored settings.
func (r *SettingsRepo) UserIDs(ctx domain.Context) ([]string, error) {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.UserIDs")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT user_id FROM user_settings ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("op=settings.user_ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("op=settings.user_ids: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=settings.user_ids: %w", err)
	}
	return out, nil
}

// SetInboxWatermark records the completion time of a successful inbox sync.
func (r *SettingsRepo) SetInboxWatermark(ctx domain.Context, userID string, at time.Time) error {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.SetInboxWatermark")
	defer span.End()
	q := `UPDATE user_settings SET last_inbox_sync_at=$2 WHERE user_id=$1`
	tag, err := r.Pool.Exec(ctx, q, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("op=settings.set_inbox_watermark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=settings.set_inbox_watermark: %w", domain.ErrNotFound)
	}
	return nil
}
