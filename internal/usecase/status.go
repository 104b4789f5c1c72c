package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jobintel/jobintel/internal/domain"
)

// StatusService applies manual status changes to applications.
type StatusService struct {
	apps domain.ApplicationRepository
}

// NewStatusService wires a StatusService.
func NewStatusService(apps domain.ApplicationRepository) *StatusService {
	return &StatusService{apps: apps}
}

// Change moves an application to a new canonical status. Off-table
// transitions are permitted but logged; entering submitted requires a
// résumé attached (already bound or supplied here) and stamps AppliedAt
// exactly once.
func (s *StatusService) Change(ctx domain.Context, userID, appID string, to domain.ApplicationStatus, resumeID *string) (domain.Application, error) {
	if !domain.ValidStatus(to) {
		return domain.Application{}, fmt.Errorf("op=status.Change: %w: unknown status %q", domain.ErrInvalidArgument, to)
	}
	app, err := s.apps.Get(ctx, appID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("op=status.Change: %w", err)
	}
	if app.UserID != userID {
		return domain.Application{}, fmt.Errorf("op=status.Change: %w", domain.ErrNotFound)
	}

	if resumeID != nil && *resumeID != "" {
		app.ResumeID = resumeID
	}
	if to == domain.StatusSubmitted && (app.ResumeID == nil || *app.ResumeID == "") {
		return domain.Application{}, fmt.Errorf("op=status.Change: %w: submitted requires a resume", domain.ErrInvalidArgument)
	}

	if !domain.StandardTransition(app.Status, to) {
		slog.Warn("non-standard status transition",
			slog.String("application_id", app.ID),
			slog.String("from", string(app.Status)),
			slog.String("to", string(to)))
	}

	app.Status = to
	if to == domain.StatusSubmitted && app.AppliedAt == nil {
		now := time.Now().UTC()
		app.AppliedAt = &now
	}
	if err := s.apps.Update(ctx, app); err != nil {
		return domain.Application{}, fmt.Errorf("op=status.Change: %w", err)
	}
	return app, nil
}
