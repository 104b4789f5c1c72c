package usecase

import (
	"fmt"
	"log/slog"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/match"
)

// MatchService answers single-job match queries and runs the batch digest.
type MatchService struct {
	engine   *match.Engine
	digester *match.Digester
	settings domain.SettingsRepository
	logs     domain.ActionLogRepository
}

// NewMatchService wires a MatchService.
func NewMatchService(engine *match.Engine, digester *match.Digester, settings domain.SettingsRepository, logs domain.ActionLogRepository) *MatchService {
	return &MatchService{
		engine:   engine,
		digester: digester,
		settings: settings,
		logs:     logs,
	}
}

// Best returns the best-scoring résumé for one posting.
func (s *MatchService) Best(ctx domain.Context, jobID, userID string) (match.BestResult, error) {
	return s.engine.BestMatch(ctx, jobID, userID)
}

// Digest builds one user's digest with a finalized audit entry.
func (s *MatchService) Digest(ctx domain.Context, userID string) ([]match.DigestEntry, error) {
	logID, err := s.logs.Create(ctx, domain.ActionLog{
		UserID:     userID,
		ActionType: domain.ActionMatchDigest,
		Status:     domain.ActionRunning,
	})
	if err != nil {
		return nil, fmt.Errorf("op=match.Digest: %w", err)
	}
	entries, err := s.digester.ForUser(ctx, userID)
	if err != nil {
		_ = s.logs.Finalize(ctx, logID, domain.ActionFailed, err.Error())
		return nil, err
	}
	_ = s.logs.Finalize(ctx, logID, domain.ActionSuccess,
		fmt.Sprintf("%d recommendations", len(entries)))
	return entries, nil
}

// DigestAll iterates every configured user sequentially. Per-user failures
// are logged and skipped so one bad account never stops the batch.
func (s *MatchService) DigestAll(ctx domain.Context) {
	userIDs, err := s.settings.UserIDs(ctx)
	if err != nil {
		slog.Error("digest user listing failed", slog.Any("error", err))
		return
	}
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Digest(ctx, userID); err != nil {
			slog.Warn("digest skipped for user", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
}
