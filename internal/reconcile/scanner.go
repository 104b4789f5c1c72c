package reconcile

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/observability"
)

// MailboxFactory opens the mailbox for a user's settings.
type MailboxFactory func(ctx domain.Context, settings domain.UserSettings) (domain.Mailbox, error)

// AIFactory resolves the AI client for a user's settings.
type AIFactory interface {
	For(settings domain.UserSettings) domain.AIClient
}

// Scanner runs inbox reconciliation for one user at a time.
type Scanner struct {
	settings domain.SettingsRepository
	apps     domain.ApplicationRepository
	logs     domain.ActionLogRepository
	mailbox  MailboxFactory
	ai       AIFactory

	lookbackDays int
	maxMessages  int
	now          func() time.Time
}

// NewScanner wires the reconciliation engine.
func NewScanner(cfg config.Config, settings domain.SettingsRepository, apps domain.ApplicationRepository, logs domain.ActionLogRepository, mailbox MailboxFactory, ai AIFactory) *Scanner {
	lookback := cfg.InboxLookbackDays
	if lookback <= 0 {
		lookback = 180
	}
	return &Scanner{
		settings:     settings,
		apps:         apps,
		logs:         logs,
		mailbox:      mailbox,
		ai:           ai,
		lookbackDays: lookback,
		maxMessages:  cfg.InboxMaxMessages,
		now:          time.Now,
	}
}

// SyncResult summarizes one reconciliation run.
type SyncResult struct {
	Processed int
	Updated   int
}

// Sync reconciles a user's inbox against their applications. The
// watermark only advances on success, so a failed run is retried over the
// same window. Per-message failures are skipped; systemic ones abort.
func (s *Scanner) Sync(ctx domain.Context, userID string) (SyncResult, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("op=reconcile.Sync: %w", err)
	}

	logID, _ := s.logs.Create(ctx, domain.ActionLog{
		UserID:     userID,
		ActionType: domain.ActionInboxSync,
		Status:     domain.ActionRunning,
		Message:    "Running inbox sync",
	})

	res, err := s.run(ctx, userID, settings)
	if err != nil {
		_ = s.logs.Finalize(ctx, logID, domain.ActionFailed, fmt.Sprintf("Inbox sync failed: %v", err))
		return res, err
	}

	if err := s.settings.SetInboxWatermark(ctx, userID, s.now().UTC()); err != nil {
		slog.Error("watermark advance failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	_ = s.logs.Finalize(ctx, logID, domain.ActionSuccess,
		fmt.Sprintf("Inbox sync completed. Processed %d messages, integrated %d updates.", res.Processed, res.Updated))
	return res, nil
}

func (s *Scanner) run(ctx domain.Context, userID string, settings domain.UserSettings) (SyncResult, error) {
	box, err := s.mailbox(ctx, settings)
	if err != nil {
		return SyncResult{}, fmt.Errorf("op=reconcile.Sync: %w", err)
	}

	watermark := s.now().UTC().AddDate(0, 0, -s.lookbackDays)
	if settings.LastInboxSyncAt != nil {
		watermark = *settings.LastInboxSyncAt
	}
	msgs, err := box.Search(ctx, watermark, s.maxMessages)
	if err != nil {
		return SyncResult{}, fmt.Errorf("op=reconcile.Sync: %w", err)
	}

	apps, err := s.apps.ByUser(ctx, userID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("op=reconcile.Sync: %w", err)
	}
	byCompany := make(map[string]*domain.Application, len(apps))
	var companies []string
	for i := range apps {
		key := strings.ToLower(strings.TrimSpace(apps[i].CompanyName))
		if key != "" {
			byCompany[key] = &apps[i]
			companies = append(companies, apps[i].CompanyName)
		}
	}

	aiClient := s.ai.For(settings)
	var res SyncResult
	for _, msg := range msgs {
		res.Processed++
		if s.reconcileMessage(ctx, userID, msg, aiClient, byCompany, companies) {
			res.Updated++
		}
	}
	return res, nil
}

// reconcileMessage handles one email end to end and reports whether it
// produced a timeline update.
func (s *Scanner) reconcileMessage(ctx domain.Context, userID string, msg domain.MailMessage, aiClient domain.AIClient, byCompany map[string]*domain.Application, companies []string) bool {
	cls := Classify(ctx, aiClient, msg, companies)
	if !cls.Bindable() {
		observability.InboxMessagesTotal.WithLabelValues("unbound").Inc()
		return false
	}

	app := bind(cls, byCompany)
	if app == nil {
		created, err := s.autoCreate(ctx, userID, msg, cls)
		if err != nil {
			slog.Warn("auto-create application failed",
				slog.String("company", cls.Company), slog.Any("error", err))
			observability.InboxMessagesTotal.WithLabelValues("error").Inc()
			return false
		}
		byCompany[strings.ToLower(cls.Company)] = created
		app = created
	}

	if cls.Status == "" {
		observability.InboxMessagesTotal.WithLabelValues("no_status").Inc()
		return false
	}

	if canonical, ok := domain.CanonicalForEmail(cls.Status); ok {
		if domain.ForwardProgress(app.Status, canonical) {
			app.Status = canonical
		}
	}

	// idempotent by message id: re-syncing an already integrated message
	// must not duplicate its timeline line
	if strings.Contains(app.Notes, "["+msg.ID+"]") {
		observability.InboxMessagesTotal.WithLabelValues("duplicate").Inc()
		return false
	}
	app.Notes += timelineLine(msg, cls.Status)

	if err := s.apps.Update(ctx, *app); err != nil {
		slog.Warn("application update failed", slog.String("application_id", app.ID), slog.Any("error", err))
		observability.InboxMessagesTotal.WithLabelValues("error").Inc()
		return false
	}
	observability.InboxMessagesTotal.WithLabelValues("updated").Inc()
	return true
}

// bind matches a classification to a tracked application: exact company
// first, then fuzzy substring containment either way.
func bind(cls Classification, byCompany map[string]*domain.Application) *domain.Application {
	key := strings.ToLower(cls.Company)
	if app, ok := byCompany[key]; ok {
		return app
	}
	for known, app := range byCompany {
		if strings.Contains(known, key) || strings.Contains(key, known) {
			return app
		}
	}
	return nil
}

// autoCreate records an application discovered purely from email.
func (s *Scanner) autoCreate(ctx domain.Context, userID string, msg domain.MailMessage, cls Classification) (*domain.Application, error) {
	sourceURL := ""
	if strings.Contains(strings.ToLower(msg.Sender), "linkedin") ||
		strings.Contains(strings.ToLower(msg.Body), "linkedin") {
		sourceURL = "https://www.linkedin.com"
	}
	status := domain.StatusSubmitted
	if canonical, ok := domain.CanonicalForEmail(cls.Status); ok {
		status = canonical
	}

	app := domain.Application{
		UserID:          userID,
		CompanyName:     cls.Company,
		Role:            cls.Role,
		ApplicationType: "discovered via email",
		Status:          status,
		ContactName:     cls.ContactName,
		ContactEmail:    cls.ContactEmail,
		Location:        cls.Location,
		SourceURL:       sourceURL,
		Notes:           fmt.Sprintf("Auto-imported from inbox on %s", s.now().UTC().Format("2006-01-02")),
	}
	id, err := s.apps.Create(ctx, app)
	if err != nil {
		return nil, err
	}
	app.ID = id
	observability.InboxMessagesTotal.WithLabelValues("created").Inc()
	return &app, nil
}

// timelineLine renders the append-only audit line for one message. The
// raw classification label is preserved even when the canonical status
// collapses several labels together.
func timelineLine(msg domain.MailMessage, status domain.EmailStatus) string {
	date := msg.Date
	if len(date) > 16 {
		date = date[:16]
	}
	sender := strings.TrimSpace(strings.SplitN(msg.Sender, "<", 2)[0])
	return fmt.Sprintf("\n[%s] %s: %s -> %s [%s]",
		date, sender, msg.Subject, strings.ToUpper(string(status)), msg.ID)
}

// SyncAll reconciles every user with a connected mailbox, sequentially.
// Per-user failures are logged and skipped.
func (s *Scanner) SyncAll(ctx domain.Context) {
	userIDs, err := s.settings.UserIDs(ctx)
	if err != nil {
		slog.Error("listing users for inbox sync failed", slog.Any("error", err))
		return
	}
	for _, uid := range userIDs {
		if _, err := s.Sync(ctx, uid); err != nil {
			slog.Warn("inbox sync failed for user", slog.String("user_id", uid), slog.Any("error", err))
		}
	}
}
