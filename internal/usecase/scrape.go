// Package usecase orchestrates the pipelines: extraction runs, résumé
// ingest, status changes, matching and digests. Each service depends on
// domain ports plus the engines.
package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jobintel/jobintel/internal/adapter/vector/qdrant"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/extract"
	"github.com/jobintel/jobintel/internal/match"
)

// AIFactory resolves the AI client for a user's settings.
type AIFactory interface {
	For(settings domain.UserSettings) domain.AIClient
}

// ScrapeService runs the extraction cascade against a URL and persists the
// yield: new job postings (embedded and indexed) or new contacts.
type ScrapeService struct {
	engine   *extract.Engine
	jobs     domain.JobRepository
	contacts domain.ContactRepository
	logs     domain.ActionLogRepository
	settings domain.SettingsRepository
	ai       AIFactory
	vectors  *qdrant.Client
}

// NewScrapeService wires a ScrapeService.
func NewScrapeService(engine *extract.Engine, jobs domain.JobRepository, contacts domain.ContactRepository, logs domain.ActionLogRepository, settings domain.SettingsRepository, ai AIFactory, vectors *qdrant.Client) *ScrapeService {
	return &ScrapeService{
		engine:   engine,
		jobs:     jobs,
		contacts: contacts,
		logs:     logs,
		settings: settings,
		ai:       ai,
		vectors:  vectors,
	}
}

// ScrapeOutcome summarizes one persisted extraction run.
type ScrapeOutcome struct {
	Found   int
	Created int
}

// Run extracts from url and persists new records, deduplicating jobs by
// case-insensitive title per source URL and contacts by email across the
// pool. The run is audited start to finish.
func (s *ScrapeService) Run(ctx domain.Context, userID, url string, target extract.Target, keywords string) (ScrapeOutcome, error) {
	logID, err := s.logs.Create(ctx, domain.ActionLog{
		UserID:     userID,
		ActionType: domain.ActionScraper,
		Status:     domain.ActionRunning,
		Message:    "scraping " + url,
	})
	if err != nil {
		return ScrapeOutcome{}, fmt.Errorf("op=scrape.Run: %w", err)
	}

	outcome, err := s.run(ctx, userID, url, target, keywords)
	if err != nil {
		_ = s.logs.Finalize(ctx, logID, domain.ActionFailed, err.Error())
		return outcome, err
	}
	_ = s.logs.Finalize(ctx, logID, domain.ActionSuccess,
		fmt.Sprintf("found %d, created %d", outcome.Found, outcome.Created))
	return outcome, nil
}

func (s *ScrapeService) run(ctx domain.Context, userID, url string, target extract.Target, keywords string) (ScrapeOutcome, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return ScrapeOutcome{}, fmt.Errorf("op=scrape.run: %w", err)
	}
	aiClient := s.ai.For(settings)

	res, err := s.engine.Extract(ctx, aiClient, url, target, keywords)
	if err != nil {
		return ScrapeOutcome{}, fmt.Errorf("op=scrape.run url=%s: %w", url, err)
	}

	if target == extract.TargetContacts {
		return s.persistContacts(ctx, userID, res.Contacts)
	}
	return s.persistJobs(ctx, aiClient, url, res.Jobs)
}

func (s *ScrapeService) persistJobs(ctx domain.Context, aiClient domain.AIClient, url string, records []extract.JobRecord) (ScrapeOutcome, error) {
	outcome := ScrapeOutcome{Found: len(records)}
	existing, err := s.jobs.TitlesBySourceURL(ctx, url)
	if err != nil {
		return outcome, fmt.Errorf("op=scrape.persist_jobs: %w", err)
	}

	var created []domain.JobPosting
	for _, rec := range records {
		key := strings.ToLower(strings.TrimSpace(rec.Title))
		if key == "" || existing[key] {
			continue
		}
		existing[key] = true
		job := domain.JobPosting{
			Source:      domain.JobSourceScraper,
			SourceURL:   rec.SourceURL,
			Title:       rec.Title,
			Company:     rec.Company,
			Location:    rec.Location,
			Description: rec.Description,
		}
		id, err := s.jobs.Create(ctx, job)
		if err != nil {
			slog.Warn("job create failed", slog.String("title", rec.Title), slog.Any("error", err))
			continue
		}
		job.ID = id
		created = append(created, job)
		outcome.Created++
	}

	if err := s.embedAndIndex(ctx, aiClient, created); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// embedAndIndex embeds the new postings and upserts them into the vector
// index. A missing provider configuration fails the whole run; transient
// failures leave postings unembedded and they simply stay out of matching
// until a later run.
func (s *ScrapeService) embedAndIndex(ctx domain.Context, aiClient domain.AIClient, created []domain.JobPosting) error {
	if len(created) == 0 || aiClient == nil {
		return nil
	}
	texts := make([]string, len(created))
	for i, job := range created {
		texts[i] = match.JobText(job)
	}
	vecs, err := aiClient.Embed(ctx, texts)
	if err != nil && errors.Is(err, domain.ErrConfigMissing) {
		return fmt.Errorf("op=scrape.embed jobs=%d: %w", len(created), err)
	}
	if err != nil || len(vecs) != len(created) {
		slog.Warn("embedding new jobs failed", slog.Int("jobs", len(created)), slog.Any("error", err))
		return nil
	}

	points := make([]qdrant.Point, 0, len(created))
	now := time.Now().UTC()
	for i, job := range created {
		if err := s.jobs.SetEmbedding(ctx, job.ID, vecs[i]); err != nil {
			slog.Warn("storing embedding failed", slog.String("job_id", job.ID), slog.Any("error", err))
			continue
		}
		points = append(points, qdrant.Point{
			ID:     job.ID,
			Vector: vecs[i],
			Payload: map[string]any{
				"title":        job.Title,
				"company":      job.Company,
				"created_unix": now.Unix(),
			},
		})
	}
	if s.vectors == nil {
		return nil
	}
	if err := s.vectors.UpsertPoints(ctx, qdrant.JobsCollection, points); err != nil {
		slog.Warn("vector index upsert failed", slog.Int("points", len(points)), slog.Any("error", err))
	}
	return nil
}

func (s *ScrapeService) persistContacts(ctx domain.Context, userID string, records []extract.ContactRecord) (ScrapeOutcome, error) {
	outcome := ScrapeOutcome{Found: len(records)}
	existing, err := s.contacts.ExistingEmails(ctx)
	if err != nil {
		return outcome, fmt.Errorf("op=scrape.persist_contacts: %w", err)
	}
	for _, rec := range records {
		email := strings.ToLower(strings.TrimSpace(rec.Email))
		if email == "" || existing[email] {
			continue
		}
		existing[email] = true
		_, err := s.contacts.Create(ctx, domain.ScrapedContact{
			UserID:    userID,
			Name:      rec.Name,
			Email:     email,
			Role:      rec.Role,
			Company:   rec.Company,
			SourceURL: rec.SourceURL,
		})
		if err != nil {
			slog.Warn("contact create failed", slog.String("email", email), slog.Any("error", err))
			continue
		}
		outcome.Created++
	}
	return outcome, nil
}
