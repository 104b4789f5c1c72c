// Package domain holds the core entities and ports of the job-intelligence
// pipeline. Adapters implement the ports; usecases depend only on this package.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrNoEmbedding     = errors.New("no embedding")
	ErrNoResumes       = errors.New("no resumes")
	ErrFetchFailed     = errors.New("fetch failed")
	ErrConfigMissing   = errors.New("configuration missing")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrRateLimited     = errors.New("rate limited")
	ErrInternal        = errors.New("internal error")
)

// Context is an alias so adapters and usecases share one signature shape.
type Context = context.Context

// JobSource enumerates where a posting came from.
const (
	JobSourceManual        = "manual"
	JobSourceScraper       = "scraper"
	JobSourceAutoDiscovery = "auto_discovery"
)

// JobPosting is a normalized job record. A posting participates in matching
// only once Embedding is populated.
type JobPosting struct {
	ID             string
	Source         string
	ExternalID     string
	SourceURL      string
	Title          string
	Company        string
	Location       string
	Description    string
	Embedding      []float32
	RelevanceScore *float64
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Embedded reports whether the posting can participate in matching.
func (j JobPosting) Embedded() bool { return len(j.Embedding) > 0 }

// ResumeStatus enumerates résumé pipeline states.
type ResumeStatus string

const (
	ResumePending    ResumeStatus = "pending"
	ResumeProcessing ResumeStatus = "processing"
	ResumeCompleted  ResumeStatus = "completed"
	ResumeError      ResumeStatus = "error"
)

// Resume is an uploaded résumé. Created pending, mutated exactly once by the
// ingest pipeline, never updated concurrently by two parses.
type Resume struct {
	ID              string
	UserID          string
	Filename        string
	Format          string
	Label           string
	RawText         string
	Parsed          map[string]string
	Embedding       []float32
	StructuralScore float64
	SemanticScore   float64
	Status          ResumeStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Application tracks one pursued role. JobID is nullable: applications may be
// discovered purely from email with no formal posting. Dedup happens before
// creation; records are never merged afterwards.
type Application struct {
	ID              string
	UserID          string
	JobID           *string
	ResumeID        *string
	CompanyName     string
	Role            string
	ApplicationType string
	Status          ApplicationStatus
	ContactName     string
	ContactEmail    string
	ContactRole     string
	SourceURL       string
	Location        string
	Notes           string
	AppliedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ScrapedContact is a globally shared recruiter/contact record.
// Email is the dedup key across the whole pool.
type ScrapedContact struct {
	ID        string
	UserID    string
	Name      string
	Email     string
	Role      string
	Company   string
	SourceURL string
	Verified  bool
	CreatedAt time.Time
}

// Action log vocabulary.
const (
	ActionScraper     = "scraper"
	ActionResumeParse = "resume_extraction"
	ActionInboxSync   = "inbox_sync"
	ActionMatchDigest = "match_digest"
)

// ActionStatus enumerates audit entry states.
type ActionStatus string

const (
	ActionPending ActionStatus = "pending"
	ActionRunning ActionStatus = "running"
	ActionSuccess ActionStatus = "success"
	ActionFailed  ActionStatus = "failed"
)

// ActionLog is an append-only audit record of a background operation. Only the
// status/message finalization at the end of a run mutates it.
type ActionLog struct {
	ID         string
	UserID     string
	ActionType string
	Status     ActionStatus
	Message    string
	CreatedAt  time.Time
}

// LLMProvider selects a user's AI backend.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// UserSettings carries the per-user credentials and the inbox watermark.
// The reconciliation engine only ever writes LastInboxSyncAt.
type UserSettings struct {
	UserID            string
	LLMProvider       string
	LLMAPIKey         string
	LLMBaseURL        string
	PreferredModel    string
	GmailAccessToken  string
	GmailRefreshToken string
	LastInboxSyncAt   *time.Time
}

// Repositories (ports)

// JobRepository persists job postings.
type JobRepository interface {
	Create(ctx Context, j JobPosting) (string, error)
	Get(ctx Context, id string) (JobPosting, error)
	TitlesBySourceURL(ctx Context, sourceURL string) (map[string]bool, error)
	SetEmbedding(ctx Context, id string, vec []float32) error
	CreatedSince(ctx Context, since time.Time) ([]JobPosting, error)
}

// ResumeRepository persists résumés.
type ResumeRepository interface {
	CreatePending(ctx Context, r Resume) (string, error)
	Get(ctx Context, id string) (Resume, error)
	EmbeddedByUser(ctx Context, userID string) ([]Resume, error)
	SetStatus(ctx Context, id string, status ResumeStatus) error
	FinishParse(ctx Context, r Resume) error
}

// ApplicationRepository persists applications.
type ApplicationRepository interface {
	Create(ctx Context, a Application) (string, error)
	Get(ctx Context, id string) (Application, error)
	ByUser(ctx Context, userID string) ([]Application, error)
	Update(ctx Context, a Application) error
}

// ContactRepository persists the global contact pool.
type ContactRepository interface {
	Create(ctx Context, c ScrapedContact) (string, error)
	ExistingEmails(ctx Context) (map[string]bool, error)
}

// ActionLogRepository records audit entries.
type ActionLogRepository interface {
	Create(ctx Context, l ActionLog) (string, error)
	Finalize(ctx Context, id string, status ActionStatus, message string) error
}

// SettingsRepository reads user settings and advances the sync watermark.
type SettingsRepository interface {
	Get(ctx Context, userID string) (UserSettings, error)
	UserIDs(ctx Context) ([]string, error)
	SetInboxWatermark(ctx Context, userID string, at time.Time) error
}

// AIClient is the LLM provider abstraction. One implementation per backend,
// selected once per user at configuration time.
type AIClient interface {
	// Complete returns the model's text for prompt. With jsonMode the
	// implementation instructs the model to emit bare JSON and strips
	// markdown fences from the reply.
	Complete(ctx Context, prompt string, jsonMode bool) (string, error)
	// Embed returns one fixed-dimension vector per input text.
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// TextExtractor turns an uploaded document into plain text.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// Mailbox lists recent messages from a user's inbox. The implementation
// translates since into the provider's search syntax.
type Mailbox interface {
	// Search returns hiring-related messages received after since,
	// bounded by max.
	Search(ctx Context, since time.Time, max int) ([]MailMessage, error)
}

// MailMessage is one inbound email, body already decoded and bounded.
type MailMessage struct {
	ID      string
	Subject string
	Sender  string
	Date    string
	Body    string
}

// Task types dispatched through the queue. TaskCancel is a control
// message: it is never registered as a running task, the consuming worker
// aborts the user's in-flight tasks instead.
const (
	TaskScrape      = "scrape"
	TaskResumeParse = "resume_parse"
	TaskInboxSync   = "inbox_sync"
	TaskMatchDigest = "match_digest"
	TaskCancel      = "cancel"
)

// TaskPayload is the envelope for asynchronous work.
type TaskPayload struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	Keywords string `json:"keywords,omitempty"`
	ResumeID string `json:"resume_id,omitempty"`
	Path     string `json:"path,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Queue dispatches background tasks. Dispatch mechanics (retries, workers)
// live behind this port.
type Queue interface {
	Enqueue(ctx Context, p TaskPayload) (string, error)
}
