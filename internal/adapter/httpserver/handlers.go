package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/extract"
	"github.com/jobintel/jobintel/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg     config.Config
	Queue   domain.Queue
	Match   *usecase.MatchService
	Status  *usecase.StatusService
	Resumes *usecase.ResumeService
	Imports *usecase.ContactImportService
}

// NewServer constructs a Server with all handlers wired.
func NewServer(cfg config.Config, queue domain.Queue, matchSvc *usecase.MatchService, statusSvc *usecase.StatusService, resumes *usecase.ResumeService, imports *usecase.ContactImportService) *Server {
	return &Server{
		Cfg:     cfg,
		Queue:   queue,
		Match:   matchSvc,
		Status:  statusSvc,
		Resumes: resumes,
		Imports: imports,
	}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if err := getValidator().Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// requireUser extracts the caller or writes a 400.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := userID(r)
	if uid == "" {
		writeError(w, fmt.Errorf("%w: missing %s header", domain.ErrInvalidArgument, userIDHeader), nil)
		return "", false
	}
	return uid, true
}

type scrapeRequest struct {
	URL        string `json:"url" validate:"required,url"`
	TargetType string `json:"target_type" validate:"omitempty,oneof=jobs contacts"`
	Keywords   string `json:"keywords"`
}

// ScrapeHandler enqueues an extraction run and answers 202.
func (s *Server) ScrapeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req scrapeRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, err, nil)
			return
		}
		if req.TargetType == "" {
			req.TargetType = string(extract.TargetJobs)
		}
		taskID, err := s.Queue.Enqueue(r.Context(), domain.TaskPayload{
			Type:     domain.TaskScrape,
			UserID:   uid,
			URL:      req.URL,
			Target:   req.TargetType,
			Keywords: req.Keywords,
		})
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": "queued"})
	}
}

// InboxSyncHandler enqueues an inbox reconciliation run and answers 202.
func (s *Server) InboxSyncHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requireUser(w, r)
		if !ok {
			return
		}
		taskID, err := s.Queue.Enqueue(r.Context(), domain.TaskPayload{
			Type:   domain.TaskInboxSync,
			UserID: uid,
		})
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": "queued"})
	}
}

// MatchHandler answers the synchronous best-resume query for one posting.
func (s *Server) MatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requireUser(w, r)
		if !ok {
			return
		}
		jobID := chi.URLParam(r, "id")
		best, err := s.Match.Best(r.Context(), jobID, uid)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":    jobID,
			"resume_id": best.ResumeID,
			"score":     best.Score,
			"distance":  best.Distance,
		})
	}
}

type statusRequest struct {
	Status   string  `json:"status" validate:"required"`
	ResumeID *string `json:"resume_id"`
}

// StatusHandler applies a manual status change synchronously.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requireUser(w, r)
		if !ok {
			return
		}
		appID := chi.URLParam(r, "id")
		var req statusRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, err, nil)
			return
		}
		app, err := s.Status.Change(r.Context(), uid, appID, domain.ApplicationStatus(strings.ToLower(req.Status)), req.ResumeID)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         app.ID,
			"status":     app.Status,
			"applied_at": app.AppliedAt,
		})
	}
}

// ResumeUploadHandler stages an uploaded résumé and enqueues its parse.
func (s *Server) ResumeUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requireUser(w, r)
		if !ok {
			return
		}
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, fmt.Errorf("%w: missing file field", domain.ErrInvalidArgument), nil)
			return
		}
		defer func() { _ = file.Close() }()

		if !allowedExt(header.Filename) {
			writeError(w, fmt.Errorf("%w: only .pdf, .docx and .txt resumes", domain.ErrInvalidArgument), nil)
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if !allowedMIME(mimetype.Detect(data).String(), header.Filename) {
			writeError(w, fmt.Errorf("%w: file content does not match an allowed type", domain.ErrInvalidArgument), nil)
			return
		}

		path, err := stageUpload(data, header.Filename)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		resumeID, err := s.Resumes.Register(r.Context(), uid, header.Filename, r.FormValue("label"))
		if err != nil {
			writeError(w, err, nil)
			return
		}
		taskID, err := s.Queue.Enqueue(r.Context(), domain.TaskPayload{
			Type:     domain.TaskResumeParse,
			UserID:   uid,
			ResumeID: resumeID,
			Path:     path,
			Filename: header.Filename,
		})
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"resume_id": resumeID,
			"task_id":   taskID,
			"status":    "queued",
		})
	}
}

type importRequest struct {
	Text string `json:"text" validate:"required"`
}

// ContactsImportHandler ingests pasted contact rows synchronously.
func (s *Server) ContactsImportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req importRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, err, nil)
			return
		}
		outcome, err := s.Imports.Import(r.Context(), uid, req.Text)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{
			"rows":    outcome.Rows,
			"created": outcome.Created,
			"skipped": outcome.Skipped,
		})
	}
}

// TasksCancelHandler publishes a cancel request for every running task of
// the caller. The tasks live in the worker process, so cancellation rides
// the task topic and the worker's registry aborts them.
func (s *Server) TasksCancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := requireUser(w, r)
		if !ok {
			return
		}
		taskID, err := s.Queue.Enqueue(r.Context(), domain.TaskPayload{
			Type:   domain.TaskCancel,
			UserID: uid,
		})
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": "queued"})
	}
}

func allowedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".docx", ".txt":
		return true
	}
	return false
}

func allowedMIME(m, filename string) bool {
	m = strings.ToLower(m)
	if strings.HasSuffix(strings.ToLower(filename), ".txt") && strings.HasPrefix(m, "text/") {
		return true
	}
	if strings.HasPrefix(m, "text/plain") {
		return true
	}
	return strings.HasPrefix(m, "application/pdf") ||
		strings.HasPrefix(m, "application/vnd.openxmlformats-officedocument.wordprocessingml.document") ||
		// docx detectors sometimes report the container type
		strings.HasPrefix(m, "application/zip")
}

// stageUpload writes the upload to the temp dir where the parse task (and
// the path-constrained extractor) can read it.
func stageUpload(data []byte, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "resume-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return "", err
	}
	defer func() { _ = tmp.Close() }()
	if _, err := tmp.Write(data); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
