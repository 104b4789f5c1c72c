package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/usecase"
)

type fakeQueue struct {
	payloads []domain.TaskPayload
	err      error
}

func (f *fakeQueue) Enqueue(_ domain.Context, p domain.TaskPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, p)
	return "task-" + strconv.Itoa(len(f.payloads)), nil
}

type fakeApps struct {
	apps map[string]domain.Application
}

func (f *fakeApps) Create(_ domain.Context, a domain.Application) (string, error) {
	a.ID = "app-" + strconv.Itoa(len(f.apps)+1)
	f.apps[a.ID] = a
	return a.ID, nil
}
func (f *fakeApps) Get(_ domain.Context, id string) (domain.Application, error) {
	a, ok := f.apps[id]
	if !ok {
		return domain.Application{}, domain.ErrNotFound
	}
	return a, nil
}
func (f *fakeApps) ByUser(_ domain.Context, _ string) ([]domain.Application, error) { return nil, nil }
func (f *fakeApps) Update(_ domain.Context, a domain.Application) error {
	f.apps[a.ID] = a
	return nil
}

type fakeContacts struct{ created int }

func (f *fakeContacts) Create(_ domain.Context, _ domain.ScrapedContact) (string, error) {
	f.created++
	return "c-" + strconv.Itoa(f.created), nil
}
func (f *fakeContacts) ExistingEmails(_ domain.Context) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func newTestServer(q domain.Queue, apps domain.ApplicationRepository) *Server {
	cfg := config.Config{MaxUploadMB: 10, RateLimitPerMin: 100, CORSAllowOrigins: "*"}
	return NewServer(cfg, q,
		nil,
		usecase.NewStatusService(apps),
		nil,
		usecase.NewContactImportService(&fakeContacts{}),
	)
}

func doJSON(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScrapeAccepted(t *testing.T) {
	q := &fakeQueue{}
	h := BuildRouter(newTestServer(q, &fakeApps{apps: map[string]domain.Application{}}))

	rec := doJSON(t, h, http.MethodPost, "/v1/scrape", "u1",
		map[string]string{"url": "https://example.com/careers", "target_type": "jobs", "keywords": "go"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, domain.TaskScrape, q.payloads[0].Type)
	assert.Equal(t, "u1", q.payloads[0].UserID)
	assert.Equal(t, "go", q.payloads[0].Keywords)
}

func TestScrapeRequiresUserHeader(t *testing.T) {
	h := BuildRouter(newTestServer(&fakeQueue{}, &fakeApps{apps: map[string]domain.Application{}}))
	rec := doJSON(t, h, http.MethodPost, "/v1/scrape", "",
		map[string]string{"url": "https://example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeValidatesURL(t *testing.T) {
	h := BuildRouter(newTestServer(&fakeQueue{}, &fakeApps{apps: map[string]domain.Application{}}))
	rec := doJSON(t, h, http.MethodPost, "/v1/scrape", "u1",
		map[string]string{"url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeRejectsUnknownTarget(t *testing.T) {
	h := BuildRouter(newTestServer(&fakeQueue{}, &fakeApps{apps: map[string]domain.Application{}}))
	rec := doJSON(t, h, http.MethodPost, "/v1/scrape", "u1",
		map[string]string{"url": "https://example.com", "target_type": "everything"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInboxSyncAccepted(t *testing.T) {
	q := &fakeQueue{}
	h := BuildRouter(newTestServer(q, &fakeApps{apps: map[string]domain.Application{}}))
	rec := doJSON(t, h, http.MethodPost, "/v1/inbox/sync", "u1", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, domain.TaskInboxSync, q.payloads[0].Type)
}

func TestStatusChangeEndpoint(t *testing.T) {
	apps := &fakeApps{apps: map[string]domain.Application{}}
	id, _ := apps.Create(context.Background(), domain.Application{UserID: "u1", Status: domain.StatusDiscovered})
	h := BuildRouter(newTestServer(&fakeQueue{}, apps))

	rec := doJSON(t, h, http.MethodPost, "/v1/applications/"+id+"/status", "u1",
		map[string]string{"status": "shortlisted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "shortlisted", out["status"])
}

func TestStatusChangeSubmittedWithoutResumeRejected(t *testing.T) {
	apps := &fakeApps{apps: map[string]domain.Application{}}
	id, _ := apps.Create(context.Background(), domain.Application{UserID: "u1", Status: domain.StatusPrepared})
	h := BuildRouter(newTestServer(&fakeQueue{}, apps))

	rec := doJSON(t, h, http.MethodPost, "/v1/applications/"+id+"/status", "u1",
		map[string]string{"status": "submitted"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactsImportEndpoint(t *testing.T) {
	h := BuildRouter(newTestServer(&fakeQueue{}, &fakeApps{apps: map[string]domain.Application{}}))
	rec := doJSON(t, h, http.MethodPost, "/v1/contacts/import", "u1",
		map[string]string{"text": "jane@acme.io\tAcme\tJane Doe\tRecruiter"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out["created"])
}

func TestTasksCancelPublishesControlMessage(t *testing.T) {
	q := &fakeQueue{}
	h := BuildRouter(newTestServer(q, &fakeApps{apps: map[string]domain.Application{}}))

	rec := doJSON(t, h, http.MethodDelete, "/v1/tasks", "u1", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.payloads, 1, "cancellation must reach the worker via the task topic")
	assert.Equal(t, domain.TaskCancel, q.payloads[0].Type)
	assert.Equal(t, "u1", q.payloads[0].UserID)
}

func TestHealthz(t *testing.T) {
	h := BuildRouter(newTestServer(&fakeQueue{}, &fakeApps{apps: map[string]domain.Application{}}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
