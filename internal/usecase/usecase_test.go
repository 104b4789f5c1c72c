package usecase

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/extract"
)

type fakeJobs struct {
	jobs       map[string]domain.JobPosting
	embeddings map[string][]float32
	nextID     int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]domain.JobPosting{}, embeddings: map[string][]float32{}}
}

func (f *fakeJobs) Create(_ domain.Context, j domain.JobPosting) (string, error) {
	f.nextID++
	id := "job-" + strconv.Itoa(f.nextID)
	j.ID = id
	f.jobs[id] = j
	return id, nil
}
func (f *fakeJobs) Get(_ domain.Context, id string) (domain.JobPosting, error) {
	j, ok := f.jobs[id]
	if !ok {
		return domain.JobPosting{}, domain.ErrNotFound
	}
	return j, nil
}
func (f *fakeJobs) TitlesBySourceURL(_ domain.Context, sourceURL string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, j := range f.jobs {
		if j.SourceURL == sourceURL {
			out[strings.ToLower(j.Title)] = true
		}
	}
	return out, nil
}
func (f *fakeJobs) SetEmbedding(_ domain.Context, id string, vec []float32) error {
	f.embeddings[id] = vec
	return nil
}
func (f *fakeJobs) CreatedSince(_ domain.Context, _ time.Time) ([]domain.JobPosting, error) {
	return nil, nil
}

type fakeContacts struct {
	created []domain.ScrapedContact
	emails  map[string]bool
}

func newFakeContacts(existing ...string) *fakeContacts {
	emails := map[string]bool{}
	for _, e := range existing {
		emails[e] = true
	}
	return &fakeContacts{emails: emails}
}

func (f *fakeContacts) Create(_ domain.Context, c domain.ScrapedContact) (string, error) {
	f.created = append(f.created, c)
	f.emails[c.Email] = true
	return "contact-" + strconv.Itoa(len(f.created)), nil
}
func (f *fakeContacts) ExistingEmails(_ domain.Context) (map[string]bool, error) {
	out := map[string]bool{}
	for e := range f.emails {
		out[e] = true
	}
	return out, nil
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
func (f *fakeApps) ByUser(_ domain.Context, userID string) ([]domain.Application, error) {
	var out []domain.Application
	for _, a := range f.apps {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}
func (f *fakeApps) Update(_ domain.Context, a domain.Application) error {
	if _, ok := f.apps[a.ID]; !ok {
		return domain.ErrNotFound
	}
	f.apps[a.ID] = a
	return nil
}

func TestPersistJobsDedupesByTitlePerSourceURL(t *testing.T) {
	jobs := newFakeJobs()
	_, err := jobs.Create(context.Background(), domain.JobPosting{
		Title: "Senior Engineer", SourceURL: "https://x.io/jobs",
	})
	require.NoError(t, err)

	svc := &ScrapeService{jobs: jobs}
	outcome, err := svc.persistJobs(context.Background(), nil, "https://x.io/jobs", []extract.JobRecord{
		{Title: "senior engineer", Company: "X", SourceURL: "https://x.io/jobs"},
		{Title: "Data Scientist", Company: "X", SourceURL: "https://x.io/jobs"},
		{Title: "Data Scientist", Company: "X", SourceURL: "https://x.io/jobs"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Found)
	assert.Equal(t, 1, outcome.Created, "case-insensitive title dedup per source URL")
}

type embedFailAI struct{ err error }

func (f embedFailAI) Complete(_ domain.Context, _ string, _ bool) (string, error) {
	return "", f.err
}
func (f embedFailAI) Embed(_ domain.Context, _ []string) ([][]float32, error) {
	return nil, f.err
}

func TestPersistJobsFailsWhenEmbeddingUnconfigured(t *testing.T) {
	jobs := newFakeJobs()
	svc := &ScrapeService{jobs: jobs}

	_, err := svc.persistJobs(context.Background(), embedFailAI{domain.ErrConfigMissing}, "https://x.io/jobs", []extract.JobRecord{
		{Title: "Platform Engineer", Company: "X", SourceURL: "https://x.io/jobs"},
	})
	assert.ErrorIs(t, err, domain.ErrConfigMissing, "missing provider config must fail the run, not be swallowed")
	assert.Empty(t, jobs.embeddings)
}

func TestPersistJobsToleratesTransientEmbedFailure(t *testing.T) {
	jobs := newFakeJobs()
	svc := &ScrapeService{jobs: jobs}

	outcome, err := svc.persistJobs(context.Background(), embedFailAI{domain.ErrUpstreamTimeout}, "https://x.io/jobs", []extract.JobRecord{
		{Title: "Platform Engineer", Company: "X", SourceURL: "https://x.io/jobs"},
	})
	require.NoError(t, err, "transient embed failures leave postings unembedded")
	assert.Equal(t, 1, outcome.Created)
	assert.Empty(t, jobs.embeddings)
}

func TestPersistContactsDedupesByEmail(t *testing.T) {
	contacts := newFakeContacts("jane@acme.io")
	svc := &ScrapeService{contacts: contacts}

	outcome, err := svc.persistContacts(context.Background(), "u1", []extract.ContactRecord{
		{Name: "Jane", Email: "Jane@Acme.IO"},
		{Name: "Bob", Email: "bob@acme.io"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Created)
	require.Len(t, contacts.created, 1)
	assert.Equal(t, "bob@acme.io", contacts.created[0].Email)
}

func TestStatusChangeSubmittedRequiresResume(t *testing.T) {
	apps := &fakeApps{apps: map[string]domain.Application{}}
	id, _ := apps.Create(context.Background(), domain.Application{
		UserID: "u1", CompanyName: "Acme", Status: domain.StatusPrepared,
	})
	svc := NewStatusService(apps)

	_, err := svc.Change(context.Background(), "u1", id, domain.StatusSubmitted, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	got, _ := apps.Get(context.Background(), id)
	assert.Equal(t, domain.StatusPrepared, got.Status, "no partial state on validation failure")
}

func TestStatusChangeStampsAppliedAtOnce(t *testing.T) {
	apps := &fakeApps{apps: map[string]domain.Application{}}
	id, _ := apps.Create(context.Background(), domain.Application{
		UserID: "u1", CompanyName: "Acme", Status: domain.StatusPrepared,
	})
	svc := NewStatusService(apps)
	resumeID := "r1"

	updated, err := svc.Change(context.Background(), "u1", id, domain.StatusSubmitted, &resumeID)
	require.NoError(t, err)
	require.NotNil(t, updated.AppliedAt)
	first := *updated.AppliedAt

	// bounce away and back; AppliedAt must not move
	_, err = svc.Change(context.Background(), "u1", id, domain.StatusAcknowledged, nil)
	require.NoError(t, err)
	updated, err = svc.Change(context.Background(), "u1", id, domain.StatusSubmitted, nil)
	require.NoError(t, err)
	assert.Equal(t, first, *updated.AppliedAt)
}

func TestStatusChangeRejectsUnknownStatus(t *testing.T) {
	svc := NewStatusService(&fakeApps{apps: map[string]domain.Application{}})
	_, err := svc.Change(context.Background(), "u1", "app-1", "daydreaming", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestStatusChangeForeignUserLooksLikeNotFound(t *testing.T) {
	apps := &fakeApps{apps: map[string]domain.Application{}}
	id, _ := apps.Create(context.Background(), domain.Application{
		UserID: "u1", Status: domain.StatusDiscovered,
	})
	_, err := NewStatusService(apps).Change(context.Background(), "u2", id, domain.StatusShortlisted, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContactImportDedup(t *testing.T) {
	contacts := newFakeContacts("dup@corp.io")
	svc := NewContactImportService(contacts)

	outcome, err := svc.Import(context.Background(), "u1",
		"dup@corp.io\tCorp\tDup Person\tRecruiter\n"+
			"new@corp.io\tCorp\tNew Person\tEngineer\n")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Rows)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 1, outcome.Skipped)
}

func TestContactImportCountsMalformedAsSkipped(t *testing.T) {
	contacts := newFakeContacts()
	svc := NewContactImportService(contacts)

	outcome, err := svc.Import(context.Background(), "u1",
		"jane@acme.io\tAcme\tJane Doe\tRecruiter\n"+
			"not-an-email\n")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Rows)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 1, outcome.Skipped, "a content line without an email is skipped, not invisible")
}

func TestParseSectionsBuckets(t *testing.T) {
	text := "Jane Doe\njane@acme.io\n\nSkills\nGo, Python, SQL\n\nWork Experience\nAcme Corp, Senior Engineer\n\nEducation:\nBSc Computer Science\n"
	parsed := ParseSections(text)

	assert.Contains(t, parsed["header"], "Jane Doe")
	assert.Equal(t, "Go, Python, SQL", parsed["skills"])
	assert.Equal(t, "Acme Corp, Senior Engineer", parsed["experience"])
	assert.Equal(t, "BSc Computer Science", parsed["education"])
}

func TestStructuralScore(t *testing.T) {
	assert.Equal(t, 1.0, structuralScore(map[string]string{
		"skills": "x", "education": "x", "experience": "x", "summary": "x",
	}))
	assert.Equal(t, 0.5, structuralScore(map[string]string{
		"skills": "x", "education": "x",
	}))
	assert.Equal(t, 0.0, structuralScore(map[string]string{}))
}

func TestSemanticScoreBounded(t *testing.T) {
	long := ""
	for i := 0; i < 500; i++ {
		long += "word" + strconv.Itoa(i) + " "
	}
	score := semanticScore(long)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.Greater(t, score, semanticScore("short text"))
}
