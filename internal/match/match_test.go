package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobintel/jobintel/internal/domain"
)

func TestCosineDistance(t *testing.T) {
	a := []float32{0.5, 0.5, 0}
	assert.InDelta(t, 0, CosineDistance(a, a), 1e-9, "identical vectors")

	b := []float32{-0.5, -0.5, 0}
	assert.InDelta(t, 2, CosineDistance(a, b), 1e-9, "opposite vectors")

	c := []float32{0, 0, 1}
	assert.InDelta(t, 1, CosineDistance(a, c), 1e-9, "orthogonal vectors")

	assert.Equal(t, float64(2), CosineDistance(a, []float32{1}), "length mismatch")
	assert.Equal(t, float64(2), CosineDistance(a, []float32{0, 0, 0}), "zero vector")
}

func TestScore(t *testing.T) {
	assert.Equal(t, 100.0, Score(0))
	assert.Equal(t, 0.0, Score(2))
	assert.Equal(t, 50.0, Score(1))
	assert.Equal(t, 82.51, Score(0.3498), "rounded to two decimals")
	assert.Equal(t, 0.0, Score(2.5), "clamped below")
	assert.Equal(t, 100.0, Score(-0.1), "clamped above")
}

type fakeJobs struct {
	jobs map[string]domain.JobPosting
}

func (f *fakeJobs) Create(_ domain.Context, j domain.JobPosting) (string, error) { return j.ID, nil }
func (f *fakeJobs) Get(_ domain.Context, id string) (domain.JobPosting, error) {
	j, ok := f.jobs[id]
	if !ok {
		return domain.JobPosting{}, domain.ErrNotFound
	}
	return j, nil
}
func (f *fakeJobs) TitlesBySourceURL(_ domain.Context, _ string) (map[string]bool, error) {
	return nil, nil
}
func (f *fakeJobs) SetEmbedding(_ domain.Context, _ string, _ []float32) error { return nil }
func (f *fakeJobs) CreatedSince(_ domain.Context, _ time.Time) ([]domain.JobPosting, error) {
	return nil, nil
}

type fakeResumes struct {
	byUser map[string][]domain.Resume
}

func (f *fakeResumes) CreatePending(_ domain.Context, _ domain.Resume) (string, error) {
	return "", nil
}
func (f *fakeResumes) Get(_ domain.Context, _ string) (domain.Resume, error) {
	return domain.Resume{}, domain.ErrNotFound
}
func (f *fakeResumes) EmbeddedByUser(_ domain.Context, userID string) ([]domain.Resume, error) {
	return f.byUser[userID], nil
}
func (f *fakeResumes) SetStatus(_ domain.Context, _ string, _ domain.ResumeStatus) error {
	return nil
}
func (f *fakeResumes) FinishParse(_ domain.Context, _ domain.Resume) error { return nil }

func TestBestMatchPicksClosestResume(t *testing.T) {
	jobs := &fakeJobs{jobs: map[string]domain.JobPosting{
		"j1": {ID: "j1", Embedding: []float32{1, 0, 0}},
	}}
	resumes := &fakeResumes{byUser: map[string][]domain.Resume{
		"u1": {
			{ID: "r1", Embedding: []float32{0, 1, 0}},
			{ID: "r2", Embedding: []float32{1, 0, 0}},
		},
	}}

	best, err := NewEngine(jobs, resumes).BestMatch(context.Background(), "j1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "r2", best.ResumeID)
	assert.Equal(t, 100.0, best.Score, "identical embedding scores a perfect 100")
}

func TestBestMatchErrors(t *testing.T) {
	jobs := &fakeJobs{jobs: map[string]domain.JobPosting{
		"unembedded": {ID: "unembedded"},
		"ok":         {ID: "ok", Embedding: []float32{1, 0}},
	}}
	resumes := &fakeResumes{byUser: map[string][]domain.Resume{}}
	e := NewEngine(jobs, resumes)
	ctx := context.Background()

	_, err := e.BestMatch(ctx, "missing", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.BestMatch(ctx, "unembedded", "u1")
	assert.ErrorIs(t, err, domain.ErrNoEmbedding)

	_, err = e.BestMatch(ctx, "ok", "u1")
	assert.ErrorIs(t, err, domain.ErrNoResumes)
}

func TestLemmaSetAndOverlap(t *testing.T) {
	lem, err := NewLemmatizer()
	require.NoError(t, err)

	job := lem.LemmaSet("Building distributed systems and APIs")
	resume := lem.LemmaSet("I build distributed systems with Go APIs.")

	assert.Contains(t, job, "build", "gerund lemmatized to base form")

	ratio, shared := Overlap(resume, job)
	assert.Greater(t, ratio, 0.5)
	assert.NotEmpty(t, shared)

	zero, _ := Overlap(resume, map[string]bool{})
	assert.Zero(t, zero, "empty job lemma set")
}

func TestJobAndResumeText(t *testing.T) {
	j := domain.JobPosting{Title: "SRE", Company: "Acme", Description: "Keep it up"}
	text := JobText(j)
	assert.Contains(t, text, "Title: SRE")
	assert.Contains(t, text, "Company: Acme")

	long := make([]byte, 10000)
	for i := range long {
		long[i] = 'x'
	}
	r := domain.Resume{RawText: string(long)}
	assert.Len(t, ResumeText(r), 8000)
}
