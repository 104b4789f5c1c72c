package match

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jobintel/jobintel/internal/adapter/vector/qdrant"
	"github.com/jobintel/jobintel/internal/domain"
)

// DigestEntry is one recommended job in a user's digest.
type DigestEntry struct {
	JobID         string
	Title         string
	Company       string
	SourceURL     string
	Overlap       float64
	Justification string
}

// Digester builds per-user digests of recent postings: a vector shortlist
// from qdrant narrowed by lemma overlap with the resume.
type Digester struct {
	vectors *qdrant.Client
	jobs    domain.JobRepository
	resumes domain.ResumeRepository
	lem     *Lemmatizer

	shortlistSize int
	keep          int
	minOverlap    float64
	lookback      time.Duration
}

// NewDigester wires the digest pipeline.
func NewDigester(vectors *qdrant.Client, jobs domain.JobRepository, resumes domain.ResumeRepository, lem *Lemmatizer, shortlistSize, keep int, minOverlap float64) *Digester {
	return &Digester{
		vectors:       vectors,
		jobs:          jobs,
		resumes:       resumes,
		lem:           lem,
		shortlistSize: shortlistSize,
		keep:          keep,
		minOverlap:    minOverlap,
		lookback:      24 * time.Hour,
	}
}

// ForUser builds the digest for one user. The primary resume is the most
// recently embedded one; no embedded resume yields ErrNoResumes.
func (d *Digester) ForUser(ctx domain.Context, userID string) ([]DigestEntry, error) {
	resumes, err := d.resumes.EmbeddedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("op=match.Digest: %w", err)
	}
	if len(resumes) == 0 {
		return nil, fmt.Errorf("op=match.Digest user=%s: %w", userID, domain.ErrNoResumes)
	}
	primary := resumes[0]
	for _, r := range resumes[1:] {
		if r.UpdatedAt.After(primary.UpdatedAt) {
			primary = r
		}
	}

	cutoff := time.Now().Add(-d.lookback)
	hits, err := d.vectors.Search(ctx, qdrant.JobsCollection, primary.Embedding, d.shortlistSize, &cutoff)
	if err != nil {
		return nil, fmt.Errorf("op=match.Digest: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	resumeLemmas := d.lem.LemmaSet(ResumeText(primary))

	var entries []DigestEntry
	for _, hit := range hits {
		job, err := d.jobs.Get(ctx, hit.ID)
		if err != nil {
			slog.Warn("digest shortlist job missing", slog.String("job_id", hit.ID), slog.Any("error", err))
			continue
		}
		jobLemmas := d.lem.LemmaSet(JobText(job))
		ratio, shared := Overlap(resumeLemmas, jobLemmas)
		if ratio < d.minOverlap {
			continue
		}
		entries = append(entries, DigestEntry{
			JobID:         job.ID,
			Title:         job.Title,
			Company:       job.Company,
			SourceURL:     job.SourceURL,
			Overlap:       ratio,
			Justification: justification(shared, len(jobLemmas)),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Overlap > entries[j].Overlap })
	if len(entries) > d.keep {
		entries = entries[:d.keep]
	}
	return entries, nil
}

// justification renders "matches N of M key terms: a, b, c". At most five
// shared terms are shown.
func justification(shared []string, jobTerms int) string {
	sort.Strings(shared)
	sample := shared
	if len(sample) > 5 {
		sample = sample[:5]
	}
	return fmt.Sprintf("matches %d of %d key terms: %s",
		len(shared), jobTerms, strings.Join(sample, ", "))
}
