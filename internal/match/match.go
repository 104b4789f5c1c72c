package match

import (
	"fmt"

	"github.com/jobintel/jobintel/internal/domain"
)

// BestResult is the winner of a best-match query.
type BestResult struct {
	ResumeID string
	Score    float64
	Distance float64
}

// Engine answers per-job match queries over the persisted embeddings.
type Engine struct {
	jobs    domain.JobRepository
	resumes domain.ResumeRepository
}

// NewEngine wires the match engine.
func NewEngine(jobs domain.JobRepository, resumes domain.ResumeRepository) *Engine {
	return &Engine{jobs: jobs, resumes: resumes}
}

// BestMatch returns the user's closest resume to the job by cosine
// distance. An unembedded job yields ErrNoEmbedding; a user with no
// embedded resumes yields ErrNoResumes.
func (e *Engine) BestMatch(ctx domain.Context, jobID, userID string) (BestResult, error) {
	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return BestResult{}, fmt.Errorf("op=match.BestMatch: %w", err)
	}
	if !job.Embedded() {
		return BestResult{}, fmt.Errorf("op=match.BestMatch job=%s: %w", jobID, domain.ErrNoEmbedding)
	}

	resumes, err := e.resumes.EmbeddedByUser(ctx, userID)
	if err != nil {
		return BestResult{}, fmt.Errorf("op=match.BestMatch: %w", err)
	}
	if len(resumes) == 0 {
		return BestResult{}, fmt.Errorf("op=match.BestMatch user=%s: %w", userID, domain.ErrNoResumes)
	}

	best := BestResult{Distance: 3} // above the metric's upper bound
	for _, r := range resumes {
		d := CosineDistance(r.Embedding, job.Embedding)
		if d < best.Distance {
			best = BestResult{ResumeID: r.ID, Distance: d, Score: Score(d)}
		}
	}
	return best, nil
}
