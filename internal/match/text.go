// Package match scores resumes against job postings: embedding distance
// for the per-job best match, and a two-stage vector shortlist plus
// lexical re-rank for the daily digest.
package match

import (
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/recognize"
	"github.com/jobintel/jobintel/pkg/textx"
)

// resumeTextCap bounds embedded resume text; relevance lives up front.
const resumeTextCap = 8000

// JobText renders the canonical embedding text for a posting.
func JobText(j domain.JobPosting) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(j.Title)
	b.WriteString("\nCompany: ")
	b.WriteString(j.Company)
	b.WriteString("\nDescription: ")
	b.WriteString(j.Description)
	return b.String()
}

// ResumeText renders the canonical embedding text for a resume.
func ResumeText(r domain.Resume) string {
	return textx.Truncate(r.RawText, resumeTextCap)
}

// stopwords are dropped before lemma overlap; they carry no signal about
// fit and inflate every ratio.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "our": true, "that": true, "the": true, "their": true,
	"this": true, "to": true, "was": true, "we": true, "will": true,
	"with": true, "you": true, "your": true,
}

// Lemmatizer normalizes tokens to dictionary form.
type Lemmatizer struct {
	lem *golem.Lemmatizer
}

// NewLemmatizer loads the English dictionary.
func NewLemmatizer() (*Lemmatizer, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, err
	}
	return &Lemmatizer{lem: lem}, nil
}

// LemmaSet tokenizes text and returns the set of lowercased lemmas with
// stopwords and non-word tokens removed.
func (l *Lemmatizer) LemmaSet(text string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range recognize.Tokenize(text) {
		tok = strings.ToLower(strings.TrimFunc(tok, func(r rune) bool {
			return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
		}))
		if len(tok) < 2 || stopwords[tok] {
			continue
		}
		lemma := l.lem.Lemma(tok)
		if lemma == "" {
			lemma = tok
		}
		out[lemma] = true
	}
	return out
}

// Overlap computes |resume ∩ job| / |job| plus the shared lemmas. A job
// with no content lemmas has ratio 0.
func Overlap(resume, job map[string]bool) (float64, []string) {
	if len(job) == 0 {
		return 0, nil
	}
	var shared []string
	for lemma := range job {
		if resume[lemma] {
			shared = append(shared, lemma)
		}
	}
	return float64(len(shared)) / float64(len(job)), shared
}
