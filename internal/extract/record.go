// Package extract turns arbitrary listing pages into structured job and
// contact records via a multi-strategy cascade: structured data first,
// site-specific rules next, DOM heuristics after that, and an LLM pass
// only when the cheap strategies come up short.
package extract

import "strings"

// JobRecord is one extracted posting, pre-persistence.
type JobRecord struct {
	Title       string
	Company     string
	Location    string
	Description string
	SourceURL   string
}

// ContactRecord is one extracted outreach contact.
type ContactRecord struct {
	Name      string
	Email     string
	Role      string
	Company   string
	SourceURL string
}

const (
	maxTitleChars = 200
	maxFieldChars = 200
	maxDescChars  = 1000

	unknownCompany  = "Unknown Company"
	unknownLocation = "Not specified"
)

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// dedupeKey normalizes a title for uniqueness checks.
func dedupeKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// mergeJobs appends src records whose titles are not yet in seen.
func mergeJobs(dst []JobRecord, src []JobRecord, seen map[string]bool) []JobRecord {
	for _, j := range src {
		k := dedupeKey(j.Title)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		dst = append(dst, j)
	}
	return dst
}
