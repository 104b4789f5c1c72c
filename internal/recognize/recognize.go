// Package recognize holds the shared text-to-entity heuristics used by both
// the extraction and reconciliation engines: a job-title lexicon, NER-based
// organization/location detection, and email/contact parsing.
package recognize

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/jobintel/jobintel/pkg/textx"
)

// titleKeywords is the role lexicon. A candidate title must contain one of
// these to be accepted.
var titleKeywords = []string{
	"engineer", "developer", "manager", "designer", "director", "specialist",
	"vp", "president", "associate", "analyst", "representative", "coordinator",
	"intern", "lead", "architect", "consultant", "technician", "administrator",
	"writer", "recruiter", "executive",
}

const (
	minTitleLen = 5
	maxTitleLen = 80

	// nerInputCap bounds NER input; entity quality degrades long before this.
	nerInputCap = 100000
)

// IsJobTitle reports whether s looks like a job title: length-bounded and
// containing a role keyword.
func IsJobTitle(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < minTitleLen || len(s) > maxTitleLen {
		return false
	}
	return HasRoleKeyword(s)
}

// HasRoleKeyword reports whether s mentions any role from the lexicon,
// with no length bound. Callers with looser bounds use this directly.
func HasRoleKeyword(s string) bool {
	s = strings.ToLower(s)
	for _, kw := range titleKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// EmailRE matches bare email addresses inside free text.
var EmailRE = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// FindEmails returns all email addresses in text, in document order.
func FindEmails(text string) []string {
	return EmailRE.FindAllString(text, -1)
}

// Domain returns the first domain label of an email, e.g. "acme" for
// "jane@acme.io", or "" when addr is not an address.
func Domain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	host := addr[at+1:]
	if dot := strings.Index(host, "."); dot > 0 {
		host = host[:dot]
	}
	return strings.ToLower(host)
}

// freemailDomains are providers that never identify an employer.
var freemailDomains = map[string]bool{
	"gmail": true, "outlook": true, "hotmail": true, "yahoo": true, "protonmail": true,
}

// IsFreemail reports whether the email's domain is a personal mail provider.
func IsFreemail(addr string) bool { return freemailDomains[Domain(addr)] }

// NameFromLocalPart derives a display name from an address local part:
// "jane.m_doe@x.com" -> "Jane M Doe".
func NameFromLocalPart(addr string) string {
	local := addr
	if at := strings.Index(addr, "@"); at >= 0 {
		local = addr[:at]
	}
	r := strings.NewReplacer(".", " ", "_", " ", "-", " ")
	return titleCase(r.Replace(local))
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Entities are the typed spans recognized in a block of text.
type Entities struct {
	Orgs      []string
	Locations []string
	People    []string
}

// ExtractEntities runs NER over text and buckets organization, location and
// person spans. Spans shorter than 3 runes are noise and dropped. Errors from
// the model degrade to an empty result; callers always have fallbacks.
func ExtractEntities(text string) Entities {
	text = textx.Truncate(text, nerInputCap)
	doc, err := prose.NewDocument(text)
	if err != nil {
		return Entities{}
	}
	var out Entities
	seen := map[string]bool{}
	for _, ent := range doc.Entities() {
		span := strings.TrimSpace(ent.Text)
		if len([]rune(span)) < 3 || seen[strings.ToLower(span)] {
			continue
		}
		seen[strings.ToLower(span)] = true
		switch ent.Label {
		case "ORG":
			out.Orgs = append(out.Orgs, span)
		case "GPE", "LOC":
			out.Locations = append(out.Locations, span)
		case "PERSON":
			out.People = append(out.People, span)
		}
	}
	return out
}

// Tokenize splits text into word tokens without tagging or entity extraction.
func Tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return strings.Fields(text)
	}
	toks := doc.Tokens()
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Text)
	}
	return out
}
