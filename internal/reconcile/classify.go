// Package reconcile folds inbox signals back into the application
// tracker: classify each hiring-related message, bind it to an
// application, and advance status monotonically.
package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/recognize"
)

// Classification is the structured reading of one message.
type Classification struct {
	Company      string
	Role         string
	Location     string
	ContactName  string
	ContactEmail string
	// Status is empty when the message carries no status signal.
	Status domain.EmailStatus
}

var (
	roleSubjectRE = regexp.MustCompile(`application for (.+?)(?: at |$)|application to .+? for (.+?)$|interest in the (.+?) position`)
	locationRE    = regexp.MustCompile(`based in (.+?)(?:\.|,|$)|location: (.+?)(?:\.|,|$)`)
	companyRE     = regexp.MustCompile(`application to (.+?) (?:was sent|for)|application for .+? at (.+?)\b|application for (.+?)\b|applying to (.+?)\b|interest in (.+?)\b`)
	senderAddrRE  = regexp.MustCompile(`<(.*?)>`)
	senderNameRE  = regexp.MustCompile(`(.+?) via |recruiting [-|] (.+?)$|(.+?) recruiting`)
)

// atsDomains are mail domains that hide the real employer: personal
// providers, applicant tracking systems and job boards.
var atsDomains = map[string]bool{
	"gmail": true, "yahoo": true, "hotmail": true, "outlook": true,
	"greenhouse": true, "lever": true, "workday": true, "ashbyhq": true,
	"myworkday": true, "linkedin": true, "bamboohr": true, "talent": true,
	"recruiting": true, "smartrecruiters": true, "icims": true,
	"jobvite": true, "breezy": true, "angel": true, "wellfound": true,
}

// junkCompanies are extraction artifacts that can never bind a message.
var junkCompanies = map[string]bool{
	"unknown": true, "linkedin": true, "greenhouse": true,
	"application": true, "software engineer": true, "resume": true,
}

// statusKeywords drive the deterministic status read, checked in priority
// order so an offer mail mentioning "interview" still reads as selected.
var statusPriority = []struct {
	status   domain.EmailStatus
	keywords []string
}{
	{domain.EmailSelected, []string{"offer", "congratulations", "compensation package"}},
	{domain.EmailRejected, []string{"unfortunately", "not moving forward", "other candidates", "regret to inform"}},
	{domain.EmailAssessment, []string{"assessment", "online test", "hackerrank", "hacker rank", "coding challenge"}},
	{domain.EmailInterviewed, []string{"interview", "schedule", "availability", "next steps", "invite", "calendly"}},
	{domain.EmailApplied, []string{"received", "thank you for applying", "confirmed"}},
}

const classifyPrompt = `Classify the job-search email below.
Return a JSON object with exactly these keys:
"company" (employer name, "" if unclear),
"role" (position title, "" if unclear),
"location" ("" if unclear),
"status" (one of: applied, interviewed, assessment, selected, rejected, none).

FROM: %s
SUBJECT: %s
BODY:
%s`

// Classify reads one message, preferring the LLM and falling back to the
// deterministic heuristics on any failure. Contact fields always come
// from the sender header.
func Classify(ctx domain.Context, ai domain.AIClient, msg domain.MailMessage, knownCompanies []string) Classification {
	cls := classifyDeterministic(msg, knownCompanies)
	if ai == nil {
		return cls
	}

	reply, err := ai.Complete(ctx, fmt.Sprintf(classifyPrompt, msg.Sender, msg.Subject, msg.Body), true)
	if err != nil {
		slog.Debug("llm classification failed, using heuristics", slog.String("message_id", msg.ID), slog.Any("error", err))
		return cls
	}
	var out struct {
		Company  string `json:"company"`
		Role     string `json:"role"`
		Location string `json:"location"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal([]byte(reply), &out); err != nil {
		slog.Debug("llm classification unparseable, using heuristics", slog.String("message_id", msg.ID))
		return cls
	}

	if company := strings.TrimSpace(out.Company); company != "" && !junkCompanies[strings.ToLower(company)] {
		cls.Company = company
	}
	if role := strings.TrimSpace(out.Role); role != "" {
		cls.Role = role
	}
	if loc := strings.TrimSpace(out.Location); loc != "" {
		cls.Location = loc
	}
	if st, ok := domain.ParseEmailStatus(out.Status); ok {
		cls.Status = st
	}
	return cls
}

// classifyDeterministic is the zero-cost path: subject regexes, keyword
// tables and sender-domain heuristics.
func classifyDeterministic(msg domain.MailMessage, knownCompanies []string) Classification {
	subject := strings.ToLower(msg.Subject)
	text := subject + " " + strings.ToLower(msg.Body)
	sender := strings.ToLower(msg.Sender)

	cls := Classification{
		Company:  extractCompany(subject, sender, knownCompanies),
		Location: extractLocation(text),
		Status:   detectStatus(text),
	}
	if role := firstGroup(roleSubjectRE.FindStringSubmatch(subject)); role != "" {
		cls.Role = titleCase(role)
	}
	cls.ContactName, cls.ContactEmail = senderContact(msg.Sender)
	return cls
}

func extractCompany(subject, sender string, knownCompanies []string) string {
	// confirmation subjects name the employer directly
	if m := companyRE.FindStringSubmatch(subject); m != nil {
		if company := lastGroup(m); company != "" {
			return titleCase(company)
		}
	}

	// sender domain, unless it belongs to an ATS or mail provider
	if addr := recognize.EmailRE.FindString(sender); addr != "" {
		if d := recognize.Domain(addr); d != "" && !atsDomains[d] {
			return titleCase(d)
		}
	}

	// "Stripe via Greenhouse" style sender names
	namePart := strings.TrimSpace(strings.SplitN(sender, "<", 2)[0])
	if m := senderNameRE.FindStringSubmatch(namePart); m != nil {
		if company := lastGroup(m); company != "" {
			return titleCase(company)
		}
	}

	// tracked companies mentioned by name
	for _, known := range knownCompanies {
		k := strings.ToLower(known)
		if k != "" && (strings.Contains(namePart, k) || strings.Contains(subject, k)) {
			return known
		}
	}
	return ""
}

func extractLocation(text string) string {
	if strings.Contains(text, "remote") {
		return "Remote"
	}
	if m := locationRE.FindStringSubmatch(text); m != nil {
		if loc := firstGroup(m); loc != "" {
			return titleCase(loc)
		}
	}
	return ""
}

func detectStatus(text string) domain.EmailStatus {
	for _, row := range statusPriority {
		for _, kw := range row.keywords {
			if strings.Contains(text, kw) {
				return row.status
			}
		}
	}
	return ""
}

// senderContact splits `Name <addr>` headers; bare addresses fall back to
// a name derived from the local part.
func senderContact(sender string) (name, email string) {
	if m := senderAddrRE.FindStringSubmatch(sender); m != nil {
		email = strings.TrimSpace(m[1])
		name = strings.TrimSpace(strings.SplitN(sender, "<", 2)[0])
		if name == "" {
			name = recognize.NameFromLocalPart(email)
		}
		return name, email
	}
	email = strings.TrimSpace(sender)
	return recognize.NameFromLocalPart(email), email
}

// Bindable reports whether the extracted company can anchor a message to
// an application.
func (c Classification) Bindable() bool {
	return c.Company != "" && !junkCompanies[strings.ToLower(c.Company)]
}

func firstGroup(m []string) string {
	if len(m) == 0 {
		return ""
	}
	for _, g := range m[1:] {
		if g = strings.TrimSpace(g); g != "" {
			return g
		}
	}
	return ""
}

func lastGroup(m []string) string {
	if len(m) == 0 {
		return ""
	}
	out := ""
	for _, g := range m[1:] {
		if g = strings.TrimSpace(g); g != "" {
			out = g
		}
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
