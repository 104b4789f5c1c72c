package recognize

import (
	"regexp"
	"strings"
)

// ContactRow is one recognized contact from pasted text.
type ContactRow struct {
	Email   string
	Name    string
	Company string
	Role    string
}

var (
	multiSpaceRE = regexp.MustCompile(`\s{2,}`)

	roleKeywords = []string{
		"recruiter", "hr", "manager", "engineer", "developer",
		"founder", "ceo", "vp", "lead",
	}
)

// ParseContactLines turns pasted spreadsheet-style text into contact rows.
// Lines are split on tabs or runs of spaces; the expected column order is
// email, company, name, role, but the email column is located positionally
// when the order differs. NER fills missing name/company. Rows that end up
// without an email or a company are dropped, and dropped reports how many
// content lines were lost that way so callers can surface the count.
func ParseContactLines(text string) (rows []ContactRow, dropped int) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Email\tName") {
			continue
		}
		email := EmailRE.FindString(line)
		if email == "" {
			dropped++
			continue
		}

		var parts []string
		switch {
		case strings.Contains(line, "\t"):
			parts = splitNonEmpty(line, "\t")
		case multiSpaceRE.MatchString(line):
			parts = splitFieldsRE(line)
		}

		var name, company, role string
		if len(parts) >= 2 {
			idx := -1
			for i, p := range parts {
				if strings.Contains(p, email) {
					idx = i
					break
				}
			}
			if idx >= 0 {
				if idx+1 < len(parts) {
					company = parts[idx+1]
				}
				if idx+2 < len(parts) {
					name = parts[idx+2]
				}
				if idx+3 < len(parts) {
					role = parts[idx+3]
				}
			}
		}

		if company == "" || name == "" {
			ents := ExtractEntities(line)
			if name == "" {
				for _, p := range ents.People {
					if !strings.Contains(p, "@") {
						name = p
						break
					}
				}
			}
			if company == "" && len(ents.Orgs) > 0 {
				company = ents.Orgs[0]
			}
		}

		if role == "" {
			for _, p := range parts {
				if containsAnyFold(p, roleKeywords) {
					role = p
					break
				}
			}
		}

		if company == "" && !IsFreemail(email) {
			company = titleCase(Domain(email))
		}
		if company == "" {
			// freemail address with no org signal: too low value to keep
			dropped++
			continue
		}

		rows = append(rows, ContactRow{Email: email, Name: name, Company: company, Role: role})
	}
	return rows, dropped
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitFieldsRE(s string) []string {
	var out []string
	for _, p := range multiSpaceRE.Split(s, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsAnyFold(s string, kws []string) bool {
	ls := strings.ToLower(s)
	for _, kw := range kws {
		if strings.Contains(ls, kw) {
			return true
		}
	}
	return false
}
