package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobintel/jobintel/internal/recognize"
)

// emailBlacklist drops role addresses that never identify a person.
var emailBlacklist = []string{
	"noreply", "no-reply", "info@", "support@", "admin@",
	"webmaster@", "contact@", "hello@", "sales@", "marketing@",
}

const maxContacts = 30

// ParseContacts pulls person-shaped email contacts from page text.
func ParseContacts(doc *goquery.Document, sourceURL string) []ContactRecord {
	var out []ContactRecord
	seen := map[string]bool{}
	for _, email := range recognize.FindEmails(doc.Text()) {
		if len(out) >= maxContacts {
			break
		}
		lower := strings.ToLower(email)
		if seen[lower] || blacklisted(lower) {
			continue
		}
		seen[lower] = true
		out = append(out, ContactRecord{
			Name:      recognize.NameFromLocalPart(email),
			Email:     email,
			Role:      "Contact",
			Company:   titleWord(recognize.Domain(email)),
			SourceURL: sourceURL,
		})
	}
	return out
}

func blacklisted(email string) bool {
	for _, bl := range emailBlacklist {
		if strings.Contains(email, bl) {
			return true
		}
	}
	return false
}

func titleWord(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
