package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobintel/jobintel/internal/recognize"
	"github.com/jobintel/jobintel/pkg/textx"
)

var (
	containerClassRE = regexp.MustCompile(`(?i)job|posting|listing|position|vacancy|career|opening`)
	companyClassRE   = regexp.MustCompile(`(?i)company|employer|org`)
	locationClassRE  = regexp.MustCompile(`(?i)location|city|place|region`)
	// uiChromeRE matches button/metadata text that is never a company name.
	uiChromeRE = regexp.MustCompile(`(?i)apply|submit|save|posted|ago`)
)

const (
	containerScanLimit = 50
	headingScanLimit   = 100
)

// ParseGeneric runs the class-pattern container scan and, when that yields
// little, a looser heading scan. This is the strategy of last resort
// before spending LLM tokens.
func ParseGeneric(doc *goquery.Document, sourceURL string) []JobRecord {
	jobs := parseContainers(doc, sourceURL)
	if len(jobs) < 3 {
		seen := make(map[string]bool, len(jobs))
		for _, j := range jobs {
			seen[dedupeKey(j.Title)] = true
		}
		jobs = mergeJobs(jobs, parseHeadings(doc, sourceURL), seen)
	}
	return jobs
}

// parseContainers finds listing containers by common CSS class patterns.
func parseContainers(doc *goquery.Document, sourceURL string) []JobRecord {
	var jobs []JobRecord
	seen := map[string]bool{}

	collect := func(sel *goquery.Selection, needClassMatch bool) {
		count := 0
		sel.EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if count >= containerScanLimit {
				return false
			}
			if needClassMatch {
				cls, _ := el.Attr("class")
				if !containerClassRE.MatchString(cls) {
					return true
				}
			}
			count++

			title := strings.TrimSpace(el.Find("h1,h2,h3,h4,a").First().Text())
			if len(title) < 5 || len(title) > maxTitleChars {
				return true
			}
			k := dedupeKey(title)
			if seen[k] {
				return true
			}
			seen[k] = true

			company, location := scanFieldClasses(el, title)
			fullText := textx.CollapseWhitespace(el.Text())
			jobs = append(jobs, JobRecord{
				Title:       title,
				Company:     clip(company, maxFieldChars),
				Location:    clip(location, maxFieldChars),
				Description: clip(textx.FirstNonEmpty(fullText, title), maxDescChars),
				SourceURL:   sourceURL,
			})
			return true
		})
	}

	collect(doc.Find("div,li,tr"), true)
	collect(doc.Find("article"), false)
	return jobs
}

// scanFieldClasses reads company/location from labelled child nodes, then
// falls back to the first short sibling text that isn't UI chrome.
func scanFieldClasses(el *goquery.Selection, title string) (company, location string) {
	company, location = "Unknown", unknownLocation
	el.Find("span,div,p,small").EachWithBreak(func(i int, sub *goquery.Selection) bool {
		if i >= 10 {
			return false
		}
		text := strings.TrimSpace(sub.Text())
		if text == "" {
			return true
		}
		cls, _ := sub.Attr("class")
		switch {
		case companyClassRE.MatchString(cls):
			company = clip(text, 100)
		case locationClassRE.MatchString(cls):
			location = clip(text, 100)
		}
		return true
	})
	if company == "Unknown" {
		el.Find("span,p,div,small").EachWithBreak(func(i int, sub *goquery.Selection) bool {
			if i >= 8 {
				return false
			}
			text := strings.TrimSpace(sub.Text())
			if text != "" && text != title && len(text) > 3 && len(text) < 60 && !uiChromeRE.MatchString(text) {
				company = text
				return false
			}
			return true
		})
	}
	return company, location
}

// parseHeadings scans headings and anchors for role-shaped text and pulls
// context from the enclosing block.
func parseHeadings(doc *goquery.Document, sourceURL string) []JobRecord {
	var jobs []JobRecord
	seen := map[string]bool{}
	doc.Find("h1,h2,h3,h4,a").EachWithBreak(func(i int, el *goquery.Selection) bool {
		if i >= headingScanLimit {
			return false
		}
		title := strings.TrimSpace(el.Text())
		if len(title) < 8 || len(title) > maxTitleChars || !recognize.HasRoleKeyword(title) {
			return true
		}
		k := dedupeKey(title)
		if seen[k] {
			return true
		}
		seen[k] = true

		desc, company := "", ""
		parent := el.Closest("div,li,article,section,tr")
		if parent.Length() > 0 {
			desc = clip(textx.CollapseWhitespace(parent.Text()), 300)
			parent.Find("span,p,small,div").EachWithBreak(func(j int, sub *goquery.Selection) bool {
				if j >= 5 {
					return false
				}
				text := strings.TrimSpace(sub.Text())
				if text != "" && text != title && len(text) < 60 && !uiChromeRE.MatchString(text) {
					company = text
					return false
				}
				return true
			})
		}
		location := unknownLocation
		if strings.Contains(strings.ToLower(desc), "remote") {
			location = "Remote"
		}
		jobs = append(jobs, JobRecord{
			Title:       title,
			Company:     textx.FirstNonEmpty(company, "Unknown"),
			Location:    location,
			Description: textx.FirstNonEmpty(desc, title),
			SourceURL:   sourceURL,
		})
		return true
	})
	return jobs
}
