package extract

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkoukk/tiktoken-go"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/pkg/textx"
)

// aiTokenBudget caps the page text sent to the model. Listing pages are
// front-loaded; anything past this is boilerplate.
const aiTokenBudget = 6000

const aiExtractPrompt = `Extract every job posting from the page text below.
Return a JSON array of objects with exactly these keys:
"title", "company", "location", "description".
Use "Unknown" for a missing company and "Not specified" for a missing location.
Return [] if the page contains no job postings.

PAGE TEXT:
`

// ParseWithAI asks the user's LLM to extract postings from the visible
// page text. Failures of any kind degrade to an empty result; this stage
// supplements the cascade, it never aborts it.
func ParseWithAI(ctx domain.Context, client domain.AIClient, doc *goquery.Document, sourceURL string) []JobRecord {
	if client == nil {
		return nil
	}
	text := visibleText(doc)
	if text == "" {
		return nil
	}
	text = truncateTokens(text, aiTokenBudget)

	reply, err := client.Complete(ctx, aiExtractPrompt+text, true)
	if err != nil {
		slog.Warn("ai extraction failed", slog.String("url", sourceURL), slog.Any("error", err))
		return nil
	}

	var raw []struct {
		Title       string `json:"title"`
		Company     string `json:"company"`
		Location    string `json:"location"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		// some models wrap the array in an object
		var wrapped struct {
			Jobs []struct {
				Title       string `json:"title"`
				Company     string `json:"company"`
				Location    string `json:"location"`
				Description string `json:"description"`
			} `json:"jobs"`
		}
		if err2 := json.Unmarshal([]byte(reply), &wrapped); err2 != nil {
			slog.Warn("ai extraction returned unparseable json", slog.String("url", sourceURL))
			return nil
		}
		raw = wrapped.Jobs
	}

	var jobs []JobRecord
	seen := map[string]bool{}
	for _, r := range raw {
		title := strings.TrimSpace(r.Title)
		if len(title) < 3 || len(title) > maxTitleChars {
			continue
		}
		k := dedupeKey(title)
		if seen[k] {
			continue
		}
		seen[k] = true
		jobs = append(jobs, JobRecord{
			Title:       title,
			Company:     clip(textx.FirstNonEmpty(strings.TrimSpace(r.Company), "Unknown"), maxFieldChars),
			Location:    clip(textx.FirstNonEmpty(strings.TrimSpace(r.Location), unknownLocation), maxFieldChars),
			Description: clip(textx.FirstNonEmpty(textx.CollapseWhitespace(r.Description), title), maxDescChars),
			SourceURL:   sourceURL,
		})
	}
	return jobs
}

// visibleText renders the page as the text a reader would see, dropping
// scripts, styles, chrome and hidden nodes.
func visibleText(doc *goquery.Document) string {
	clone := doc.Selection.Clone()
	clone.Find("script,style,noscript,nav,header,footer,[hidden]").Remove()
	clone.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			s.Remove()
		}
	})
	return textx.CollapseWhitespace(clone.Text())
}

// truncateTokens caps text at budget tokens, falling back to a character
// cap if the encoder is unavailable.
func truncateTokens(text string, budget int) string {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return textx.Truncate(text, budget*4)
	}
	toks := enc.Encode(text, nil, nil)
	if len(toks) <= budget {
		return text
	}
	return enc.Decode(toks[:budget])
}
