package usecase

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/match"
	"github.com/jobintel/jobintel/internal/recognize"
)

// sectionHeadings maps résumé heading keywords to parse buckets.
var sectionHeadings = map[string]string{
	"skill":          "skills",
	"technolog":      "skills",
	"competenc":      "skills",
	"education":      "education",
	"academic":       "education",
	"degree":         "education",
	"experience":     "experience",
	"employment":     "experience",
	"work history":   "experience",
	"career":         "experience",
	"summary":        "summary",
	"objective":      "summary",
	"profile":        "summary",
	"project":        "projects",
	"certification":  "certifications",
	"certificate":    "certifications",
	"accomplishment": "achievements",
	"achievement":    "achievements",
}

// ResumeService runs the asynchronous résumé ingest: text extraction,
// structural parse, quality scores, embedding, one final update.
type ResumeService struct {
	resumes   domain.ResumeRepository
	logs      domain.ActionLogRepository
	settings  domain.SettingsRepository
	extractor domain.TextExtractor
	ai        AIFactory
}

// NewResumeService wires a ResumeService.
func NewResumeService(resumes domain.ResumeRepository, logs domain.ActionLogRepository, settings domain.SettingsRepository, extractor domain.TextExtractor, ai AIFactory) *ResumeService {
	return &ResumeService{
		resumes:   resumes,
		logs:      logs,
		settings:  settings,
		extractor: extractor,
		ai:        ai,
	}
}

// Register stores a pending résumé row for an upload staged at path.
func (s *ResumeService) Register(ctx domain.Context, userID, filename, label string) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	id, err := s.resumes.CreatePending(ctx, domain.Resume{
		UserID:   userID,
		Filename: filename,
		Format:   format,
		Label:    label,
	})
	if err != nil {
		return "", fmt.Errorf("op=resume.Register: %w", err)
	}
	return id, nil
}

// Process runs the full ingest for one résumé. The résumé mutates exactly
// once at the end: either FinishParse to completed or a status flip to
// error. The queue serializes runs per résumé.
func (s *ResumeService) Process(ctx domain.Context, userID, resumeID, path, filename string) error {
	logID, err := s.logs.Create(ctx, domain.ActionLog{
		UserID:     userID,
		ActionType: domain.ActionResumeParse,
		Status:     domain.ActionRunning,
		Message:    "parsing " + filename,
	})
	if err != nil {
		return fmt.Errorf("op=resume.Process: %w", err)
	}

	if err := s.process(ctx, userID, resumeID, path, filename); err != nil {
		_ = s.resumes.SetStatus(ctx, resumeID, domain.ResumeError)
		_ = s.logs.Finalize(ctx, logID, domain.ActionFailed, err.Error())
		return err
	}
	_ = s.logs.Finalize(ctx, logID, domain.ActionSuccess, "resume parsed")
	return nil
}

func (s *ResumeService) process(ctx domain.Context, userID, resumeID, path, filename string) error {
	res, err := s.resumes.Get(ctx, resumeID)
	if err != nil {
		return fmt.Errorf("op=resume.process: %w", err)
	}
	if err := s.resumes.SetStatus(ctx, resumeID, domain.ResumeProcessing); err != nil {
		return fmt.Errorf("op=resume.process: %w", err)
	}

	text, err := s.extractor.ExtractPath(ctx, filename, path)
	if err != nil {
		return fmt.Errorf("op=resume.process id=%s: %w", resumeID, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("op=resume.process id=%s: %w: no extractable text", resumeID, domain.ErrInvalidArgument)
	}

	res.RawText = text
	res.Parsed = ParseSections(text)
	res.StructuralScore = structuralScore(res.Parsed)
	res.SemanticScore = semanticScore(text)
	res.Status = domain.ResumeCompleted

	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		slog.Warn("settings missing, embedding with defaults", slog.String("user_id", userID), slog.Any("error", err))
		settings = domain.UserSettings{UserID: userID}
	}
	vecs, err := s.ai.For(settings).Embed(ctx, []string{match.ResumeText(res)})
	if err != nil || len(vecs) != 1 {
		return fmt.Errorf("op=resume.process id=%s: embedding: %w", resumeID, err)
	}
	res.Embedding = vecs[0]

	if err := s.resumes.FinishParse(ctx, res); err != nil {
		return fmt.Errorf("op=resume.process: %w", err)
	}
	return nil
}

// ParseSections splits résumé text into buckets keyed by heading keywords.
// Text before the first recognized heading lands in "header".
func ParseSections(text string) map[string]string {
	sections := map[string][]string{}
	current := "header"
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if bucket, ok := headingBucket(trimmed); ok {
			current = bucket
			continue
		}
		sections[current] = append(sections[current], trimmed)
	}
	out := make(map[string]string, len(sections))
	for bucket, lines := range sections {
		out[bucket] = strings.Join(lines, "\n")
	}
	return out
}

// headingBucket recognizes short standalone lines as section headings.
func headingBucket(line string) (string, bool) {
	if len(line) > 40 {
		return "", false
	}
	lower := strings.ToLower(strings.TrimRight(line, ":"))
	for kw, bucket := range sectionHeadings {
		if strings.Contains(lower, kw) {
			return bucket, true
		}
	}
	return "", false
}

// expectedSections drive the structural quality score.
var expectedSections = []string{"skills", "education", "experience", "summary"}

// structuralScore is the fraction of expected sections present, in [0,1].
func structuralScore(parsed map[string]string) float64 {
	found := 0
	for _, sec := range expectedSections {
		if strings.TrimSpace(parsed[sec]) != "" {
			found++
		}
	}
	return float64(found) / float64(len(expectedSections))
}

// semanticScore is a bounded length and vocabulary heuristic in [0,1]:
// half from text volume (saturating at 3000 chars), half from distinct
// token variety (saturating at 300 distinct tokens).
func semanticScore(text string) float64 {
	lengthPart := math.Min(float64(len(text))/3000, 1) * 0.5

	distinct := map[string]bool{}
	for _, tok := range recognize.Tokenize(text) {
		distinct[strings.ToLower(tok)] = true
	}
	varietyPart := math.Min(float64(len(distinct))/300, 1) * 0.5

	return math.Round((lengthPart+varietyPart)*100) / 100
}
