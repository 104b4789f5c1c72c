package usecase

import (
	"fmt"
	"strings"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/recognize"
)

// ContactImportService ingests pasted spreadsheet-style contact rows.
type ContactImportService struct {
	contacts domain.ContactRepository
}

// NewContactImportService wires a ContactImportService.
func NewContactImportService(contacts domain.ContactRepository) *ContactImportService {
	return &ContactImportService{contacts: contacts}
}

// ImportOutcome summarizes one import run.
type ImportOutcome struct {
	Rows    int
	Created int
	Skipped int
}

// Import parses pasted text into contact rows and stores the ones whose
// email is not already in the pool. Malformed lines and duplicate emails
// both count as skipped.
func (s *ContactImportService) Import(ctx domain.Context, userID, text string) (ImportOutcome, error) {
	rows, dropped := recognize.ParseContactLines(text)
	outcome := ImportOutcome{Rows: len(rows) + dropped, Skipped: dropped}
	if len(rows) == 0 {
		return outcome, nil
	}

	existing, err := s.contacts.ExistingEmails(ctx)
	if err != nil {
		return outcome, fmt.Errorf("op=contacts.Import: %w", err)
	}
	for _, row := range rows {
		email := strings.ToLower(row.Email)
		if existing[email] {
			outcome.Skipped++
			continue
		}
		existing[email] = true
		_, err := s.contacts.Create(ctx, domain.ScrapedContact{
			UserID:  userID,
			Name:    row.Name,
			Email:   email,
			Role:    row.Role,
			Company: row.Company,
		})
		if err != nil {
			return outcome, fmt.Errorf("op=contacts.Import: %w", err)
		}
		outcome.Created++
	}
	return outcome, nil
}
