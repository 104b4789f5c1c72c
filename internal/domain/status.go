package domain

import "strings"

// ApplicationStatus is the canonical application lifecycle vocabulary.
type ApplicationStatus string

const (
	StatusDiscovered   ApplicationStatus = "discovered"
	StatusShortlisted  ApplicationStatus = "shortlisted"
	StatusPrepared     ApplicationStatus = "prepared"
	StatusSubmitted    ApplicationStatus = "submitted"
	StatusAcknowledged ApplicationStatus = "acknowledged"
	StatusResponded    ApplicationStatus = "responded"
	StatusClosed       ApplicationStatus = "closed"
)

// allowedTransitions is the forward edge set, plus the reopen edge.
var allowedTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDiscovered:   {StatusShortlisted, StatusClosed},
	StatusShortlisted:  {StatusPrepared, StatusClosed},
	StatusPrepared:     {StatusSubmitted, StatusClosed},
	StatusSubmitted:    {StatusAcknowledged, StatusResponded, StatusClosed},
	StatusAcknowledged: {StatusResponded, StatusClosed},
	StatusResponded:    {StatusClosed},
	StatusClosed:       {StatusShortlisted}, // reopen
}

// statusRank orders states for monotonic automatic progress. Closed carries no
// rank: as a rejection it may be applied from anywhere.
var statusRank = map[ApplicationStatus]int{
	StatusDiscovered:   0,
	StatusShortlisted:  1,
	StatusPrepared:     2,
	StatusSubmitted:    3,
	StatusAcknowledged: 4,
	StatusResponded:    5,
}

// ValidStatus reports whether s is in the canonical vocabulary.
func ValidStatus(s ApplicationStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// StandardTransition reports whether from -> to is in the transition table.
// Off-table moves are still permitted for manual overrides; callers log them
// as non-standard instead of rejecting.
func StandardTransition(from, to ApplicationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Rank returns the forward-progress rank of s and whether s is ranked.
func Rank(s ApplicationStatus) (int, bool) {
	r, ok := statusRank[s]
	return r, ok
}

// ForwardProgress reports whether an automatic update from -> to is allowed:
// rank must strictly increase, except closing which applies from any rank.
func ForwardProgress(from, to ApplicationStatus) bool {
	if to == StatusClosed {
		return true
	}
	fromRank, _ := Rank(from)
	toRank, ok := Rank(to)
	if !ok {
		return false
	}
	if from == StatusClosed {
		// a closed application only reopens explicitly, not from email signals
		return false
	}
	return toRank > fromRank
}

// EmailStatus is the classification vocabulary produced by the inbox engine.
type EmailStatus string

const (
	EmailApplied     EmailStatus = "applied"
	EmailInterviewed EmailStatus = "interviewed"
	EmailAssessment  EmailStatus = "assessment"
	EmailSelected    EmailStatus = "selected"
	EmailRejected    EmailStatus = "rejected"
)

// emailToCanonical folds the classification vocabulary onto lifecycle states.
// The raw label is still preserved in the application timeline.
var emailToCanonical = map[EmailStatus]ApplicationStatus{
	EmailApplied:     StatusSubmitted,
	EmailInterviewed: StatusAcknowledged,
	EmailAssessment:  StatusAcknowledged,
	EmailSelected:    StatusResponded,
	EmailRejected:    StatusClosed,
}

// CanonicalForEmail maps an email classification to its lifecycle state.
func CanonicalForEmail(s EmailStatus) (ApplicationStatus, bool) {
	st, ok := emailToCanonical[EmailStatus(strings.ToLower(string(s)))]
	return st, ok
}

// ParseEmailStatus normalizes a classifier label into the enumerated
// vocabulary, tolerating common synonyms the deterministic path produces.
func ParseEmailStatus(raw string) (EmailStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "applied", "application_sent", "received":
		return EmailApplied, true
	case "interviewed", "interviewing", "interview":
		return EmailInterviewed, true
	case "assessment", "online_test":
		return EmailAssessment, true
	case "selected", "offer", "offered":
		return EmailSelected, true
	case "rejected", "rejection":
		return EmailRejected, true
	}
	return "", false
}
