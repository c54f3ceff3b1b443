package vocabulary

import "fmt"

// Status is a canonical lifecycle status value. Pipelines use wildly
// different terms for the same states; endpoint mapping tables translate
// native terms, and ParseStatus covers the common aliases for endpoints
// with no explicit table.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusDelivered  Status = "delivered"
	StatusArchived   Status = "archived"
)

// Statuses lists all canonical statuses.
var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusReview,
	StatusApproved,
	StatusRejected,
	StatusDelivered,
	StatusArchived,
}

// statusAliases maps common pipeline spellings to canonical statuses.
var statusAliases = map[string]Status{
	"wip":              StatusInProgress,
	"work_in_progress": StatusInProgress,
	"ip":               StatusInProgress,
	"pending_review":   StatusReview,
	"for_review":       StatusReview,
	"final":            StatusDelivered,
	"done":             StatusDelivered,
	"complete":         StatusDelivered,
	"omit":             StatusArchived,
}

// IsValid reports whether s is a canonical status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusReview, StatusApproved,
		StatusRejected, StatusDelivered, StatusArchived:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus resolves a status string, accepting canonical values and the
// built-in aliases.
func ParseStatus(value string) (Status, error) {
	if s, ok := statusAliases[value]; ok {
		return s, nil
	}
	s := Status(value)
	if s.IsValid() {
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}
