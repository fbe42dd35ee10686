// Package record holds the grant record read model owned by the record store.
package record

import (
	"math"
	"strings"
	"time"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
)

// Status values a record can carry.
const (
	StatusPublished = "publish"
	StatusDraft     = "draft"
	StatusPrivate   = "private"
)

// Difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyNormal = "normal"
	DifficultyHard   = "hard"
)

// Taxonomy names.
const (
	TaxCategory = "category"
	TaxRegion   = "region"
	TaxIndustry = "industry"
	TaxPurpose  = "purpose"
)

// Attributes are the structured fields of a grant. Nil means unknown, never zero.
type Attributes struct {
	MaxAmount    *float64   `json:"max_amount,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	SuccessRate  *float64   `json:"success_rate,omitempty"` // 0..100
	Difficulty   string     `json:"difficulty,omitempty"`
	Organization string     `json:"organization,omitempty"`
	Status       string     `json:"status,omitempty"`
	Views        *int64     `json:"views,omitempty"`
	Applications *int64     `json:"applications,omitempty"`
}

// Record is a grant entry as stored by the record store.
type Record struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Body        string              `json:"body"`
	URL         string              `json:"url,omitempty"`
	Attributes  Attributes          `json:"attributes"`
	Taxonomies  map[string][]string `json:"taxonomies,omitempty"`
	PublishedAt time.Time           `json:"published_at"`
	ModifiedAt  time.Time           `json:"modified_at"`
}

// Validate checks identity and attribute ranges. An empty status is
// normalized to draft.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return domain.InvalidInputf("record id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return domain.InvalidInputf("record %s: title is required", r.ID)
	}

	a := &r.Attributes
	switch a.Status {
	case "":
		a.Status = StatusDraft
	case StatusPublished, StatusDraft, StatusPrivate:
	default:
		return domain.InvalidInputf("record %s: unknown status %q", r.ID, a.Status)
	}
	switch a.Difficulty {
	case "", DifficultyEasy, DifficultyNormal, DifficultyHard:
	default:
		return domain.InvalidInputf("record %s: unknown difficulty %q", r.ID, a.Difficulty)
	}
	if a.MaxAmount != nil && (*a.MaxAmount < 0 || math.IsNaN(*a.MaxAmount) || math.IsInf(*a.MaxAmount, 0)) {
		return domain.InvalidInputf("record %s: max_amount must be a non-negative number", r.ID)
	}
	if a.SuccessRate != nil && (*a.SuccessRate < 0 || *a.SuccessRate > 100 || math.IsNaN(*a.SuccessRate)) {
		return domain.InvalidInputf("record %s: success_rate must be between 0 and 100", r.ID)
	}
	if a.Views != nil && *a.Views < 0 {
		return domain.InvalidInputf("record %s: views must not be negative", r.ID)
	}
	if a.Applications != nil && *a.Applications < 0 {
		return domain.InvalidInputf("record %s: applications must not be negative", r.ID)
	}
	return nil
}

// IsPublished reports whether the record is visible to search.
func (r *Record) IsPublished() bool {
	return r.Attributes.Status == StatusPublished
}

// Terms returns the labels of a taxonomy.
func (r *Record) Terms(taxonomy string) []string {
	return r.Taxonomies[taxonomy]
}

// HasTerm reports taxonomy membership (case-insensitive).
func (r *Record) HasTerm(taxonomy, term string) bool {
	for _, t := range r.Taxonomies[taxonomy] {
		if strings.EqualFold(t, term) {
			return true
		}
	}
	return false
}

// DaysUntilDeadline returns whole days left until the deadline, rounded down
// (negative once passed).
// ok is false when the deadline is unknown.
func (r *Record) DaysUntilDeadline(now time.Time) (days int, ok bool) {
	if r.Attributes.Deadline == nil {
		return 0, false
	}
	d := r.Attributes.Deadline.Sub(now)
	return int(math.Floor(d.Hours() / 24)), true
}

// CanonicalText is the text embedded for a record: title, body, organization and labels.
func (r *Record) CanonicalText() string {
	parts := []string{strings.TrimSpace(r.Title), strings.TrimSpace(r.Body)}
	if org := strings.TrimSpace(r.Attributes.Organization); org != "" {
		parts = append(parts, org)
	}
	for _, tax := range []string{TaxCategory, TaxIndustry, TaxRegion, TaxPurpose} {
		if terms := r.Taxonomies[tax]; len(terms) > 0 {
			parts = append(parts, strings.Join(terms, " "))
		}
	}
	return strings.Join(parts, "\n")
}

// Sort orders record store results. Ties fall back to id ascending.
type Sort int

// Supported orders.
const (
	SortModifiedDesc Sort = iota
	SortPublishedDesc
)
