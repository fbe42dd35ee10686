package record

import (
	"strings"
	"time"

	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
)

// Matches evaluates expr against rec: every must condition holds, at least
// one should condition holds when any are given, and no must_not condition
// holds. Conditions on unknown attributes never hold.
func Matches(rec *domrec.Record, expr filter.Expression, now time.Time) bool {
	for _, c := range expr.Must() {
		if !holds(rec, c, now) {
			return false
		}
	}
	if should := expr.Should(); len(should) > 0 {
		matched := false
		for _, c := range should {
			if holds(rec, c, now) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, c := range expr.MustNot() {
		if holds(rec, c, now) {
			return false
		}
	}
	return true
}

func holds(rec *domrec.Record, c filter.Condition, now time.Time) bool {
	if c.IsRange() {
		v, ok := numeric(rec, c.Key(), now)
		return ok && c.Range().Contains(v)
	}
	return matchTag(rec, c.Key(), c.Match())
}

// regionNationwide is the canonical region slug for grants open everywhere.
const regionNationwide = "nationwide"

func matchTag(rec *domrec.Record, key, value string) bool {
	switch key {
	case filter.KeyCategory:
		return rec.HasTerm(domrec.TaxCategory, value)
	case filter.KeyRegion:
		// Nationwide grants apply to every region.
		return rec.HasTerm(domrec.TaxRegion, value) || rec.HasTerm(domrec.TaxRegion, regionNationwide)
	case filter.KeyIndustry:
		return rec.HasTerm(domrec.TaxIndustry, value)
	case filter.KeyPurpose:
		return rec.HasTerm(domrec.TaxPurpose, value)
	case filter.KeyDifficulty:
		return strings.EqualFold(rec.Attributes.Difficulty, value)
	case filter.KeyOrganization:
		return strings.EqualFold(rec.Attributes.Organization, value)
	case filter.KeyStatus:
		return strings.EqualFold(rec.Attributes.Status, value)
	}
	return false
}

func numeric(rec *domrec.Record, key string, now time.Time) (float64, bool) {
	a := rec.Attributes
	switch key {
	case filter.KeyMaxAmount:
		if a.MaxAmount != nil {
			return *a.MaxAmount, true
		}
	case filter.KeySuccessRate:
		if a.SuccessRate != nil {
			return *a.SuccessRate, true
		}
	case filter.KeyViews:
		if a.Views != nil {
			return float64(*a.Views), true
		}
	case filter.KeyApplications:
		if a.Applications != nil {
			return float64(*a.Applications), true
		}
	case filter.KeyDeadlineDays:
		if days, ok := rec.DaysUntilDeadline(now); ok {
			return float64(days), true
		}
	}
	return 0, false
}
