package ranking

import (
	"math"
	"time"

	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/query"
)

// Score weights.
const (
	similarityWeight = 0.6
	relevanceWeight  = 0.4
)

// Relevance caps; their sum may exceed 1 and is clamped.
const (
	deadlineCap    = 0.3
	popularityCap  = 0.2
	successCap     = 0.2
	recencyCap     = 0.3
	deadlineWindow = 30 // days
	recencyWindow  = 90 * 24 * time.Hour

	// Counts at which the log-scaled popularity terms saturate.
	viewsSaturation        = 10000
	applicationsSaturation = 1000
)

// Intent boosts.
const (
	deadlineBoost     = 1.5
	deadlineBoostDays = 14
	easeBoost         = 1.3
	recencyBoost      = 1.2
	recencyBoostAge   = 30 * 24 * time.Hour
	amountBoost       = 1.1
	regionBoost       = 1.1
)

// relevance is the attribute-only score in [0,1]. Unknown attributes add nothing.
func relevance(r *domrec.Record, now time.Time) float64 {
	var score float64

	if days, ok := r.DaysUntilDeadline(now); ok && days >= 0 && days <= deadlineWindow {
		score += deadlineCap * (1 - float64(days)/deadlineWindow)
	}

	var pop float64
	if v := r.Attributes.Views; v != nil && *v > 0 {
		pop += logScaled(float64(*v), viewsSaturation) * popularityCap / 2
	}
	if a := r.Attributes.Applications; a != nil && *a > 0 {
		pop += logScaled(float64(*a), applicationsSaturation) * popularityCap / 2
	}
	score += math.Min(pop, popularityCap)

	if sr := r.Attributes.SuccessRate; sr != nil {
		score += successCap * clamp(*sr/100, 0, 1)
	}

	if !r.ModifiedAt.IsZero() {
		age := now.Sub(r.ModifiedAt)
		switch {
		case age < 0:
			score += recencyCap
		case age <= recencyWindow:
			score += recencyCap * (1 - float64(age)/float64(recencyWindow))
		}
	}

	return clamp(score, 0, 1)
}

// logScaled maps n to [0,1] on a log scale that reaches 1 at saturation.
func logScaled(n, saturation float64) float64 {
	return math.Min(math.Log1p(n)/math.Log1p(saturation), 1)
}

// boost compounds the multipliers of every intent the record satisfies.
func boost(r *domrec.Record, a *query.Analysis, now time.Time) float64 {
	b := 1.0

	if a.Has(query.IntentDeadline) {
		if days, ok := r.DaysUntilDeadline(now); ok && days >= 0 && days <= deadlineBoostDays {
			b *= deadlineBoost
		}
	}
	if a.Has(query.IntentEase) && r.Attributes.Difficulty == domrec.DifficultyEasy {
		b *= easeBoost
	}
	if a.Has(query.IntentRecency) && !r.PublishedAt.IsZero() {
		if age := now.Sub(r.PublishedAt); age >= 0 && age <= recencyBoostAge {
			b *= recencyBoost
		}
	}
	if a.Has(query.IntentAmount) && a.Entities.HasAmount() {
		if m := r.Attributes.MaxAmount; m != nil && a.Entities.Amount <= *m {
			b *= amountBoost
		}
	}
	if a.Entities.Region != "" && r.HasTerm(domrec.TaxRegion, a.Entities.Region) {
		b *= regionBoost
	}

	return b
}

func combine(similarity, rel float64) float64 {
	return similarity*similarityWeight + rel*relevanceWeight
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
