// Package query holds the per-request analysis of a search query.
package query

// Intent is a coarse category describing which aspect of a grant a query probes.
type Intent string

// Known intents.
const (
	IntentDeadline    Intent = "deadline"
	IntentAmount      Intent = "amount"
	IntentEligibility Intent = "eligibility"
	IntentIndustry    Intent = "industry"
	IntentPurpose     Intent = "purpose"
	IntentRegion      Intent = "region"
	IntentRecency     Intent = "recency"
	IntentPopularity  Intent = "popularity"
	IntentEase        Intent = "ease"
)

// Entities are values extracted from the query. Zero values mean "not found".
type Entities struct {
	Amount   float64 `json:"amount,omitempty"`
	Industry string  `json:"industry,omitempty"`
	Region   string  `json:"region,omitempty"`
	Purpose  string  `json:"purpose,omitempty"`
}

// HasAmount reports whether an amount was extracted.
func (e Entities) HasAmount() bool { return e.Amount > 0 }

// Analysis is the result of analyzing one query. Never persisted.
type Analysis struct {
	Original string   `json:"original"`
	Tokens   []string `json:"tokens"`
	Keywords []string `json:"keywords"`
	Intents  []Intent `json:"intents"`
	Entities Entities `json:"entities"`
}

// Has reports whether the analysis carries the intent.
func (a *Analysis) Has(intent Intent) bool {
	for _, i := range a.Intents {
		if i == intent {
			return true
		}
	}
	return false
}
