package result

import "time"

// Ranked is a single search hit with its score breakdown and presentation fields.
type Ranked struct {
	RecordID string `json:"id"`

	Similarity float64 `json:"similarity"`
	Relevance  float64 `json:"relevance"`
	Boost      float64 `json:"boost"`
	Score      float64 `json:"score"`
	// SemanticMatched is false when no comparable vector was available and
	// the score is relevance-only.
	SemanticMatched bool `json:"semantic_matched"`

	Title        string              `json:"title"`
	Excerpt      string              `json:"excerpt,omitempty"`
	URL          string              `json:"url,omitempty"`
	Organization string              `json:"organization,omitempty"`
	MaxAmount    *float64            `json:"max_amount,omitempty"`
	Deadline     *time.Time          `json:"deadline,omitempty"`
	DaysLeft     *int                `json:"days_left,omitempty"`
	Difficulty   string              `json:"difficulty,omitempty"`
	SuccessRate  *float64            `json:"success_rate,omitempty"`
	Taxonomies   map[string][]string `json:"taxonomies,omitempty"`
	ModifiedAt   time.Time           `json:"modified_at"`
}

// Page is the response of one search call.
type Page struct {
	Count   int      `json:"count"`
	Results []Ranked `json:"results"`
}
