package filter

import "fmt"

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Filterable keys. Tag keys accept match conditions (attribute equality or
// taxonomy membership), numeric keys accept range conditions.
const (
	KeyCategory     = "category"
	KeyRegion       = "region"
	KeyIndustry     = "industry"
	KeyPurpose      = "purpose"
	KeyDifficulty   = "difficulty"
	KeyOrganization = "organization"
	KeyStatus       = "status"

	KeyMaxAmount    = "max_amount"
	KeySuccessRate  = "success_rate"
	KeyViews        = "views"
	KeyApplications = "applications"
	KeyDeadlineDays = "deadline_days"
)

var tagKeys = map[string]struct{}{
	KeyCategory: {}, KeyRegion: {}, KeyIndustry: {}, KeyPurpose: {},
	KeyDifficulty: {}, KeyOrganization: {}, KeyStatus: {},
}

var numericKeys = map[string]struct{}{
	KeyMaxAmount: {}, KeySuccessRate: {}, KeyViews: {}, KeyApplications: {}, KeyDeadlineDays: {},
}

// IsTagKey reports whether key accepts match conditions.
func IsTagKey(key string) bool {
	_, ok := tagKeys[key]
	return ok
}

// IsNumericKey reports whether key accepts range conditions.
func IsNumericKey(key string) bool {
	_, ok := numericKeys[key]
	return ok
}

// Expression is a structured filter with must/should/must_not boolean semantics.
// must: AND; should: OR (at least one when non-empty); must_not: none may match.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Constrains reports whether any must or should condition targets key.
func (e Expression) Constrains(key string) bool {
	for _, c := range e.must {
		if c.key == key {
			return true
		}
	}
	for _, c := range e.should {
		if c.key == key {
			return true
		}
	}
	return false
}

// WithMust returns a copy of e with extra must conditions appended.
func (e Expression) WithMust(extra ...Condition) Expression {
	must := make([]Condition, 0, len(e.must)+len(extra))
	must = append(must, e.must...)
	must = append(must, extra...)
	return Expression{must: must, should: e.should, mustNot: e.mustNot}
}

// Validate ensures every condition targets a known key with the right condition type.
func (e Expression) Validate() error {
	for _, group := range [][]Condition{e.must, e.should, e.mustNot} {
		for _, c := range group {
			switch {
			case c.IsMatch() && !IsTagKey(c.key):
				return fmt.Errorf("match filter on non-tag field %q", c.key)
			case c.IsRange() && !IsNumericKey(c.key):
				return fmt.Errorf("range filter on non-numeric field %q", c.key)
			}
		}
	}
	return nil
}

// Condition is a single filter clause: either a tag match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// AtLeast is a convenience constructor for an inclusive lower bound.
func AtLeast(v float64) Range {
	return Range{gte: &v}
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v satisfies every boundary.
func (r Range) Contains(v float64) bool {
	if r.gt != nil && v <= *r.gt {
		return false
	}
	if r.gte != nil && v < *r.gte {
		return false
	}
	if r.lt != nil && v >= *r.lt {
		return false
	}
	if r.lte != nil && v > *r.lte {
		return false
	}
	return true
}
