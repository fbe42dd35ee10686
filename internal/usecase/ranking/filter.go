package ranking

import (
	"fmt"

	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/query"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
)

// structuralFilter merges the caller's filter with conditions derived from
// query entities. Only published records are candidates, whatever the caller
// asks for. A derived condition is dropped when the caller already
// constrains the same key.
func structuralFilter(caller filter.Expression, a *query.Analysis) (filter.Expression, error) {
	published, err := filter.NewMatch(filter.KeyStatus, domrec.StatusPublished)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("status condition: %w", err)
	}
	extra := []filter.Condition{published}

	add := func(c filter.Condition, err error) error {
		if err != nil {
			return err
		}
		if !caller.Constrains(c.Key()) {
			extra = append(extra, c)
		}
		return nil
	}

	if a.Entities.HasAmount() {
		if err := add(filter.NewRange(filter.KeyMaxAmount, filter.AtLeast(a.Entities.Amount))); err != nil {
			return filter.Expression{}, fmt.Errorf("amount condition: %w", err)
		}
	}
	if a.Entities.Industry != "" {
		if err := add(filter.NewMatch(filter.KeyIndustry, a.Entities.Industry)); err != nil {
			return filter.Expression{}, fmt.Errorf("industry condition: %w", err)
		}
	}
	if a.Entities.Region != "" {
		if err := add(filter.NewMatch(filter.KeyRegion, a.Entities.Region)); err != nil {
			return filter.Expression{}, fmt.Errorf("region condition: %w", err)
		}
	}

	return caller.WithMust(extra...), nil
}
