// Package usage reports external embedding token consumption against the
// configured budget.
package usage

import (
	"context"
	"time"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
)

// Period is the reporting window.
type Period string

const (
	// PeriodDay is the current UTC day.
	PeriodDay Period = "day"
	// PeriodMonth is the current UTC month.
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. Empty means day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", domain.InvalidInputf("period must be %q or %q, got %q", PeriodDay, PeriodMonth, s)
	}
}

// Report is the token usage of one period. Limit 0 means unlimited.
type Report struct {
	Period      Period    `json:"period"`
	Provider    string    `json:"provider,omitempty"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Limit       int64     `json:"limit"`
	Used        int64     `json:"used"`
	Remaining   int64     `json:"remaining"`
	Exhausted   bool      `json:"exhausted"`
}

// Service handles usage reporting.
type Service struct {
	br       BudgetReader
	provider string
	clock    func() time.Time
}

// New creates a Service. br can be nil (no provider or unlimited mode).
func New(br BudgetReader, provider string, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{br: br, provider: provider, clock: clock}
}

// Report builds a usage report for the given period.
func (s *Service) Report(_ context.Context, period Period) Report {
	now := s.clock().UTC()
	r := Report{Period: period, Provider: s.provider}

	switch period {
	case PeriodMonth:
		r.PeriodStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.AddDate(0, 1, 0)
		if s.br != nil {
			r.Limit = s.br.MonthlyLimit()
			r.Used = s.br.MonthlyUsed()
			r.Remaining = s.br.RemainingMonthly()
		}
	default:
		r.Period = PeriodDay
		r.PeriodStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.Add(24 * time.Hour)
		if s.br != nil {
			r.Limit = s.br.DailyLimit()
			r.Used = s.br.DailyUsed()
			r.Remaining = s.br.RemainingDaily()
		}
	}

	r.Exhausted = r.Limit > 0 && r.Remaining <= 0
	return r
}
