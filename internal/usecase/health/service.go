// Package health aggregates component checks into one report.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates search still works, with reduced quality.
	Degraded Status = "degraded"
	// Unhealthy indicates the record store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckEmpty indicates a component that works but holds no data yet.
	CheckEmpty CheckResult = "empty"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	embedding  EmbeddingChecker
	vocabulary VocabularyChecker
}

// New creates a Service. embedding and vocabulary can be nil.
func New(db DBPinger, embedding EmbeddingChecker, vocabulary VocabularyChecker) *Service {
	return &Service{db: db, embedding: embedding, vocabulary: vocabulary}
}

// Check runs health checks against all components.
// A record store failure is fatal; anything else only degrades.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
			status = degrade(status)
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.vocabulary != nil {
		n, err := s.vocabulary.Terms(ctx)
		switch {
		case err != nil:
			checks["vocabulary"] = CheckError
			status = degrade(status)
		case n == 0:
			checks["vocabulary"] = CheckEmpty
			status = degrade(status)
		default:
			checks["vocabulary"] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}

func degrade(s Status) Status {
	if s == Healthy {
		return Degraded
	}
	return s
}
