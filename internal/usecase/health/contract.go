package health

import "context"

// DBPinger checks record store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// VocabularyChecker reports the size of the current vocabulary.
type VocabularyChecker interface {
	Terms(ctx context.Context) (int, error)
}
