package domain

import "time"

// Default tuning values shared by the composition root and tests.
const (
	// DefaultVectorKind is the kind used for whole-record content embeddings.
	DefaultVectorKind = "content"
	// DefaultDimensions matches common external providers so vectors interoperate.
	DefaultDimensions = 1536
	// DefaultVocabularySize bounds the term→index mapping.
	DefaultVocabularySize = 1000
	// DefaultVocabularySample is the number of recent records scanned per rebuild.
	DefaultVocabularySample = 1000
	// DefaultVocabularyTTL is how long a vocabulary snapshot stays fresh.
	DefaultVocabularyTTL = 24 * time.Hour
	// DefaultCandidatePageSize caps the record store page per search.
	DefaultCandidatePageSize = 50
)
