package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func ptr[T any](v T) *T { return &v }

// mockRecords returns canned candidates and captures the filter it was given.
type mockRecords struct {
	records []domrec.Record
	err     error
	gotExpr filter.Expression
	gotLim  int
}

func (m *mockRecords) Find(_ context.Context, expr filter.Expression, limit int, _ domrec.Sort) ([]domrec.Record, error) {
	m.gotExpr, m.gotLim = expr, limit
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

// mockVectors is a map-backed vector store.
type mockVectors struct {
	data    map[string]vector.Vector
	upserts []vector.Vector
}

func newMockVectors(vs ...vector.Vector) *mockVectors {
	m := &mockVectors{data: make(map[string]vector.Vector)}
	for _, v := range vs {
		m.data[v.RecordID+"/"+v.Kind] = v
	}
	return m
}

func (m *mockVectors) Get(_ context.Context, recordID, kind string) (vector.Vector, error) {
	v, ok := m.data[recordID+"/"+kind]
	if !ok {
		return vector.Vector{}, fmt.Errorf("vector %s/%s: %w", recordID, kind, domain.ErrNotFound)
	}
	return v, nil
}

func (m *mockVectors) Upsert(_ context.Context, v vector.Vector) (vector.Vector, error) {
	m.data[v.RecordID+"/"+v.Kind] = v
	m.upserts = append(m.upserts, v)
	return v, nil
}

// mockEmbedder answers with fn and counts calls.
type mockEmbedder struct {
	fn    func(text string) (domain.EmbeddingResult, error)
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.fn(text)
}

func localConst(version uint64, comps ...float32) *mockEmbedder {
	return &mockEmbedder{fn: func(string) (domain.EmbeddingResult, error) {
		return domain.EmbeddingResult{
			Embedding:         append([]float32(nil), comps...),
			Source:            domain.SourceLocal,
			VocabularyVersion: version,
		}, nil
	}}
}

func failing(err error) *mockEmbedder {
	return &mockEmbedder{fn: func(string) (domain.EmbeddingResult, error) {
		return domain.EmbeddingResult{}, err
	}}
}

func grant(id string, opts ...func(*domrec.Record)) domrec.Record {
	r := domrec.Record{
		ID:          id,
		Title:       "ものづくり補助金",
		Body:        "中小企業の設備投資を支援する補助金です。",
		Attributes:  domrec.Attributes{Status: domrec.StatusPublished},
		Taxonomies:  map[string][]string{},
		PublishedAt: testNow.Add(-200 * 24 * time.Hour),
		ModifiedAt:  testNow.Add(-200 * 24 * time.Hour),
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

func localVector(id string, version uint64, comps ...float32) vector.Vector {
	return vector.Vector{
		RecordID:   id,
		Kind:       domain.DefaultVectorKind,
		Components: comps,
		Metadata:   vector.Metadata{Source: domain.SourceLocal, VocabularyVersion: version},
	}
}
