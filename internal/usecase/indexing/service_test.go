package indexing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
	"github.com/abckeishi-spec/keishi9-sub000/internal/text/vocabulary"
)

type mockVectors struct {
	mu      sync.Mutex
	data    map[string]vector.Vector
	deleted  []string
	failFor  string
	cleared  int
	clearErr error
}

func newMockVectors() *mockVectors { return &mockVectors{data: make(map[string]vector.Vector)} }

func (m *mockVectors) Upsert(_ context.Context, v vector.Vector) (vector.Vector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.RecordID == m.failFor {
		return vector.Vector{}, errors.New("disk full")
	}
	m.data[v.RecordID] = v
	return v, nil
}

func (m *mockVectors) DeleteByRecord(_ context.Context, id string, _ ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockVectors) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared++
	m.data = make(map[string]vector.Vector)
	return nil
}

type mockRecords struct {
	records []domrec.Record
	err     error
}

func (m *mockRecords) Find(_ context.Context, expr filter.Expression, _ int, _ domrec.Sort) ([]domrec.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domrec.Record
	for _, r := range m.records {
		keep := true
		for _, c := range expr.Must() {
			if c.Key() == filter.KeyStatus && r.Attributes.Status != c.Match() {
				keep = false
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out, nil
}

// corpus serves records to a real vocabulary builder.
type corpus []domrec.Record

func (c corpus) RecentPublished(_ context.Context, limit int) ([]domrec.Record, error) {
	if limit < len(c) {
		return c[:limit], nil
	}
	return c, nil
}

// versionedEmbedder tags vectors with the current vocabulary version.
type versionedEmbedder struct {
	vocab *vocabulary.Builder
}

func (e *versionedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	v, err := e.vocab.Vocabulary(ctx)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:         []float32{1, float32(len(text))},
		Source:            domain.SourceLocal,
		VocabularyVersion: v.Version(),
	}, nil
}

func published(id string) domrec.Record {
	return domrec.Record{
		ID:         id,
		Title:      "補助金 " + id,
		Body:       "設備投資を支援",
		Attributes: domrec.Attributes{Status: domrec.StatusPublished},
	}
}

func newTestService(t *testing.T, vectors VectorWriter, records RecordFinder) (*Service, *vocabulary.Builder) {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	recs, _ := records.(*mockRecords)
	var src corpus
	if recs != nil {
		src = recs.records
	}
	vocab := vocabulary.NewBuilder(src, vocabulary.Config{TTL: time.Hour}, clock, zap.NewNop())
	svc, err := New(vectors, records, vocab, &versionedEmbedder{vocab: vocab}, Config{Workers: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(svc.Release)
	return svc, vocab
}

func TestOnPublishOrUpdate(t *testing.T) {
	vectors := newMockVectors()
	svc, _ := newTestService(t, vectors, &mockRecords{})

	rec := published("g-1")
	if err := svc.OnPublishOrUpdate(context.Background(), &rec); err != nil {
		t.Fatalf("publish: %v", err)
	}
	v, ok := vectors.data["g-1"]
	if !ok {
		t.Fatal("expected vector to be stored")
	}
	if v.Kind != domain.DefaultVectorKind || v.Metadata.Source != domain.SourceLocal || v.Metadata.Title != rec.Title {
		t.Errorf("unexpected vector %+v", v)
	}
	if v.Metadata.VocabularyVersion == 0 {
		t.Error("local vectors must carry the vocabulary version")
	}
	if v.Metadata.TextHash != vector.HashText(rec.CanonicalText()) || v.Metadata.Model != "" {
		t.Errorf("unexpected metadata %+v", v.Metadata)
	}
}

func TestOnPublishOrUpdate_UnpublishedDeletes(t *testing.T) {
	vectors := newMockVectors()
	svc, _ := newTestService(t, vectors, &mockRecords{})
	ctx := context.Background()

	rec := published("g-1")
	_ = svc.OnPublishOrUpdate(ctx, &rec)

	rec.Attributes.Status = domrec.StatusDraft
	if err := svc.OnPublishOrUpdate(ctx, &rec); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := vectors.data["g-1"]; ok {
		t.Error("draft record must lose its vectors")
	}
	if len(vectors.deleted) != 1 || vectors.deleted[0] != "g-1" {
		t.Errorf("unexpected deletes %v", vectors.deleted)
	}
}

func TestOnPublishOrUpdate_StoreError(t *testing.T) {
	vectors := newMockVectors()
	vectors.failFor = "g-1"
	svc, _ := newTestService(t, vectors, &mockRecords{})

	rec := published("g-1")
	if err := svc.OnPublishOrUpdate(context.Background(), &rec); err == nil {
		t.Fatal("expected error")
	}
}

func TestReindex(t *testing.T) {
	draft := published("draft")
	draft.Attributes.Status = domrec.StatusDraft
	records := &mockRecords{records: []domrec.Record{
		published("a"), published("b"), published("c"), published("broken"), draft,
	}}
	vectors := newMockVectors()
	vectors.failFor = "broken"
	svc, vocab := newTestService(t, vectors, records)
	ctx := context.Background()

	before, _ := vocab.Vocabulary(ctx)

	res, err := svc.Reindex(ctx)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if res.Indexed != 3 || res.Failed != 1 {
		t.Errorf("expected 3 indexed and 1 failed, got %+v", res)
	}
	after, _ := vocab.Vocabulary(ctx)
	if after == before {
		t.Error("vocabulary must be rebuilt")
	}
	if res.VocabularyVersion != after.Version() {
		t.Errorf("result reports version %d, snapshot is %d", res.VocabularyVersion, after.Version())
	}
	for _, id := range []string{"a", "b", "c"} {
		v, ok := vectors.data[id]
		if !ok {
			t.Errorf("missing vector for %s", id)
			continue
		}
		if v.Metadata.VocabularyVersion != res.VocabularyVersion {
			t.Errorf("%s built under version %d, want %d", id, v.Metadata.VocabularyVersion, res.VocabularyVersion)
		}
	}
	if _, ok := vectors.data["draft"]; ok {
		t.Error("drafts must not be indexed")
	}
}

func TestReindex_RecordStoreError(t *testing.T) {
	records := &mockRecords{err: domain.ErrRecordStoreUnavailable}
	svc, _ := newTestService(t, newMockVectors(), records)

	if _, err := svc.Reindex(context.Background()); !errors.Is(err, domain.ErrRecordStoreUnavailable) {
		t.Errorf("expected ErrRecordStoreUnavailable, got %v", err)
	}
}

func TestReindex_RejectsConcurrentRun(t *testing.T) {
	svc, _ := newTestService(t, newMockVectors(), &mockRecords{})
	svc.reindexing.Store(true)

	if _, err := svc.Reindex(context.Background()); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestReindex_DropsOrphanVectors(t *testing.T) {
	records := &mockRecords{records: []domrec.Record{published("a")}}
	vectors := newMockVectors()
	vectors.data["deleted-earlier"] = vector.Vector{RecordID: "deleted-earlier", Kind: domain.DefaultVectorKind}
	svc, _ := newTestService(t, vectors, records)

	if _, err := svc.Reindex(context.Background()); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if vectors.cleared != 1 {
		t.Errorf("expected one clear, got %d", vectors.cleared)
	}
	if _, ok := vectors.data["deleted-earlier"]; ok {
		t.Error("orphan vector must be dropped")
	}
	if _, ok := vectors.data["a"]; !ok {
		t.Error("published record must be re-indexed after the clear")
	}
}

func TestReindex_ClearError(t *testing.T) {
	records := &mockRecords{records: []domrec.Record{published("a")}}
	vectors := newMockVectors()
	vectors.clearErr = errors.New("backend down")
	svc, _ := newTestService(t, vectors, records)

	if _, err := svc.Reindex(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(vectors.data) != 0 {
		t.Errorf("nothing may be indexed after a failed clear, got %d", len(vectors.data))
	}
	// The guard is released for the next run.
	vectors.clearErr = nil
	if _, err := svc.Reindex(context.Background()); err != nil {
		t.Errorf("second run: %v", err)
	}
}
