package ranking

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/db/badger"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
	recrepo "github.com/abckeishi-spec/keishi9-sub000/internal/repository/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/repository/vectorstore"
	"github.com/abckeishi-spec/keishi9-sub000/internal/usecase/embedding"
	"github.com/abckeishi-spec/keishi9-sub000/internal/text/vocabulary"
)

// TestSearch_EndToEnd runs the pipeline over an in-memory badger store with
// the real record repository, vector store and synthesizer.
func TestSearch_EndToEnd(t *testing.T) {
	store, err := badger.Open(badger.Config{InMemory: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	logger := zap.NewNop()

	records := recrepo.New(store, "grants:", fixedClock, logger)
	vectors := vectorstore.New(store, vectorstore.Config{KeyPrefix: "grants:", Dimensions: 256}, fixedClock, logger)
	vocab := vocabulary.NewBuilder(records, vocabulary.Config{TTL: time.Hour}, fixedClock, logger)
	synth := embedding.NewSynthesizer(vocab, 256)

	seed := []domrec.Record{
		grant("it-big", func(r *domrec.Record) {
			r.Title = "IT導入補助金"
			r.Body = "中小企業のITツール導入を支援します。"
			r.Attributes.MaxAmount = ptr(9_000_000.0)
			r.Taxonomies[domrec.TaxIndustry] = []string{"it"}
		}),
		grant("it-small", func(r *domrec.Record) {
			r.Title = "小規模IT補助金"
			r.Attributes.MaxAmount = ptr(1_000_000.0)
			r.Taxonomies[domrec.TaxIndustry] = []string{"it"}
		}),
		grant("retail-big", func(r *domrec.Record) {
			r.Title = "商店街活性化補助金"
			r.Attributes.MaxAmount = ptr(20_000_000.0)
			r.Taxonomies[domrec.TaxIndustry] = []string{"retail"}
		}),
		grant("it-draft", func(r *domrec.Record) {
			r.Attributes.Status = domrec.StatusDraft
			r.Attributes.MaxAmount = ptr(9_000_000.0)
			r.Taxonomies[domrec.TaxIndustry] = []string{"it"}
		}),
	}
	for i := range seed {
		if _, err := records.Upsert(ctx, &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc := New(records, vectors, nil, synth, Config{}, fixedClock, logger)
	page, err := svc.Search(ctx, mustRequest(t, "500万円 IT導入", filter.Expression{}, 10))
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if page.Count != 1 || page.Results[0].RecordID != "it-big" {
		t.Fatalf("expected only it-big, got %+v", page.Results)
	}
	if !page.Results[0].SemanticMatched || page.Results[0].Similarity <= 0 {
		t.Errorf("expected a semantic match, got %+v", page.Results[0])
	}
	if vectors.Count("content") != 1 {
		t.Errorf("expected the candidate vector to be written through, got %d", vectors.Count("content"))
	}
}

// TestSearch_StaleVectorAfterRestart persists a local vector under one
// corpus, then reloads the store with a fresh builder over a grown corpus.
// The stored vector must be rebuilt under the new vocabulary.
func TestSearch_StaleVectorAfterRestart(t *testing.T) {
	store, err := badger.Open(badger.Config{InMemory: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	logger := zap.NewNop()
	records := recrepo.New(store, "grants:", fixedClock, logger)

	retail := grant("retail", func(r *domrec.Record) {
		r.Title = "商店街活性化補助金"
		r.Body = "商店街のにぎわい創出を支援します。"
	})
	if _, err := records.Upsert(ctx, &retail); err != nil {
		t.Fatalf("seed: %v", err)
	}

	search := func(vectors *vectorstore.Store) uint64 {
		t.Helper()
		vocab := vocabulary.NewBuilder(records, vocabulary.Config{TTL: time.Hour}, fixedClock, logger)
		svc := New(records, vectors, nil, embedding.NewSynthesizer(vocab, 256), Config{}, fixedClock, logger)
		if _, err := svc.Search(ctx, mustRequest(t, "商店街", filter.Expression{}, 10)); err != nil {
			t.Fatalf("search: %v", err)
		}
		v, err := vocab.Vocabulary(ctx)
		if err != nil {
			t.Fatalf("vocabulary: %v", err)
		}
		return v.Version()
	}

	before := search(vectorstore.New(store, vectorstore.Config{KeyPrefix: "grants:", Dimensions: 256}, fixedClock, logger))

	tourism := grant("tourism", func(r *domrec.Record) {
		r.Title = "観光振興補助金"
		r.Body = "宿泊施設と商店街の連携事業を支援します。"
	})
	if _, err := records.Upsert(ctx, &tourism); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reloaded := vectorstore.New(store, vectorstore.Config{KeyPrefix: "grants:", Dimensions: 256}, fixedClock, logger)
	if _, err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	stale, err := reloaded.Get(ctx, "retail", "content")
	if err != nil || stale.Metadata.VocabularyVersion != before {
		t.Fatalf("expected persisted vector under version %d, got %+v (err=%v)", before, stale.Metadata, err)
	}

	after := search(reloaded)
	if after == before {
		t.Fatalf("grown corpus must change the vocabulary version (%d)", before)
	}
	got, err := reloaded.Get(ctx, "retail", "content")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Metadata.VocabularyVersion != after {
		t.Errorf("stored vector still under version %d, want %d", got.Metadata.VocabularyVersion, after)
	}
}
