package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/request"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/result"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
)

func newService(records RecordFinder, vectors VectorStore, queryEmb, local Embedder) *Service {
	return New(records, vectors, queryEmb, local, Config{}, fixedClock, zap.NewNop())
}

func mustRequest(t *testing.T, q string, f filter.Expression, limit int) *request.Request {
	t.Helper()
	req, err := request.New(q, f, limit)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return &req
}

func TestSearch_DeadlineIntentBoostsCloseDeadlines(t *testing.T) {
	records := &mockRecords{records: []domrec.Record{
		grant("far", func(r *domrec.Record) { r.Attributes.Deadline = ptr(testNow.Add(60 * 24 * time.Hour)) }),
		grant("close", func(r *domrec.Record) { r.Attributes.Deadline = ptr(testNow.Add(5 * 24 * time.Hour)) }),
	}}
	local := localConst(1, 1, 0, 0)
	svc := newService(records, newMockVectors(), local, local)

	page, err := svc.Search(context.Background(), mustRequest(t, "補助金の締切はいつ？", filter.Expression{}, 10))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Count != 2 {
		t.Fatalf("expected 2 results, got %d", page.Count)
	}
	first, second := page.Results[0], page.Results[1]
	if first.RecordID != "close" {
		t.Errorf("expected close deadline first, got %s", first.RecordID)
	}
	if first.Boost != deadlineBoost || second.Boost != 1 {
		t.Errorf("unexpected boosts %v / %v", first.Boost, second.Boost)
	}
	if first.DaysLeft == nil || *first.DaysLeft != 5 {
		t.Errorf("expected 5 days left, got %v", first.DaysLeft)
	}
}

func TestSearch_EntityFilter(t *testing.T) {
	records := &mockRecords{}
	local := localConst(1, 1, 0)
	svc := newService(records, newMockVectors(), local, local)

	if _, err := svc.Search(context.Background(), mustRequest(t, "500万円 IT導入", filter.Expression{}, 10)); err != nil {
		t.Fatalf("search: %v", err)
	}

	var amount, industry, status bool
	for _, c := range records.gotExpr.Must() {
		switch c.Key() {
		case filter.KeyMaxAmount:
			gte := c.Range().GTE()
			amount = gte != nil && *gte == 5_000_000
		case filter.KeyIndustry:
			industry = c.Match() == "it"
		case filter.KeyStatus:
			status = c.Match() == domrec.StatusPublished
		}
	}
	if !amount || !industry || !status {
		t.Errorf("missing derived conditions: amount=%v industry=%v status=%v", amount, industry, status)
	}
	if records.gotLim != domain.DefaultCandidatePageSize {
		t.Errorf("expected page size %d, got %d", domain.DefaultCandidatePageSize, records.gotLim)
	}
}

func TestSearch_CallerFilterWins(t *testing.T) {
	records := &mockRecords{}
	local := localConst(1, 1, 0)
	svc := newService(records, newMockVectors(), local, local)

	c, _ := filter.NewMatch(filter.KeyIndustry, "manufacturing")
	expr, _ := filter.NewExpression([]filter.Condition{c}, nil, nil)
	if _, err := svc.Search(context.Background(), mustRequest(t, "IT導入 補助金", expr, 10)); err != nil {
		t.Fatalf("search: %v", err)
	}

	var industries []string
	for _, c := range records.gotExpr.Must() {
		if c.Key() == filter.KeyIndustry {
			industries = append(industries, c.Match())
		}
	}
	if len(industries) != 1 || industries[0] != "manufacturing" {
		t.Errorf("expected only the caller's industry condition, got %v", industries)
	}
}

func TestSearch_OnlyPublishedCandidates(t *testing.T) {
	records := &mockRecords{}
	local := localConst(1, 1, 0)
	svc := newService(records, newMockVectors(), local, local)

	c, _ := filter.NewMatch(filter.KeyStatus, domrec.StatusDraft)
	expr, _ := filter.NewExpression([]filter.Condition{c}, nil, nil)
	if _, err := svc.Search(context.Background(), mustRequest(t, "補助金", expr, 10)); err != nil {
		t.Fatalf("search: %v", err)
	}

	published := false
	for _, c := range records.gotExpr.Must() {
		if c.Key() == filter.KeyStatus && c.Match() == domrec.StatusPublished {
			published = true
		}
	}
	if !published {
		t.Error("status=publish must always be part of the candidate filter")
	}
}

func TestSearch_RecordStoreFailure(t *testing.T) {
	records := &mockRecords{err: errors.New("connection refused")}
	local := localConst(1, 1)
	svc := newService(records, newMockVectors(), local, local)

	page, err := svc.Search(context.Background(), mustRequest(t, "補助金", filter.Expression{}, 10))
	if !errors.Is(err, domain.ErrRecordStoreUnavailable) {
		t.Fatalf("expected ErrRecordStoreUnavailable, got %v", err)
	}
	if domain.StageOf(err) != domain.StageRecordStore {
		t.Errorf("expected record_store stage, got %s", domain.StageOf(err))
	}
	if page.Count != 0 || page.Results != nil {
		t.Errorf("no partial results allowed: %+v", page)
	}
}

func TestSearch_SynthesisFailureKeepsCandidate(t *testing.T) {
	ext := &mockEmbedder{fn: func(string) (domain.EmbeddingResult, error) {
		return domain.EmbeddingResult{Embedding: []float32{1, 0}, Source: domain.ExternalSource("m")}, nil
	}}
	records := &mockRecords{records: []domrec.Record{
		grant("no-vector", func(r *domrec.Record) { r.Attributes.SuccessRate = ptr(50.0) }),
	}}
	svc := newService(records, newMockVectors(), ext, failing(errors.New("vocabulary unavailable")))

	page, err := svc.Search(context.Background(), mustRequest(t, "補助金", filter.Expression{}, 10))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Count != 1 {
		t.Fatalf("candidate must still be ranked, got %d results", page.Count)
	}
	r := page.Results[0]
	if r.SemanticMatched || r.Similarity != 0 {
		t.Errorf("expected relevance-only result, got %+v", r)
	}
	if r.Relevance <= 0 || r.Score != r.Relevance*relevanceWeight {
		t.Errorf("score must come from relevance alone: %+v", r)
	}
}

func TestSearch_WriteThroughMissingVector(t *testing.T) {
	vectors := newMockVectors()
	local := localConst(3, 0.6, 0.8)
	records := &mockRecords{records: []domrec.Record{grant("g-1")}}
	svc := newService(records, vectors, local, local)

	page, err := svc.Search(context.Background(), mustRequest(t, "補助金", filter.Expression{}, 10))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(vectors.upserts) != 1 {
		t.Fatalf("expected one write-through, got %d", len(vectors.upserts))
	}
	up := vectors.upserts[0]
	if up.RecordID != "g-1" || up.Kind != domain.DefaultVectorKind || up.Metadata.VocabularyVersion != 3 {
		t.Errorf("unexpected upsert %+v", up)
	}
	rec := grant("g-1")
	if up.Metadata.TextHash != vector.HashText(rec.CanonicalText()) {
		t.Errorf("write-through must record the text hash, got %q", up.Metadata.TextHash)
	}
	if !page.Results[0].SemanticMatched || page.Results[0].Similarity < 0.999 {
		t.Errorf("expected full similarity, got %+v", page.Results[0])
	}
}

func TestSearch_StaleLocalVectorIsResynthesized(t *testing.T) {
	vectors := newMockVectors(localVector("g-1", 1, 0, 1))
	local := localConst(2, 1, 0)
	records := &mockRecords{records: []domrec.Record{grant("g-1")}}
	svc := newService(records, vectors, local, local)

	page, err := svc.Search(context.Background(), mustRequest(t, "補助金", filter.Expression{}, 10))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(vectors.upserts) != 1 || vectors.upserts[0].Metadata.VocabularyVersion != 2 {
		t.Fatalf("expected stale vector rewritten under version 2, got %+v", vectors.upserts)
	}
	if page.Results[0].Similarity < 0.999 {
		t.Errorf("stale orthogonal vector must not be compared, got %v", page.Results[0].Similarity)
	}
}

func TestSearch_FreshLocalVectorIsReused(t *testing.T) {
	vectors := newMockVectors(localVector("g-1", 1, 0.6, 0.8))
	local := localConst(1, 1, 0)
	records := &mockRecords{records: []domrec.Record{grant("g-1")}}
	svc := newService(records, vectors, local, local)

	page, err := svc.Search(context.Background(), mustRequest(t, "補助金", filter.Expression{}, 10))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(vectors.upserts) != 0 {
		t.Errorf("fresh vector must not be rewritten")
	}
	if local.calls != 1 {
		t.Errorf("expected only the query to be embedded, got %d calls", local.calls)
	}
	if sim := page.Results[0].Similarity; sim < 0.599 || sim > 0.601 {
		t.Errorf("expected similarity 0.6, got %v", sim)
	}
}

func TestSearch_ExternalSources(t *testing.T) {
	ext := &mockEmbedder{fn: func(string) (domain.EmbeddingResult, error) {
		return domain.EmbeddingResult{Embedding: []float32{1, 0}, Source: domain.ExternalSource("m1")}, nil
	}}
	same := vector.Vector{
		RecordID: "same", Kind: domain.DefaultVectorKind, Components: []float32{1, 0},
		Metadata: vector.Metadata{Source: domain.ExternalSource("m1")},
	}
	other := vector.Vector{
		RecordID: "other", Kind: domain.DefaultVectorKind, Components: []float32{0, 1},
		Metadata: vector.Metadata{Source: domain.ExternalSource("m2")},
	}
	vectors := newMockVectors(same, other)
	local := localConst(1, 0, 1)
	records := &mockRecords{records: []domrec.Record{grant("same"), grant("other")}}
	svc := newService(records, vectors, ext, local)

	page, err := svc.Search(context.Background(), mustRequest(t, "補助金", filter.Expression{}, 10))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(vectors.upserts) != 0 {
		t.Errorf("vectors of another provider must not be overwritten")
	}
	for _, r := range page.Results {
		if !r.SemanticMatched || r.Similarity < 0.999 {
			t.Errorf("%s: expected full similarity, got %+v", r.RecordID, r)
		}
	}
	// One local embedding for the query, one on-the-fly for "other".
	if local.calls != 2 {
		t.Errorf("expected 2 local calls, got %d", local.calls)
	}
}

func TestSearch_LimitAndZeroQuery(t *testing.T) {
	records := &mockRecords{records: []domrec.Record{grant("a"), grant("b"), grant("c")}}
	local := localConst(1, 0, 0)
	svc := newService(records, newMockVectors(), local, local)

	page, err := svc.Search(context.Background(), mustRequest(t, "!!", filter.Expression{}, 2))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Count != 2 || len(page.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", page.Count)
	}
	for _, r := range page.Results {
		if r.SemanticMatched {
			t.Errorf("zero query vector carries no signal: %+v", r)
		}
	}
	if page.Results[0].RecordID != "a" || page.Results[1].RecordID != "b" {
		t.Errorf("equal scores must fall back to id order, got %s, %s", page.Results[0].RecordID, page.Results[1].RecordID)
	}
}

func TestSortRanked_TotalOrder(t *testing.T) {
	newer := testNow
	older := testNow.Add(-time.Hour)
	rs := []result.Ranked{
		{RecordID: "b", Score: 0.5, ModifiedAt: older},
		{RecordID: "a", Score: 0.5, ModifiedAt: older},
		{RecordID: "c", Score: 0.5, ModifiedAt: newer},
		{RecordID: "d", Score: 0.9, ModifiedAt: older},
	}
	sortRanked(rs)

	want := []string{"d", "c", "a", "b"}
	for i, id := range want {
		if rs[i].RecordID != id {
			t.Fatalf("position %d: got %s, want %s", i, rs[i].RecordID, id)
		}
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt("  中小企業の\n設備投資  "); got != "中小企業の 設備投資" {
		t.Errorf("unexpected excerpt %q", got)
	}
	long := ""
	for range 200 {
		long += "あ"
	}
	if got := []rune(excerpt(long)); len(got) != excerptRunes+1 {
		t.Errorf("expected %d runes, got %d", excerptRunes+1, len(got))
	}
}
