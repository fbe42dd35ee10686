package record

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/abckeishi-spec/keishi9-sub000/internal/db"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
)

// fakeStore is a map-backed store with optional error injection.
type fakeStore struct {
	data    map[string][]byte
	scanErr error
	setErr  error
}

func newFakeStore() *fakeStore { return &fakeStore{data: make(map[string][]byte)} }

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeStore) Del(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeStore) Scan(_ context.Context, prefix string) ([]string, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeStore) MGet(_ context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = f.data[k]
	}
	return out, nil
}

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func ptr[T any](v T) *T { return &v }

func grant(id string, opts ...func(*domrec.Record)) domrec.Record {
	r := domrec.Record{
		ID:          id,
		Title:       "補助金 " + id,
		Attributes:  domrec.Attributes{Status: domrec.StatusPublished},
		Taxonomies:  map[string][]string{},
		PublishedAt: testNow.Add(-48 * time.Hour),
		ModifiedAt:  testNow.Add(-24 * time.Hour),
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}
