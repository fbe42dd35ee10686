// Package record is the key-value backed Record Store: grant records stored
// as JSON under <prefix>record:<id> and filtered in process.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abckeishi-spec/keishi9-sub000/internal/db"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	domrec "github.com/abckeishi-spec/keishi9-sub000/internal/domain/record"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/search/filter"
)

const readBatchSize = 500

// store is the consumer interface for records (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, prefix string) ([]string, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
}

// Repo implements the Record Store over a key-value backend.
type Repo struct {
	store  store
	prefix string
	clock  func() time.Time
	logger *zap.Logger
}

// New creates a record repository.
func New(s store, keyPrefix string, clock func() time.Time, logger *zap.Logger) *Repo {
	if clock == nil {
		clock = time.Now
	}
	return &Repo{store: s, prefix: keyPrefix + "record:", clock: clock, logger: logger}
}

func (r *Repo) key(id string) string { return r.prefix + id }

// Upsert creates or replaces a record. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, rec *domrec.Record) (bool, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return false, domain.InvalidInputf("record id is required")
	}
	if strings.ContainsAny(rec.ID, ":*") {
		return false, domain.InvalidInputf("record id %q must not contain ':' or '*'", rec.ID)
	}
	if rec.ModifiedAt.IsZero() {
		rec.ModifiedAt = r.clock().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	key := r.key(rec.ID)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, unavailable("check exists "+key, err)
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		return false, unavailable("set "+key, err)
	}
	return !exists, nil
}

// Get returns a record by id.
func (r *Repo) Get(ctx context.Context, id string) (domrec.Record, error) {
	key := r.key(id)
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domrec.Record{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
		}
		return domrec.Record{}, unavailable("get "+key, err)
	}
	var rec domrec.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domrec.Record{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes a record. Returns domain.ErrNotFound if it does not exist.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := r.key(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return unavailable("check exists "+key, err)
	}
	if !exists {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	if err := r.store.Del(ctx, key); err != nil {
		return unavailable("del "+key, err)
	}
	return nil
}

// Find returns up to limit records matching expr (limit <= 0: all), ordered by s.
func (r *Repo) Find(ctx context.Context, expr filter.Expression, limit int, s domrec.Sort) ([]domrec.Record, error) {
	all, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	now := r.clock()
	out := make([]domrec.Record, 0, len(all))
	for i := range all {
		if Matches(&all[i], expr, now) {
			out = append(out, all[i])
		}
	}

	sortRecords(out, s)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecentPublished returns up to limit published records, newest first.
func (r *Repo) RecentPublished(ctx context.Context, limit int) ([]domrec.Record, error) {
	cond, err := filter.NewMatch(filter.KeyStatus, domrec.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("build status filter: %w", err)
	}
	expr, err := filter.NewExpression([]filter.Condition{cond}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("build status filter: %w", err)
	}
	return r.Find(ctx, expr, limit, domrec.SortPublishedDesc)
}

func (r *Repo) scan(ctx context.Context) ([]domrec.Record, error) {
	keys, err := r.store.Scan(ctx, r.prefix)
	if err != nil {
		return nil, unavailable("scan records", err)
	}

	out := make([]domrec.Record, 0, len(keys))
	for start := 0; start < len(keys); start += readBatchSize {
		batch := keys[start:min(start+readBatchSize, len(keys))]
		values, err := r.store.MGet(ctx, batch)
		if err != nil {
			return nil, unavailable("read records", err)
		}
		for i, raw := range values {
			if raw == nil {
				continue // deleted between scan and read
			}
			var rec domrec.Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				r.logger.Warn("Skipping undecodable record", zap.String("key", batch[i]), zap.Error(err))
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func sortRecords(recs []domrec.Record, s domrec.Sort) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		var ta, tb time.Time
		if s == domrec.SortPublishedDesc {
			ta, tb = a.PublishedAt, b.PublishedAt
		} else {
			ta, tb = a.ModifiedAt, b.ModifiedAt
		}
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.ID < b.ID
	})
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrRecordStoreUnavailable, err)
}
