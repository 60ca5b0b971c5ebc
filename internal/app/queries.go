package app

import (
	"context"
	"encoding/json"
	"time"

	"capcorn_sync/internal/domain"
)

// DefaultCollectionLimit is the page size the operator UI asks for;
// only that page is cached so a sync invalidates exactly one key per
// kind.
const DefaultCollectionLimit = 100

// QueryService serves the operator read paths on top of the document
// store, fronted by the cache.
type QueryService struct {
	store    domain.DocumentStore
	status   domain.StatusStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(store domain.DocumentStore, status domain.StatusStore, cache domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: store, status: status, cache: cache, cacheTTL: ttl}
}

// StatusOverview is what the sync dashboard renders: one badge per
// resource kind, the last run, and what the store actually holds.
type StatusOverview struct {
	Resources    []domain.SyncStatusRecord   `json:"resources"`
	LastRun      *domain.SyncRunSummary      `json:"lastRun,omitempty"`
	StoredCounts map[domain.ResourceKind]int `json:"storedCounts"`
}

func (s *QueryService) Overview(ctx context.Context) (StatusOverview, error) {
	resources, err := s.status.All(ctx)
	if err != nil {
		return StatusOverview{}, err
	}
	lastRun, err := s.status.LastRun(ctx)
	if err != nil {
		return StatusOverview{}, err
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return StatusOverview{}, err
	}
	return StatusOverview{Resources: resources, LastRun: lastRun, StoredCounts: counts}, nil
}

// Collection returns up to limit canonical documents of one kind as
// raw JSON, newest external id first as stored.
func (s *QueryService) Collection(ctx context.Context, kind domain.ResourceKind, limit int) ([]json.RawMessage, error) {
	if limit <= 0 || limit > 1000 {
		limit = DefaultCollectionLimit
	}
	key := collectionCacheKey(kind)
	useCache := s.cache != nil && limit == DefaultCollectionLimit

	if useCache {
		var cached []json.RawMessage
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	docs, err := s.store.Collection(ctx, kind, limit)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, json.RawMessage(d.Body))
	}

	if useCache {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}
