package redisad

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"capcorn_sync/internal/domain"
)

const (
	statusKeyPrefix = "sync:status:"
	lastRunKey      = "sync:lastrun"
)

// beginScript flips a kind to syncing only when it is not already
// syncing, in one round trip, so two concurrent runs cannot both claim
// the same kind.
var beginScript = redis.NewScript(`
local state = redis.call("HGET", KEYS[1], "state")
if state == "syncing" then
  return 0
end
redis.call("HSET", KEYS[1], "state", "syncing")
return 1
`)

// StatusStore keeps one hash per resource kind plus the last run
// summary, so sync state survives restarts.
type StatusStore struct{ c *redis.Client }

func NewStatusStore(addr, pass string, db int) *StatusStore {
	return &StatusStore{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func NewStatusStoreFromClient(c *redis.Client) *StatusStore { return &StatusStore{c: c} }

func (s *StatusStore) Client() *redis.Client { return s.c }

func (s *StatusStore) Ping(ctx context.Context) error { return s.c.Ping(ctx).Err() }

func statusKey(kind domain.ResourceKind) string { return statusKeyPrefix + string(kind) }

func (s *StatusStore) Get(ctx context.Context, kind domain.ResourceKind) (domain.SyncStatusRecord, error) {
	h, err := s.c.HGetAll(ctx, statusKey(kind)).Result()
	if err != nil {
		return domain.SyncStatusRecord{}, err
	}
	rec := domain.SyncStatusRecord{Kind: kind, State: domain.StateIdle}
	if len(h) == 0 {
		return rec, nil
	}
	if v := h["state"]; v != "" {
		rec.State = domain.SyncState(v)
	}
	if v := h["last_sync_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.LastSyncAt = &t
		}
	}
	if v := h["record_count"]; v != "" {
		rec.RecordCount, _ = strconv.Atoi(v)
	}
	rec.LastError = h["last_error"]
	return rec, nil
}

func (s *StatusStore) All(ctx context.Context) ([]domain.SyncStatusRecord, error) {
	out := make([]domain.SyncStatusRecord, 0, len(domain.SyncOrder))
	for _, kind := range domain.SyncOrder {
		rec, err := s.Get(ctx, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *StatusStore) Begin(ctx context.Context, kind domain.ResourceKind) error {
	ok, err := beginScript.Run(ctx, s.c, []string{statusKey(kind)}).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return domain.ErrSyncInProgress
	}
	return nil
}

func (s *StatusStore) Finish(ctx context.Context, kind domain.ResourceKind, count int, at time.Time) error {
	return s.c.HSet(ctx, statusKey(kind),
		"state", string(domain.StateSynced),
		"last_sync_at", at.UTC().Format(time.RFC3339Nano),
		"record_count", strconv.Itoa(count),
		"last_error", "",
	).Err()
}

func (s *StatusStore) Fail(ctx context.Context, kind domain.ResourceKind, msg string) error {
	return s.c.HSet(ctx, statusKey(kind),
		"state", string(domain.StateError),
		"last_error", msg,
	).Err()
}

// RecoverStale flips kinds stranded at syncing to error. A process
// that died mid-step leaves the hash at syncing, and Begin would
// refuse that kind forever; callers run this once at startup, before
// any engine is live.
func (s *StatusStore) RecoverStale(ctx context.Context) ([]domain.ResourceKind, error) {
	var out []domain.ResourceKind
	for _, kind := range domain.SyncOrder {
		rec, err := s.Get(ctx, kind)
		if err != nil {
			return out, err
		}
		if rec.State != domain.StateSyncing {
			continue
		}
		if err := s.Fail(ctx, kind, "sync interrupted: process exited mid-run"); err != nil {
			return out, err
		}
		out = append(out, kind)
	}
	return out, nil
}

func (s *StatusStore) SaveRunSummary(ctx context.Context, sum domain.SyncRunSummary) error {
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.c.Set(ctx, lastRunKey, b, 0).Err()
}

func (s *StatusStore) LastRun(ctx context.Context) (*domain.SyncRunSummary, error) {
	b, err := s.c.Get(ctx, lastRunKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sum domain.SyncRunSummary
	if err := json.Unmarshal(b, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}
