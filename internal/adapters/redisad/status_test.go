package redisad_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"capcorn_sync/internal/adapters/redisad"
	"capcorn_sync/internal/domain"
)

func newStore(t *testing.T) *redisad.StatusStore {
	t.Helper()
	mr := miniredis.RunT(t)
	return redisad.NewStatusStore(mr.Addr(), "", 0)
}

func TestStatusStore_FreshKindIsIdle(t *testing.T) {
	s := newStore(t)
	rec, err := s.Get(context.Background(), domain.KindRooms)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Kind != domain.KindRooms || rec.State != domain.StateIdle {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.LastSyncAt != nil || rec.RecordCount != 0 || rec.LastError != "" {
		t.Fatalf("fresh record not empty: %+v", rec)
	}
}

func TestStatusStore_BeginFinishCycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Begin(ctx, domain.KindGuests); err != nil {
		t.Fatalf("begin: %v", err)
	}
	rec, _ := s.Get(ctx, domain.KindGuests)
	if rec.State != domain.StateSyncing {
		t.Fatalf("state after begin = %s", rec.State)
	}

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	if err := s.Finish(ctx, domain.KindGuests, 1234, at); err != nil {
		t.Fatalf("finish: %v", err)
	}
	rec, _ = s.Get(ctx, domain.KindGuests)
	if rec.State != domain.StateSynced || rec.RecordCount != 1234 {
		t.Fatalf("unexpected record after finish: %+v", rec)
	}
	if rec.LastSyncAt == nil || !rec.LastSyncAt.Equal(at) {
		t.Fatalf("lastSyncAt = %v, want %v", rec.LastSyncAt, at)
	}
}

func TestStatusStore_BeginWhileSyncingRefused(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Begin(ctx, domain.KindBookings); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	err := s.Begin(ctx, domain.KindBookings)
	if !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("second begin err = %v, want ErrSyncInProgress", err)
	}

	// Other kinds are independent.
	if err := s.Begin(ctx, domain.KindRooms); err != nil {
		t.Fatalf("begin other kind: %v", err)
	}
}

func TestStatusStore_FailKeepsLastSync(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := s.Begin(ctx, domain.KindArticles); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Finish(ctx, domain.KindArticles, 42, at); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := s.Begin(ctx, domain.KindArticles); err != nil {
		t.Fatalf("re-begin: %v", err)
	}
	if err := s.Fail(ctx, domain.KindArticles, "bridge unreachable"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	rec, _ := s.Get(ctx, domain.KindArticles)
	if rec.State != domain.StateError || rec.LastError != "bridge unreachable" {
		t.Fatalf("unexpected record after fail: %+v", rec)
	}
	if rec.LastSyncAt == nil || !rec.LastSyncAt.Equal(at) || rec.RecordCount != 42 {
		t.Fatalf("previous sync result lost: %+v", rec)
	}

	// Finish clears the error again.
	if err := s.Begin(ctx, domain.KindArticles); err != nil {
		t.Fatalf("begin after error: %v", err)
	}
	if err := s.Finish(ctx, domain.KindArticles, 43, at.Add(time.Hour)); err != nil {
		t.Fatalf("finish: %v", err)
	}
	rec, _ = s.Get(ctx, domain.KindArticles)
	if rec.LastError != "" || rec.State != domain.StateSynced {
		t.Fatalf("error not cleared: %+v", rec)
	}
}

func TestStatusStore_AllCoversEveryKindInOrder(t *testing.T) {
	s := newStore(t)
	recs, err := s.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(recs) != len(domain.SyncOrder) {
		t.Fatalf("len = %d, want %d", len(recs), len(domain.SyncOrder))
	}
	for i, kind := range domain.SyncOrder {
		if recs[i].Kind != kind {
			t.Fatalf("recs[%d].Kind = %s, want %s", i, recs[i].Kind, kind)
		}
	}
}

func TestStatusStore_RecoverStaleUnwedgesSyncing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// A crashed process left two kinds mid-sync.
	if err := s.Begin(ctx, domain.KindRooms); err != nil {
		t.Fatalf("begin rooms: %v", err)
	}
	if err := s.Begin(ctx, domain.KindGuests); err != nil {
		t.Fatalf("begin guests: %v", err)
	}
	at := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	if err := s.Begin(ctx, domain.KindArticles); err != nil {
		t.Fatalf("begin articles: %v", err)
	}
	if err := s.Finish(ctx, domain.KindArticles, 5, at); err != nil {
		t.Fatalf("finish articles: %v", err)
	}

	stale, err := s.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(stale) != 2 || stale[0] != domain.KindRooms || stale[1] != domain.KindGuests {
		t.Fatalf("unexpected stale kinds: %v", stale)
	}

	// Recovered kinds read as error and accept a new Begin.
	rec, _ := s.Get(ctx, domain.KindRooms)
	if rec.State != domain.StateError || rec.LastError == "" {
		t.Fatalf("rooms after recover: %+v", rec)
	}
	if err := s.Begin(ctx, domain.KindRooms); err != nil {
		t.Fatalf("begin after recover: %v", err)
	}

	// Settled kinds are untouched.
	rec, _ = s.Get(ctx, domain.KindArticles)
	if rec.State != domain.StateSynced || rec.RecordCount != 5 {
		t.Fatalf("articles touched by recover: %+v", rec)
	}
}

func TestStatusStore_RunSummaryRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	got, err := s.LastRun(ctx)
	if err != nil || got != nil {
		t.Fatalf("lastRun on empty store = %+v, %v", got, err)
	}

	sum := domain.SyncRunSummary{
		RunID: "run-1",
		RunAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Counts: map[domain.ResourceKind]int{
			domain.KindRooms:  10,
			domain.KindGuests: 200,
		},
		Errors: map[domain.ResourceKind]string{
			domain.KindBookings: "api status 502",
		},
	}
	if err := s.SaveRunSummary(ctx, sum); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = s.LastRun(ctx)
	if err != nil {
		t.Fatalf("lastRun: %v", err)
	}
	if got == nil || got.RunID != "run-1" || got.Counts[domain.KindGuests] != 200 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if got.Errors[domain.KindBookings] != "api status 502" {
		t.Fatalf("errors lost: %+v", got.Errors)
	}
}
