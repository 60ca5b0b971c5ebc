package domain

import (
	"context"
	"time"
)

// BridgeClient is one accessor per resource kind against the
// on-premises bridge service. Every call carries a bounded timeout;
// failures surface as *ConnectivityError or *APIError.
type BridgeClient interface {
	// Health reports whether the bridge answers within a short bound.
	// It never returns an error; callers make the gating decision.
	Health(ctx context.Context) bool

	Stats(ctx context.Context) (BridgeStats, error)

	// Full-list resources, single request each.
	Rooms(ctx context.Context) ([]BridgeRoom, error)
	Categories(ctx context.Context) ([]BridgeCategory, error)
	Channels(ctx context.Context) ([]BridgeChannel, error)
	Articles(ctx context.Context) ([]BridgeArticle, error)

	// Guests pages through (limit, offset) until the server-reported
	// total is accumulated.
	Guests(ctx context.Context, pageSize int) ([]BridgeGuest, error)

	// Bookings inside an explicit date window.
	Bookings(ctx context.Context, window DateRange) ([]BridgeBooking, error)

	// Availability inside a window; a zero window defaults to
	// [today, today+2y].
	Availability(ctx context.Context, window DateRange) ([]BridgeAvailabilitySlot, error)
}

// DocumentStore holds one collection of canonical documents per
// resource kind, keyed by external id, plus the singleton run summary.
type DocumentStore interface {
	// ReplaceCollection upserts docs under the given run generation and
	// drops rows of older generations, all in one transaction, so
	// readers never observe a half-written collection.
	ReplaceCollection(ctx context.Context, kind ResourceKind, generation int64, docs []Document) error

	SaveRunSummary(ctx context.Context, s SyncRunSummary) error

	// Read paths for the operator API.
	Collection(ctx context.Context, kind ResourceKind, limit int) ([]Document, error)
	Counts(ctx context.Context) (map[ResourceKind]int, error)
}

// StatusStore persists per-kind sync status across restarts. Begin is
// atomic per kind: a second Begin while the kind is syncing returns
// ErrSyncInProgress.
type StatusStore interface {
	Get(ctx context.Context, kind ResourceKind) (SyncStatusRecord, error)
	All(ctx context.Context) ([]SyncStatusRecord, error)

	Begin(ctx context.Context, kind ResourceKind) error
	Finish(ctx context.Context, kind ResourceKind, count int, at time.Time) error
	// Fail keeps the previous successful sync time and count; only the
	// state and message change.
	Fail(ctx context.Context, kind ResourceKind, msg string) error

	SaveRunSummary(ctx context.Context, s SyncRunSummary) error
	LastRun(ctx context.Context) (*SyncRunSummary, error)
}

// Cache fronts the operator read paths.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
