package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"capcorn_sync/internal/adapters/observability"
	"capcorn_sync/internal/domain"
)

// fullHistoryWindow approximates "all bookings ever recorded": the
// bridge only answers explicit ranges, so full runs ask for a window
// wide enough to cover the property's whole archive.
var fullHistoryWindow = domain.DateRange{From: "2000-01-01", To: "2050-12-31"}

// LogFunc receives timestamped human-readable progress lines for the
// operator log.
type LogFunc func(line string)

// Engine sequences the per-resource syncs: extract from the bridge,
// map to canonical records, replace the store collection, record the
// outcome. A failing resource never aborts its siblings.
type Engine struct {
	bridge domain.BridgeClient
	store  domain.DocumentStore
	status domain.StatusStore
	cache  domain.Cache // optional; read-path invalidation after a sync
	logf   LogFunc

	guestPageSize int
	now           func() time.Time
}

func NewEngine(b domain.BridgeClient, store domain.DocumentStore, status domain.StatusStore, cache domain.Cache, guestPageSize int, logf LogFunc) *Engine {
	if logf == nil {
		logf = func(string) {}
	}
	return &Engine{
		bridge:        b,
		store:         store,
		status:        status,
		cache:         cache,
		logf:          logf,
		guestPageSize: guestPageSize,
		now:           time.Now,
	}
}

type step struct {
	kind domain.ResourceKind
	run  func(ctx context.Context, syncedAt time.Time, gen int64) (int, error)
}

// steps returns the fixed full-run sequence as data, so "always proceed
// to the next kind" is a property of the loop, not of error handling.
func (e *Engine) steps() []step {
	return []step{
		{domain.KindRooms, e.syncRooms},
		{domain.KindCategories, e.syncCategories},
		{domain.KindGuests, e.syncGuests},
		{domain.KindBookings, e.syncBookings},
		{domain.KindAvailability, e.syncAvailability},
		{domain.KindArticles, e.syncArticles},
		{domain.KindChannels, e.syncChannels},
	}
}

// RunFull executes all seven resource syncs in order. The run is gated
// by the connectivity probe; once started, per-resource failures are
// isolated and collected into the returned summary, which is persisted
// at the end (best effort).
func (e *Engine) RunFull(ctx context.Context) (domain.SyncRunSummary, error) {
	if !e.bridge.Health(ctx) {
		observability.ObserveRun("refused")
		e.log("bridge unreachable, full sync refused")
		return domain.SyncRunSummary{}, &domain.ConnectivityError{Cause: errors.New("health probe failed")}
	}

	runAt := e.now().UTC()
	sum := domain.SyncRunSummary{
		RunID:  uuid.NewString(),
		RunAt:  runAt,
		Counts: make(map[domain.ResourceKind]int),
		Errors: make(map[domain.ResourceKind]string),
	}
	gen := runAt.UnixNano()
	e.log(fmt.Sprintf("full sync started (run %s)", sum.RunID))

	for _, st := range e.steps() {
		// cancellation is honored between steps only, never mid-write
		if err := ctx.Err(); err != nil {
			e.log(fmt.Sprintf("full sync cancelled before %s", st.kind))
			break
		}
		count, err := e.runStep(ctx, st, runAt, gen)
		if err != nil {
			sum.Errors[st.kind] = err.Error()
			continue
		}
		sum.Counts[st.kind] = count
	}

	// The summary is written even if the run was cancelled or partial;
	// a failed persist downgrades to a warning, not a failed run.
	persistCtx := context.WithoutCancel(ctx)
	if err := e.status.SaveRunSummary(persistCtx, sum); err != nil {
		log.Warn().Err(err).Msg("persist run summary to status store failed")
		e.log("warning: run summary not persisted: " + err.Error())
	}
	if err := e.store.SaveRunSummary(persistCtx, sum); err != nil {
		log.Warn().Err(err).Msg("persist run summary to document store failed")
		e.log("warning: run summary not stored: " + err.Error())
	}

	if len(sum.Errors) == 0 {
		observability.ObserveRun("ok")
	} else {
		observability.ObserveRun("partial")
	}
	e.log(fmt.Sprintf("full sync finished: %d resources ok, %d failed", len(sum.Counts), len(sum.Errors)))
	return sum, nil
}

// RunSingle retriggers one resource outside the fixed order. No
// connectivity gate: a manual sync attempts directly and surfaces its
// own failure.
func (e *Engine) RunSingle(ctx context.Context, kind domain.ResourceKind) (int, error) {
	for _, st := range e.steps() {
		if st.kind != kind {
			continue
		}
		runAt := e.now().UTC()
		return e.runStep(ctx, st, runAt, runAt.UnixNano())
	}
	return 0, fmt.Errorf("unknown resource kind %q", kind)
}

// runStep is the per-resource boundary: every error from extract, map
// or load is absorbed here into the kind's Error status.
func (e *Engine) runStep(ctx context.Context, st step, runAt time.Time, gen int64) (int, error) {
	if err := e.status.Begin(ctx, st.kind); err != nil {
		e.log(fmt.Sprintf("%s: not started: %v", st.kind, err))
		return 0, err
	}

	start := time.Now()
	count, err := st.run(ctx, runAt, gen)
	observability.ObserveResourceSync(string(st.kind), err, time.Since(start))

	// Once Begin has flipped the kind to syncing, the closing transition
	// must land even if the run was cancelled mid-write; otherwise the
	// kind is stuck at syncing and every later Begin is refused.
	postCtx := context.WithoutCancel(ctx)

	if err != nil {
		if serr := e.status.Fail(postCtx, st.kind, err.Error()); serr != nil {
			log.Warn().Err(serr).Str("kind", string(st.kind)).Msg("record failure status failed")
		}
		log.Error().Err(err).Str("kind", string(st.kind)).Msg("resource sync failed")
		e.log(fmt.Sprintf("%s: sync failed: %v", st.kind, err))
		return 0, err
	}

	if serr := e.status.Finish(postCtx, st.kind, count, e.now().UTC()); serr != nil {
		log.Warn().Err(serr).Str("kind", string(st.kind)).Msg("record success status failed")
	}
	if e.cache != nil {
		_ = e.cache.Del(postCtx, collectionCacheKey(st.kind))
	}
	log.Info().Str("kind", string(st.kind)).Int("count", count).Msg("resource synced")
	e.log(fmt.Sprintf("%s: %d records synced", st.kind, count))
	return count, nil
}

/********** per-kind steps **********/

func (e *Engine) syncRooms(ctx context.Context, syncedAt time.Time, gen int64) (int, error) {
	raw, err := e.bridge.Rooms(ctx)
	if err != nil {
		return 0, err
	}
	docs := mapAll(e, domain.KindRooms, raw, syncedAt, mapRoom, func(r domain.Room) string { return r.ExternalID })
	return e.load(ctx, domain.KindRooms, gen, docs)
}

func (e *Engine) syncCategories(ctx context.Context, syncedAt time.Time, gen int64) (int, error) {
	raw, err := e.bridge.Categories(ctx)
	if err != nil {
		return 0, err
	}
	docs := mapAll(e, domain.KindCategories, raw, syncedAt, mapCategory, func(c domain.Category) string { return c.ExternalID })
	return e.load(ctx, domain.KindCategories, gen, docs)
}

func (e *Engine) syncGuests(ctx context.Context, syncedAt time.Time, gen int64) (int, error) {
	raw, err := e.bridge.Guests(ctx, e.guestPageSize)
	if err != nil {
		return 0, err
	}
	docs := mapAll(e, domain.KindGuests, raw, syncedAt, mapGuest, func(g domain.Guest) string { return g.ExternalID })
	return e.load(ctx, domain.KindGuests, gen, docs)
}

func (e *Engine) syncBookings(ctx context.Context, syncedAt time.Time, gen int64) (int, error) {
	raw, err := e.bridge.Bookings(ctx, fullHistoryWindow)
	if err != nil {
		return 0, err
	}
	docs := mapAll(e, domain.KindBookings, raw, syncedAt, mapBooking, func(b domain.Booking) string { return b.ExternalID })
	return e.load(ctx, domain.KindBookings, gen, docs)
}

func (e *Engine) syncAvailability(ctx context.Context, syncedAt time.Time, gen int64) (int, error) {
	raw, err := e.bridge.Availability(ctx, domain.DateRange{}) // client defaults to [today, today+2y]
	if err != nil {
		return 0, err
	}
	docs := mapAll(e, domain.KindAvailability, raw, syncedAt, mapAvailability, domain.AvailabilitySlot.Key)
	return e.load(ctx, domain.KindAvailability, gen, docs)
}

func (e *Engine) syncArticles(ctx context.Context, syncedAt time.Time, gen int64) (int, error) {
	raw, err := e.bridge.Articles(ctx)
	if err != nil {
		return 0, err
	}
	docs := mapAll(e, domain.KindArticles, raw, syncedAt, mapArticle, func(a domain.Article) string { return a.ExternalID })
	return e.load(ctx, domain.KindArticles, gen, docs)
}

func (e *Engine) syncChannels(ctx context.Context, syncedAt time.Time, gen int64) (int, error) {
	raw, err := e.bridge.Channels(ctx)
	if err != nil {
		return 0, err
	}
	docs := mapAll(e, domain.KindChannels, raw, syncedAt, mapChannel, func(c domain.Channel) string { return c.ExternalID })
	return e.load(ctx, domain.KindChannels, gen, docs)
}

func (e *Engine) load(ctx context.Context, kind domain.ResourceKind, gen int64, docs []domain.Document) (int, error) {
	if err := e.store.ReplaceCollection(ctx, kind, gen, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// mapAll folds raw bridge records through a pure mapper. A record that
// fails to map is logged and skipped; one bad row must not sink the
// whole resource kind.
func mapAll[E, C any](e *Engine, kind domain.ResourceKind, in []E, syncedAt time.Time, f func(E, time.Time) (C, error), key func(C) string) []domain.Document {
	docs := make([]domain.Document, 0, len(in))
	skipped := 0
	for _, raw := range in {
		rec, err := f(raw, syncedAt)
		if err != nil {
			skipped++
			log.Warn().Err(err).Str("kind", string(kind)).Msg("record skipped")
			continue
		}
		body, err := json.Marshal(rec)
		if err != nil {
			skipped++
			log.Error().Err(err).Str("kind", string(kind)).Msg("marshal canonical record failed")
			continue
		}
		docs = append(docs, domain.Document{ExternalID: key(rec), Body: body})
	}
	if skipped > 0 {
		e.log(fmt.Sprintf("%s: %d records skipped (unmappable)", kind, skipped))
	}
	return docs
}

func (e *Engine) log(msg string) {
	e.logf(e.now().Format("2006-01-02 15:04:05 ") + msg)
}

func collectionCacheKey(kind domain.ResourceKind) string {
	return "collection:" + string(kind)
}
