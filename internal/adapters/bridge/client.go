package bridge

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"capcorn_sync/internal/adapters/observability"
	"capcorn_sync/internal/domain"
)

const (
	healthTimeout  = 3 * time.Second
	requestTimeout = 20 * time.Second

	// Hard cap on guest pagination; a bridge misreporting its total
	// must not spin the loop forever.
	maxGuestPages = 1000

	defaultGuestPageSize = 500
)

// Client talks to the on-premises bridge service. One accessor per
// resource kind; every call is rate limited and bounded by a timeout.
type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
	now  func() time.Time
}

func New(base string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("bridge base URL is required")
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: requestTimeout},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
		now:  time.Now,
	}, nil
}

// ---- Response envelopes ----

type roomsEnvelope struct {
	Rooms []domain.BridgeRoom `json:"rooms"`
}

type categoriesEnvelope struct {
	Categories []domain.BridgeCategory `json:"categories"`
}

type channelsEnvelope struct {
	Channels []domain.BridgeChannel `json:"channels"`
}

type articlesEnvelope struct {
	Articles []domain.BridgeArticle `json:"articles"`
}

type guestsEnvelope struct {
	Guests []domain.BridgeGuest `json:"guests"`
	Total  domain.FlexInt       `json:"total"`
}

type calendarEnvelope struct {
	Bookings []domain.BridgeBooking `json:"bookings"`
}

type availabilityEnvelope struct {
	Availability []domain.BridgeAvailabilitySlot `json:"availability"`
}

// ---- Public API ----

// Health probes GET /health within a short bound. It never returns an
// error: unreachable, slow, and unhealthy all read as false so the
// caller makes the gating decision.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveBridge("/health", 0, time.Since(start))
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	observability.ObserveBridge("/health", resp.StatusCode, time.Since(start))
	return resp.StatusCode == http.StatusOK
}

func (c *Client) Stats(ctx context.Context) (domain.BridgeStats, error) {
	var out domain.BridgeStats
	err := c.get(ctx, "/stats", c.base+"/stats", &out)
	return out, err
}

func (c *Client) Rooms(ctx context.Context) ([]domain.BridgeRoom, error) {
	var env roomsEnvelope
	if err := c.get(ctx, "/rooms", c.base+"/rooms", &env); err != nil {
		return nil, err
	}
	return env.Rooms, nil
}

func (c *Client) Categories(ctx context.Context) ([]domain.BridgeCategory, error) {
	var env categoriesEnvelope
	if err := c.get(ctx, "/categories", c.base+"/categories", &env); err != nil {
		return nil, err
	}
	return env.Categories, nil
}

func (c *Client) Channels(ctx context.Context) ([]domain.BridgeChannel, error) {
	var env channelsEnvelope
	if err := c.get(ctx, "/channels", c.base+"/channels", &env); err != nil {
		return nil, err
	}
	return env.Channels, nil
}

func (c *Client) Articles(ctx context.Context) ([]domain.BridgeArticle, error) {
	var env articlesEnvelope
	if err := c.get(ctx, "/articles", c.base+"/articles", &env); err != nil {
		return nil, err
	}
	return env.Articles, nil
}

// Guests accumulates (limit, offset) pages until the server-reported
// total is reached. The loop is defensive: an empty page below total or
// too many pages fails instead of spinning.
func (c *Client) Guests(ctx context.Context, pageSize int) ([]domain.BridgeGuest, error) {
	if pageSize <= 0 {
		pageSize = defaultGuestPageSize
	}
	var out []domain.BridgeGuest
	for page := 0; ; page++ {
		if page >= maxGuestPages {
			return nil, &domain.APIError{
				Status: http.StatusOK,
				Body:   fmt.Sprintf("guest pagination exceeded %d pages without reaching total", maxGuestPages),
			}
		}
		var env guestsEnvelope
		u := fmt.Sprintf("%s/guests?limit=%d&offset=%d", c.base, pageSize, len(out))
		if err := c.get(ctx, "/guests", u, &env); err != nil {
			return nil, err
		}
		out = append(out, env.Guests...)
		if len(out) >= int(env.Total) {
			return out, nil
		}
		if len(env.Guests) == 0 {
			return nil, &domain.APIError{
				Status: http.StatusOK,
				Body:   fmt.Sprintf("guests page at offset %d empty but server reports total=%d", len(out), int(env.Total)),
			}
		}
	}
}

// Bookings fetches the calendar for an explicit window. The caller
// supplies the range; full-history runs pass the engine's fixed wide
// window since the bridge cannot answer an unbounded query.
func (c *Client) Bookings(ctx context.Context, window domain.DateRange) ([]domain.BridgeBooking, error) {
	var env calendarEnvelope
	u := fmt.Sprintf("%s/calendar?start_date=%s&end_date=%s", c.base, window.From, window.To)
	if err := c.get(ctx, "/calendar", u, &env); err != nil {
		return nil, err
	}
	return env.Bookings, nil
}

// Availability fetches per-day room status. A zero window defaults to
// [today, today+2y].
func (c *Client) Availability(ctx context.Context, window domain.DateRange) ([]domain.BridgeAvailabilitySlot, error) {
	if window.IsZero() {
		today := c.now().Format("2006-01-02")
		window = domain.DateRange{
			From: today,
			To:   c.now().AddDate(2, 0, 0).Format("2006-01-02"),
		}
	}
	var env availabilityEnvelope
	u := fmt.Sprintf("%s/availability?start_date=%s&end_date=%s", c.base, window.From, window.To)
	if err := c.get(ctx, "/availability", u, &env); err != nil {
		return nil, err
	}
	return env.Availability, nil
}

// ---- Internals ----

// get performs a GET with client-side rate limiting and retries on
// transient failures, honoring Retry-After when provided. Terminal
// failures come back typed: *domain.ConnectivityError for transport
// problems, *domain.APIError for non-2xx answers.
func (c *Client) get(ctx context.Context, endpoint, url string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return &domain.ConnectivityError{Cause: err}
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "capcorn-sync/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveBridge(endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return &domain.ConnectivityError{Cause: ctx.Err()}
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return &domain.ConnectivityError{Cause: ctx.Err()}
			}
			return &domain.ConnectivityError{Cause: lastErr}
		}
		observability.ObserveBridge(endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return &domain.APIError{Status: resp.StatusCode, Body: "undecodable body: " + err.Error()}
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = &domain.APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return &domain.ConnectivityError{Cause: ctx.Err()}
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &domain.APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential delay (200ms, 400ms, 800ms...) with up
// to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
