// Package holidays provides exchange-calendar awareness for the session
// clock: which calendar days are actual trading days. It is an optional
// collaborator backed by the Alpaca trading calendar API; without
// credentials every day reports as a trading day.
package holidays

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"tradeclock/internal/util"
)

// maxFetchSpan limits one calendar API request; longer refreshes are split
// into chunks paced by the rate limiter.
const maxFetchSpan = 365 * 24 * time.Hour

// Calendar caches trading days keyed by their YYYY-MM-DD day key.
type Calendar struct {
	client  *alpaca.Client
	log     *slog.Logger
	limiter *util.RateLimiter

	mu   sync.RWMutex
	days map[string]bool
}

// New creates a Calendar. Empty credentials return a disabled calendar that
// treats every day as a trading day.
func New(apiKey, apiSecret, baseURL string, log *slog.Logger) *Calendar {
	c := &Calendar{
		log:     log,
		limiter: util.NewRateLimiter(200),
		days:    make(map[string]bool),
	}
	if apiKey != "" && apiSecret != "" {
		c.client = alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		})
	}
	return c
}

// Enabled reports whether a calendar source is configured.
func (c *Calendar) Enabled() bool {
	return c.client != nil
}

// Refresh loads the trading calendar for [start, end] into the cache. Days
// inside the range that the exchange is closed are recorded as non-trading.
// No-op when disabled.
func (c *Calendar) Refresh(ctx context.Context, start, end time.Time) error {
	if c.client == nil {
		return nil
	}
	if end.Before(start) {
		return fmt.Errorf("refresh range end %v before start %v", end, start)
	}

	for chunkStart := start; !chunkStart.After(end); chunkStart = chunkStart.Add(maxFetchSpan) {
		chunkEnd := chunkStart.Add(maxFetchSpan)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var calendar []alpaca.CalendarDay
		err := util.Retry(ctx, 3, time.Second, func() error {
			var err error
			calendar, err = c.client.GetCalendar(alpaca.GetCalendarRequest{
				Start: chunkStart,
				End:   chunkEnd,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("GetCalendar %s..%s: %w",
				chunkStart.Format("2006-01-02"), chunkEnd.Format("2006-01-02"), err)
		}

		c.mu.Lock()
		// Mark every day in the chunk closed first, then flip the trading
		// days the API returned.
		for d := chunkStart; !d.After(chunkEnd); d = d.AddDate(0, 0, 1) {
			c.days[d.Format("2006-01-02")] = false
		}
		for _, day := range calendar {
			c.days[day.Date] = true
		}
		c.mu.Unlock()

		c.log.Info("trading calendar refreshed",
			"start", chunkStart.Format("2006-01-02"),
			"end", chunkEnd.Format("2006-01-02"),
			"tradingDays", len(calendar))
	}
	return nil
}

// IsTradingDay reports whether the day key is a trading day. Unknown days
// and the disabled state report true, so missing calendar data never blanks
// the clock.
func (c *Calendar) IsTradingDay(dayKey string) bool {
	if c.client == nil {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	trading, known := c.days[dayKey]
	if !known {
		return true
	}
	return trading
}
