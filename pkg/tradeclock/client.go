// Package tradeclock provides a Go SDK for the tradeclock-server API.
package tradeclock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a tradeclock-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Hands holds the analog hand angles in degrees plus the snap counter.
type Hands struct {
	Hour   float64 `json:"hour"`
	Minute float64 `json:"minute"`
	Second float64 `json:"second"`
	Snaps  uint64  `json:"snaps"`
}

// SessionWindow is a resolved session occurrence.
type SessionWindow struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// SessionSnapshot pairs the active and next session with countdowns in
// seconds.
type SessionSnapshot struct {
	Active      *SessionWindow `json:"active,omitempty"`
	Next        *SessionWindow `json:"next,omitempty"`
	TimeToEnd   *int64         `json:"timeToEnd,omitempty"`
	TimeToStart *int64         `json:"timeToStart,omitempty"`
}

// Event is one economic event with its classification flags.
type Event struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Impact  string `json:"impact,omitempty"`
	EpochMs int64  `json:"epochMs"`
	Now     bool   `json:"now,omitempty"`
	Next    bool   `json:"next,omitempty"`
}

// ClockState is the full clock state served by /api/clock.
type ClockState struct {
	Timezone      string          `json:"timezone"`
	EpochMs       int64           `json:"epochMs"`
	Time          string          `json:"time"`
	DayKey        string          `json:"dayKey"`
	TradingDay    bool            `json:"tradingDay"`
	ResumeToken   uint64          `json:"resumeToken"`
	Hands         Hands           `json:"hands"`
	Session       SessionSnapshot `json:"session"`
	NextEvent     *Event          `json:"nextEvent,omitempty"`
	NextCountdown string          `json:"nextCountdown,omitempty"`
}

// SessionConfig is a configured session before resolution.
type SessionConfig struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Sessions is the /api/sessions response.
type Sessions struct {
	Timezone string          `json:"timezone"`
	Sessions []SessionConfig `json:"sessions"`
	Snapshot SessionSnapshot `json:"snapshot"`
}

// CalendarDay is one day of a calendar range.
type CalendarDay struct {
	Key     string `json:"key"`
	Trading bool   `json:"trading"`
}

// Calendar is the /api/calendar response.
type Calendar struct {
	Timezone  string        `json:"timezone"`
	Days      []CalendarDay `json:"days"`
	Truncated bool          `json:"truncated"`
}

// DayEvents is the /api/events/{day} response.
type DayEvents struct {
	Day    string  `json:"day"`
	Events []Event `json:"events"`
}

// Clock retrieves the current clock state.
func (c *Client) Clock(ctx context.Context) (*ClockState, error) {
	var out ClockState
	if err := c.get(ctx, "/api/clock", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sessions retrieves the configured sessions and their current resolution.
func (c *Client) Sessions(ctx context.Context) (*Sessions, error) {
	var out Sessions
	if err := c.get(ctx, "/api/sessions", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Calendar retrieves the day sequence between two YYYY-MM-DD keys. Either
// key may be empty to use the server default.
func (c *Client) Calendar(ctx context.Context, start, end string) (*Calendar, error) {
	q := url.Values{}
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	path := "/api/calendar"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out Calendar
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events retrieves the events bucketed into one YYYY-MM-DD day.
func (c *Client) Events(ctx context.Context, day string) (*DayEvents, error) {
	var out DayEvents
	if err := c.get(ctx, "/api/events/"+url.PathEscape(day), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NotifyResume tells the server the host just returned to the foreground,
// forcing a hand snap instead of waiting for gap detection.
func (c *Client) NotifyResume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/resume", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("POST /api/resume: unexpected status %s", resp.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}
