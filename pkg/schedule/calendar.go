package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a clock time extracted from a spoken preference.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var hourMention = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)\b`)

// ParseTimePreference maps a free-form spoken preference onto a clock
// time. It is best-effort by contract: it recognizes morning, afternoon
// and evening mentions plus explicit "3 pm" style hours, and anything
// ambiguous or unrecognized returns false so the caller falls through
// to its default slot. It must never be mistaken for a committed
// parser.
func ParseTimePreference(text string) (TimeOfDay, bool) {
	lower := strings.ToLower(text)

	if m := hourMention.FindStringSubmatch(lower); m != nil {
		hour, err := strconv.Atoi(m[1])
		if err != nil || hour < 1 || hour > 12 {
			return TimeOfDay{}, false
		}
		minute := 0
		if m[2] != "" {
			minute, err = strconv.Atoi(m[2])
			if err != nil || minute > 59 {
				return TimeOfDay{}, false
			}
		}
		if strings.HasPrefix(m[3], "p") && hour != 12 {
			hour += 12
		}
		if strings.HasPrefix(m[3], "a") && hour == 12 {
			hour = 0
		}
		return TimeOfDay{Hour: hour, Minute: minute}, true
	}

	switch {
	case strings.Contains(lower, "morning"):
		return TimeOfDay{Hour: 10}, true
	case strings.Contains(lower, "noon") && !strings.Contains(lower, "afternoon"):
		return TimeOfDay{Hour: 12}, true
	case strings.Contains(lower, "afternoon"):
		return TimeOfDay{Hour: 14}, true
	case strings.Contains(lower, "evening"):
		return TimeOfDay{Hour: 17}, true
	}
	return TimeOfDay{}, false
}

// NextBusinessDay returns the next weekday after from.
func NextBusinessDay(from time.Time) time.Time {
	d := from.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// CalendarClient is the calendar-style booking back-end. It follows the
// same total contract as CalClient: success text or a generic retry
// sentence, never an error past the boundary. Without a credential it
// books in demo mode.
type CalendarClient struct {
	apiKey     string
	calendarID string
	baseURL    string
	timeZone   string
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// CalendarOption customizes a CalendarClient.
type CalendarOption func(*CalendarClient)

// WithCalendarBaseURL overrides the calendar API base, mainly for tests.
func WithCalendarBaseURL(base string) CalendarOption {
	return func(c *CalendarClient) { c.baseURL = base }
}

// WithCalendarClock overrides the clock used for default slots in tests.
func WithCalendarClock(now func() time.Time) CalendarOption {
	return func(c *CalendarClient) { c.now = now }
}

// NewCalendarClient creates the gateway. An empty apiKey selects demo
// mode.
func NewCalendarClient(apiKey, calendarID string, logger *slog.Logger, opts ...CalendarOption) *CalendarClient {
	if logger == nil {
		logger = slog.Default()
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	c := &CalendarClient{
		apiKey:     apiKey,
		calendarID: calendarID,
		baseURL:    "https://www.googleapis.com/calendar/v3",
		timeZone:   "America/New_York",
		client:     newHTTPClient(BookingTimeout),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DemoMode reports whether the client has no credential.
func (c *CalendarClient) DemoMode() bool { return c.apiKey == "" }

// BookDemo books a product demo. date may be empty or unparseable and
// preference is free-form speech; both degrade to a fixed
// next-business-day 10:00 slot rather than failing.
func (c *CalendarClient) BookDemo(ctx context.Context, date, name, email, preference string) string {
	start := c.resolveStart(date, preference)
	spoken := start.Format("Monday, January 2 at 3:04 PM")

	if c.DemoMode() {
		return fmt.Sprintf("You're all set, %s! I've scheduled your demo for %s. A calendar invite is on its way to %s.", name, spoken, email)
	}

	text, err := c.createEvent(ctx, start, name, email, spoken)
	return speakOrApologize(c.logger, text, err, msgBookingTrouble)
}

// resolveStart picks a concrete start time from a structured date and a
// spoken preference, defaulting each part independently.
func (c *CalendarClient) resolveStart(date, preference string) time.Time {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		day = NextBusinessDay(c.now())
	}

	tod, ok := ParseTimePreference(preference)
	if !ok {
		tod = TimeOfDay{Hour: 10}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, 0, 0, time.Local)
}

type calendarEvent struct {
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	Start       calendarEventTime `json:"start"`
	End         calendarEventTime `json:"end"`
	Reminders   calendarReminders `json:"reminders"`
}

type calendarEventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type calendarReminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []calendarReminder `json:"overrides"`
}

type calendarReminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

func (c *CalendarClient) createEvent(ctx context.Context, start time.Time, name, email, spoken string) (string, error) {
	event := calendarEvent{
		Summary:     fmt.Sprintf("Truvo demo with %s", name),
		Description: fmt.Sprintf("Product demo booked by the Truvo voice assistant for %s (%s).", name, email),
		Start:       calendarEventTime{DateTime: start.Format(time.RFC3339), TimeZone: c.timeZone},
		End:         calendarEventTime{DateTime: start.Add(30 * time.Minute).Format(time.RFC3339), TimeZone: c.timeZone},
		Reminders: calendarReminders{
			Overrides: []calendarReminder{{Method: "email", Minutes: 60}},
		},
	}

	buf, err := json.Marshal(event)
	if err != nil {
		return "", &GatewayError{Op: "calendar", Err: err}
	}

	url := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, c.calendarID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", &GatewayError{Op: "calendar", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &GatewayError{Op: "calendar", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &GatewayError{Op: "calendar", Err: fmt.Errorf("status %d: %s", resp.StatusCode, detail)}
	}

	return fmt.Sprintf("You're all set, %s! I've scheduled your demo for %s. A calendar invite is on its way to %s.", name, spoken, email), nil
}
