package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// maxSpokenSlots caps how many open times are read back to the caller.
const maxSpokenSlots = 6

// BookingRequest is the structured booking a tool call produces. It is
// ephemeral; the back-end owns persistence.
type BookingRequest struct {
	Date  string // YYYY-MM-DD
	Time  string // HH:MM, 24-hour
	Name  string
	Email string
	Phone string // optional
}

// CalClient is the Cal.com scheduling gateway. With no API key it runs
// in demo mode: availability and booking return plausible fixed results
// without any external call, so the tools stay exercisable end-to-end
// before credentials are set up. That behavior is deliberate, not a
// stub.
type CalClient struct {
	apiKey      string
	eventTypeID string
	baseURL     string
	timeZone    string
	availClient *http.Client
	bookClient  *http.Client
	logger      *slog.Logger
}

// CalOption customizes a CalClient.
type CalOption func(*CalClient)

// WithCalBaseURL overrides the Cal.com API base, mainly for tests.
func WithCalBaseURL(base string) CalOption {
	return func(c *CalClient) { c.baseURL = base }
}

// WithCalTimeZone sets the time zone sent with bookings.
func WithCalTimeZone(tz string) CalOption {
	return func(c *CalClient) { c.timeZone = tz }
}

// NewCalClient creates the gateway. An empty apiKey selects demo mode.
func NewCalClient(apiKey, eventTypeID string, logger *slog.Logger, opts ...CalOption) *CalClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &CalClient{
		apiKey:      apiKey,
		eventTypeID: eventTypeID,
		baseURL:     "https://api.cal.com",
		timeZone:    "America/New_York",
		availClient: newHTTPClient(AvailabilityTimeout),
		bookClient:  newHTTPClient(BookingTimeout),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DemoMode reports whether the client has no credential and fakes its
// results.
func (c *CalClient) DemoMode() bool { return c.apiKey == "" }

// CheckAvailability returns spoken text listing open tour times for the
// given date (YYYY-MM-DD). Total: failures collapse to a generic retry
// sentence.
func (c *CalClient) CheckAvailability(ctx context.Context, date string) string {
	if c.DemoMode() {
		return fmt.Sprintf("Available times for %s: 10:00 AM, 11:30 AM, 2:00 PM, 3:30 PM. Which time works best for you?", date)
	}
	text, err := c.checkAvailability(ctx, date)
	return speakOrApologize(c.logger, text, err, msgAvailabilityTrouble)
}

type availabilityResponse struct {
	Slots map[string][]struct {
		Time string `json:"time"`
	} `json:"slots"`
}

func (c *CalClient) checkAvailability(ctx context.Context, date string) (string, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "I didn't catch that date. Could you give it to me again, like year, month and day?", nil
	}

	// Half-open day interval [date 00:00, date+1 00:00).
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("eventTypeId", c.eventTypeID)
	q.Set("startTime", day.Format("2006-01-02T15:04:05")+"Z")
	q.Set("endTime", day.AddDate(0, 0, 1).Format("2006-01-02T15:04:05")+"Z")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/availability?"+q.Encode(), nil)
	if err != nil {
		return "", &GatewayError{Op: "availability", Err: err}
	}

	resp, err := c.availClient.Do(req)
	if err != nil {
		return "", &GatewayError{Op: "availability", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &GatewayError{Op: "availability", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var body availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &GatewayError{Op: "availability", Err: err}
	}

	slots := body.Slots[date]
	if len(slots) == 0 {
		return fmt.Sprintf("Sorry, there are no available times on %s. Would you like to check another date?", date), nil
	}

	var times []string
	for _, slot := range slots {
		if len(times) == maxSpokenSlots {
			break
		}
		t, err := time.Parse(time.RFC3339, slot.Time)
		if err != nil {
			continue
		}
		times = append(times, t.Format("3:04 PM"))
	}
	if len(times) == 0 {
		return "", &GatewayError{Op: "availability", Err: fmt.Errorf("no parseable slot times for %s", date)}
	}

	return fmt.Sprintf("Available times on %s: %s. Which time works for you?", date, joinSlots(times)), nil
}

// Book creates a tour booking. Total: 200/201 yields a confirmation
// naming the date, time and email; everything else yields a generic
// retry sentence and never the back-end's error body.
func (c *CalClient) Book(ctx context.Context, r BookingRequest) string {
	if c.DemoMode() {
		return fmt.Sprintf("I've booked your tour for %s at %s. You'll receive a confirmation email at %s. We look forward to showing you around!", r.Date, r.Time, r.Email)
	}
	text, err := c.book(ctx, r)
	return speakOrApologize(c.logger, text, err, msgBookingTrouble)
}

type bookingPayload struct {
	EventTypeID string            `json:"eventTypeId"`
	Start       string            `json:"start"`
	Responses   bookingResponses  `json:"responses"`
	TimeZone    string            `json:"timeZone"`
	Language    string            `json:"language"`
	Metadata    map[string]string `json:"metadata"`
}

type bookingResponses struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

func (c *CalClient) book(ctx context.Context, r BookingRequest) (string, error) {
	payload := bookingPayload{
		EventTypeID: c.eventTypeID,
		Start:       fmt.Sprintf("%sT%s:00", r.Date, r.Time),
		Responses: bookingResponses{
			Name:  r.Name,
			Email: r.Email,
			Phone: r.Phone,
			Notes: "Booked via Truvo AI Assistant",
		},
		TimeZone: c.timeZone,
		Language: "en",
		Metadata: map[string]string{"source": "truvo-voice-agent"},
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", &GatewayError{Op: "booking", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/bookings?apiKey="+url.QueryEscape(c.apiKey), bytes.NewReader(buf))
	if err != nil {
		return "", &GatewayError{Op: "booking", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.bookClient.Do(req)
	if err != nil {
		return "", &GatewayError{Op: "booking", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// Drain for logging only; the caller never hears this.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &GatewayError{Op: "booking", Err: fmt.Errorf("status %d: %s", resp.StatusCode, detail)}
	}

	return fmt.Sprintf("Excellent! I've booked your property tour for %s at %s. A confirmation email has been sent to %s. Is there anything else I can help you with?", r.Date, r.Time, r.Email), nil
}
