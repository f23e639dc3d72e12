package schedule

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseTimePreference(t *testing.T) {
	tests := []struct {
		text string
		want TimeOfDay
		ok   bool
	}{
		{"sometime in the morning would be great", TimeOfDay{Hour: 10}, true},
		{"the afternoon works", TimeOfDay{Hour: 14}, true},
		{"early evening please", TimeOfDay{Hour: 17}, true},
		{"around noon", TimeOfDay{Hour: 12}, true},
		{"how about 3 pm", TimeOfDay{Hour: 15}, true},
		{"3:30 pm if possible", TimeOfDay{Hour: 15, Minute: 30}, true},
		{"9 am", TimeOfDay{Hour: 9}, true},
		{"12 pm", TimeOfDay{Hour: 12}, true},
		{"12 am", TimeOfDay{Hour: 0}, true},
		{"whenever you have time", TimeOfDay{}, false},
		{"", TimeOfDay{}, false},
		{"25 pm", TimeOfDay{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseTimePreference(tt.text)
			if ok != tt.ok {
				t.Fatalf("ParseTimePreference(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseTimePreference(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNextBusinessDay(t *testing.T) {
	// 2025-03-07 is a Friday.
	friday := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	if got := NextBusinessDay(friday); got.Weekday() != time.Monday {
		t.Errorf("next business day after Friday = %v, want Monday", got.Weekday())
	}

	monday := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := NextBusinessDay(monday); got.Weekday() != time.Tuesday {
		t.Errorf("next business day after Monday = %v, want Tuesday", got.Weekday())
	}
}

func TestBookDemo_DemoMode(t *testing.T) {
	c := NewCalendarClient("", "", nil)
	got := c.BookDemo(context.Background(), "2025-03-10", "Ada", "ada@example.com", "afternoon")

	if !strings.Contains(got, "Ada") || !strings.Contains(got, "ada@example.com") {
		t.Errorf("demo booking should mention name and email, got %q", got)
	}
	if !strings.Contains(got, "2:00 PM") {
		t.Errorf("afternoon preference should book 2 PM, got %q", got)
	}
}

func TestBookDemo_UnparseablePreferenceDefaults(t *testing.T) {
	// Clock pinned to a Friday; the default slot is next business day
	// (Monday) at 10:00.
	clock := func() time.Time { return time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC) }
	c := NewCalendarClient("", "", nil, WithCalendarClock(clock))

	got := c.BookDemo(context.Background(), "", "Ada", "ada@example.com", "whenever really")

	if !strings.Contains(got, "Monday") || !strings.Contains(got, "10:00 AM") {
		t.Errorf("expected fixed next-business-day 10 AM default, got %q", got)
	}
}

func TestBookDemo_CreatesEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var event calendarEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if !strings.Contains(event.Summary, "Ada") {
			t.Errorf("summary = %q", event.Summary)
		}
		if event.Start.TimeZone == "" || event.End.DateTime == "" {
			t.Errorf("event times incomplete: %+v", event)
		}
		if len(event.Reminders.Overrides) == 0 {
			t.Errorf("expected a reminder override")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"evt_1"}`))
	}))
	defer srv.Close()

	c := NewCalendarClient("token", "primary", nil, WithCalendarBaseURL(srv.URL))
	got := c.BookDemo(context.Background(), "2025-03-10", "Ada", "ada@example.com", "10 am")

	if !strings.Contains(got, "ada@example.com") {
		t.Errorf("confirmation should mention the email, got %q", got)
	}
}

func TestBookDemo_ServerErrorIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewCalendarClient("token", "primary", nil, WithCalendarBaseURL(srv.URL))
	got := c.BookDemo(context.Background(), "2025-03-10", "Ada", "ada@example.com", "morning")

	if got != msgBookingTrouble {
		t.Errorf("expected the generic retry sentence, got %q", got)
	}
}
