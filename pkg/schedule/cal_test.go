package schedule

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCheckAvailability_DemoMode(t *testing.T) {
	c := NewCalClient("", "", nil)

	first := c.CheckAvailability(context.Background(), "2025-01-01")
	second := c.CheckAvailability(context.Background(), "2025-01-01")

	if first == "" {
		t.Fatal("demo availability should not be empty")
	}
	if first != second {
		t.Errorf("demo availability must be deterministic: %q vs %q", first, second)
	}
	if !strings.Contains(first, "2025-01-01") {
		t.Errorf("demo availability should name the date, got %q", first)
	}
	if !strings.Contains(first, "10:00 AM") {
		t.Errorf("demo availability should list fixed slots, got %q", first)
	}
}

func TestCheckAvailability_NoSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apiKey") != "key" || q.Get("eventTypeId") != "42" {
			t.Errorf("missing credentials in query: %v", q)
		}
		json.NewEncoder(w).Encode(map[string]any{"slots": map[string]any{}})
	}))
	defer srv.Close()

	c := NewCalClient("key", "42", nil, WithCalBaseURL(srv.URL))
	got := c.CheckAvailability(context.Background(), "2025-03-10")

	if !strings.Contains(got, "no available times") || !strings.Contains(got, "2025-03-10") {
		t.Errorf("expected a no-availability message naming the date, got %q", got)
	}
}

func TestCheckAvailability_FormatsSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"slots": map[string]any{
				"2025-03-10": []map[string]string{
					{"time": "2025-03-10T14:00:00Z"},
					{"time": "2025-03-10T15:30:00Z"},
					{"time": "2025-03-10T17:00:00Z"},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewCalClient("key", "42", nil, WithCalBaseURL(srv.URL))
	got := c.CheckAvailability(context.Background(), "2025-03-10")

	if !strings.Contains(got, "2:00 PM, 3:30 PM, or 5:00 PM") {
		t.Errorf("expected oxford-style slot list, got %q", got)
	}
}

func TestCheckAvailability_CapsAtSixSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slots := make([]map[string]string, 10)
		for i := range slots {
			slots[i] = map[string]string{"time": "2025-03-10T0" + string(rune('1'+i%9)) + ":00:00Z"}
		}
		json.NewEncoder(w).Encode(map[string]any{"slots": map[string]any{"2025-03-10": slots}})
	}))
	defer srv.Close()

	c := NewCalClient("key", "42", nil, WithCalBaseURL(srv.URL))
	got := c.CheckAvailability(context.Background(), "2025-03-10")

	if n := strings.Count(got, "AM") + strings.Count(got, "PM"); n > maxSpokenSlots {
		t.Errorf("spoke %d slots, cap is %d: %q", n, maxSpokenSlots, got)
	}
}

func TestCheckAvailability_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"internal explosion"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCalClient("key", "42", nil, WithCalBaseURL(srv.URL))
	got := c.CheckAvailability(context.Background(), "2025-03-10")

	if got != msgAvailabilityTrouble {
		t.Errorf("expected the generic retry sentence, got %q", got)
	}
	if strings.Contains(got, "explosion") {
		t.Errorf("back-end error text leaked to the caller: %q", got)
	}
}

func TestBook_DemoMode(t *testing.T) {
	c := NewCalClient("", "", nil)
	got := c.Book(context.Background(), BookingRequest{
		Date: "2025-03-10", Time: "14:00", Name: "Ada", Email: "ada@example.com",
	})

	for _, want := range []string{"2025-03-10", "14:00", "ada@example.com"} {
		if !strings.Contains(got, want) {
			t.Errorf("demo booking should mention %q, got %q", want, got)
		}
	}
}

func TestBook_Created(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var payload bookingPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode booking payload: %v", err)
		}
		if payload.Start != "2025-03-10T14:00:00" {
			t.Errorf("start = %q", payload.Start)
		}
		if payload.Responses.Email != "ada@example.com" {
			t.Errorf("email = %q", payload.Responses.Email)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewCalClient("key", "42", nil, WithCalBaseURL(srv.URL))
	got := c.Book(context.Background(), BookingRequest{
		Date: "2025-03-10", Time: "14:00", Name: "Ada", Email: "ada@example.com",
	})

	for _, want := range []string{"2025-03-10", "14:00", "ada@example.com"} {
		if !strings.Contains(got, want) {
			t.Errorf("confirmation should mention %q, got %q", want, got)
		}
	}
}

func TestBook_BadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"no such event type"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewCalClient("key", "42", nil, WithCalBaseURL(srv.URL))
	got := c.Book(context.Background(), BookingRequest{
		Date: "2025-03-10", Time: "14:00", Name: "Ada", Email: "ada@example.com",
	})

	if got != msgBookingTrouble {
		t.Errorf("expected the generic retry sentence, got %q", got)
	}
	if strings.Contains(got, "event type") {
		t.Errorf("back-end error text leaked to the caller: %q", got)
	}
}

func TestJoinSlots(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"10:00 AM"}, "10:00 AM"},
		{[]string{"10:00 AM", "2:00 PM"}, "10:00 AM, or 2:00 PM"},
		{[]string{"10:00 AM", "11:30 AM", "2:00 PM"}, "10:00 AM, 11:30 AM, or 2:00 PM"},
	}
	for _, tt := range tests {
		if got := joinSlots(tt.in); got != tt.want {
			t.Errorf("joinSlots(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
