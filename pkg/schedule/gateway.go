// Package schedule talks to the external scheduling back-ends (Cal.com
// and a calendar-style service) on behalf of the booking tools.
//
// Every public operation is total: back-end failures never escape as
// errors. Internal operations return (text, error) and the apology
// mapping is applied once at the public boundary, so callers always get
// natural-language text they can speak.
package schedule

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Bounded timeouts per back-end call.
const (
	AvailabilityTimeout = 10 * time.Second
	BookingTimeout      = 15 * time.Second
)

// Fixed user-facing sentences for back-end failures. Internal error
// detail is logged, never spoken.
const (
	msgAvailabilityTrouble = "I'm having trouble checking availability right now. Could you try again in a moment?"
	msgBookingTrouble      = "I'm having trouble completing the booking right now. Would you like me to try again, or would you prefer to call back later?"
)

// GatewayError carries the internal failure detail for logging.
type GatewayError struct {
	Op  string // "availability", "booking", "calendar"
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("scheduling gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// speakOrApologize is the single place a gateway error becomes a spoken
// sentence.
func speakOrApologize(logger *slog.Logger, text string, err error, apology string) string {
	if err == nil {
		return text
	}
	logger.Warn("scheduling back-end failure", slog.String("error", err.Error()))
	return apology
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// joinSlots renders up to one-less-than-all slots comma separated with
// an "or" before the last: "A, B, or C". A single slot is returned
// plain.
func joinSlots(times []string) string {
	switch len(times) {
	case 0:
		return ""
	case 1:
		return times[0]
	default:
		out := ""
		for i, t := range times[:len(times)-1] {
			if i > 0 {
				out += ", "
			}
			out += t
		}
		return out + ", or " + times[len(times)-1]
	}
}
