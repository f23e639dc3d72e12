package tool

import (
	"context"
	"fmt"

	"github.com/truvo-ai/voice-agent-go/pkg/schedule"
)

// RegisterBuiltins binds the scheduling gateways to the standard tool
// set. Called once at process start; registration order here fixes the
// order tools are presented to the model.
func RegisterBuiltins(r *Registry, cal *schedule.CalClient, calendar *schedule.CalendarClient) {
	r.Register(&Descriptor{
		Name:        "check_availability",
		Description: "Check available tour times for a specific date. Use this before booking to see what times are open.",
		Params: []Param{
			{Name: "date", Type: "string", Required: true, Description: "The date to check availability for, in YYYY-MM-DD format"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			date, err := stringArg(args, "date")
			if err != nil {
				return "", err
			}
			return cal.CheckAvailability(ctx, date), nil
		},
	})

	r.Register(&Descriptor{
		Name:        "book_tour",
		Description: "Book a property tour appointment. Use this after confirming the date, time, and getting the visitor's name.",
		Params: []Param{
			{Name: "date", Type: "string", Required: true, Description: "Tour date in YYYY-MM-DD format"},
			{Name: "time", Type: "string", Required: true, Description: "Tour time in HH:MM format (24-hour)"},
			{Name: "name", Type: "string", Required: true, Description: "Full name of the person booking the tour"},
			{Name: "email", Type: "string", Required: true, Description: "Email address for confirmation"},
			{Name: "phone", Type: "string", Required: false, Description: "Phone number for the booking"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			var req schedule.BookingRequest
			var err error
			if req.Date, err = stringArg(args, "date"); err != nil {
				return "", err
			}
			if req.Time, err = stringArg(args, "time"); err != nil {
				return "", err
			}
			if req.Name, err = stringArg(args, "name"); err != nil {
				return "", err
			}
			if req.Email, err = stringArg(args, "email"); err != nil {
				return "", err
			}
			req.Phone, _ = stringArg(args, "phone")
			return cal.Book(ctx, req), nil
		},
	})

	r.Register(&Descriptor{
		Name:        "book_demo",
		Description: "Schedule a product demo on the team calendar. Works from a spoken time preference like 'tomorrow morning' or '3 pm'.",
		Params: []Param{
			{Name: "date", Type: "string", Required: false, Description: "Preferred date in YYYY-MM-DD format, if the caller gave one"},
			{Name: "name", Type: "string", Required: true, Description: "Full name of the person booking the demo"},
			{Name: "email", Type: "string", Required: true, Description: "Email address for the calendar invite"},
			{Name: "time_preference", Type: "string", Required: false, Description: "The caller's preferred time of day, in their own words"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, err := stringArg(args, "name")
			if err != nil {
				return "", err
			}
			email, err := stringArg(args, "email")
			if err != nil {
				return "", err
			}
			date, _ := stringArg(args, "date")
			pref, _ := stringArg(args, "time_preference")
			return calendar.BookDemo(ctx, date, name, email, pref), nil
		},
	})
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q is %T, want string", key, v)
	}
	return s, nil
}
