// Package config holds process-wide settings, the per-session agent
// configuration, and the resolver that derives one from a room name.
package config

import "os"

// Default agent behavior used whenever the dashboard cannot supply a
// value. Voice identifiers are ElevenLabs voice IDs, not names
// (Rachel: 21m00Tcm4TlvDq8ikWAM, Bella: EXAVITQu4vr4xnSDxMaL,
// Josh: TxGEqnHWrfWFTfGW9XjX, Adam: pNInz6obpgDQGcFmaJgB).
const (
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel

	DefaultSystemPrompt = `You are a friendly and professional real estate assistant for Truvo Properties.
Your role is to help potential tenants and buyers with property inquiries.

You can:
- Answer questions about available properties
- Schedule property tours using the book_tour function
- Check availability for tour times
- Provide general information about the leasing process

Be conversational, helpful, and concise. Keep responses brief for voice - typically 1-2 sentences.
If someone wants to book a tour, collect their name, preferred date, and time, then use the booking function.`

	DefaultGreeting = "Hi there! Thanks for calling Truvo Properties. I'm here to help you find your perfect home. Are you looking to schedule a tour or do you have questions about our available properties?"
)

// DefaultToolNames is the tool set enabled when the dashboard does not
// say otherwise.
var DefaultToolNames = []string{"check_availability", "book_tour"}

// AgentConfig is the resolved behavioral configuration for one session.
// It is immutable once the resolver returns it.
type AgentConfig struct {
	SystemPrompt string
	Greeting     string
	VoiceID      string
	ToolsEnabled []string
}

// Defaults is the fallback AgentConfig injected into the resolver. It
// is a value, not ambient global state, so tests can substitute it.
type Defaults struct {
	SystemPrompt string
	Greeting     string
	VoiceID      string
	ToolsEnabled []string
}

// Config returns the full-default AgentConfig.
func (d Defaults) Config() AgentConfig {
	tools := make([]string, len(d.ToolsEnabled))
	copy(tools, d.ToolsEnabled)
	return AgentConfig{
		SystemPrompt: d.SystemPrompt,
		Greeting:     d.Greeting,
		VoiceID:      d.VoiceID,
		ToolsEnabled: tools,
	}
}

// NewDefaults returns the built-in defaults.
func NewDefaults() Defaults {
	return Defaults{
		SystemPrompt: DefaultSystemPrompt,
		Greeting:     DefaultGreeting,
		VoiceID:      DefaultVoiceID,
		ToolsEnabled: DefaultToolNames,
	}
}

// Settings holds process-wide credentials and endpoints. Read-only
// after Load; shared by every session the worker spawns.
type Settings struct {
	// LiveKit
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	// Capability providers
	OpenAIAPIKey   string
	DeepgramAPIKey string
	ElevenAPIKey   string

	// Dashboard config API
	DashboardURL string

	// Scheduling back-ends. Empty credential means demo mode.
	CalAPIKey      string
	CalEventTypeID string
	CalendarAPIKey string
	CalendarID     string
}

// Load reads settings from the environment, applying fixed fallbacks:
// missing dashboard URL falls back to localhost, missing scheduling or
// calendar credentials put those gateways in demo mode.
func Load() Settings {
	return Settings{
		LiveKitURL:       os.Getenv("LIVEKIT_URL"),
		LiveKitAPIKey:    os.Getenv("LIVEKIT_API_KEY"),
		LiveKitAPISecret: os.Getenv("LIVEKIT_API_SECRET"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		ElevenAPIKey:     os.Getenv("ELEVEN_API_KEY"),
		DashboardURL:     envOr("DASHBOARD_API_URL", "http://localhost:3000"),
		CalAPIKey:        os.Getenv("CAL_API_KEY"),
		CalEventTypeID:   os.Getenv("CAL_EVENT_TYPE_ID"),
		CalendarAPIKey:   os.Getenv("CALENDAR_API_KEY"),
		CalendarID:       envOr("CALENDAR_ID", "primary"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
