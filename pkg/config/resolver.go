package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FetchTimeout bounds the dashboard config request. A slow dashboard
// must never stall session start past this.
const FetchTimeout = 5 * time.Second

// agentIDLen is the canonical UUID text length the room-name grammar
// anchors on.
const agentIDLen = 36

// ParseAgentID extracts the agent id from a room name of the form
// "agent-<36-char-uuid>-<suffix>".
//
// The id itself contains the segment separator, so splitting on "-" and
// taking the second token mis-parses every real id. The grammar instead
// anchors on the id's fixed length directly after the "agent-" prefix
// and validates it as a UUID, then requires a "-<suffix>" after it.
func ParseAgentID(roomName string) (string, bool) {
	const prefix = "agent-"
	if !strings.HasPrefix(roomName, prefix) {
		return "", false
	}
	rest := roomName[len(prefix):]
	if len(rest) < agentIDLen+2 || rest[agentIDLen] != '-' {
		return "", false
	}
	id := rest[:agentIDLen]
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// Resolver derives the AgentConfig governing a session from its room
// name. Resolve never fails: any problem collapses to the injected
// defaults.
type Resolver struct {
	baseURL  string
	client   *http.Client
	defaults Defaults
	logger   *slog.Logger
}

// NewResolver creates a resolver against the dashboard config API.
func NewResolver(baseURL string, defaults Defaults, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: FetchTimeout},
		defaults: defaults,
		logger:   logger,
	}
}

// configPayload is the dashboard response body. Every field is optional;
// pointers distinguish "absent" from "empty".
type configPayload struct {
	SystemPrompt *string   `json:"system_prompt"`
	Greeting     *string   `json:"greeting"`
	VoiceID      *string   `json:"voice_id"`
	ToolsEnabled *[]string `json:"tools_enabled"`
}

// Resolve returns the configuration for the given room. A room name
// that doesn't match the grammar skips the network entirely; a fetch
// failure of any kind logs a warning and falls back to defaults.
func (r *Resolver) Resolve(ctx context.Context, roomName string) AgentConfig {
	agentID, ok := ParseAgentID(roomName)
	if !ok {
		r.logger.Info("room name carries no agent id, using defaults",
			slog.String("room", roomName))
		return r.defaults.Config()
	}

	payload, err := r.fetch(ctx, agentID)
	if err != nil {
		r.logger.Warn("agent config fetch failed, using defaults",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()))
		return r.defaults.Config()
	}

	return r.merge(payload)
}

func (r *Resolver) fetch(ctx context.Context, agentID string) (*configPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/agents/%s/config", r.baseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dashboard returned status %d", resp.StatusCode)
	}

	var payload configPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode config body: %w", err)
	}
	return &payload, nil
}

// merge applies the response field-by-field over the defaults. Partial
// bodies are legal; absent fields keep their default.
func (r *Resolver) merge(p *configPayload) AgentConfig {
	cfg := r.defaults.Config()
	if p.SystemPrompt != nil {
		cfg.SystemPrompt = *p.SystemPrompt
	}
	if p.Greeting != nil {
		cfg.Greeting = *p.Greeting
	}
	if p.VoiceID != nil {
		cfg.VoiceID = *p.VoiceID
	}
	if p.ToolsEnabled != nil {
		cfg.ToolsEnabled = append([]string(nil), (*p.ToolsEnabled)...)
	}
	return cfg
}
