// Package deepgram provides streaming speech recognition over the
// Deepgram realtime websocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/truvo-ai/voice-agent-go/pkg/ai"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/stt"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
)

// DefaultModel is Deepgram's high-accuracy conversational model.
const DefaultModel = "nova-2"

const defaultEndpoint = "wss://api.deepgram.com/v1/listen"

// STT implements stt.STT over the Deepgram realtime API.
type STT struct {
	apiKey   string
	model    string
	endpoint string
	logger   *slog.Logger
}

// Option customizes the provider.
type Option func(*STT)

// WithEndpoint overrides the websocket endpoint, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(s *STT) { s.endpoint = endpoint }
}

// NewSTT creates a Deepgram STT provider.
func NewSTT(apiKey, model string, logger *slog.Logger, opts ...Option) (*STT, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Deepgram API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &STT{apiKey: apiKey, model: model, endpoint: defaultEndpoint, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewStream opens one realtime recognition session.
func (s *STT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, ai.NewFatalError(err, "invalid Deepgram endpoint")
	}

	q := u.Query()
	q.Set("model", s.model)
	q.Set("language", orDefault(cfg.Language, "en"))
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(orDefaultInt(cfg.SampleRate, 48000)))
	q.Set("channels", strconv.Itoa(orDefaultInt(cfg.NumChannels, 1)))
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	u.RawQuery = q.Encode()

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, u.String(), map[string][]string{
		"Authorization": {"Token " + s.apiKey},
	})
	if err != nil {
		return nil, ai.NewRecoverableError(err, "Deepgram connect failed")
	}

	st := &stream{
		conn:   conn,
		lang:   orDefault(cfg.Language, "en"),
		events: make(chan stt.Event, 16),
		logger: s.logger,
	}
	go st.readLoop(ctx)
	return st, nil
}

func (s *STT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Streaming:          true,
		InterimResults:     true,
		SupportedLanguages: []string{"en", "es", "fr", "de"},
		SampleRates:        []int{16000, 48000},
	}
}

type stream struct {
	conn    *websocket.Conn
	lang    string
	events  chan stt.Event
	logger  *slog.Logger
	writeMu sync.Mutex
	closed  sync.Once
}

// result is the Deepgram realtime response envelope, trimmed to the
// fields the pipeline consumes.
type result struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (st *stream) Push(frame rtc.AudioFrame) error {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	if err := st.conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
		return ai.NewRecoverableError(err, "audio push failed")
	}
	return nil
}

func (st *stream) Events() <-chan stt.Event {
	return st.events
}

func (st *stream) CloseSend() error {
	var err error
	st.closed.Do(func() {
		st.writeMu.Lock()
		defer st.writeMu.Unlock()
		msg, _ := json.Marshal(map[string]string{"type": "CloseStream"})
		err = st.conn.WriteMessage(websocket.TextMessage, msg)
	})
	return err
}

// readLoop forwards recognition results until the server closes the
// stream or ctx is cancelled.
func (st *stream) readLoop(ctx context.Context) {
	defer close(st.events)
	defer st.conn.Close()

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		_, data, err := st.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			st.emit(ctx, stt.Event{Type: stt.EventError, Err: err})
			return
		}

		var res result
		if err := json.Unmarshal(data, &res); err != nil {
			st.logger.Debug("skipping unparseable Deepgram message", slog.String("error", err.Error()))
			continue
		}
		if res.Type != "Results" || len(res.Channel.Alternatives) == 0 {
			continue
		}
		text := res.Channel.Alternatives[0].Transcript
		if text == "" {
			continue
		}

		kind := stt.EventInterim
		if res.IsFinal {
			kind = stt.EventFinal
		}
		st.emit(ctx, stt.Event{
			Type:      kind,
			Text:      text,
			Language:  st.lang,
			Timestamp: time.Now().UnixMilli(),
		})
	}
}

func (st *stream) emit(ctx context.Context, ev stt.Event) {
	select {
	case st.events <- ev:
	case <-ctx.Done():
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func orDefaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
