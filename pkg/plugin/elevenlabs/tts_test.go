package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/truvo-ai/voice-agent-go/pkg/ai"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/tts"
)

func TestSynthesizeStreamsFrames(t *testing.T) {
	is := is.New(t)

	var gotPath string
	var gotBody synthesizePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		is.NoErr(json.NewDecoder(r.Body).Decode(&gotBody))
		is.Equal(r.Header.Get("xi-api-key"), "key-123")

		// Three full frames plus a partial tail that should be dropped.
		w.Write(make([]byte, frameBytes*3+10))
	}))
	defer srv.Close()

	provider, err := NewTTS("key-123", "", nil, WithBaseURL(srv.URL))
	is.NoErr(err)

	frames, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{
		Text:  "Welcome to Truvo Properties.",
		Voice: "21m00Tcm4TlvDq8ikWAM",
	})
	is.NoErr(err)

	var count int
	for frame := range frames {
		count++
		is.Equal(len(frame.Data), frameBytes)
		is.Equal(frame.SampleRate, sampleRate)
	}
	is.Equal(count, 3) // partial tail never becomes a frame

	is.True(strings.Contains(gotPath, "/21m00Tcm4TlvDq8ikWAM/"))
	is.Equal(gotBody.ModelID, DefaultModel)
	is.Equal(gotBody.Text, "Welcome to Truvo Properties.")
}

func TestSynthesizeRejectsMissingVoice(t *testing.T) {
	provider, err := NewTTS("key", "", nil)
	if err != nil {
		t.Fatalf("NewTTS: %v", err)
	}
	if _, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hi"}); err == nil {
		t.Fatal("expected error for missing voice id")
	}
}

func TestSynthesizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	provider, err := NewTTS("key", "", nil, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewTTS: %v", err)
	}

	_, err = provider.Synthesize(context.Background(), tts.SynthesizeRequest{
		Text:  "hello",
		Voice: "voice-1",
	})
	if !ai.IsRecoverable(err) {
		t.Errorf("rate limit should be recoverable, got %v", err)
	}
}

func TestSynthesizeCancelStopsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, frameBytes))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	provider, err := NewTTS("key", "", nil, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewTTS: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := provider.Synthesize(ctx, tts.SynthesizeRequest{Text: "long speech", Voice: "v"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	<-frames // first frame arrives
	cancel() // barge-in

	select {
	case _, ok := <-frames:
		if ok {
			// One buffered frame may still be in flight; the channel
			// must close right after.
			select {
			case _, ok := <-frames:
				if ok {
					t.Error("stream kept producing after cancel")
				}
			case <-time.After(time.Second):
				t.Error("stream did not close after cancel")
			}
		}
	case <-time.After(time.Second):
		t.Error("stream did not close after cancel")
	}
}
