package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/truvo-ai/voice-agent-go/pkg/config"
	"github.com/truvo-ai/voice-agent-go/pkg/job"
	"github.com/truvo-ai/voice-agent-go/pkg/rtc"
	"github.com/truvo-ai/voice-agent-go/pkg/session"
	"github.com/truvo-ai/voice-agent-go/pkg/tool"
	"github.com/truvo-ai/voice-agent-go/pkg/turn"
)

// agentIdentity is the participant identity the agent joins rooms with.
const agentIdentity = "truvo-agent"

// ttsSampleRate matches the synthesis provider's PCM output.
const ttsSampleRate = 16000

// SessionDeps bundles everything a dispatched session needs.
type SessionDeps struct {
	Settings config.Settings
	Builder  *session.Builder
	Tools    *tool.Registry
	Resolver *config.Resolver
	Policy   turn.Policy
	Detector turn.Detector
	Logger   *slog.Logger
}

// NewSessionDispatcher returns the DispatchFunc that serves one room:
// join, wait for the caller and their audio, then run the conversation
// until they leave.
func NewSessionDispatcher(deps SessionDeps) DispatchFunc {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, j *job.Job, roomToken string) error {
		log := logger.With(slog.String("job_id", j.ID), slog.String("room", j.RoomName))

		if roomToken == "" {
			var err error
			roomToken, err = mintRoomToken(deps.Settings, j.RoomName)
			if err != nil {
				return fmt.Errorf("mint room token: %w", err)
			}
		}

		roomCfg := job.RoomConfig{
			URL:      deps.Settings.LiveKitURL,
			Token:    roomToken,
			RoomName: j.RoomName,
		}
		room, err := job.NewRoom(ctx, roomCfg)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		if err := room.Connect(roomCfg); err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		j.Context.OnShutdown(func(string) { _ = room.Disconnect() })

		participant, err := room.WaitForParticipant(ctx)
		if err != nil {
			return fmt.Errorf("wait for caller: %w", err)
		}
		log.Info("caller joined", slog.String("identity", participant.Identity))

		// End the job when the caller leaves.
		go func() {
			for ev := range room.Events {
				if ev.Type == job.EventParticipantDisconnected &&
					ev.Participant != nil &&
					ev.Participant.Identity == participant.Identity {
					j.Shutdown("caller left")
					return
				}
			}
		}()

		var sub *job.TrackSubscription
		select {
		case sub = <-room.Tracks:
		case <-ctx.Done():
			return ctx.Err()
		}
		log.Info("caller audio subscribed", slog.String("track_sid", sub.Publication.SID()))

		reader, err := rtc.NewTrackReader(sub.Track, log)
		if err != nil {
			return fmt.Errorf("create track reader: %w", err)
		}

		publisher, err := rtc.NewPublisher(room.LocalParticipant(), "agent-voice", ttsSampleRate)
		if err != nil {
			return fmt.Errorf("publish agent track: %w", err)
		}

		sess := session.New(j, deps.Resolver, deps.Builder, deps.Tools, session.Options{
			Policy:   deps.Policy,
			Detector: deps.Detector,
			Logger:   log,
		})
		return sess.Run(ctx, session.IO{
			Frames: reader.Stream(ctx),
			Output: publisher,
		})
	}
}

func mintRoomToken(settings config.Settings, roomName string) (string, error) {
	if settings.LiveKitAPIKey == "" || settings.LiveKitAPISecret == "" {
		return "", fmt.Errorf("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required")
	}
	at := auth.NewAccessToken(settings.LiveKitAPIKey, settings.LiveKitAPISecret)
	grant := &auth.VideoGrant{RoomJoin: true, Room: roomName}
	at.AddGrant(grant).
		SetIdentity(agentIdentity).
		SetValidFor(time.Hour)
	return at.ToJWT()
}
