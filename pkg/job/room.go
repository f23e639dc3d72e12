package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
)

// TrackSubscription pairs a subscribed media track with its publisher.
type TrackSubscription struct {
	Track       *webrtc.TrackRemote
	Publication *lksdk.RemoteTrackPublication
	Participant *livekit.ParticipantInfo
}

// Room wraps the LiveKit room connection. Events and Tracks are fed by
// SDK callbacks; both close on Disconnect.
type Room struct {
	// Events receives room lifecycle events.
	Events chan *Event

	// Tracks receives newly subscribed media tracks.
	Tracks chan *TrackSubscription

	room   *lksdk.Room
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	connected    bool
	closed       bool
	participants map[string]*livekit.ParticipantInfo
}

// RoomConfig configures a room connection.
type RoomConfig struct {
	// URL of the media server.
	URL string

	// Token authenticating the agent participant.
	Token string

	// RoomName to join.
	RoomName string

	// EventBufferSize for the Events channel; defaults to 100.
	EventBufferSize int
}

// NewRoom creates an unconnected room wrapper.
func NewRoom(ctx context.Context, cfg RoomConfig) (*Room, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if cfg.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}

	bufferSize := cfg.EventBufferSize
	if bufferSize == 0 {
		bufferSize = 100
	}

	roomCtx, cancel := context.WithCancel(ctx)
	return &Room{
		Events:       make(chan *Event, bufferSize),
		Tracks:       make(chan *TrackSubscription, 8),
		ctx:          roomCtx,
		cancel:       cancel,
		participants: make(map[string]*livekit.ParticipantInfo),
	}, nil
}

// Connect joins the room.
func (r *Room) Connect(cfg RoomConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected {
		return fmt.Errorf("room is already connected")
	}

	callback := &lksdk.RoomCallback{
		OnParticipantConnected:    r.onParticipantConnected,
		OnParticipantDisconnected: r.onParticipantDisconnected,
		OnRoomMetadataChanged:     r.onRoomMetadataChanged,
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:   r.onTrackSubscribed,
			OnTrackUnsubscribed: r.onTrackUnsubscribed,
			OnTrackPublished:    r.onTrackPublished,
			OnDataReceived:      r.onDataReceived,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(cfg.URL, cfg.Token, callback)
	if err != nil {
		return fmt.Errorf("connect to room: %w", err)
	}

	r.room = room
	r.connected = true

	slog.Info("connected to room",
		slog.String("room", cfg.RoomName),
		slog.String("url", cfg.URL))
	return nil
}

// Disconnect leaves the room and closes Events and Tracks. The context
// is cancelled before the lock is taken so a callback blocked sending a
// track releases its read lock; the SDK disconnect runs outside the
// lock so callbacks it triggers can still acquire it.
func (r *Room) Disconnect() error {
	r.cancel()

	r.mu.Lock()
	room := r.room
	wasConnected := r.connected
	r.connected = false
	if !r.closed {
		close(r.Events)
		close(r.Tracks)
		r.closed = true
	}
	r.mu.Unlock()

	if wasConnected && room != nil {
		room.Disconnect()
		slog.Info("disconnected from room")
	}
	return nil
}

// IsConnected reports whether the room connection is up.
func (r *Room) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// LocalParticipant returns the agent's own participant, or nil before
// Connect.
func (r *Room) LocalParticipant() *lksdk.LocalParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.room == nil {
		return nil
	}
	return r.room.LocalParticipant
}

// Participants returns a snapshot of the remote participants.
func (r *Room) Participants() map[string]*livekit.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*livekit.ParticipantInfo, len(r.participants))
	for k, v := range r.participants {
		out[k] = v
	}
	return out
}

// WaitForParticipant blocks until a remote participant is present,
// either already in the room or arriving later, and returns it.
func (r *Room) WaitForParticipant(ctx context.Context) (*livekit.ParticipantInfo, error) {
	r.mu.RLock()
	for _, p := range r.participants {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.ctx.Done():
			return nil, fmt.Errorf("room closed while waiting for participant")
		case ev, ok := <-r.Events:
			if !ok {
				return nil, fmt.Errorf("room closed while waiting for participant")
			}
			if ev.Type == EventParticipantConnected && ev.Participant != nil {
				return ev.Participant, nil
			}
		}
	}
}

func participantInfo(p *lksdk.RemoteParticipant, state livekit.ParticipantInfo_State) *livekit.ParticipantInfo {
	return &livekit.ParticipantInfo{
		Sid:      p.SID(),
		Identity: p.Identity(),
		State:    state,
	}
}

func trackInfo(pub *lksdk.RemoteTrackPublication) *livekit.TrackInfo {
	return &livekit.TrackInfo{
		Sid:  pub.SID(),
		Name: pub.Name(),
		Type: pub.Kind().ProtoType(),
	}
}

func (r *Room) onParticipantConnected(p *lksdk.RemoteParticipant) {
	info := participantInfo(p, livekit.ParticipantInfo_ACTIVE)

	r.mu.Lock()
	r.participants[p.Identity()] = info
	r.mu.Unlock()

	r.sendEvent(NewEvent(EventParticipantConnected).WithParticipant(info))

	slog.Info("participant connected",
		slog.String("identity", p.Identity()),
		slog.String("sid", p.SID()))
}

func (r *Room) onParticipantDisconnected(p *lksdk.RemoteParticipant) {
	info := participantInfo(p, livekit.ParticipantInfo_DISCONNECTED)

	r.mu.Lock()
	delete(r.participants, p.Identity())
	r.mu.Unlock()

	r.sendEvent(NewEvent(EventParticipantDisconnected).WithParticipant(info))

	slog.Info("participant disconnected",
		slog.String("identity", p.Identity()))
}

func (r *Room) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, p *lksdk.RemoteParticipant) {
	info := participantInfo(p, livekit.ParticipantInfo_ACTIVE)

	r.sendEvent(NewEvent(EventTrackSubscribed).
		WithParticipant(info).
		WithTrack(trackInfo(pub)))

	if pub.Kind() == lksdk.TrackKindAudio {
		r.sendTrack(&TrackSubscription{Track: track, Publication: pub, Participant: info})
	}

	slog.Info("track subscribed",
		slog.String("participant", p.Identity()),
		slog.String("track_sid", pub.SID()),
		slog.String("kind", pub.Kind().String()))
}

func (r *Room) onTrackUnsubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, p *lksdk.RemoteParticipant) {
	info := participantInfo(p, livekit.ParticipantInfo_ACTIVE)
	r.sendEvent(NewEvent(EventTrackUnsubscribed).
		WithParticipant(info).
		WithTrack(trackInfo(pub)))
}

func (r *Room) onTrackPublished(pub *lksdk.RemoteTrackPublication, p *lksdk.RemoteParticipant) {
	info := participantInfo(p, livekit.ParticipantInfo_ACTIVE)
	r.sendEvent(NewEvent(EventTrackPublished).
		WithParticipant(info).
		WithTrack(trackInfo(pub)))
}

func (r *Room) onDataReceived(data []byte, p *lksdk.RemoteParticipant) {
	info := participantInfo(p, livekit.ParticipantInfo_ACTIVE)
	r.sendEvent(NewEvent(EventDataReceived).
		WithParticipant(info).
		WithData(data))
}

func (r *Room) onRoomMetadataChanged(metadata string) {
	r.sendEvent(NewEvent(EventRoomMetadataChanged).WithMetadata(metadata))
}

// sendEvent delivers an event without blocking the SDK callback. Full
// buffers drop the event with a warning. The read lock is held across
// the send so Disconnect cannot close the channel between the closed
// check and the send.
func (r *Room) sendEvent(event *Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.Events <- event:
	default:
		slog.Warn("events channel full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}

// sendTrack hands a subscription to the session, blocking until it is
// taken or the room shuts down. The read lock guards the channel close
// the same way sendEvent's does; a blocked send releases because
// Disconnect cancels the room context before taking the write lock.
func (r *Room) sendTrack(sub *TrackSubscription) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.Tracks <- sub:
	case <-r.ctx.Done():
	}
}
