package job

import (
	"time"

	"github.com/livekit/protocol/livekit"
)

// EventType identifies a room event.
type EventType string

const (
	EventParticipantConnected    EventType = "participant_connected"
	EventParticipantDisconnected EventType = "participant_disconnected"
	EventTrackSubscribed         EventType = "track_subscribed"
	EventTrackUnsubscribed       EventType = "track_unsubscribed"
	EventTrackPublished          EventType = "track_published"
	EventDataReceived            EventType = "data_received"
	EventRoomMetadataChanged     EventType = "room_metadata_changed"
)

// Event is one room event with whatever metadata applies to its type.
type Event struct {
	Type      EventType
	Timestamp time.Time

	// Participant is set for participant and track events.
	Participant *livekit.ParticipantInfo

	// Track is set for track events.
	Track *livekit.TrackInfo

	// Data is set for data events.
	Data []byte

	// Metadata is set for metadata change events.
	Metadata string
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType) *Event {
	return &Event{Type: eventType, Timestamp: time.Now()}
}

func (e *Event) WithParticipant(p *livekit.ParticipantInfo) *Event {
	e.Participant = p
	return e
}

func (e *Event) WithTrack(t *livekit.TrackInfo) *Event {
	e.Track = t
	return e
}

func (e *Event) WithData(data []byte) *Event {
	e.Data = data
	return e
}

func (e *Event) WithMetadata(metadata string) *Event {
	e.Metadata = metadata
	return e
}
