package rtc

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hraban/opus"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// maxOpusFrame bounds one encoded packet; opus never exceeds this for
// 10 ms of speech.
const maxOpusFrame = 1024

// Publisher encodes PCM frames to opus and writes them onto a local
// track published in the room.
type Publisher struct {
	track   *lksdk.LocalSampleTrack
	encoder *opus.Encoder
	rate    int
}

// NewPublisher creates a publisher and publishes its track via the
// local participant.
func NewPublisher(lp *lksdk.LocalParticipant, name string, sampleRate int) (*Publisher, error) {
	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("create local track: %w", err)
	}

	encoder, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	if _, err := lp.PublishTrack(track, &lksdk.TrackPublicationOptions{Name: name}); err != nil {
		return nil, fmt.Errorf("publish track: %w", err)
	}

	return &Publisher{track: track, encoder: encoder, rate: sampleRate}, nil
}

// Play consumes frames until the channel closes or ctx is cancelled,
// pacing output at real time. It returns true if the stream ran to
// completion, false if it was cut off.
func (p *Publisher) Play(ctx context.Context, frames <-chan AudioFrame) (bool, error) {
	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	encoded := make([]byte, maxOpusFrame)
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case frame, ok := <-frames:
			if !ok {
				return true, nil
			}

			pcm := make([]int16, len(frame.Data)/2)
			for i := range pcm {
				pcm[i] = int16(binary.LittleEndian.Uint16(frame.Data[i*2:]))
			}
			n, err := p.encoder.Encode(pcm, encoded)
			if err != nil {
				return false, fmt.Errorf("opus encode: %w", err)
			}

			if err := p.track.WriteSample(media.Sample{
				Data:     append([]byte(nil), encoded[:n]...),
				Duration: FrameDuration,
			}, nil); err != nil {
				return false, fmt.Errorf("write sample: %w", err)
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return false, nil
			}
		}
	}
}
