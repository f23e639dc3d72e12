package rtc

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v3"
)

// trackSampleRate is the decode rate for incoming opus audio. Browsers
// publish at 48 kHz regardless of the capture device.
const trackSampleRate = 48000

// TrackReader decodes a remote opus track into 10 ms PCM frames.
type TrackReader struct {
	track   *webrtc.TrackRemote
	decoder *opus.Decoder
	logger  *slog.Logger

	// leftover carries PCM that didn't fill a whole frame between opus
	// packets.
	leftover []int16
}

// NewTrackReader creates a reader for one subscribed audio track.
func NewTrackReader(track *webrtc.TrackRemote, logger *slog.Logger) (*TrackReader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	decoder, err := opus.NewDecoder(trackSampleRate, 1)
	if err != nil {
		return nil, err
	}
	return &TrackReader{track: track, decoder: decoder, logger: logger}, nil
}

// Stream reads RTP until the track ends or ctx is cancelled, sending
// decoded frames to the returned channel. The channel closes when the
// track ends.
func (tr *TrackReader) Stream(ctx context.Context) <-chan AudioFrame {
	out := make(chan AudioFrame, 32)
	go tr.run(ctx, out)
	return out
}

func (tr *TrackReader) run(ctx context.Context, out chan<- AudioFrame) {
	defer close(out)

	const frameSamples = trackSampleRate / 100
	pcm := make([]int16, 5760) // up to 120 ms per opus packet
	var elapsed time.Duration

	for {
		if ctx.Err() != nil {
			return
		}

		packet, _, err := tr.track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				tr.logger.Warn("rtp read failed", slog.String("error", err.Error()))
			}
			return
		}
		if len(packet.Payload) == 0 {
			continue
		}

		n, err := tr.decoder.Decode(packet.Payload, pcm)
		if err != nil {
			tr.logger.Warn("opus decode failed", slog.String("error", err.Error()))
			continue
		}

		tr.leftover = append(tr.leftover, pcm[:n]...)
		for len(tr.leftover) >= frameSamples {
			data := make([]byte, frameSamples*2)
			for i, s := range tr.leftover[:frameSamples] {
				binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
			}
			tr.leftover = tr.leftover[frameSamples:]

			frame := AudioFrame{
				Data:              data,
				SampleRate:        trackSampleRate,
				SamplesPerChannel: frameSamples,
				NumChannels:       1,
				Timestamp:         elapsed,
			}
			elapsed += FrameDuration

			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}
