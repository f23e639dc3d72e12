package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// detectorTimeout bounds one end-of-utterance prediction; a slow model
// must not hold the endpointing decision hostage.
const detectorTimeout = 2 * time.Second

// endOfUtteranceLikely is the probability above which the controller
// commits at the minimum endpointing delay.
const endOfUtteranceLikely = 0.80

// Detector predicts whether the user has finished speaking given the
// transcript so far. Implementations are best-effort: an error means
// "no opinion" and the controller falls back to its timers.
type Detector interface {
	PredictEndOfUtterance(ctx context.Context, transcript string) (float64, error)
}

// RemoteDetector queries an HTTP inference endpoint for end-of-utterance
// probability. The model itself is an external capability provider;
// this client is the whole integration.
type RemoteDetector struct {
	endpoint string
	client   *http.Client
}

// NewRemoteDetector creates a detector against the given endpoint.
func NewRemoteDetector(endpoint string) *RemoteDetector {
	return &RemoteDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: detectorTimeout},
	}
}

type eouRequest struct {
	Transcript string `json:"transcript"`
}

type eouResponse struct {
	Probability float64 `json:"eou_probability"`
	Error       string  `json:"error,omitempty"`
}

// PredictEndOfUtterance posts the transcript and returns the model's
// probability that the turn is complete.
func (d *RemoteDetector) PredictEndOfUtterance(ctx context.Context, transcript string) (float64, error) {
	body, err := json.Marshal(eouRequest{Transcript: transcript})
	if err != nil {
		return 0, fmt.Errorf("marshal eou request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create eou request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("eou request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("eou endpoint returned status %d", resp.StatusCode)
	}

	var out eouResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode eou response: %w", err)
	}
	if out.Error != "" {
		return 0, fmt.Errorf("eou endpoint error: %s", out.Error)
	}
	if out.Probability < 0 || out.Probability > 1 {
		return 0, fmt.Errorf("eou probability %f out of range", out.Probability)
	}
	return out.Probability, nil
}
