package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
)

const maxResponseBytes = 1 << 20

// HTTPDetector calls a model sidecar: POST {base}/predict with the raw waveform,
// response {"score": <float>}.
type HTTPDetector struct {
	base      string
	threshold float64
	client    *http.Client
}

func NewHTTPDetector(baseURL string, threshold float64, client *http.Client) *HTTPDetector {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDetector{base: strings.TrimRight(baseURL, "/"), threshold: threshold, client: client}
}

type predictResponse struct {
	Score *float64 `json:"score"`
}

func (d *HTTPDetector) Predict(ctx context.Context, audio []byte) (Prediction, error) {
	var out predictResponse
	if err := postAudio(ctx, d.client, d.base+"/predict", audio, &out); err != nil {
		return Prediction{}, err
	}
	if out.Score == nil || math.IsNaN(*out.Score) || *out.Score < 0 || *out.Score > 1 {
		return Prediction{}, fmt.Errorf("%w: score missing or out of range", ErrBadResponse)
	}
	return Prediction{Score: *out.Score, Label: LabelFor(*out.Score, d.threshold)}, nil
}

// HTTPExtractor calls a model sidecar: POST {base}/embed with the raw waveform,
// response {"embedding": [<float>...]}.
type HTTPExtractor struct {
	base   string
	client *http.Client
}

func NewHTTPExtractor(baseURL string, client *http.Client) *HTTPExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExtractor{base: strings.TrimRight(baseURL, "/"), client: client}
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, audio []byte) ([]float32, error) {
	var out embedResponse
	if err := postAudio(ctx, e.client, e.base+"/embed", audio, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrBadResponse)
	}
	return out.Embedding, nil
}

func postAudio(ctx context.Context, client *http.Client, url string, audio []byte, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return fmt.Errorf("build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("%w: model returned %s", ErrModelUnavailable, resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrBadResponse, err)
	}
	return nil
}

func ping(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", ErrModelUnavailable, url, resp.Status)
	}
	return nil
}
