package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ModelsConfig locates the model sidecars.
type ModelsConfig struct {
	DetectorURL       string
	ExtractorURL      string
	DetectorThreshold float64
	Timeout           time.Duration
}

// Models owns the loaded detector and extractor for the life of the process.
// Nothing is mutated after Load, so both are safe for concurrent use.
type Models struct {
	Detector  Detector
	Extractor Extractor

	client *http.Client
}

// Load builds the model clients and checks that both sidecars answer /healthz.
func Load(ctx context.Context, cfg ModelsConfig, log *slog.Logger) (*Models, error) {
	if cfg.DetectorURL == "" || cfg.ExtractorURL == "" {
		return nil, errors.New("inference: detector and extractor urls are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()}

	det := NewHTTPDetector(cfg.DetectorURL, cfg.DetectorThreshold, client)
	ext := NewHTTPExtractor(cfg.ExtractorURL, client)

	if err := ping(ctx, client, det.base+"/healthz"); err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	if err := ping(ctx, client, ext.base+"/healthz"); err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}

	return &Models{
		Detector:  NewFailClosed(det, log),
		Extractor: ext,
		client:    client,
	}, nil
}

// Close releases pooled connections to the sidecars.
func (m *Models) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	m.client.CloseIdleConnections()
	return nil
}
