package inference

import (
	"context"
	"errors"
)

// Label is the closed set of analysis outcomes.
type Label string

const (
	LabelGenuine Label = "genuine"
	LabelSpoof   Label = "spoof"
	LabelError   Label = "error"
)

func (l Label) Valid() bool {
	switch l {
	case LabelGenuine, LabelSpoof, LabelError:
		return true
	default:
		return false
	}
}

// Prediction is one anti-spoofing verdict. Score is the genuine-class probability in [0, 1].
type Prediction struct {
	Score float64 `json:"score"`
	Label Label   `json:"label"`
}

// LabelFor thresholds score: at or above threshold is genuine.
func LabelFor(score, threshold float64) Label {
	if score >= threshold {
		return LabelGenuine
	}
	return LabelSpoof
}

// Detector scores a waveform for synthetic speech. Calls may take seconds.
type Detector interface {
	Predict(ctx context.Context, audio []byte) (Prediction, error)
}

// Extractor maps a waveform to a fixed-length speaker embedding.
type Extractor interface {
	Extract(ctx context.Context, audio []byte) ([]float32, error)
}

var (
	ErrModelUnavailable = errors.New("inference: model unavailable")
	ErrBadResponse      = errors.New("inference: bad model response")
)
