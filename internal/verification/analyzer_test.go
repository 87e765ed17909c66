package verification

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"voiceguard/internal/inference"
	"voiceguard/internal/speaker"
	"voiceguard/pkg/logger"
)

type identifierFunc func(ctx context.Context, query []float32, threshold float64) (speaker.Match, bool, error)

func (f identifierFunc) Identify(ctx context.Context, query []float32, threshold float64) (speaker.Match, bool, error) {
	return f(ctx, query, threshold)
}

type panicDetector struct{}

func (panicDetector) Predict(context.Context, []byte) (inference.Prediction, error) { panic("boom") }

func TestAnalyzer_SpoofAndIdentifyAreIndependent(t *testing.T) {
	det := &scriptedDetector{byWav: map[string]inference.Prediction{"w": {Score: 0.9, Label: inference.LabelGenuine}}}
	ident := identifierFunc(func(context.Context, []float32, float64) (speaker.Match, bool, error) {
		return speaker.Match{}, false, errors.New("store down")
	})
	a := NewAnalyzer(det, scriptedExtractor{"w": {1}}, ident, nil, 0.7, logger.Discard(), nil)

	got := a.Analyze(context.Background(), []byte("w"))
	assert.Equal(t, inference.LabelGenuine, got.Prediction.Label)
	assert.Nil(t, got.Speaker)
	assert.Empty(t, got.Reason)
}

func TestAnalyzer_DetectorPanicBecomesErrorLabel(t *testing.T) {
	ident := identifierFunc(func(context.Context, []float32, float64) (speaker.Match, bool, error) {
		return speaker.Match{IdentityID: "u1"}, true, nil
	})
	a := NewAnalyzer(panicDetector{}, scriptedExtractor{"w": {1}}, ident, nil, 0.7, logger.Discard(), nil)

	got := a.Analyze(context.Background(), []byte("w"))
	assert.Equal(t, inference.LabelError, got.Prediction.Label)
	assert.Equal(t, ReasonDetector, got.Reason)
	assert.Equal(t, &Speaker{ID: "u1"}, got.Speaker)
}

func TestAnalyzer_ExtractorFailureLeavesNoSpeaker(t *testing.T) {
	det := &scriptedDetector{byWav: map[string]inference.Prediction{"w": {Score: 0.1, Label: inference.LabelSpoof}}}
	a := NewAnalyzer(det, scriptedExtractor{}, nil, nil, 0.7, logger.Discard(), nil)

	got := a.Analyze(context.Background(), []byte("w"))
	assert.Equal(t, inference.LabelSpoof, got.Prediction.Label)
	assert.Nil(t, got.Speaker)
}

func TestOutcomeCode(t *testing.T) {
	cases := map[error]string{
		nil:                                               CodeOK,
		ErrNoActiveCall:                                   CodeNoActiveCall,
		ErrOpponentUnresolved:                             CodeOpponentUnresolved,
		ErrVerificationTimeout:                            CodeVerificationTimeout,
		ErrUnknownParticipant:                             CodeUnknownParticipant,
		ErrInvalidSubmission:                              CodeInvalidSubmission,
		context.Canceled:                                  CodeCanceled,
		context.DeadlineExceeded:                          CodeCanceled,
		fmt.Errorf("await: %w", context.DeadlineExceeded): CodeCanceled,
		errors.New("db down"):                             CodeInternal,
	}
	for err, want := range cases {
		assert.Equal(t, want, OutcomeCode(err), "%v", err)
	}
}
