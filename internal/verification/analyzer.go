package verification

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"voiceguard/internal/directory"
	"voiceguard/internal/inference"
	"voiceguard/internal/speaker"
)

// SpeakerIdentifier finds the enrolled identity nearest to a query embedding.
type SpeakerIdentifier interface {
	Identify(ctx context.Context, query []float32, threshold float64) (speaker.Match, bool, error)
}

// IdentityLookup supplies display data for a matched speaker.
type IdentityLookup interface {
	Lookup(ctx context.Context, id string) (directory.Identity, error)
}

// Analysis is the verdict for one waveform.
type Analysis struct {
	Prediction inference.Prediction
	Speaker    *Speaker
	Reason     string
}

// Analyzer runs the spoof check and speaker identification independently.
// A failure in one never affects the other; neither ever fails the analysis.
type Analyzer struct {
	detector   inference.Detector
	extractor  inference.Extractor
	identifier SpeakerIdentifier
	identities IdentityLookup
	threshold  float64

	log     *slog.Logger
	metrics *Metrics
}

func NewAnalyzer(
	detector inference.Detector,
	extractor inference.Extractor,
	identifier SpeakerIdentifier,
	identities IdentityLookup,
	threshold float64,
	log *slog.Logger,
	metrics *Metrics,
) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{
		detector:   detector,
		extractor:  extractor,
		identifier: identifier,
		identities: identities,
		threshold:  threshold,
		log:        log,
		metrics:    metrics,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, audio []byte) Analysis {
	var (
		g   errgroup.Group
		out Analysis
	)

	g.Go(func() error {
		start := time.Now()
		out.Prediction, out.Reason = a.spoof(ctx, audio)
		a.metrics.ObserveAnalysis("spoof", time.Since(start))
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		out.Speaker = a.identify(ctx, audio)
		a.metrics.ObserveAnalysis("identify", time.Since(start))
		return nil
	})

	_ = g.Wait()
	return out
}

func (a *Analyzer) spoof(ctx context.Context, audio []byte) (p inference.Prediction, reason string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.ErrorContext(ctx, "spoof check panicked", "panic", r)
			p, reason = inference.Prediction{Label: inference.LabelError}, ReasonDetector
		}
	}()

	p, err := a.detector.Predict(ctx, audio)
	if err != nil {
		a.log.WarnContext(ctx, "spoof check failed", "err", err)
		return inference.Prediction{Label: inference.LabelError}, ReasonDetector
	}
	if !p.Label.Valid() {
		return inference.Prediction{Score: p.Score, Label: inference.LabelError}, ReasonDetector
	}
	if p.Label == inference.LabelError {
		return p, ReasonDetector
	}
	return p, ""
}

// identify returns nil on no match and on any failure.
func (a *Analyzer) identify(ctx context.Context, audio []byte) (sp *Speaker) {
	defer func() {
		if r := recover(); r != nil {
			a.log.ErrorContext(ctx, "identification panicked", "panic", r)
			sp = nil
		}
	}()
	if a.extractor == nil || a.identifier == nil {
		return nil
	}

	query, err := a.extractor.Extract(ctx, audio)
	if err != nil {
		a.log.WarnContext(ctx, "embedding extraction failed", "err", err)
		return nil
	}
	m, ok, err := a.identifier.Identify(ctx, query, a.threshold)
	if err != nil {
		a.log.WarnContext(ctx, "speaker identification failed", "err", err)
		return nil
	}
	if !ok {
		return nil
	}

	sp = &Speaker{ID: m.IdentityID}
	if a.identities != nil {
		ident, err := a.identities.Lookup(ctx, m.IdentityID)
		if err != nil {
			a.log.WarnContext(ctx, "matched speaker missing from directory", "speaker_id", m.IdentityID, "err", err)
		} else {
			sp.Name, sp.Phone = ident.Name, ident.Phone
		}
	}
	return sp
}
