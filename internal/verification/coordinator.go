package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"voiceguard/internal/calls"
	"voiceguard/internal/directory"
	"voiceguard/internal/inference"
	"voiceguard/internal/spool"
)

// CallRegistry is the read side of calls.Registry used by the coordinator.
type CallRegistry interface {
	FindActiveCallForSession(ctx context.Context, phone, sessionID string) (calls.Call, bool, error)
	ParticipantState(ctx context.Context, phone string) (calls.ParticipantState, error)
}

// Directory resolves participants between identity ids and phones.
type Directory interface {
	ResolvePhone(ctx context.Context, id string) (string, error)
	ResolveIdentity(ctx context.Context, phone string) (string, error)
}

// AudioSpool parks audio between the request and its analysis job.
type AudioSpool interface {
	Park(ctx context.Context, participantID string, audio []byte) (spool.Ticket, error)
	Load(ctx context.Context, t spool.Ticket) ([]byte, error)
	Release(ctx context.Context, t spool.Ticket) error
}

type CoordinatorConfig struct {
	Deadline     time.Duration
	PollInterval time.Duration
}

// Coordinator is the rendezvous engine. For each submission it resolves the call
// and opponent, queues the submitter's own analysis, then waits for the opponent's
// published result. The two legs only meet through the ledger.
type Coordinator struct {
	cfg       CoordinatorConfig
	registry  CallRegistry
	directory Directory
	spool     AudioSpool
	ledger    Ledger
	notifier  Notifier
	analyzer  *Analyzer
	pool      *Pool

	log     *slog.Logger
	metrics *Metrics
	clock   func() time.Time

	lastAttempt atomic.Int64
}

func NewCoordinator(
	cfg CoordinatorConfig,
	registry CallRegistry,
	dir Directory,
	audio AudioSpool,
	ledger Ledger,
	notifier Notifier,
	analyzer *Analyzer,
	log *slog.Logger,
	metrics *Metrics,
) *Coordinator {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 15 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:       cfg,
		registry:  registry,
		directory: dir,
		spool:     audio,
		ledger:    ledger,
		notifier:  notifier,
		analyzer:  analyzer,
		log:       log,
		metrics:   metrics,
		clock:     time.Now,
	}
}

// AttachPool wires the worker pool that runs this coordinator's jobs.
func (c *Coordinator) AttachPool(p *Pool) { c.pool = p }

// Submit runs one participant's leg of the rendezvous.
//
// Only participant, call and opponent resolution fail fast. Problems with the
// submitter's own analysis are published as an error label and the wait continues.
func (c *Coordinator) Submit(ctx context.Context, s Submission) (Outcome, error) {
	out, err := c.submit(ctx, s)
	c.metrics.IncSubmit(OutcomeCode(err))
	return out, err
}

func (c *Coordinator) submit(ctx context.Context, s Submission) (Outcome, error) {
	// The rendezvous deadline covers lookup and dispatch as well as the wait.
	start := time.Now()
	deadlineAt := start.Add(c.cfg.Deadline)

	s.ParticipantID = strings.TrimSpace(s.ParticipantID)
	if s.ParticipantID == "" || len(s.Audio) == 0 {
		return Outcome{}, ErrInvalidSubmission
	}

	phone, err := c.directory.ResolvePhone(ctx, s.ParticipantID)
	if err != nil {
		if directory.IsNotFound(err) {
			return Outcome{}, ErrUnknownParticipant
		}
		return Outcome{}, fmt.Errorf("resolve participant phone: %w", err)
	}

	call, ok, err := c.registry.FindActiveCallForSession(ctx, phone, s.SessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find active call: %w", err)
	}
	if !ok {
		return Outcome{}, ErrNoActiveCall
	}

	opponentPhone, ok := call.Opponent(phone)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: call %d does not include %s", ErrOpponentUnresolved, call.ID, phone)
	}
	opponentID, err := c.directory.ResolveIdentity(ctx, opponentPhone)
	if err != nil {
		if directory.IsNotFound(err) {
			return Outcome{}, fmt.Errorf("%w: no identity for phone %s", ErrOpponentUnresolved, opponentPhone)
		}
		return Outcome{}, fmt.Errorf("resolve opponent identity: %w", err)
	}

	log := c.log.With("call_id", call.ID, "participant_id", s.ParticipantID, "opponent_id", opponentID)
	job := Job{
		CallID:        call.ID,
		ParticipantID: s.ParticipantID,
		OpponentID:    opponentID,
		Attempt:       c.nextAttempt(),
		EnqueuedAt:    c.clock().UTC(),
	}
	c.dispatch(ctx, log, job, s.Audio)

	remaining := max(time.Until(deadlineAt), 0)
	r, err := Await(ctx, c.ledger, c.notifier, call.ID, opponentID, remaining, c.cfg.PollInterval)
	c.metrics.ObserveWait(start)
	if err != nil {
		if errors.Is(err, ErrVerificationTimeout) {
			log.InfoContext(ctx, "opponent result not published before deadline")
		}
		return Outcome{}, err
	}

	return Outcome{CallID: call.ID, OpponentID: opponentID, Label: r.Label, Speaker: r.Speaker}, nil
}

// dispatch parks the audio and queues the analysis. Every failure here is published
// as an error label for the submitter so the opponent is never left waiting.
func (c *Coordinator) dispatch(ctx context.Context, log *slog.Logger, job Job, audio []byte) {
	ticket, err := c.spool.Park(ctx, job.ParticipantID, audio)
	if err != nil {
		log.ErrorContext(ctx, "park audio", "err", err)
		c.publish(ctx, job, Analysis{Prediction: inference.Prediction{Label: inference.LabelError}, Reason: ReasonSpool})
		return
	}
	job.Ticket = ticket

	if c.pool == nil {
		c.Reject(ctx, job, ReasonQueueFull)
		return
	}
	if err := c.pool.Enqueue(job); err != nil {
		log.WarnContext(ctx, "analysis not queued", "err", err)
		c.Reject(ctx, job, ReasonQueueFull)
		return
	}
	log.DebugContext(ctx, "analysis queued", "attempt", job.Attempt)
}

// Run is the pool's job handler: analyze, publish, always release the audio.
func (c *Coordinator) Run(ctx context.Context, j Job) {
	log := c.log.With("call_id", j.CallID, "participant_id", j.ParticipantID, "attempt", j.Attempt)
	defer c.release(ctx, log, j.Ticket)

	start := time.Now()
	var a Analysis
	audio, err := c.spool.Load(ctx, j.Ticket)
	if err != nil {
		log.ErrorContext(ctx, "load parked audio", "err", err)
		a = Analysis{Prediction: inference.Prediction{Label: inference.LabelError}, Reason: ReasonSpool}
	} else {
		a = c.analyzer.Analyze(ctx, audio)
	}
	c.metrics.ObserveAnalysis("total", time.Since(start))

	c.publish(ctx, j, a)
	log.InfoContext(ctx, "analysis published", "label", a.Prediction.Label, "speaker_matched", a.Speaker != nil)
}

// Reject settles a job that will not be analyzed.
func (c *Coordinator) Reject(ctx context.Context, j Job, reason string) {
	log := c.log.With("call_id", j.CallID, "participant_id", j.ParticipantID, "attempt", j.Attempt)
	defer c.release(ctx, log, j.Ticket)
	c.publish(ctx, j, Analysis{Prediction: inference.Prediction{Label: inference.LabelError}, Reason: reason})
	log.WarnContext(ctx, "analysis rejected", "reason", reason)
}

func (c *Coordinator) publish(ctx context.Context, j Job, a Analysis) {
	// Publishing must outlive a canceled request.
	ctx = context.WithoutCancel(ctx)
	r := Result{
		CallID:        j.CallID,
		ParticipantID: j.ParticipantID,
		OpponentID:    j.OpponentID,
		Label:         a.Prediction.Label,
		Score:         a.Prediction.Score,
		Speaker:       a.Speaker,
		Reason:        a.Reason,
		Attempt:       j.Attempt,
		CreatedAt:     c.clock().UTC(),
	}
	applied, err := c.ledger.Publish(ctx, r)
	if err != nil {
		c.log.ErrorContext(ctx, "publish result", "call_id", j.CallID, "participant_id", j.ParticipantID, "err", err)
		return
	}
	if !applied {
		c.log.InfoContext(ctx, "stale attempt superseded", "call_id", j.CallID, "participant_id", j.ParticipantID, "attempt", j.Attempt)
		return
	}
	c.metrics.IncPublished(string(r.Label))
	if c.notifier != nil {
		if err := c.notifier.Notify(ctx, ResultKey(j.CallID, j.ParticipantID)); err != nil {
			c.log.WarnContext(ctx, "notify result", "err", err)
		}
	}
}

func (c *Coordinator) release(ctx context.Context, log *slog.Logger, t spool.Ticket) {
	if err := c.spool.Release(context.WithoutCancel(ctx), t); err != nil {
		log.WarnContext(ctx, "release parked audio", "err", err)
	}
}

// nextAttempt returns a strictly increasing stamp based on wall time.
func (c *Coordinator) nextAttempt() int64 {
	now := c.clock().UnixNano()
	for {
		last := c.lastAttempt.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if c.lastAttempt.CompareAndSwap(last, next) {
			return next
		}
	}
}

// ParticipantCallState reports "calling" when the participant's phone has an active call.
func (c *Coordinator) ParticipantCallState(ctx context.Context, participantID string) (calls.ParticipantState, error) {
	phone, err := c.directory.ResolvePhone(ctx, strings.TrimSpace(participantID))
	if err != nil {
		if directory.IsNotFound(err) {
			return "", ErrUnknownParticipant
		}
		return "", err
	}
	return c.registry.ParticipantState(ctx, phone)
}
