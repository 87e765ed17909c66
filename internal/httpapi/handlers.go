package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voiceguard/internal/auth"
	"voiceguard/internal/calls"
	"voiceguard/internal/directory"
	"voiceguard/internal/speaker"
	"voiceguard/internal/verification"
	"voiceguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// DefaultMaxAudioBytes bounds an uploaded voice sample.
const DefaultMaxAudioBytes = 16 << 20

// Verifier is the rendezvous surface of verification.Coordinator.
type Verifier interface {
	Submit(ctx context.Context, s verification.Submission) (verification.Outcome, error)
	ParticipantCallState(ctx context.Context, participantID string) (calls.ParticipantState, error)
}

type Enroller interface {
	Enroll(ctx context.Context, identityID string, audio []byte) (speaker.Embedding, error)
}

type Provisioner interface {
	Provision(ctx context.Context, ident directory.Identity) (directory.Identity, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Verifier    Verifier
	Enroller    Enroller
	Provisioner Provisioner

	// Checks are run by Health; a failing check reports 503.
	Checks map[string]func(ctx context.Context) error

	MaxAudioBytes int64
}

// --- Verification ---

type verificationResponse struct {
	Code       string                `json:"code"`
	CallID     int64                 `json:"call_id,omitempty"`
	OpponentID string                `json:"opponent_id,omitempty"`
	Label      string                `json:"label,omitempty"`
	Speaker    *verification.Speaker `json:"speaker,omitempty"`
}

// SubmitVerification accepts a multipart "voice" sample and blocks until the
// opponent's verdict is available or the rendezvous deadline passes.
func (h Handlers) SubmitVerification(c *gin.Context) {
	if h.Verifier == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "verifier not configured"})
		return
	}
	pid, ok := auth.ActingFor(c, c.PostForm("participant_id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cannot act for participant"})
		return
	}
	audio, err := h.readVoice(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.Verifier.Submit(c.Request.Context(), verification.Submission{
		ParticipantID: pid,
		Audio:         audio,
		SessionID:     strings.TrimSpace(c.PostForm("session_id")),
	})
	code := verification.OutcomeCode(err)
	if err != nil {
		status := statusForCode(code)
		if status >= http.StatusInternalServerError {
			logger.FromGin(c).Error("verification failed", "participant_id", pid, "err", err)
		}
		c.AbortWithStatusJSON(status, verificationResponse{Code: code, CallID: out.CallID, OpponentID: out.OpponentID})
		return
	}
	c.JSON(http.StatusOK, verificationResponse{
		Code:       code,
		CallID:     out.CallID,
		OpponentID: out.OpponentID,
		Label:      string(out.Label),
		Speaker:    out.Speaker,
	})
}

// ParticipantStatus reports whether the participant currently has an active call.
func (h Handlers) ParticipantStatus(c *gin.Context) {
	if h.Verifier == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "verifier not configured"})
		return
	}
	requested := c.Query("participant_id")
	if requested == "" {
		requested = c.PostForm("participant_id")
	}
	pid, ok := auth.ActingFor(c, requested)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cannot act for participant"})
		return
	}

	state, err := h.Verifier.ParticipantCallState(c.Request.Context(), pid)
	if err != nil {
		code := verification.OutcomeCode(err)
		if code == verification.CodeInternal {
			logger.FromGin(c).Error("participant state failed", "participant_id", pid, "err", err)
		}
		c.AbortWithStatusJSON(statusForCode(code), gin.H{"code": code})
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant_id": pid, "state": state})
}

// --- Enrollment ---

// Enroll records the voice print for the acting participant.
func (h Handlers) Enroll(c *gin.Context) {
	if h.Enroller == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "enroller not configured"})
		return
	}
	pid, ok := auth.ActingFor(c, c.PostForm("participant_id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cannot act for participant"})
		return
	}
	audio, err := h.readVoice(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	emb, err := h.Enroller.Enroll(c.Request.Context(), pid, audio)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"participant_id": emb.IdentityID, "dim": len(emb.Vector), "updated_at": emb.UpdatedAt})
	case errors.Is(err, speaker.ErrNoAudio), errors.Is(err, speaker.ErrEmptyEmbedding):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case directory.IsNotFound(err):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "participant not found"})
	case errors.Is(err, speaker.ErrDimensionMismatch):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("enrollment failed", "participant_id", pid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "enrollment failed"})
	}
}

// --- Participants (operator) ---

type provisionRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h Handlers) ProvisionParticipant(c *gin.Context) {
	if h.Provisioner == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "directory not configured"})
		return
	}
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ident, err := h.Provisioner.Provision(c.Request.Context(), directory.Identity{ID: req.ID, Name: req.Name, Phone: req.Phone})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ident)
	case errors.Is(err, directory.ErrInvalidIdentity):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id and phone required"})
	case errors.Is(err, directory.ErrPhoneTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "phone already assigned"})
	default:
		logger.FromGin(c).Error("provision failed", "id", req.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "provision failed"})
	}
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) readVoice(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("voice")
	if err != nil {
		return nil, errors.New("voice file required")
	}
	limit := h.MaxAudioBytes
	if limit <= 0 {
		limit = DefaultMaxAudioBytes
	}
	if fh.Size > limit {
		return nil, fmt.Errorf("voice file exceeds %d bytes", limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("voice file unreadable")
	}
	defer f.Close()

	audio, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.New("voice file unreadable")
	}
	if int64(len(audio)) > limit {
		return nil, fmt.Errorf("voice file exceeds %d bytes", limit)
	}
	if len(audio) == 0 {
		return nil, errors.New("voice file is empty")
	}
	return audio, nil
}

// statusForCode is the only place outcome codes become HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case verification.CodeOK:
		return http.StatusOK
	case verification.CodeInvalidSubmission:
		return http.StatusBadRequest
	case verification.CodeUnknownParticipant, verification.CodeNoActiveCall:
		return http.StatusNotFound
	case verification.CodeOpponentUnresolved:
		return http.StatusConflict
	case verification.CodeVerificationTimeout:
		return http.StatusRequestTimeout
	case verification.CodeCanceled:
		// nginx convention for a client that went away.
		return 499
	default:
		return http.StatusInternalServerError
	}
}
