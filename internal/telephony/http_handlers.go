package telephony

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"voiceguard/internal/audit"
	"voiceguard/internal/calls"
	"voiceguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

const webhookSecretHeader = "X-Webhook-Secret"

// StatusHookHandler serves the generic status hook (GET query or POST JSON/form).
//
// No business logic here.
type StatusHookHandler struct {
	Ingest *Ingest

	// Secret, when set, must match the X-Webhook-Secret header.
	Secret string
}

func (h StatusHookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Ingest == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status ingest not configured"})
		return
	}
	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(webhookSecretHeader)), []byte(h.Secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	ev, err := ParseStatusHook(c)
	if err != nil {
		log.Warn("status hook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "caller, callee and status are required"})
		return
	}

	call, disp, err := h.Ingest.Apply(c.Request.Context(), audit.SourceHook, ev, c.ClientIP())
	if errors.Is(err, calls.ErrInvalidEvent) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "disposition": disp})
		return
	}
	if err != nil {
		log.Error("status hook apply failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status not recorded"})
		return
	}

	resp := gin.H{"result": "ok", "disposition": disp}
	if call.ID != 0 {
		resp["call_id"] = call.ID
	}
	c.JSON(http.StatusOK, resp)
}

// TwilioStatusHandler serves Twilio voice status callbacks.
type TwilioStatusHandler struct {
	Ingest *Ingest

	// AuthToken enables X-Twilio-Signature validation against PublicBaseURL + request path.
	AuthToken     string
	PublicBaseURL string
}

func (h TwilioStatusHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Ingest == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status ingest not configured"})
		return
	}

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("twilio status parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	if h.AuthToken != "" {
		fullURL := strings.TrimRight(h.PublicBaseURL, "/") + c.Request.URL.RequestURI()
		if !ValidTwilioSignature(h.AuthToken, fullURL, c.Request.PostForm, c.GetHeader("X-Twilio-Signature")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
	}

	ev, ok := form.ToStatusEvent()
	if !ok {
		log.Debug("twilio status ignored", "call_sid", form.CallSid, "status", form.CallStatus)
		c.Status(http.StatusNoContent)
		return
	}

	// Invalid events are audited as rejected; retrying them would not help.
	if _, _, err := h.Ingest.Apply(c.Request.Context(), audit.SourceTwilio, ev, c.ClientIP()); err != nil && !errors.Is(err, calls.ErrInvalidEvent) {
		log.Error("twilio status apply failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status not recorded"})
		return
	}
	c.Status(http.StatusNoContent)
}
