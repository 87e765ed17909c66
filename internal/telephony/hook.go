package telephony

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"voiceguard/internal/calls"
)

var ErrMissingFields = errors.New("telephony: caller, callee and status are required")

// hookPayload is the generic status report sent by dialplan scripts and gateways.
type hookPayload struct {
	Caller    string `form:"caller" json:"caller"`
	Callee    string `form:"callee" json:"callee"`
	Status    string `form:"status" json:"status"`
	SessionID string `form:"session_id" json:"session_id"`
}

// ParseStatusHook reads a status report from GET query parameters or from a
// POST body (JSON or form encoded).
func ParseStatusHook(c *gin.Context) (calls.StatusEvent, error) {
	var p hookPayload
	var err error
	switch {
	case c.Request.Method == http.MethodGet:
		err = c.ShouldBindQuery(&p)
	case strings.HasPrefix(c.ContentType(), binding.MIMEJSON):
		err = c.ShouldBindJSON(&p)
	default:
		err = c.ShouldBindWith(&p, binding.Form)
	}
	if err != nil {
		return calls.StatusEvent{}, err
	}

	ev := calls.StatusEvent{
		Caller:    strings.TrimSpace(p.Caller),
		Callee:    strings.TrimSpace(p.Callee),
		Status:    calls.NormalizeStatus(p.Status),
		SessionID: strings.TrimSpace(p.SessionID),
	}
	if ev.Caller == "" || ev.Callee == "" || ev.Status == "" {
		return calls.StatusEvent{}, ErrMissingFields
	}
	return ev, nil
}
