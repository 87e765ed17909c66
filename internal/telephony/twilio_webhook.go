package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"voiceguard/internal/calls"
)

// TwilioStatusForm captures the subset of status callback fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
type TwilioStatusForm struct {
	CallSid       string
	ParentCallSid string
	AccountSid    string
	From          string
	To            string
	Direction     string
	CallStatus    string
	Timestamp     string
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	return TwilioStatusForm{
		CallSid:       r.PostFormValue("CallSid"),
		ParentCallSid: r.PostFormValue("ParentCallSid"),
		AccountSid:    r.PostFormValue("AccountSid"),
		From:          normalizePhone(r.PostFormValue("From")),
		To:            normalizePhone(r.PostFormValue("To")),
		Direction:     r.PostFormValue("Direction"),
		CallStatus:    strings.ToLower(strings.TrimSpace(r.PostFormValue("CallStatus"))),
		Timestamp:     r.PostFormValue("Timestamp"),
	}, nil
}

// withheldNumbers are the placeholders Twilio reports instead of a caller ID.
var withheldNumbers = map[string]struct{}{
	"anonymous":   {},
	"restricted":  {},
	"unknown":     {},
	"unavailable": {},
	"private":     {},
}

// normalizePhone returns "" for withheld numbers so the registry refuses to
// open a call on a party nobody can be resolved to.
func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 4 && strings.EqualFold(s[:4], "tel:") {
		s = strings.TrimSpace(s[4:])
	}
	if _, ok := withheldNumbers[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}

// SessionID is shared by both legs of a dialed call: the parent sid when present.
func (f TwilioStatusForm) SessionID() string {
	if f.ParentCallSid != "" {
		return f.ParentCallSid
	}
	return f.CallSid
}

// ToStatusEvent maps a Twilio call status onto the registry lifecycle.
// ringing opens the call; terminal statuses close it; progress statuses are not
// registry events and return ok=false.
func (f TwilioStatusForm) ToStatusEvent() (calls.StatusEvent, bool) {
	ev := calls.StatusEvent{Caller: f.From, Callee: f.To, SessionID: f.SessionID()}
	switch f.CallStatus {
	case "ringing":
		ev.Status = calls.StatusCalling
	case "completed", "busy", "failed", "no-answer", "canceled":
		ev.Status = calls.Status(f.CallStatus)
	default:
		return calls.StatusEvent{}, false
	}
	return ev, true
}

// ValidTwilioSignature checks X-Twilio-Signature: base64(HMAC-SHA1(authToken,
// fullURL + concatenated sorted POST key/value pairs)).
func ValidTwilioSignature(authToken, fullURL string, form url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vals := append([]string(nil), form[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}
