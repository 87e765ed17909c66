package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"voiceguard/internal/calls"
)

func twilioRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseTwilioStatusCallback(t *testing.T) {
	r := twilioRequest("CallSid=CA123&From=%2B15551234567&To=%2B15557654321&CallStatus=Ringing")

	form, err := ParseTwilioStatusCallback(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid")
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}
	if form.CallStatus != "ringing" {
		t.Fatalf("expected lowercased status, got %q", form.CallStatus)
	}

	ev, ok := form.ToStatusEvent()
	if !ok {
		t.Fatalf("expected ringing to map to an event")
	}
	if ev.Status != calls.StatusCalling || ev.SessionID != "CA123" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestTwilioStatusMapping(t *testing.T) {
	cases := map[string]struct {
		want calls.Status
		ok   bool
	}{
		"ringing":     {calls.StatusCalling, true},
		"completed":   {"completed", true},
		"busy":        {"busy", true},
		"no-answer":   {"no-answer", true},
		"canceled":    {"canceled", true},
		"failed":      {"failed", true},
		"initiated":   {"", false},
		"in-progress": {"", false},
		"queued":      {"", false},
	}
	for status, tc := range cases {
		ev, ok := TwilioStatusForm{CallSid: "CA1", From: "a", To: "b", CallStatus: status}.ToStatusEvent()
		if ok != tc.ok {
			t.Fatalf("%s: ok=%v, want %v", status, ok, tc.ok)
		}
		if ok && ev.Status != tc.want {
			t.Fatalf("%s: status=%q, want %q", status, ev.Status, tc.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		" +15551234567 ":   "+15551234567",
		"tel:+15551234567": "+15551234567",
		"anonymous":        "",
		"Anonymous":        "",
		"RESTRICTED":       "",
		"unknown":          "",
		"":                 "",
		"client:alice":     "client:alice",
	}
	for in, want := range cases {
		if got := normalizePhone(in); got != want {
			t.Fatalf("normalizePhone(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestParseTwilioStatusCallback_WithheldCaller(t *testing.T) {
	form, err := ParseTwilioStatusCallback(twilioRequest("CallSid=CA7&From=anonymous&To=%2B15557654321&CallStatus=ringing"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.From != "" {
		t.Fatalf("expected withheld caller to be blank, got %q", form.From)
	}
}

func TestTwilioSessionPrefersParent(t *testing.T) {
	f := TwilioStatusForm{CallSid: "CA2", ParentCallSid: "CA1"}
	if f.SessionID() != "CA1" {
		t.Fatalf("expected parent sid, got %q", f.SessionID())
	}
}

func TestValidTwilioSignature(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}, "From": {"+1"}}
	fullURL := "https://example.com/webhooks/twilio/status"

	mac := hmac.New(sha1.New, []byte("token"))
	mac.Write([]byte(fullURL + "CallSidCA1CallStatuscompletedFrom+1"))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !ValidTwilioSignature("token", fullURL, form, sig) {
		t.Fatalf("expected signature to validate")
	}
	if ValidTwilioSignature("other", fullURL, form, sig) {
		t.Fatalf("expected wrong token to fail")
	}
	if ValidTwilioSignature("token", fullURL, form, "") {
		t.Fatalf("expected empty signature to fail")
	}
}
