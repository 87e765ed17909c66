package telephony

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voiceguard/internal/audit"
	"voiceguard/internal/calls"
	"voiceguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

type fixture struct {
	router *gin.Engine
	calls  *calls.MemoryRepo
	audit  *audit.MemoryRepo
}

func newFixture(t *testing.T, secret, twilioToken string) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Discard()
	callRepo := calls.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	ingest := NewIngest(calls.NewRegistry(callRepo, log), audit.NewService(auditRepo, log), log)

	r := gin.New()
	hook := StatusHookHandler{Ingest: ingest, Secret: secret}.Handle
	r.GET("/v1/call-status", hook)
	r.POST("/v1/call-status", hook)
	r.POST("/webhooks/twilio/status", TwilioStatusHandler{
		Ingest:        ingest,
		AuthToken:     twilioToken,
		PublicBaseURL: "https://example.com",
	}.Handle)
	return fixture{router: r, calls: callRepo, audit: auditRepo}
}

func (f fixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func TestStatusHook_GetCreatesCall(t *testing.T) {
	f := newFixture(t, "", "")

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/call-status?caller=%2B1001&callee=%2B1002&status=calling", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Disposition string `json:"disposition"`
		CallID      int64  `json:"call_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Disposition != string(audit.DispositionCreated) || body.CallID == 0 {
		t.Fatalf("unexpected body: %+v", body)
	}

	reps := f.audit.Reports()
	if len(reps) != 1 || reps[0].Source != audit.SourceHook {
		t.Fatalf("expected one hook report, got %+v", reps)
	}
}

func TestStatusHook_PostJSONUpdatesAndDrops(t *testing.T) {
	f := newFixture(t, "", "")

	post := func(body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/v1/call-status", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		return f.do(r)
	}

	if w := post(`{"caller":"+1001","callee":"+1002","status":"calling"}`); w.Code != http.StatusOK {
		t.Fatalf("create: %d", w.Code)
	}
	if w := post(`{"caller":"+1001","callee":"+1002","status":"hangup"}`); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "updated") {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	if w := post(`{"caller":"+1999","callee":"+1002","status":"hangup"}`); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "dropped") {
		t.Fatalf("drop: %d %s", w.Code, w.Body.String())
	}
}

func TestStatusHook_FormAndMissingFields(t *testing.T) {
	f := newFixture(t, "", "")

	r := httptest.NewRequest(http.MethodPost, "/v1/call-status", strings.NewReader("caller=%2B1001&status=calling"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if w := f.do(r); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(f.audit.Reports()) != 0 {
		t.Fatalf("unparseable reports are not audited")
	}
}

func TestStatusHook_SecretEnforced(t *testing.T) {
	f := newFixture(t, "s3cret", "")

	url := "/v1/call-status?caller=a&callee=b&status=calling"
	if w := f.do(httptest.NewRequest(http.MethodGet, url, nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodGet, url, nil)
	r.Header.Set("X-Webhook-Secret", "s3cret")
	if w := f.do(r); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestTwilioStatus_LifecycleUsesCallSid(t *testing.T) {
	f := newFixture(t, "", "")

	send := func(status string) int {
		return f.do(twilioRequest("CallSid=CA9&From=%2B1001&To=%2B1002&CallStatus=" + status)).Code
	}

	if c := send("ringing"); c != http.StatusNoContent {
		t.Fatalf("ringing: %d", c)
	}
	if c := send("in-progress"); c != http.StatusNoContent {
		t.Fatalf("in-progress: %d", c)
	}
	if c := send("completed"); c != http.StatusNoContent {
		t.Fatalf("completed: %d", c)
	}

	reps := f.audit.Reports()
	if len(reps) != 2 {
		t.Fatalf("expected ringing and completed to be audited, got %d", len(reps))
	}
	if reps[1].Disposition != audit.DispositionUpdated || reps[1].SessionID != "CA9" {
		t.Fatalf("unexpected report: %+v", reps[1])
	}
}

func TestTwilioStatus_WithheldCallerOpensNoCall(t *testing.T) {
	f := newFixture(t, "", "")

	for _, from := range []string{"anonymous", "Restricted", "%20"} {
		w := f.do(twilioRequest("CallSid=CA8&From=" + from + "&To=%2B1002&CallStatus=ringing"))
		if w.Code != http.StatusNoContent {
			t.Fatalf("%s: expected 204, got %d", from, w.Code)
		}
	}
	if n := len(f.calls.Calls()); n != 0 {
		t.Fatalf("expected no call rows, got %d", n)
	}
	reps := f.audit.Reports()
	if len(reps) != 3 {
		t.Fatalf("expected every attempt audited, got %d", len(reps))
	}
	for _, rep := range reps {
		if rep.Disposition != audit.DispositionRejected {
			t.Fatalf("expected rejected report, got %+v", rep)
		}
	}
}

func TestTwilioStatus_RejectsBadSignature(t *testing.T) {
	f := newFixture(t, "", "token")

	r := twilioRequest("CallSid=CA9&From=%2B1001&To=%2B1002&CallStatus=ringing")
	r.Header.Set("X-Twilio-Signature", "bogus")
	if w := f.do(r); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestStatusHook_SelfCallRejected(t *testing.T) {
	f := newFixture(t, "", "")

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/call-status?caller=%2B1001&callee=%2B1001&status=calling", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	reps := f.audit.Reports()
	if len(reps) != 1 || reps[0].Disposition != audit.DispositionRejected {
		t.Fatalf("expected a rejected report, got %+v", reps)
	}
}
