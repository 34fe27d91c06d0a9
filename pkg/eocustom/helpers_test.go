package eocustom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-eosso/pkg/signature"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret      = "c2VjcmV0LWtleQ=="
	testClientID    = "test-client"
	testUsername    = "svc-user"
	testPassword    = "svc-pass"
	testMemberID    = "1627aea5-8e0a-4371-9022-9b504344e724"
	testMemberToken = "member-token-Y"
	testAccessToken = "v3-access-token"
)

// fakeEO emulates the four EO API endpoints used by a handshake.
type fakeEO struct {
	t      *testing.T
	server *httptest.Server
	signer *signature.Signer

	mu    sync.Mutex
	calls map[string]int

	tokenExchangeStatus int
	tokenExchangeBody   string
	memberDetailStatus  int
	memberDetailBody    string
	passwordGrantStatus int
	passwordGrantBody   string
	customFieldsStatus  int
	customFieldsBody    string

	tokenExchangeQuery url.Values
	memberDetailQuery  url.Values
	customFieldsQuery  url.Values
	passwordGrantForm  url.Values
	customFieldsAuth   string
	badSignatures      int
}

func newFakeEO(t *testing.T) *fakeEO {
	t.Helper()

	signer, err := signature.NewSigner(testSecret)
	require.NoError(t, err)

	f := &fakeEO{
		t:                   t,
		signer:              signer,
		calls:               map[string]int{},
		tokenExchangeStatus: http.StatusOK,
		tokenExchangeBody:   `{"MemberId":"` + testMemberID + `","MemberToken":"` + testMemberToken + `"}`,
		memberDetailStatus:  http.StatusOK,
		memberDetailBody: `{"FirstName":"Bender","LastName":"Rodriguez","Email":"bender@planet.express",` +
			`"Nickname":"bendergetsbetter","MemberId":"` + testMemberID + `"}`,
		passwordGrantStatus: http.StatusOK,
		passwordGrantBody:   `{"access_token":"` + testAccessToken + `","token_type":"bearer","expires_in":3600}`,
		customFieldsStatus:  http.StatusOK,
		customFieldsBody: `[{"RegionName":"US East","BusinessCountry":"United States of America",` +
			`"Gender":"Male","BirthDate":"01/01/2996"}]`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(tokenExchangePath, func(w http.ResponseWriter, r *http.Request) {
		f.record(tokenExchangePath)
		f.checkSignature(r)
		f.mu.Lock()
		f.tokenExchangeQuery = r.URL.Query()
		f.mu.Unlock()
		f.write(w, f.tokenExchangeStatus, f.tokenExchangeBody)
	})
	mux.HandleFunc(memberDetailPath, func(w http.ResponseWriter, r *http.Request) {
		f.record(memberDetailPath)
		f.checkSignature(r)
		f.mu.Lock()
		f.memberDetailQuery = r.URL.Query()
		f.mu.Unlock()
		f.write(w, f.memberDetailStatus, f.memberDetailBody)
	})
	mux.HandleFunc(passwordGrantPath, func(w http.ResponseWriter, r *http.Request) {
		f.record(passwordGrantPath)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.passwordGrantForm = r.PostForm
		f.mu.Unlock()
		f.write(w, f.passwordGrantStatus, f.passwordGrantBody)
	})
	mux.HandleFunc(customFieldsPath, func(w http.ResponseWriter, r *http.Request) {
		f.record(customFieldsPath)
		f.mu.Lock()
		f.customFieldsQuery = r.URL.Query()
		f.customFieldsAuth = r.Header.Get("Authorization")
		f.mu.Unlock()
		f.write(w, f.customFieldsStatus, f.customFieldsBody)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeEO) record(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
}

func (f *fakeEO) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeEO) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// checkSignature verifies the Authorization header signs the exact URL sent.
func (f *fakeEO) checkSignature(r *http.Request) {
	signed := f.server.URL + r.RequestURI
	if !f.signer.Verify(signed, r.Header.Get("Authorization")) {
		f.mu.Lock()
		f.badSignatures++
		f.mu.Unlock()
		assert.Fail(f.t, "Authorization header does not sign request URL", signed)
	}
}

func (f *fakeEO) write(w http.ResponseWriter, status int, body string) {
	if status >= 200 && status < 300 {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/plain")
	}
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func testConfig(site string) *Config {
	config := DefaultConfig()
	config.AuthenticationURL = "https://login.example.org/sso"
	config.Site = site
	config.ClientID = testClientID
	config.SecretKey = testSecret
	config.Username = testUsername
	config.Password = testPassword
	return &config
}

func newTestStrategy(t *testing.T, f *fakeEO, concurrent bool, opts ...Option) *Strategy {
	t.Helper()

	config := testConfig(f.server.URL)
	config.Concurrent = concurrent

	logger, _ := test.NewNullLogger()
	opts = append([]Option{WithLogger(logger)}, opts...)

	s, err := NewStrategy(config, opts...)
	require.NoError(t, err)
	return s
}

// signedCallback builds a callback request carrying a valid signature.
func signedCallback(t *testing.T, userName, token string) CallbackRequest {
	t.Helper()

	key, err := signature.DecodeKey(testSecret)
	require.NoError(t, err)
	return CallbackRequest{
		Token:    token,
		APISig:   "vendor/api+sig==",
		Sig:      signature.Sign(key, userName+token),
		UserName: userName,
		Origin:   "acme",
	}
}

type auditEntry struct {
	level Level
	text  string
}

// recordingAuditor captures one audit event for inspection.
type recordingAuditor struct {
	mu        sync.Mutex
	origin    string
	activity  string
	entries   []auditEntry
	failed    int
	finalized *EventRecord
	beginErr  error
}

func (a *recordingAuditor) Begin(ctx context.Context, origin, activity string) (AuditEvent, error) {
	if a.beginErr != nil {
		return nil, a.beginErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.origin = origin
	a.activity = activity
	return &recordingEvent{auditor: a}, nil
}

func (a *recordingAuditor) snapshot() []auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]auditEntry(nil), a.entries...)
}

type recordingEvent struct {
	auditor *recordingAuditor
}

func (e *recordingEvent) ID() string { return "evt-1" }

func (e *recordingEvent) Log(level Level, text string) {
	e.auditor.mu.Lock()
	defer e.auditor.mu.Unlock()
	e.auditor.entries = append(e.auditor.entries, auditEntry{level: level, text: text})
}

func (e *recordingEvent) Fail() {
	e.auditor.mu.Lock()
	defer e.auditor.mu.Unlock()
	e.auditor.failed++
}

func (e *recordingEvent) Finalize(record EventRecord) {
	e.auditor.mu.Lock()
	defer e.auditor.mu.Unlock()
	e.auditor.finalized = &record
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
