package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/engine"
	"taskflow/internal/farcaster"
	"taskflow/internal/frame"
	"taskflow/internal/migrate"
)

type stubFarcaster struct {
	valid   bool
	profile farcaster.Profile
}

func (s stubFarcaster) VerifySignature(ctx context.Context, messageBytes string) (bool, error) {
	return s.valid, nil
}

func (s stubFarcaster) UserByFID(ctx context.Context, fid int64) (farcaster.Profile, error) {
	p := s.profile
	p.FID = fid
	return p, nil
}

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Close() { s.close() }

func newTestServer(t *testing.T, fc engine.Verifier) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := engine.New(conn, cfg, fc)
	fe := frame.NewEngine(conn)
	handler, err := New(Config{
		Engine:   e,
		Frame:    fe,
		BasePath: "/api",
		Auth:     AuthConfig{JWTSecret: "test-secret", AllowUserHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func frameEventBody(fid int64, button int, input string) map[string]any {
	return map[string]any{
		"untrustedData": map[string]any{
			"fid":         fid,
			"buttonIndex": button,
			"inputText":   input,
		},
		"trustedData": map[string]any{"messageBytes": "0xfeed"},
	}
}

func TestFramePostProvisionsUser(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/frame", frameEventBody(555, 1, ""), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	html := string(body)
	if !strings.Contains(html, `action=today`) || !strings.Contains(html, "userId=fid_555") {
		t.Fatalf("frame html does not point at the today card: %s", html)
	}

	// The provisioned user can be read through the header auth path.
	resp, body = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/tasks", nil, map[string]string{"X-User-Id": "fid_555"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list tasks: %d %s", resp.StatusCode, body)
	}
}

func TestFramePostCreatesTask(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/frame", frameEventBody(42, 2, "Ship release"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	html := string(body)
	if !strings.Contains(html, "Task added successfully!") {
		t.Fatalf("confirmation missing: %s", html)
	}
	if !strings.Contains(html, "action=task_added") {
		t.Fatalf("next card is not task_added")
	}

	resp, body = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/tasks", nil, map[string]string{"X-User-Id": "fid_42"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list tasks: %d", resp.StatusCode)
	}
	var tasks []TaskResponse
	if err := json.Unmarshal(body, &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Ship release" {
		t.Fatalf("task not created: %s", body)
	}
}

func TestFramePostMissingFID(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/frame", map[string]any{
		"untrustedData": map[string]any{"buttonIndex": 1},
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", resp.StatusCode, body)
	}
}

func TestFrameDocumentEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/frame?action=open_app", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	html := string(body)
	if !strings.Contains(html, `fc:frame:button:1:action" content="link"`) {
		t.Fatalf("open_app card has no link button: %s", html)
	}

	// Unknown action resolves to the home card.
	resp, body = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/frame?action=nonsense", nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "action=home") {
		t.Fatalf("unknown action did not fall back to home: %d %s", resp.StatusCode, body)
	}
}

func TestFrameImageEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/frame/image?action=home", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("content type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=300" {
		t.Fatalf("cache control = %q", cc)
	}
	if !strings.HasPrefix(string(body), "<svg") {
		t.Fatalf("not an svg")
	}
}

func TestAuthFlowAndTaskCRUD(t *testing.T) {
	ts := newTestServer(t, stubFarcaster{valid: true, profile: farcaster.Profile{Username: "alice", DisplayName: "Alice"}})

	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/auth/farcaster", map[string]any{
		"fid": 777, "signature": "0xsig", "message": "0xmsg",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %s", resp.StatusCode, body)
	}
	var auth AuthResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if auth.Token == "" || auth.User.UserID != "fid_777" {
		t.Fatalf("bad auth response: %s", body)
	}
	bearer := map[string]string{"Authorization": "Bearer " + auth.Token}

	resp, body = doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/tasks", map[string]any{"title": "Write docs"}, bearer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", resp.StatusCode, body)
	}
	var task TaskResponse
	if err := json.Unmarshal(body, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.UserID != "fid_777" || task.IsCompleted {
		t.Fatalf("bad task: %s", body)
	}

	resp, body = doJSON(t, ts.client, http.MethodPut, ts.URL+"/api/tasks/"+task.TaskID, map[string]any{"is_completed": true}, bearer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete task: %d %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &task); err != nil || !task.IsCompleted {
		t.Fatalf("task not completed: %s", body)
	}

	resp, _ = doJSON(t, ts.client, http.MethodDelete, ts.URL+"/api/tasks/"+task.TaskID, nil, bearer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete task: %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/tasks/"+task.TaskID, nil, bearer)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted task still readable: %d", resp.StatusCode)
	}
}

func TestAuthRejectsInvalidSignature(t *testing.T) {
	ts := newTestServer(t, stubFarcaster{valid: false})
	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/auth/farcaster", map[string]any{
		"fid": 777, "signature": "0xsig", "message": "0xmsg",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401: %s", resp.StatusCode, body)
	}
}

func TestPremiumGating(t *testing.T) {
	ts := newTestServer(t, nil)

	// Provision a user through the frame.
	doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/frame", frameEventBody(9, 1, ""), nil)
	asUser := map[string]string{"X-User-Id": "fid_9"}

	resp, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/projects", map[string]any{"title": "Website"}, asUser)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("ungated project create: %d %s", resp.StatusCode, body)
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code != "premium_required" {
		t.Fatalf("error code = %q, body %s", envelope.Error.Code, body)
	}

	resp, body = doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/subscriptions", map[string]any{
		"feature_type": "premium_bundle", "tx_hash": "0xcafe",
	}, asUser)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("purchase: %d %s", resp.StatusCode, body)
	}
	var subs []SubscriptionResponse
	if err := json.Unmarshal(body, &subs); err != nil || len(subs) != 2 {
		t.Fatalf("bundle grants = %s", body)
	}

	resp, body = doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/projects", map[string]any{"title": "Website"}, asUser)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("project create after grant: %d %s", resp.StatusCode, body)
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/tasks", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	// Health stays open.
	resp, _ = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", resp.StatusCode)
	}
}

func TestAuthStatusLookup(t *testing.T) {
	ts := newTestServer(t, nil)
	doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/frame", frameEventBody(31, 1, ""), nil)

	resp, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/auth/farcaster?userId=fid_31", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup: %d %s", resp.StatusCode, body)
	}
	var out AuthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Token != "" || out.User.FarcasterFID != 31 {
		t.Fatalf("unexpected lookup response: %s", body)
	}

	resp, _ = doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/auth/farcaster?userId=fid_404", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user: %d, want 404", resp.StatusCode)
	}
}

func TestMeEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	doJSON(t, ts.client, http.MethodPost, ts.URL+"/api/frame", frameEventBody(12, 1, ""), nil)

	resp, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/api/me", nil, map[string]string{"X-User-Id": "fid_12"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", resp.StatusCode, body)
	}
	var me struct {
		User     UserResponse           `json:"user"`
		Features []SubscriptionResponse `json:"features"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.User.FarcasterFID != 12 || len(me.Features) != 0 {
		t.Fatalf("unexpected profile: %s", body)
	}
}
