package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/api/v1",
		Auth:     AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour, DevLogin: true},
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
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func (s *testServer) seedUser(t *testing.T, name, email string) (domain.User, map[string]string) {
	t.Helper()
	u, err := s.Engine.CreateUser(context.Background(), name, email, "user")
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	token, err := signToken(testSecret, u.ID, u.Email, u.Role, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return u, map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no credentials: status %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open: status %d", res.StatusCode)
	}
}

func TestDevLoginAndMe(t *testing.T) {
	srv := newTestServer(t)
	u, _ := srv.seedUser(t, "Alice", "alice@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/auth/dev/login", map[string]any{
		"email": "alice@example.com",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, data)
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("login response: %v %s", err, data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, data)
	}
	var me WhoAmIResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.UserID != u.ID || me.Source != "jwt" {
		t.Fatalf("me = %+v", me)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	_, aliceHdr := srv.seedUser(t, "Alice", "alice@example.com")
	bob, bobHdr := srv.seedUser(t, "Bob", "bob@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks", map[string]any{
		"title":       "Ship feature",
		"description": "cut a release",
		"due_date":    "2026-09-15",
		"priority":    "high",
		"assigned_to": bob.ID,
	}, aliceHdr)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, data)
	}
	var created TaskResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.AssignedTo.ID != bob.ID || created.Status != "pending" {
		t.Fatalf("created = %+v", created)
	}

	// assignee flips status
	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/api/v1/tasks/"+created.ID, map[string]any{
		"status": "completed",
	}, bobHdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status patch: %d %s", res.StatusCode, data)
	}

	// assignee may not edit details
	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/api/v1/tasks/"+created.ID, map[string]any{
		"title": "Hijacked",
	}, bobHdr)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("detail patch by assignee: %d %s", res.StatusCode, data)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code != "forbidden" {
		t.Fatalf("error envelope: %v %s", err, data)
	}

	// assignee may not delete; creator may
	res, _ = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/api/v1/tasks/"+created.ID, nil, bobHdr)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("delete by assignee: %d", res.StatusCode)
	}
	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/api/v1/tasks/"+created.ID, nil, aliceHdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete by creator: %d %s", res.StatusCode, data)
	}
	var msg MessageResponse
	if err := json.Unmarshal(data, &msg); err != nil || msg.Message != "Task removed" {
		t.Fatalf("delete confirmation: %v %s", err, data)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks/"+created.ID, nil, aliceHdr)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: %d", res.StatusCode)
	}
}

func TestMalformedIDIs404(t *testing.T) {
	srv := newTestServer(t)
	_, hdr := srv.seedUser(t, "Alice", "alice@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks/definitely-not-a-uuid", nil, hdr)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("malformed id: %d %s", res.StatusCode, data)
	}
}

func TestValidationFailureLists422(t *testing.T) {
	srv := newTestServer(t)
	_, hdr := srv.seedUser(t, "Alice", "alice@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks", map[string]any{
		"priority": "high",
	}, hdr)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("missing fields: %d %s", res.StatusCode, data)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields []struct {
					Field string `json:"field"`
				} `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal: %v %s", err, data)
	}
	if envelope.Error.Code != "validation_failed" || len(envelope.Error.Details.Fields) < 3 {
		t.Fatalf("envelope = %+v", envelope)
	}
}

func TestInternalErrorsStayGeneric(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	se := handleError(cause)
	ae, ok := se.(*apiError)
	if !ok {
		t.Fatalf("unexpected error type %T", se)
	}
	if ae.GetStatus() != http.StatusInternalServerError || ae.Body.Code != "internal_error" {
		t.Fatalf("status %d code %q", ae.GetStatus(), ae.Body.Code)
	}
	if ae.Body.Message != "internal error" || ae.Body.Details != nil {
		t.Fatalf("envelope carries detail: %+v", ae.Body)
	}
	wire, err := json.Marshal(ae)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if bytes.Contains(wire, []byte("10.0.0.5")) || bytes.Contains(wire, []byte("connection refused")) {
		t.Fatalf("diagnostics leaked to the wire: %s", wire)
	}
}

func TestListingsAndLenientPaging(t *testing.T) {
	srv := newTestServer(t)
	alice, aliceHdr := srv.seedUser(t, "Alice", "alice@example.com")
	bob, bobHdr := srv.seedUser(t, "Bob", "bob@example.com")

	for i := 0; i < 12; i++ {
		assignee := alice.ID
		priority := "low"
		if i%2 == 0 {
			assignee = bob.ID
			priority = "high"
		}
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks", map[string]any{
			"title":       "task",
			"description": "listing fixture",
			"due_date":    "2026-09-15",
			"priority":    priority,
			"assigned_to": assignee,
		}, aliceHdr)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("seed %d: %d %s", i, res.StatusCode, data)
		}
	}

	// own scope only sees the caller's tasks
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks", nil, bobHdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("own list: %d %s", res.StatusCode, data)
	}
	var own TaskPageResponse
	if err := json.Unmarshal(data, &own); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if own.Total != 6 || len(own.Tasks) != 6 {
		t.Fatalf("own page = %+v", own)
	}
	for _, task := range own.Tasks {
		if task.AssignedTo.ID != bob.ID {
			t.Fatalf("leaked task: %+v", task)
		}
	}

	// non-numeric paging falls back to page 1, limit 10
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks/all?page=abc&limit=zzz", nil, aliceHdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("lenient paging: %d %s", res.StatusCode, data)
	}
	var all TaskPageResponse
	if err := json.Unmarshal(data, &all); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if all.CurrentPage != 1 || len(all.Tasks) != 10 || all.Total != 12 || all.TotalPages != 2 {
		t.Fatalf("lenient page = %+v", all)
	}

	// priority sort puts every high before every low
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks/all?sortBy=priority&limit=12", nil, aliceHdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("priority sort: %d %s", res.StatusCode, data)
	}
	var sorted TaskPageResponse
	if err := json.Unmarshal(data, &sorted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for i, task := range sorted.Tasks {
		want := "high"
		if i >= 6 {
			want = "low"
		}
		if task.Priority != want {
			t.Fatalf("position %d priority %q", i, task.Priority)
		}
	}

	// filters combine
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks/all?priority=high&assignedTo="+bob.ID, nil, aliceHdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("filtered: %d %s", res.StatusCode, data)
	}
	var filtered TaskPageResponse
	if err := json.Unmarshal(data, &filtered); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if filtered.Total != 6 {
		t.Fatalf("filtered total = %d", filtered.Total)
	}
}
