package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/backup-assistant/internal/config"
	"github.com/morezero/backup-assistant/pkg/capability"
	"github.com/morezero/backup-assistant/pkg/db"
	"github.com/morezero/backup-assistant/pkg/dispatcher"
	"github.com/morezero/backup-assistant/pkg/healing"
	"github.com/morezero/backup-assistant/pkg/llm"
	"github.com/morezero/backup-assistant/pkg/llm/llmtest"
	"github.com/morezero/backup-assistant/pkg/validator"
)

const serverTestPrefix = "server:server_test"

// mockJournal implements journalReader for handler tests.
type mockJournal struct {
	recent  []db.Invocation
	stats   []db.StateCount
	err     error
	pingErr error
}

func (m *mockJournal) ListRecentInvocations(context.Context, int) ([]db.Invocation, error) {
	return m.recent, m.err
}

func (m *mockJournal) CountByState(context.Context) ([]db.StateCount, error) {
	return m.stats, m.err
}

func (m *mockJournal) Ping(context.Context) error {
	return m.pingErr
}

type fixedAccount string

func (a fixedAccount) AccountID(context.Context, string) (string, error) {
	return string(a), nil
}

// testDispatcher serves two custom operations that never reach the LLM on success.
func testDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	reg := capability.MustRegistry(
		&capability.Operation{
			Name:        "list_backup_vaults_for_tags",
			Service:     "backup",
			Description: "Backup vaults carrying the given tag values",
			Custom:      true,
			Requires: []capability.Requirement{
				capability.Need("TagName", "Tag name is missing."),
			},
			Errors: []capability.ErrorRule{{Code: "AccessDeniedException", Message: "Access denied."}},
			Execute: func(context.Context, *capability.Request) (capability.Payload, error) {
				return capability.Payload{"BackupVaultList": []any{"vault-a"}}, nil
			},
		},
		&capability.Operation{
			Name:    "describe_volumes_for_all_volumes",
			Service: "ec2",
			Custom:  true,
			Execute: func(context.Context, *capability.Request) (capability.Payload, error) {
				return capability.Payload{"Volumes": []any{}}, nil
			},
		},
	)
	stub := llmtest.NewStub()
	tpl := llm.DefaultTemplates()
	return dispatcher.NewDispatcher(dispatcher.Params{
		Registry:  reg,
		Validator: validator.New(stub, tpl.Validate),
		Invoker:   healing.New(stub, tpl.Repair),
		Accounts:  fixedAccount("123456789012"),
		Options:   dispatcher.Options{DefaultRegion: "us-east-1", MaxResults: 25, BodyBudget: 22000},
	})
}

// testServer returns a Server with a test dispatcher and config for HTTP handler tests.
func testServer(t *testing.T, journal journalReader) *Server {
	t.Helper()
	cfg := &config.Config{
		HealthCheckTimeout: 5 * time.Second,
		RequestTimeout:     5 * time.Second,
	}
	s := &Server{cfg: cfg, disp: testDispatcher(t)}
	if journal != nil {
		s.journal = journal
	}
	return s
}

// startTestServer starts an in-process NATS server and returns a connected client.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: port, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", serverTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", serverTestPrefix)
	}
	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", serverTestPrefix, err)
	}
	return nc, func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}
}

func agentEvent(operation, payload string) []byte {
	ev := dispatcher.Event{
		MessageVersion: "1.0",
		ActionGroup:    "backup-actions",
		Function:       "invoke_api",
		Parameters: []dispatcher.Parameter{
			{Name: dispatcher.ParamAPIName, Type: "string", Value: operation},
			{Name: dispatcher.ParamAPIJSON, Type: "string", Value: payload},
		},
	}
	data, _ := json.Marshal(ev)
	return data
}

func decodeResponse(t *testing.T, data []byte) *dispatcher.Response {
	t.Helper()
	var resp dispatcher.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("%s - decode response: %v", serverTestPrefix, err)
	}
	return &resp
}

func TestServe_Success(t *testing.T) {
	s := testServer(t, nil)
	resp := decodeResponse(t, s.serve(context.Background(), agentEvent("list_backup_vaults_for_tags", `{"TagName":"env"}`)))
	if resp.State() != "" {
		t.Errorf("%s - state = %q, want success", serverTestPrefix, resp.State())
	}
	if !strings.Contains(resp.Body(), "vault-a") {
		t.Errorf("%s - body should contain the result, got %q", serverTestPrefix, resp.Body())
	}
	if resp.Response.ActionGroup != "backup-actions" || resp.Response.Function != "invoke_api" {
		t.Errorf("%s - action group and function not echoed: %+v", serverTestPrefix, resp.Response)
	}
}

func TestServe_Reprompt(t *testing.T) {
	s := testServer(t, nil)
	resp := decodeResponse(t, s.serve(context.Background(), agentEvent("list_backup_vaults_for_tags", `{}`)))
	if resp.State() != "REPROMPT" {
		t.Errorf("%s - state = %q, want REPROMPT", serverTestPrefix, resp.State())
	}
	if !strings.Contains(resp.Body(), "Tag name is missing.") {
		t.Errorf("%s - body = %q", serverTestPrefix, resp.Body())
	}
}

func TestServe_UndecodableRequest(t *testing.T) {
	s := testServer(t, nil)
	for _, data := range [][]byte{nil, []byte("not json")} {
		resp := decodeResponse(t, s.serve(context.Background(), data))
		if resp.State() != "FAILURE" {
			t.Errorf("%s - state = %q, want FAILURE", serverTestPrefix, resp.State())
		}
		if resp.Body() != "Failed to decode request." {
			t.Errorf("%s - body = %q", serverTestPrefix, resp.Body())
		}
	}
}

func TestHandleMessage_RequestReply(t *testing.T) {
	nc, cleanup := startTestServer(t, 14240)
	defer cleanup()

	s := testServer(t, nil)
	s.nc = nc
	sub, err := nc.Subscribe("agent.backup.invoke", s.handleMessage(context.Background()))
	if err != nil {
		t.Fatalf("%s - subscribe: %v", serverTestPrefix, err)
	}
	defer sub.Unsubscribe()
	nc.Flush()

	msg, err := nc.Request("agent.backup.invoke", agentEvent("backup.list_backup_vaults_for_tags", `{"TagName":"env"}`), 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request: %v", serverTestPrefix, err)
	}
	resp := decodeResponse(t, msg.Data)
	if resp.State() != "" {
		t.Errorf("%s - state = %q, body = %q", serverTestPrefix, resp.State(), resp.Body())
	}
	if !strings.Contains(resp.Body(), "AWS account 123456789012 will be used.") {
		t.Errorf("%s - body = %q", serverTestPrefix, resp.Body())
	}
}

func TestHandleMessage_ConcurrentRequests(t *testing.T) {
	nc, cleanup := startTestServer(t, 14242)
	defer cleanup()

	s := testServer(t, nil)
	sub, err := nc.Subscribe("agent.backup.invoke", s.handleMessage(context.Background()))
	if err != nil {
		t.Fatalf("%s - subscribe: %v", serverTestPrefix, err)
	}
	defer sub.Unsubscribe()
	nc.Flush()

	const numRequests = 20
	results := make(chan *dispatcher.Response, numRequests)
	for i := 0; i < numRequests; i++ {
		go func() {
			msg, err := nc.Request("agent.backup.invoke", agentEvent("describe_volumes_for_all_volumes", `{}`), 10*time.Second)
			if err != nil {
				t.Errorf("%s - request: %v", serverTestPrefix, err)
				results <- nil
				return
			}
			var resp dispatcher.Response
			if err := json.Unmarshal(msg.Data, &resp); err != nil {
				t.Errorf("%s - decode response: %v", serverTestPrefix, err)
			}
			results <- &resp
		}()
	}

	for i := 0; i < numRequests; i++ {
		select {
		case resp := <-results:
			if resp != nil && resp.State() != "" {
				t.Errorf("%s - concurrent request state %q: %s", serverTestPrefix, resp.State(), resp.Body())
			}
		case <-time.After(30 * time.Second):
			t.Fatalf("%s - timeout waiting for concurrent request %d", serverTestPrefix, i)
		}
	}
}

func TestHealth(t *testing.T) {
	nc, cleanup := startTestServer(t, 14241)
	defer cleanup()

	tests := []struct {
		name    string
		journal journalReader
		conn    bool
		want    string
	}{
		{"connected without journal", nil, true, "healthy"},
		{"connected with journal", &mockJournal{}, true, "healthy"},
		{"database down", &mockJournal{pingErr: errors.New("refused")}, true, "unhealthy"},
		{"no transport", nil, false, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, tt.journal)
			if tt.conn {
				s.nc = nc
			}
			rec := httptest.NewRecorder()
			s.handleHealth().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			wantCode := http.StatusOK
			if tt.want != "healthy" {
				wantCode = http.StatusServiceUnavailable
			}
			if rec.Code != wantCode {
				t.Errorf("%s - status code %d, want %d", serverTestPrefix, rec.Code, wantCode)
			}
			var out HealthOutput
			if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
				t.Fatalf("%s - decode health: %v", serverTestPrefix, err)
			}
			if out.Status != tt.want {
				t.Errorf("%s - Status = %q, want %q", serverTestPrefix, out.Status, tt.want)
			}
			if out.Operations != 2 {
				t.Errorf("%s - Operations = %d, want 2", serverTestPrefix, out.Operations)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("%s - ready got status %d, want 200", serverTestPrefix, rec.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("%s - decode ready: %v", serverTestPrefix, err)
	}
	if out["status"] != "ready" {
		t.Errorf("%s - status = %q, want ready", serverTestPrefix, out["status"])
	}
}

func TestHandleHome_Success(t *testing.T) {
	s := testServer(t, &mockJournal{stats: []db.StateCount{{State: "SUCCESS", Count: 7}, {State: "FAILURE", Count: 2}}})
	rec := httptest.NewRecorder()
	s.handleHome().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("%s - handleHome got status %d, want 200", serverTestPrefix, rec.Code)
	}
	if rec.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("%s - Content-Type = %q, want text/html", serverTestPrefix, rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	for _, want := range []string{"list_backup_vaults_for_tags", "describe_volumes_for_all_volumes", "SUCCESS", "custom"} {
		if !strings.Contains(body, want) {
			t.Errorf("%s - body should contain %q", serverTestPrefix, want)
		}
	}
}

func TestHandleHome_JournalError(t *testing.T) {
	s := testServer(t, &mockJournal{err: context.DeadlineExceeded})
	rec := httptest.NewRecorder()
	s.handleHome().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("%s - handleHome (journal error) got status %d, want 200", serverTestPrefix, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Could not load journal statistics") {
		t.Errorf("%s - body should show the journal error", serverTestPrefix)
	}
}

func TestHandleHome_OnlyRoot(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.handleHome().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - handleHome(/other) got status %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestHandleOperationDetail_Success(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testServer(t, &mockJournal{recent: []db.Invocation{
		{Operation: "list_backup_vaults_for_tags", Region: "eu-west-1", AccountID: "123456789012", State: "SUCCESS", Created: created},
		{Operation: "describe_volumes_for_all_volumes", Region: "ap-south-1", State: "FAILURE", Created: created},
	}})
	rec := httptest.NewRecorder()
	s.handleOperationDetail().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations/list_backup_vaults_for_tags", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - detail got status %d, want 200", serverTestPrefix, rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Backup vaults carrying the given tag values", "Tag name is missing.", "AccessDeniedException", "eu-west-1", "2026-03-01 12:00:00"} {
		if !strings.Contains(body, want) {
			t.Errorf("%s - body should contain %q", serverTestPrefix, want)
		}
	}
	if strings.Contains(body, "ap-south-1") {
		t.Errorf("%s - body should only list invocations of this operation", serverTestPrefix)
	}
}

func TestHandleOperationDetail_NotFound(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.handleOperationDetail().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations/no_such_api", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - detail (unknown) got status %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestHandleOperationDetail_RedirectWhenNoName(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.handleOperationDetail().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations/", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("%s - detail (no name) got status %d, want 302", serverTestPrefix, rec.Code)
	}
}

func TestLambdaHandler(t *testing.T) {
	h := NewHandler(testDispatcher(t))
	var ev dispatcher.Event
	if err := json.Unmarshal(agentEvent("no_such_api", `{}`), &ev); err != nil {
		t.Fatalf("%s - decode event: %v", serverTestPrefix, err)
	}
	resp, err := h(context.Background(), ev)
	if err != nil {
		t.Fatalf("%s - handler error: %v", serverTestPrefix, err)
	}
	if resp.State() != "FAILURE" {
		t.Errorf("%s - state = %q, want FAILURE", serverTestPrefix, resp.State())
	}
	want := `API "no_such_api" is not supported. No API invocation was performed.`
	if resp.Body() != want {
		t.Errorf("%s - body = %q, want %q", serverTestPrefix, resp.Body(), want)
	}
}

func TestLogLevel(t *testing.T) {
	tests := map[string]string{"debug": "DEBUG", "warn": "WARN", "error": "ERROR", "info": "INFO", "": "INFO"}
	for in, want := range tests {
		if got := logLevel(in).String(); got != want {
			t.Errorf("%s - logLevel(%q) = %s, want %s", serverTestPrefix, in, got, want)
		}
	}
}
