package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-sequencer/internal/audit"
	"github.com/nerrad567/gray-logic-sequencer/internal/auth"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sequencer/internal/playback"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
	"github.com/nerrad567/gray-logic-sequencer/internal/targets"
	"github.com/nerrad567/gray-logic-sequencer/migrations"
)

const (
	testSecret   = "test-secret-key-at-least-32-characters-long"
	testPassword = "cue-the-lights"
	testTimeout  = 2 * time.Second
)

var (
	testHashOnce sync.Once
	testHash     string
)

// passwordHash returns an Argon2id hash of testPassword, computed once per
// test binary.
func passwordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		h, err := auth.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		testHash = h
	})
	return testHash
}

// testEnv is a server wired to a real registry, runner and directory.
type testEnv struct {
	srv      *Server
	router   http.Handler
	registry *schedule.Registry
	runner   *playback.Runner
	db       *database.DB
	metrics  *playback.Metrics
}

// testServer creates a Server backed by in-memory SQLite and a running
// playback runner.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := database.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	repo := schedule.NewSQLiteRepository(db.DB)
	registry := schedule.NewRegistry(repo)
	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	log := logging.NewWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)

	dir, err := targets.NewDirectory(nil, config.SequencerConfig{
		Targets: []config.TargetConfig{
			{ID: "lobby-screen", Kind: config.TargetSurface, Name: "Lobby screen"},
			{ID: "lobby-video", Kind: config.TargetMedia},
		},
		Transitions: []config.TransitionConfig{
			{Name: "house-lights", Type: config.TransitionScene, InScene: "house-down"},
		},
	}, log)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}

	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(wsCfg, log)

	reg := prometheus.NewRegistry()
	metrics, err := playback.NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	runner := playback.NewRunner(playback.Options{
		TickInterval: time.Millisecond,
		HistoryLimit: 10,
		Resolver:     dir,
		Executions:   repo,
		Sinks:        []playback.Sink{playback.HubSink{Hub: hub}, metrics},
		Logger:       log,
	})
	runCtx, cancel := context.WithCancel(ctx)
	go runner.Run(runCtx) //nolint:errcheck // Stopped is awaited in cleanup
	t.Cleanup(func() {
		cancel()
		select {
		case <-runner.Stopped():
		case <-time.After(testTimeout):
			t.Error("runner did not stop")
		}
	})

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: wsCfg,
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
			Users: []config.UserConfig{
				{Username: "stage.manager", PasswordHash: passwordHash(t), Role: "operator"},
			},
		},
		Defaults:  config.SequencerDefaults{Skippable: true, RemoveEmptyReferences: true},
		Logger:    log,
		Runner:    runner,
		Registry:  registry,
		Directory: dir,
		DB:        db,
		Gatherer:  reg,
		Hub:       hub,
		Audit:     audit.NewSQLiteRepository(db.DB),
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		srv:      srv,
		router:   srv.buildRouter(),
		registry: registry,
		runner:   runner,
		db:       db,
		metrics:  metrics,
	}
}

// token mints a bearer token for role.
func token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken("tester-"+string(role), role, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return tok
}

// do sends a request through the router. A non-empty role attaches a
// bearer token; body is JSON-encoded unless it is already a []byte.
func (e *testEnv) do(t *testing.T, method, path string, role auth.Role, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body.
func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

// createSequence stores a definition of wait groups through the registry.
func (e *testEnv) createSequence(t *testing.T, slug string, waits ...float64) *schedule.Definition {
	t.Helper()
	def := &schedule.Definition{
		Name:                  "Sequence " + slug,
		Slug:                  slug,
		Skippable:             true,
		RemoveEmptyReferences: true,
	}
	for i, w := range waits {
		def.Groups = append(def.Groups, schedule.GroupDef{
			Name:   "group-" + string(rune('a'+i)),
			Policy: sequence.PolicyAny,
			Steps: []schedule.StepDef{{
				Name:      "hold",
				Skippable: true,
				Main:      schedule.PhaseDef{Kind: sequence.KindWait, Duration: w},
			}},
		})
	}
	if err := e.registry.Create(context.Background(), def); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return def
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ─── Health / Metrics ──────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Status  string            `json:"status"`
		Version string            `json:"version"`
		Checks  map[string]string `json:"checks"`
	}
	decode(t, w, &resp)
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
	if resp.Checks["database"] != "ok" {
		t.Errorf("database check = %q, want ok", resp.Checks["database"])
	}
	if _, ok := resp.Checks["mqtt"]; ok {
		t.Error("mqtt check reported without a client")
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	env := testServer(t)
	env.db.Close() //nolint:errcheck // Simulating an outage

	w := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", resp["status"])
	}
}

func TestSystemMetrics(t *testing.T) {
	env := testServer(t)
	env.createSequence(t, "intro", 60)
	def := env.createSequence(t, "outro", 60)
	if err := env.runner.Load(context.Background(), def, schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}

	var m SystemMetrics
	decode(t, w, &m)
	if m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("runtime metrics = %+v", m)
	}
	want := SequenceMetrics{Defined: 2, Loaded: 1, Running: 0, Targets: 2}
	if m.Sequences != want {
		t.Errorf("sequences = %+v, want %+v", m.Sequences, want)
	}
	if m.MQTT.Configured {
		t.Error("MQTT reported as configured")
	}
	if m.Database == nil {
		t.Error("database metrics missing")
	}
}

func TestPrometheusExposition(t *testing.T) {
	env := testServer(t)
	def := env.createSequence(t, "sting", 0)
	ctx := context.Background()
	if err := env.runner.Load(ctx, def, schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := env.runner.Play(ctx, def.ID, schedule.TriggerAPI); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := env.runner.Wait(ctx, def.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	var body string
	waitFor(t, "cycle counter", func() bool {
		w := env.do(t, http.MethodGet, "/metrics", "", nil)
		body = w.Body.String()
		return w.Code == http.StatusOK &&
			strings.Contains(body, `graylogic_sequencer_cycles_total{sequence="`+def.ID+`",status="completed"} 1`)
	})
	if !strings.Contains(body, "graylogic_sequencer_loaded_sequences 1") {
		t.Errorf("exposition missing loaded gauge:\n%s", body)
	}
}

func TestPanelRoutes(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/panel", "", nil)
	if w.Code != http.StatusMovedPermanently || w.Header().Get("Location") != "/panel/" {
		t.Errorf("GET /panel = %d -> %q, want redirect to /panel/", w.Code, w.Header().Get("Location"))
	}

	w = env.do(t, http.MethodGet, "/panel/", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Errorf("GET /panel/ = %d, want the panel page", w.Code)
	}

	w = env.do(t, http.MethodGet, "/panel/panel.js", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /panel/panel.js = %d, want 200", w.Code)
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if len(w.Header().Get("X-Request-ID")) != 2*requestIDBytes {
		t.Errorf("generated request ID = %q", w.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "cue-17")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "cue-17" {
		t.Errorf("echoed request ID = %q, want cue-17", got)
	}
}

func TestCORS(t *testing.T) {
	env := testServer(t)
	env.srv.cfg.CORS.AllowedOrigins = []string{"https://booth.local"}
	router := env.srv.buildRouter()

	tests := []struct {
		origin string
		want   string
	}{
		{"https://booth.local", "https://booth.local"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/sequences", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: allow-origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestRecovery(t *testing.T) {
	env := testServer(t)
	handler := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var e Error
	decode(t, w, &e)
	if e.Code != ErrCodeInternal || e.Status != http.StatusInternalServerError {
		t.Errorf("error body = %+v", e)
	}
}

func TestBodySizeLimit(t *testing.T) {
	env := testServer(t)
	big := bytes.Repeat([]byte("x"), maxRequestBodySize+1)

	w := env.do(t, http.MethodPost, "/api/v1/sequences", auth.RoleAdmin, append([]byte(`{"name":"`), big...))
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want 400", w.Code)
	}
}

// ─── Server lifecycle ──────────────────────────────────────────────

func TestServerStartClose(t *testing.T) {
	env := testServer(t)
	srv := env.srv

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live health status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestServerStart_PortInUse(t *testing.T) {
	first := testServer(t).srv
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { first.Close() }) //nolint:errcheck // Test cleanup

	second := testServer(t).srv
	_, port, _ := strings.Cut(first.Addr(), ":")
	second.cfg.Port, _ = strconv.Atoi(port)
	if err := second.Start(context.Background()); err == nil {
		second.Close() //nolint:errcheck // Test cleanup
		t.Error("Start on a bound port should fail")
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	log := logging.NewWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
	runner := playback.NewRunner(playback.Options{})
	registry := schedule.NewRegistry(nil)

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Runner: runner, Registry: registry}},
		{"no runner", Deps{Logger: log, Registry: registry}},
		{"no registry", Deps{Logger: log, Runner: runner}},
	}
	for _, tt := range tests {
		if _, err := New(tt.deps); err == nil {
			t.Errorf("%s: New() error = nil", tt.name)
		}
	}
}
