package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/mode"
)

type fakeEngine struct {
	mu      sync.Mutex
	state   engine.State
	starts  int
	failErr error
}

func (e *fakeEngine) Latest() engine.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *fakeEngine) StartAudio() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failErr != nil {
		return e.failErr
	}
	e.starts++
	e.state.AudioStarted = true
	return nil
}

func (e *fakeEngine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

type fakePipeline struct {
	mu   sync.Mutex
	subs []chan engine.State
}

func (p *fakePipeline) Subscribe() (<-chan engine.State, func()) {
	ch := make(chan engine.State, 4)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch, func() {}
}

func (p *fakePipeline) publish(s engine.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		ch <- s
	}
}

func (p *fakePipeline) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *fakePipeline) Snapshot() (gocv.Mat, bool) {
	return gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3), true
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/nonexistent", "/api/state", "/api/samples", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()
	testContent := "<html><body>handsynth</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_State(t *testing.T) {
	eng := &fakeEngine{state: engine.State{
		Seq:       7,
		Policy:    "ternary",
		Selection: mode.Selection{Mode: mode.Lead, Instrument: mode.InstrumentLead},
	}}
	s := New(Config{Engine: eng})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got struct {
		Seq       uint64 `json:"seq"`
		Policy    string `json:"policy"`
		Selection struct {
			Mode string `json:"mode"`
		} `json:"selection"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Seq != 7 || got.Policy != "ternary" || got.Selection.Mode != "lead" {
		t.Errorf("state = %+v", got)
	}
}

func TestServer_StartAudio(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		failErr    error
		wantStatus int
		wantStarts int
	}{
		{name: "post starts audio", method: http.MethodPost, wantStatus: http.StatusOK, wantStarts: 1},
		{name: "get not allowed", method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
		{name: "backend failure", method: http.MethodPost, failErr: errors.New("no MIDI port"), wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{failErr: tt.failErr}
			s := New(Config{Engine: eng})

			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/audio/start", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if eng.Starts() != tt.wantStarts {
				t.Errorf("starts = %d, want %d", eng.Starts(), tt.wantStarts)
			}
		})
	}
}

func TestStateHandler_WebSocket(t *testing.T) {
	eng := &fakeEngine{}
	pipe := &fakePipeline{}
	ts := httptest.NewServer(New(Config{Engine: eng, Pipeline: pipe}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/state/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for pipe.subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	pipe.publish(engine.State{Seq: 42, Policy: "drumkit"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got struct {
		Seq    uint64 `json:"seq"`
		Policy string `json:"policy"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Seq != 42 || got.Policy != "drumkit" {
		t.Errorf("state = %+v", got)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"start_audio"}`)); err != nil {
		t.Fatal(err)
	}
	for eng.Starts() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("start_audio was not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamHandler(t *testing.T) {
	pipe := &fakePipeline{}
	h := NewStreamHandler(pipe, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "--frame\r\n") || !strings.Contains(body, "Content-Type: image/jpeg") {
		t.Error("expected at least one JPEG part")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}
}
