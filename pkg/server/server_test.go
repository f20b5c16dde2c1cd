package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verve-dev/verve/pkg/component"
	"github.com/verve-dev/verve/pkg/protocol"
)

type pageCounter struct{}

func (c *pageCounter) Render(ctx *component.Ctx) (string, error) {
	return fmt.Sprintf(
		`<div class="counter"><span class="value">Count: %s</span><button v-click="increment">+</button></div>`,
		ctx.Text(ctx.StateInt("count"))), nil
}

func (c *pageCounter) Handlers() map[string]component.Handler {
	return map[string]component.Handler{
		"increment": func(ctx *component.Ctx, ev *protocol.ClientEvent) error {
			ctx.SetState(map[string]any{"count": ctx.StateInt("count") + 1})
			return nil
		},
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(DefaultConfig().WithMetrics(false), nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Page("/", func(r *http.Request) component.Component { return &pageCounter{} })
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestPageServesShellWithRender(t *testing.T) {
	s, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	page := string(body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(page, "Count: 0") {
		t.Errorf("page missing initial render: %s", page)
	}
	if !strings.Contains(page, "data-verve-id=") {
		t.Errorf("page missing component boundary: %s", page)
	}
	if !strings.Contains(page, `src="/verve/client.js"`) {
		t.Errorf("page missing client script: %s", page)
	}
	if s.Registry().Count() != 1 {
		t.Errorf("registry count = %d, want 1", s.Registry().Count())
	}
}

func TestClientScriptServed(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/verve/client.js")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(string(body), "verve") {
		t.Error("client script looks empty")
	}
}

var selPattern = regexp.MustCompile(`data-verve-sel="([0-9a-z]{8})\.`)

// TestEventOverWebSocket drives the full loop: page render, socket
// connect, compact event, patch batch back.
func TestEventOverWebSocket(t *testing.T) {
	s, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	m := selPattern.FindStringSubmatch(string(body))
	if m == nil {
		t.Fatalf("no selector token in page: %s", body)
	}
	shortID := m[1]

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/verve/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Keepalive must not produce a response or kill the connection.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("p")); err != nil {
		t.Fatal(err)
	}

	event := protocol.EncodeEvent(protocol.ClientEvent{
		ShortID: shortID, EventName: "increment", TagName: "button",
	})
	if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	batch, err := protocol.DecodePatchBatch(string(frame))
	if err != nil {
		t.Fatalf("DecodePatchBatch(%q): %v", frame, err)
	}
	if batch.ShortID != shortID {
		t.Errorf("batch for %q, want %q", batch.ShortID, shortID)
	}
	found := false
	for _, p := range batch.Patches {
		if p.Op == protocol.OpUpdateText && p.Data == "Count: 1" {
			found = true
		}
	}
	if !found {
		t.Errorf("no update-text patch with new count in %+v", batch.Patches)
	}

	// Closing the socket unmounts and removes the page component.
	conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for s.Registry().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("registry count = %d after close, want 0", s.Registry().Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSameOriginCheck(t *testing.T) {
	for _, tt := range []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "example.com", true},
		{"http://example.com", "example.com", true},
		{"https://example.com", "example.com", true},
		{"http://evil.com", "example.com", false},
		{"http://example.com:8080", "example.com", false},
		{"://bad url", "example.com", false},
	} {
		r := httptest.NewRequest(http.MethodGet, "/verve/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := SameOriginCheck(r); got != tt.want {
			t.Errorf("SameOriginCheck(origin=%q, host=%q) = %v, want %v",
				tt.origin, tt.host, got, tt.want)
		}
	}
}

func TestConfigChaining(t *testing.T) {
	c := DefaultConfig().
		WithAddress(":9999").
		WithTitle("App").
		WithDiffEngine("coarse").
		WithMetrics(false).
		WithSanitizer(true)
	if c.Address != ":9999" || c.Title != "App" || c.DiffEngine != "coarse" {
		t.Errorf("chained config = %+v", c)
	}
	if c.EnableMetrics || !c.SanitizeHTML {
		t.Errorf("chained toggles = %+v", c)
	}

	clone := c.Clone()
	clone.Address = ":1"
	if c.Address != ":9999" {
		t.Error("Clone shares state with original")
	}
}

func TestUnknownDiffEngineRejected(t *testing.T) {
	if _, err := New(DefaultConfig().WithDiffEngine("bogus").WithMetrics(false), nil); err == nil {
		t.Error("New accepted an unknown engine")
	}
}
