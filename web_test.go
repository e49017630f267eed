package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type wireFrame struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref"`
	Data json.RawMessage `json:"data"`
}

func newTestConfig() *Config {
	return &Config{
		bind:             "127.0.0.1",
		port:             8080,
		idleTimeout:      time.Minute,
		leaderboardLimit: 10,
		namePrefix:       "#",
		defaultName:      "Anonymous",
		rateLimit:        1000,
		rateBurst:        1000,
		tapGate:          true,
	}
}

func newTestServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 64)

	mux, hub := newRouter(ctx, cfg, zap.NewNop(), errs)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		hub.stop()
		cancel()
	})

	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var f wireFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}

	return f
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) wireFrame {
	t.Helper()

	for i := 0; i < 32; i++ {
		if f := readFrame(t, conn); f.Type == typ {
			return f
		}
	}
	t.Fatalf("no %q frame received", typ)

	return wireFrame{}
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestWebsocketRoundTrip(t *testing.T) {
	srv := newTestServer(t, newTestConfig())

	ctl := dial(t, srv, "/ws")
	player := dial(t, srv, "/ws")

	if f := readFrame(t, ctl); f.Type != "sessionInfo" {
		t.Fatalf("controller first frame = %q", f.Type)
	}
	if f := readFrame(t, player); f.Type != "sessionInfo" {
		t.Fatalf("player first frame = %q", f.Type)
	}

	writeFrame(t, player, `{"type":"join","ref":"j1","data":{"name":"  alice ","stageEligible":true}}`)

	reply := readUntil(t, player, "join")
	if reply.Ref != "j1" {
		t.Fatalf("join ref = %q", reply.Ref)
	}
	var joined struct {
		IsGameActive   bool   `json:"isGameActive"`
		DisplayName    string `json:"displayName"`
		TappingAllowed bool   `json:"tappingAllowed"`
	}
	if err := json.Unmarshal(reply.Data, &joined); err != nil {
		t.Fatalf("decode join reply: %v", err)
	}
	if joined.DisplayName != "#1 alice" || joined.IsGameActive || joined.TappingAllowed {
		t.Fatalf("join reply = %+v", joined)
	}

	writeFrame(t, ctl, `{"type":"startGame"}`)
	readUntil(t, player, "gameStarted")

	var game struct {
		TotalPower  int64 `json:"totalPower"`
		Leaderboard []struct {
			DisplayName string `json:"displayName"`
			Score       int64  `json:"score"`
		} `json:"leaderboard"`
	}

	// Rejected while the gate is closed.
	writeFrame(t, player, `{"type":"power","data":{"amount":50}}`)
	writeFrame(t, player, `{"type":"getGameData","ref":"closed"}`)
	data := readUntil(t, player, "getGameData")
	if err := json.Unmarshal(data.Data, &game); err != nil {
		t.Fatalf("decode game data: %v", err)
	}
	if game.TotalPower != 0 {
		t.Fatalf("total with gate closed = %d, want 0", game.TotalPower)
	}

	writeFrame(t, ctl, `{"type":"allowTapping"}`)
	readUntil(t, player, "tappingAllowed")

	writeFrame(t, player, `{"type":"power","data":{"amount":4}}`)
	writeFrame(t, player, `{"type":"power","data":3}`)

	writeFrame(t, player, `{"type":"getGameData","ref":"g"}`)
	data = readUntil(t, player, "getGameData")
	if data.Ref != "g" {
		t.Fatalf("game data ref = %q", data.Ref)
	}
	if err := json.Unmarshal(data.Data, &game); err != nil {
		t.Fatalf("decode game data: %v", err)
	}
	if game.TotalPower != 7 || len(game.Leaderboard) != 1 || game.Leaderboard[0].Score != 7 {
		t.Fatalf("game data = %+v, want total 7 with one entry", game)
	}

	writeFrame(t, ctl, `{"type":"endGame"}`)
	ended := readUntil(t, player, "gameEnded")
	if err := json.Unmarshal(ended.Data, &game); err != nil {
		t.Fatalf("decode gameEnded: %v", err)
	}
	if game.TotalPower != 7 {
		t.Fatalf("final total = %d, want 7", game.TotalPower)
	}
}

func TestWebsocketRateLimit(t *testing.T) {
	cfg := newTestConfig()
	cfg.rateLimit = 0.001
	cfg.rateBurst = 2

	srv := newTestServer(t, cfg)
	conn := dial(t, srv, "/ws")
	readFrame(t, conn)

	for _, ref := range []string{"1", "2", "3"} {
		writeFrame(t, conn, `{"type":"getConnectionCount","ref":"`+ref+`"}`)
	}

	for _, want := range []string{"1", "2"} {
		if f := readFrame(t, conn); f.Ref != want {
			t.Fatalf("reply ref = %q, want %q", f.Ref, want)
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var f wireFrame
	if err := conn.ReadJSON(&f); err == nil {
		t.Fatalf("frame over the rate limit was answered: %+v", f)
	}
}

func TestHTTPRoutes(t *testing.T) {
	srv := newTestServer(t, newTestConfig())

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/", "text/html", "assets/power/app.js"},
		{"/controller", "text/html", `data-role="controller"`},
		{"/assets/power/app.js", "text/javascript", "WebSocket"},
		{"/healthz", "text/plain", "Ok"},
		{"/version", "text/plain", "powerbox v" + releaseVersion},
		{"/favicons/favicon.svg", "image/svg+xml", "<svg"},
		{"/qr", "image/png", "\x89PNG"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET %s status = %d", tt.path, resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Fatalf("GET %s content type = %q, want %q", tt.path, ct, tt.contentType)
			}

			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tt.contains) {
				t.Fatalf("GET %s body missing %q", tt.path, tt.contains)
			}
		})
	}
}

func TestPrefixedRoutes(t *testing.T) {
	cfg := newTestConfig()
	cfg.prefix = "/party/"

	srv := newTestServer(t, cfg)

	resp, err := http.Get(srv.URL + "/party/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prefixed player page status = %d", resp.StatusCode)
	}

	conn := dial(t, srv, "/party/ws")
	if f := readFrame(t, conn); f.Type != "sessionInfo" {
		t.Fatalf("first frame on prefixed socket = %q", f.Type)
	}
}
