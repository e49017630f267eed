// Powerbox Tap Power Game
//
// Players open the page on their phones, pick a name and tap to send power.
// A controller (usually the big screen running the game) starts and ends
// rounds and opens or closes tapping. Every accepted tap updates the total
// power and the leaderboard for everyone connected.
//
// Features:
// - One websocket endpoint at $prefix/ws; every frame is {type, ref, data}
// - Each connection gets a random UUID; players are keyed by it
// - Frames are decoded and validated before reaching the game engine
// - A single hub goroutine applies events in order and fans out the results
// - Replies echo the client's ref so request/response pairs can be matched
// - Per-connection rate limiting; slow clients are dropped, not waited on
// - In-browser QR code for the player page, backed by go-qrcode

package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/powerbox/games/power"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	maxFrameSize = 4096
	sendBuffer   = 64
	writeWait    = 10 * time.Second
)

type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan any
	limiter *rate.Limiter
}

type clientEvent struct {
	client *Client
	ref    string
	event  power.Event
}

// Hub is the only owner of the game engine. Everything that touches it
// goes through run.
type Hub struct {
	engine  *power.Engine
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	events   chan clientEvent
	quit     chan struct{}

	tracer trace.Tracer
}

func newHub(engine *power.Engine) *Hub {
	return &Hub{
		engine:   engine,
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		events:   make(chan clientEvent, 256),
		quit:     make(chan struct{}),
		tracer:   otel.Tracer(tracerName),
	}
}

func (h *Hub) stop() {
	close(h.quit)
}

func (h *Hub) run(ctx context.Context, cfg *Config) {
	for {
		select {
		case <-h.quit:
			h.closeAll()
			return

		case c := <-h.register:
			h.clients[c] = true

			h.sendTo(c, serverFrame{
				Type: power.MsgSessionInfo,
				Data: h.engine.SessionInfo(),
			})

			logf(cfg, "GAMES: Connection %s opened (%d connected)", c.id, len(h.clients))

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

			h.dispatch(ctx, cfg, clientEvent{client: c, event: power.Disconnect{}})

			logf(cfg, "GAMES: Connection %s closed (%d connected)", c.id, len(h.clients))

		case ce := <-h.events:
			h.dispatch(ctx, cfg, ce)
		}
	}
}

// dispatch applies one event and queues its reply and broadcasts before
// the next event is read, so every client sees them in production order.
func (h *Hub) dispatch(ctx context.Context, cfg *Config, ce clientEvent) {
	name := ce.event.EventName()

	_, span := h.tracer.Start(ctx, "power."+name,
		trace.WithAttributes(attribute.String("power.conn_id", ce.client.id)),
	)
	defer span.End()

	out := h.engine.Handle(ce.client.id, ce.event)

	span.SetAttributes(
		attribute.Bool("power.accepted", out.Accepted),
		attribute.Int("power.broadcasts", len(out.Broadcasts)),
	)

	switch name {
	case power.EventStartGame, power.EventEndGame, power.EventAllowTapping, power.EventDisallowTapping, power.EventResetPower:
		logf(cfg, "GAMES: %s from %s (accepted: %t)", name, ce.client.id, out.Accepted)
	}

	if out.Reply != nil {
		h.sendTo(ce.client, serverFrame{
			Type: out.Reply.Type,
			Ref:  ce.ref,
			Data: out.Reply.Data,
		})
	}

	for _, m := range out.Broadcasts {
		h.broadcast(serverFrame{Type: m.Type, Data: m.Data})
	}
}

func (h *Hub) sendTo(c *Client, msg serverFrame) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg serverFrame) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade from %s failed: %v", realIP(r), err)
			return
		}

		client := &Client{
			id:      uuid.NewString(),
			conn:    conn,
			send:    make(chan any, sendBuffer),
			limiter: rate.NewLimiter(rate.Limit(cfg.rateLimit), cfg.rateBurst),
		}

		select {
		case h.register <- client:
		case <-h.quit:
			_ = conn.Close()
			return
		}

		logf(cfg, "SERVE: Websocket %s from %s", client.id, realIP(r))

		go client.writePump(cfg)
		client.readPump(cfg, h)
	}
}

func (c *Client) readPump(cfg *Config, h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.idleTimeout))
	})

	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.idleTimeout))

		if !c.limiter.Allow() {
			continue
		}

		ref, ev, err := decodeFrame(b)
		if err != nil {
			logf(cfg, "GAMES: Dropped frame from %s: %v", c.id, err)
			continue
		}

		select {
		case h.events <- clientEvent{client: c, ref: ref, event: ev}:
		case <-h.quit:
			return
		}
	}
}

func (c *Client) writePump(cfg *Config) {
	ticker := time.NewTicker(cfg.idleTimeout / 2)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// qrHandler renders a PNG QR code pointing at the player page.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		// Respect TLS and X-Forwarded-Proto when deriving the scheme.
		scheme := cfg.scheme()
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr") + "/"

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

// registerPowerGame sets up routes so that:
//   - $prefix/            → player page
//   - $prefix/controller  → controller page
//   - $prefix/ws          → websocket shared by players and controller
//   - $prefix/qr          → PNG QR code for the player page
func registerPowerGame(ctx context.Context, cfg *Config, h *Hub, mux *httprouter.Router) {
	go h.run(ctx, cfg)

	mux.GET(cfg.prefix+"/", serveEmbedded(cfg, "assets/power/index.html"))
	mux.GET(cfg.prefix+"/controller", serveEmbedded(cfg, "assets/power/controller.html"))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, h))

	mux.GET(cfg.prefix+"/qr", qrHandler(cfg))
}
