package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/cjeanneret/Stager/internal/debug"
	"github.com/cjeanneret/Stager/internal/logic/motion"
	"github.com/cjeanneret/Stager/internal/logic/stage"
)

// SnapshotFunc returns the latest state of the control loop.
type SnapshotFunc func() motion.Snapshot

// PressFunc simulates one operator button press.
type PressFunc func() error

// StageView is one row of GET /stages.
type StageView struct {
	Index     int    `json:"index"`
	Start     int64  `json:"start"`
	Stop      int64  `json:"stop"`
	Delta     int64  `json:"delta"`
	Direction string `json:"direction"`
}

// StageViews flattens a stage table for JSON.
func StageViews(t *stage.Table) []StageView {
	views := make([]StageView, t.Len())
	for i, s := range t.Stages() {
		views[i] = StageView{
			Index:     i,
			Start:     s.Start,
			Stop:      s.Stop,
			Delta:     s.Delta(),
			Direction: s.Direction().String(),
		}
	}
	return views
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *Broadcaster
	Snapshot    SnapshotFunc
	Stages      []StageView
	Press       PressFunc
	pressLimit  *rate.Limiter
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If press is nil, POST /press will return 503 Service Unavailable.
func NewHandlers(broadcaster *Broadcaster, snapshot SnapshotFunc, stages []StageView, press PressFunc, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Snapshot:    snapshot,
		Stages:      stages,
		Press:       press,
		pressLimit:  rate.NewLimiter(rate.Every(time.Second), 1),
		staticFS:    staticFS,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// HandleStatus returns the current snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Snapshot())
}

// HandleStages returns the stage table as JSON.
func (h *Handlers) HandleStages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Stages)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandlePress handles POST /press, available with the simulated plant only.
func (h *Handlers) HandlePress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Press == nil {
		http.Error(w, "press not available on real hardware", http.StatusServiceUnavailable)
		return
	}
	if !h.pressLimit.Allow() {
		http.Error(w, "too many presses", http.StatusTooManyRequests)
		return
	}
	if err := h.Press(); err != nil {
		debug.Error(err)
		http.Error(w, "press failed", http.StatusInternalServerError)
		return
	}
	h.Broadcaster.Log("info", "Button pressed from web")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pressed"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: "))
			w.Write(msg)
			w.Write([]byte("\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleStatusWS handles GET /status/ws. The client first receives the
// current snapshot, then every broadcast event as a text frame.
func (h *Handlers) HandleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	debug.Verbose("ws client connected: %s", r.RemoteAddr)

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Reads only serve to process control frames and detect disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap := h.Snapshot()
	first, err := json.Marshal(Event{Type: EventSnapshot, Time: time.Now(), Data: &snap})
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logWSError(err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logWSError(err)
				return
			}

		case <-closed:
			debug.Verbose("ws client disconnected: %s", r.RemoteAddr)
			return

		case <-r.Context().Done():
			return
		}
	}
}

func logWSError(err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		debug.Verbose("ws closed: code=%d reason=%q", ce.Code, ce.Text)
		return
	}
	debug.Verbose("ws write error: %v", err)
}
