package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/identity"
)

const wsReadTimeout = 30 * time.Second

// ConnRegistry tracks live attempt sockets per user and tab session. A new
// socket for the same user and session replaces the old one.
type ConnRegistry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{active: make(map[string]map[string]*websocket.Conn)}
}

// Register adds conn for a user/session.
func (m *ConnRegistry) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}
	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusPolicyViolation, "session replaced")
	}
	m.active[userID][sessionID] = conn
	slog.Debug("Attempt socket registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes conn if it is still the current one.
func (m *ConnRegistry) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
		}
	}
}

// Count returns the number of live sockets.
func (m *ConnRegistry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// CloseAll closes every socket, used on shutdown.
func (m *ConnRegistry) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, sessions := range m.active {
		for _, conn := range sessions {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(m.active, userID)
	}
}

// ServeAttemptSocket accepts a WebSocket, reads one submission and streams
// progress frames followed by a complete or error frame.
func (h *Handler) ServeAttemptSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(h.Config.CORSOrigins),
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "attempt finished"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(h.Config.SSE.MaxRequestBodySize)

	h.Conns.Register(userID, sessionID, ws)
	defer h.Conns.Unregister(userID, sessionID, ws)

	readCtx, cancelRead := context.WithTimeout(r.Context(), wsReadTimeout)
	var req submitRequest
	err = wsjson.Read(readCtx, ws, &req)
	cancelRead()
	if err != nil {
		slog.Debug("Failed to read submission from websocket", "error", err, "user_id", userID)
		h.writeFrame(r.Context(), ws, streamMessage{Type: streamError, Message: "invalid submission"})
		return
	}
	sub := req.submission(r)

	ctx, cancel := h.attemptContext(r)
	defer cancel()

	var mu sync.Mutex
	a, err := h.Attempts.Process(ctx, sub, func(ev domain.ProgressEvent) {
		if ev.Status == domain.StatusError {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		h.writeFrame(ctx, ws, progressMessage(ev))
	})
	if err != nil {
		slog.Warn("WebSocket attempt failed", "user_id", sub.UserID, "error", err)
		h.writeFrame(ctx, ws, streamMessage{Type: streamError, Message: err.Error()})
		return
	}
	h.writeFrame(ctx, ws, streamMessage{Type: streamComplete, Data: a})
}

func (h *Handler) writeFrame(ctx context.Context, ws *websocket.Conn, m streamMessage) {
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := wsjson.Write(wctx, ws, m); err != nil {
		slog.Debug("Failed to write websocket frame", "type", m.Type, "error", err)
	}
}

// originPatterns turns CORS origins into the host patterns the WebSocket
// handshake matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}
