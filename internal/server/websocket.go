package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"meme-party/internal/game"
)

const (
	messageSession       = "session"
	messageSessionClosed = "session_closed"

	wsReadLimit = 1024
)

type wsMessage struct {
	Type string            `json:"type"`
	View *game.SessionView `json:"view,omitempty"`
}

type viewFunc func(ctx context.Context, sessionID, viewerID string) (*game.SessionView, error)

type wsClient struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	viewerID string
}

// deliver fetches and writes a view while holding the client lock, so writes
// reach the socket in the order their views were read.
func (c *wsClient) deliver(ctx context.Context, sessionID string, views viewFunc) (closed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, err := views(ctx, sessionID, c.viewerID)
	if errors.Is(err, game.ErrNotFound) {
		return true, c.write(wsMessage{Type: messageSessionClosed})
	}
	if err != nil {
		return false, err
	}
	return false, c.write(wsMessage{Type: messageSession, View: view})
}

func (c *wsClient) write(msg wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub pushes per-viewer session views to connected websocket clients. It is
// the engine's Notifier: SessionChanged only marks a session dirty, and Run
// does the pushing outside of any engine transaction.
type Hub struct {
	mu      sync.Mutex
	groups  map[string]map[*wsClient]struct{}
	pending map[string]struct{}
	wake    chan struct{}
	views   viewFunc
}

func NewHub() *Hub {
	return &Hub{
		groups:  make(map[string]map[*wsClient]struct{}),
		pending: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

func (h *Hub) SessionChanged(sessionID string) {
	h.mu.Lock()
	if _, watched := h.groups[sessionID]; watched {
		h.pending[sessionID] = struct{}{}
	}
	h.mu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.wake:
		}
		for _, sessionID := range h.drain() {
			h.push(ctx, sessionID)
		}
	}
}

func (h *Hub) drain() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.pending))
	for id := range h.pending {
		ids = append(ids, id)
	}
	clear(h.pending)
	return ids
}

func (h *Hub) push(ctx context.Context, sessionID string) {
	if h.views == nil {
		return
	}
	for _, client := range h.clients(sessionID) {
		closed, err := client.deliver(ctx, sessionID, h.views)
		switch {
		case closed:
			log.Info().Str("session_id", sessionID).Str("player_id", client.viewerID).Msg("ws session closed")
			h.remove(sessionID, client)
		case err != nil:
			log.Warn().Err(err).Str("session_id", sessionID).Str("player_id", client.viewerID).Msg("ws push failed")
			h.remove(sessionID, client)
		}
	}
}

func (h *Hub) clients(sessionID string) []*wsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[sessionID]
	clients := make([]*wsClient, 0, len(group))
	for client := range group {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) add(sessionID, viewerID string, conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn, viewerID: viewerID}
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[sessionID]
	if group == nil {
		group = make(map[*wsClient]struct{})
		h.groups[sessionID] = group
	}
	group[client] = struct{}{}
	return client
}

func (h *Hub) remove(sessionID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[sessionID]
	if group == nil {
		return
	}
	if _, ok := group[client]; !ok {
		return
	}
	delete(group, client)
	_ = client.conn.Close()
	if len(group) == 0 {
		delete(h.groups, sessionID)
		delete(h.pending, sessionID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, group := range h.groups {
		for client := range group {
			_ = client.conn.Close()
		}
		delete(h.groups, sessionID)
	}
}

func (h *Hub) read(sessionID string, client *wsClient) {
	defer h.remove(sessionID, client)
	client.conn.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Str("player_id", client.viewerID).Msg("ws disconnected")
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebsocket(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	viewerID := currentPlayer(c)
	if _, err := s.engine.GetSessionView(c.Request.Context(), uri.ID, viewerID); err != nil {
		writeError(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("session_id", uri.ID).Msg("ws upgrade failed")
		return
	}
	log.Info().Str("session_id", uri.ID).Str("player_id", viewerID).Str("remote", c.Request.RemoteAddr).Msg("ws connected")

	client := s.hub.add(uri.ID, viewerID, conn)
	closed, err := client.deliver(context.Background(), uri.ID, s.engine.GetSessionView)
	if closed || err != nil {
		s.hub.remove(uri.ID, client)
		return
	}
	go s.hub.read(uri.ID, client)
}
