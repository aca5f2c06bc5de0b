package pushsock

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/catalog"
	"github.com/mikey-austin/tv_animator/internal/core"
	"github.com/mikey-austin/tv_animator/internal/registry"
	"github.com/mikey-austin/tv_animator/pkg/tva"
)

const (
	writeTimeout  = 5 * time.Second
	sendQueueSize = 32
)

// Hub owns all push-socket sessions. It is both the websocket HTTP
// handler and a module whose Run loop relays bus events to clients.
type Hub struct {
	log      *zap.Logger
	service  *core.Service
	registry *registry.Registry
	bus      *bus.Bus
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewHub creates the push-socket hub and installs its census hook.
func NewHub(log *zap.Logger, service *core.Service, reg *registry.Registry, b *bus.Bus) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		log:      log,
		service:  service,
		registry: reg,
		bus:      b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
	reg.SetOnChange(h.broadcastDevices)
	return h
}

// Run relays bus events to connected clients until ctx is cancelled,
// then closes every session.
func (h *Hub) Run(ctx context.Context) error {
	events, cancel := h.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if changed, isChange := ev.(bus.MediaChanged); isChange {
				h.broadcastMediaChange(changed)
			}
		}
	}
}

// ServeHTTP upgrades the connection and runs its read loop.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := h.registry.NewID()
	s := &session{id: id, conn: conn, send: make(chan []byte, sendQueueSize)}

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()
	h.registry.Register(id, registry.RoleDisplay, r.RemoteAddr)
	h.log.Info("client connected", zap.String("conn_id", id), zap.String("remote", r.RemoteAddr))

	go s.writePump(h.log)

	h.unicast(s, h.statusMessage())
	h.readLoop(s)

	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
	h.registry.Unregister(id)
	s.close()
	h.log.Info("client disconnected", zap.String("conn_id", id))
}

func (h *Hub) readLoop(s *session) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg tva.Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.unicast(s, tva.ErrorMessage{Type: tva.MsgError, Message: "invalid JSON message"})
			continue
		}
		h.handle(s, msg)
	}
}

func (h *Hub) handle(s *session, msg tva.Inbound) {
	switch msg.Type {
	case tva.MsgRegister:
		h.handleRegister(s, msg)
	case tva.MsgTriggerAnimation:
		h.handleTrigger(s, msg)
	case tva.MsgGetStatus:
		h.unicast(s, h.statusMessage())
	case tva.MsgSceneChange:
		h.handleSceneChange(s, msg)
	case tva.MsgVideoControl:
		h.handleVideoControl(s, msg)
	default:
		h.unicast(s, tva.ErrorMessage{Type: tva.MsgError, Message: "unknown message type"})
	}
}

func (h *Hub) handleRegister(s *session, msg tva.Inbound) {
	var role registry.Role
	switch msg.Role {
	case tva.RoleDisplay:
		role = registry.RoleDisplay
	case tva.RoleAdmin:
		role = registry.RoleAdmin
	case tva.RoleBot:
		role = registry.RoleBot
	default:
		h.unicast(s, tva.ErrorMessage{Type: tva.MsgError, Message: "unknown role"})
		return
	}
	h.registry.UpdateRole(s.id, role)
	h.log.Info("client registered", zap.String("conn_id", s.id), zap.String("role", msg.Role))
	h.unicast(s, tva.InfoMessage{Type: tva.MsgInfo, Message: "registered as " + msg.Role})
}

func (h *Hub) handleTrigger(s *session, msg tva.Inbound) {
	if msg.Animation == "" {
		h.unicast(s, tva.ErrorMessage{Type: tva.MsgError, Message: "animation required"})
		return
	}
	if _, err := h.service.Trigger(msg.Animation, bus.CauseSocket); err != nil {
		h.unicast(s, tva.ErrorMessage{Type: tva.MsgError, Message: err.Error()})
	}
}

func (h *Hub) handleSceneChange(s *session, msg tva.Inbound) {
	if msg.SceneName == "" {
		h.unicast(s, tva.ErrorMessage{Type: tva.MsgError, Message: "scene_name required"})
		return
	}
	_, mapped, err := h.service.SceneChange(msg.SceneName, msg.AnimationMapping, bus.CauseScene)
	if err != nil {
		h.unicast(s, tva.ErrorMessage{Type: tva.MsgError, Message: err.Error()})
		return
	}
	if !mapped {
		h.unicast(s, tva.InfoMessage{Type: tva.MsgInfo, Message: "no mapping for scene '" + msg.SceneName + "'"})
	}
}

func (h *Hub) handleVideoControl(s *session, msg tva.Inbound) {
	if msg.Action == "" {
		h.unicast(s, tva.ErrorMessage{Type: tva.MsgError, Message: "action required"})
		return
	}
	if h.service.CurrentKind() != catalog.KindVideo {
		h.unicast(s, tva.ErrorMessage{Type: tva.MsgError, Message: "no video is currently playing"})
		return
	}
	h.broadcast(tva.VideoControl{Type: tva.MsgVideoControl, Action: msg.Action, Value: msg.Value})
}

func (h *Hub) statusMessage() tva.Status {
	status := h.service.Status()
	return tva.Status{
		Type:               tva.MsgStatus,
		CurrentAnimation:   status.Current,
		MediaType:          string(status.MediaType),
		Animations:         status.Animations,
		Videos:             status.Videos,
		AllMedia:           status.AllMedia,
		DisplayConnections: len(status.Counts.Displays),
		AdminCount:         status.Counts.AdminCount,
		LegacyConnections:  status.Counts.LegacyCount,
		TotalConnections:   status.Counts.Total,
		OBSConnected:       status.OBSConnected,
	}
}

func (h *Hub) broadcastMediaChange(changed bus.MediaChanged) {
	h.broadcast(tva.AnimationChanged{
		Type:              tva.MsgAnimationChanged,
		PreviousAnimation: changed.Previous,
		CurrentAnimation:  changed.Current,
		MediaType:         string(changed.MediaType),
		Message:           changed.Message,
		RefreshPage:       true,
	})
	h.broadcast(tva.PageRefresh{
		Type:      tva.MsgPageRefresh,
		Reason:    string(changed.Cause),
		NewMedia:  changed.Current,
		MediaType: string(changed.MediaType),
	})
}

func (h *Hub) broadcastDevices(counts registry.Counts) {
	h.broadcast(tva.DevicesUpdated{
		Type:               tva.MsgDevicesUpdated,
		DisplayConnections: len(counts.Displays),
		AdminCount:         counts.AdminCount,
		LegacyConnections:  counts.LegacyCount,
		TotalConnections:   counts.Total,
	})
}

func (h *Hub) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal broadcast", zap.Error(err))
		return
	}
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		h.enqueue(s, data)
	}
}

func (h *Hub) unicast(s *session, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal unicast", zap.Error(err))
		return
	}
	h.enqueue(s, data)
}

// enqueue never blocks; a client that stops draining loses messages
// instead of stalling the hub.
func (h *Hub) enqueue(s *session, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- data:
	default:
		h.log.Warn("client send queue full, dropping message", zap.String("conn_id", s.id))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

func (s *session) writePump(log *zap.Logger) {
	for data := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("write failed", zap.String("conn_id", s.id), zap.Error(err))
			s.close()
			return
		}
	}
}

func (s *session) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	s.mu.Unlock()
	_ = s.conn.Close()
}
