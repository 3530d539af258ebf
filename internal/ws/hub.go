package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"quix-messaging/internal/models"
)

// Hub maintains the gateway's live connections: a personal room per user
// (a user may hold several connections at once) and a room per group.
type Hub struct {
	mu         sync.RWMutex
	userConns  map[int]map[*websocket.Conn]ConnInfo
	groupRooms map[int]map[*websocket.Conn]ConnInfo
	connInfo   map[*websocket.Conn]ConnInfo
	connGroups map[*websocket.Conn]map[int]struct{}
	writeMu    map[*websocket.Conn]*sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		userConns:  make(map[int]map[*websocket.Conn]ConnInfo),
		groupRooms: make(map[int]map[*websocket.Conn]ConnInfo),
		connInfo:   make(map[*websocket.Conn]ConnInfo),
		connGroups: make(map[*websocket.Conn]map[int]struct{}),
		writeMu:    make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Register adds an authenticated connection to its owner's personal room.
func (h *Hub) Register(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userConns[info.UserID]; !ok {
		h.userConns[info.UserID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.userConns[info.UserID][conn] = info
	h.connInfo[conn] = info
	h.connGroups[conn] = make(map[int]struct{})
	h.writeMu[conn] = &sync.Mutex{}
}

// Unregister removes a connection from its personal room and every group
// room it joined. Safe to call more than once.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, ok := h.connInfo[conn]
	if !ok {
		return
	}
	delete(h.connInfo, conn)

	if conns, ok := h.userConns[info.UserID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.userConns, info.UserID)
		}
	}

	for groupID := range h.connGroups[conn] {
		if conns, ok := h.groupRooms[groupID]; ok {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(h.groupRooms, groupID)
			}
		}
	}
	delete(h.connGroups, conn)
	delete(h.writeMu, conn)
}

// JoinGroup subscribes a registered connection to a group room.
func (h *Hub) JoinGroup(conn *websocket.Conn, groupID int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, ok := h.connInfo[conn]
	if !ok {
		return
	}
	if _, ok := h.groupRooms[groupID]; !ok {
		h.groupRooms[groupID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.groupRooms[groupID][conn] = info
	h.connGroups[conn][groupID] = struct{}{}
}

// BroadcastToGroup sends an event to every connection in the group room,
// optionally skipping one connection (the originator, which gets its own
// correlated ack instead).
func (h *Hub) BroadcastToGroup(groupID int, event models.ServerEvent, except *websocket.Conn) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.groupRooms[groupID]))
	for conn := range h.groupRooms[groupID] {
		if conn != except {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		h.write(conn, payload)
	}
}

// BroadcastToGroupExceptUser sends an event to the group room, skipping
// every connection owned by the given user.
func (h *Hub) BroadcastToGroupExceptUser(groupID, userID int, event models.ServerEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.groupRooms[groupID]))
	for conn, info := range h.groupRooms[groupID] {
		if info.UserID != userID {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		h.write(conn, payload)
	}
}

// SendToUser sends an event to all of a user's connections.
func (h *Hub) SendToUser(userID int, event models.ServerEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.userConns[userID]))
	for conn := range h.userConns[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		h.write(conn, payload)
	}
}

// SendToConn sends an event to a single connection.
func (h *Hub) SendToConn(conn *websocket.Conn, event models.ServerEvent) {
	payload, _ := json.Marshal(event)
	h.write(conn, payload)
}

// SendError reports a handler failure to the originating connection only.
func (h *Hub) SendError(conn *websocket.Conn, message string) {
	h.SendToConn(conn, models.ServerEvent{
		Event: models.EventError,
		Data:  models.ErrorEvent{Message: message},
	})
}

// UsersInGroupRoom reports which users currently hold a connection in the
// group room, used to decide who gets a lighter notification instead of the
// full broadcast.
func (h *Hub) UsersInGroupRoom(groupID int) map[int]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make(map[int]bool, len(h.groupRooms[groupID]))
	for _, info := range h.groupRooms[groupID] {
		users[info.UserID] = true
	}
	return users
}

// write serializes writes per connection; gorilla/websocket allows only one
// concurrent writer.
func (h *Hub) write(conn *websocket.Conn, payload []byte) {
	h.mu.RLock()
	wmu, ok := h.writeMu[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	wmu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, payload)
	wmu.Unlock()
	if err != nil {
		log.Printf("websocket write error: %v", err)
		conn.Close()
		h.Unregister(conn)
	}
}
