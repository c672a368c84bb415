package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"repairhub/pkg/logger"
)

var ErrManagerClosed = errors.New("websocket manager is shut down")

// ChatRoom is the room of everyone currently viewing a chat.
func ChatRoom(chatID string) string { return "chat:" + chatID }

// UserRoom holds every connection of one user.
func UserRoom(userID string) string { return "user:" + userID }

// Manager tracks live connections and their room memberships.
type Manager struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	rooms   map[string]map[uuid.UUID]*Client
	closed  bool
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[uuid.UUID]*Client),
		rooms:   make(map[string]map[uuid.UUID]*Client),
	}
}

// Register admits c and joins it to its user room.
func (m *Manager) Register(c *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	m.clients[c.ID] = c
	m.joinLocked(c, UserRoom(c.UserID))

	logger.Info("socket client registered: %s", logger.Fields("client", c.ID, "user", c.UserID))
	return nil
}

// Unregister removes c from every room and closes its send queue. Safe to
// call more than once.
func (m *Manager) Unregister(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unregisterLocked(c)
}

func (m *Manager) unregisterLocked(c *Client) {
	if _, ok := m.clients[c.ID]; !ok {
		return
	}
	delete(m.clients, c.ID)
	for room, members := range m.rooms {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
	close(c.send)

	logger.Info("socket client unregistered: %s", logger.Fields("client", c.ID, "user", c.UserID))
}

func (m *Manager) Join(c *Client, room string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[c.ID]; !ok {
		return
	}
	m.joinLocked(c, room)
}

func (m *Manager) joinLocked(c *Client, room string) {
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]*Client)
		m.rooms[room] = members
	}
	members[c.ID] = c
}

func (m *Manager) Leave(c *Client, room string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if members, ok := m.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
}

// EmitToRooms sends one event to the union of rooms; a connection in several
// of them receives it once. Connections whose queue is full are dropped.
// It returns the number of connections the event was queued for.
func (m *Manager) EmitToRooms(eventType string, data interface{}, rooms ...string) int {
	frame, err := encodeEvent(eventType, data)
	if err != nil {
		logger.Error("failed to encode %s event: %v", eventType, err)
		return 0
	}

	var slow []*Client
	sent := 0

	m.mu.RLock()
	seen := make(map[uuid.UUID]bool)
	for _, room := range rooms {
		for id, c := range m.rooms[room] {
			if seen[id] {
				continue
			}
			seen[id] = true

			select {
			case c.send <- frame:
				sent++
			default:
				slow = append(slow, c)
			}
		}
	}
	m.mu.RUnlock()

	m.dropSlow(slow)
	return sent
}

// Send queues an event for a single connection.
func (m *Manager) Send(c *Client, eventType string, data interface{}) bool {
	frame, err := encodeEvent(eventType, data)
	if err != nil {
		logger.Error("failed to encode %s event: %v", eventType, err)
		return false
	}

	m.mu.RLock()
	if _, ok := m.clients[c.ID]; !ok {
		m.mu.RUnlock()
		return false
	}
	select {
	case c.send <- frame:
		m.mu.RUnlock()
		return true
	default:
		m.mu.RUnlock()
		m.dropSlow([]*Client{c})
		return false
	}
}

func (m *Manager) dropSlow(slow []*Client) {
	for _, c := range slow {
		logger.Warn("dropping slow socket client: %s", logger.Fields("client", c.ID, "user", c.UserID))
		m.Unregister(c)
		c.close()
	}
}

// RoomSize reports how many connections are in room.
func (m *Manager) RoomSize(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Shutdown closes every connection and refuses new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, c := range m.clients {
		m.unregisterLocked(c)
	}
}

func encodeEvent(eventType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{
		Type:      eventType,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}
