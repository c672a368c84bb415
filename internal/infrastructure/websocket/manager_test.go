package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a client with no connection; frames are read from
// its send queue directly.
func newTestClient(userID string) *Client {
	return NewClient(userID, nil)
}

func drain(t *testing.T, c *Client) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return events
			}
			var e Event
			require.NoError(t, json.Unmarshal(frame, &e))
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestManagerRegisterJoinsUserRoom(t *testing.T) {
	m := NewManager()
	c := newTestClient("A")
	require.NoError(t, m.Register(c))

	assert.Equal(t, 1, m.ConnectionCount())
	assert.Equal(t, 1, m.RoomSize(UserRoom("A")))

	m.Unregister(c)
	m.Unregister(c)
	assert.Equal(t, 0, m.ConnectionCount())
	assert.Equal(t, 0, m.RoomSize(UserRoom("A")))
}

func TestEmitToRoomsDeliversOncePerConnection(t *testing.T) {
	m := NewManager()
	b := newTestClient("B")
	require.NoError(t, m.Register(b))
	m.Join(b, ChatRoom("c1"))

	other := newTestClient("C")
	require.NoError(t, m.Register(other))

	n := m.EmitToRooms(EventMessageReceived, ChatRef{ChatID: "c1"}, ChatRoom("c1"), UserRoom("B"))
	assert.Equal(t, 1, n)

	events := drain(t, b)
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageReceived, events[0].Type)
	assert.NotEmpty(t, events[0].Timestamp)

	var ref ChatRef
	require.NoError(t, json.Unmarshal(events[0].Data, &ref))
	assert.Equal(t, "c1", ref.ChatID)

	assert.Empty(t, drain(t, other))
}

func TestEmitToRoomsDropsSlowClient(t *testing.T) {
	m := NewManager()
	slow := newTestClient("A")
	require.NoError(t, m.Register(slow))

	for i := 0; i < sendBufferSize; i++ {
		m.EmitToRooms(EventPong, struct{}{}, UserRoom("A"))
	}
	assert.Equal(t, 1, m.ConnectionCount())

	n := m.EmitToRooms(EventPong, struct{}{}, UserRoom("A"))
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, m.ConnectionCount())
}

func TestLeaveStopsChatDelivery(t *testing.T) {
	m := NewManager()
	c := newTestClient("A")
	require.NoError(t, m.Register(c))
	m.Join(c, ChatRoom("c1"))
	m.Leave(c, ChatRoom("c1"))

	assert.Equal(t, 0, m.EmitToRooms(EventMessagesRead, ChatRef{ChatID: "c1"}, ChatRoom("c1")))
}

func TestShutdownRefusesNewClients(t *testing.T) {
	m := NewManager()
	c := newTestClient("A")
	require.NoError(t, m.Register(c))

	m.Shutdown()
	assert.Equal(t, 0, m.ConnectionCount())

	_, open := <-c.send
	assert.False(t, open)
	assert.ErrorIs(t, m.Register(newTestClient("B")), ErrManagerClosed)
}

func TestChatIDFromAcceptsStringOrObject(t *testing.T) {
	assert.Equal(t, "c1", chatIDFrom(json.RawMessage(`"c1"`)))
	assert.Equal(t, "c2", chatIDFrom(json.RawMessage(`{"chatId":"c2"}`)))
	assert.Equal(t, "", chatIDFrom(json.RawMessage(`42`)))
}
