package room

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/logger"
	"github.com/wfunc/tycoon/network"
	"github.com/wfunc/tycoon/session"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

// MockBroadcaster is a test double for the Broadcaster interface.
type MockBroadcaster struct{}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	return nil
}
func (m *MockBroadcaster) BroadcastToAll(msgID uint16, data []byte) error { return nil }
func (m *MockBroadcaster) BroadcastToUsers(userIDs []int64, msgID uint16, data []byte) error {
	return nil
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(msgID uint16, data []byte) error { return nil }
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

// mockBridge is a test double for the state.CompletionBridge interface.
type mockBridge struct{}

func (m *mockBridge) Append(roomID string, entry game.ReplayEntry)        {}
func (m *mockBridge) HandleGameEnd(result game.Result, f *game.Snapshot) {}

func newTestSession(id, name string) *session.Session {
	s := session.NewSession(id, &MockConnection{})
	s.PlayerName = name
	return s
}

func testParams(name string, maxPlayers int) Params {
	return Params{Name: name, HostID: "host", Mode: "standard", MaxPlayers: maxPlayers}
}

// newTestRoom creates a room whose tick loop is effectively frozen so
// tests can drive it deterministically.
func newTestRoom(t *testing.T, params Params) *Room {
	t.Helper()
	r, err := NewRoom("test_room", params, &MockBroadcaster{}, game.DefaultConfig(), time.Hour, &mockBridge{})
	if err != nil {
		t.Fatalf("NewRoom failed: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestRoomManager_CreateAndGetRoom(t *testing.T) {
	manager := NewRoomManager()

	room, err := manager.CreateRoom("room1", testParams("Test Room", 4),
		&MockBroadcaster{}, game.DefaultConfig(), time.Hour, &mockBridge{})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	defer room.Close()

	if room.ID != "room1" {
		t.Errorf("Expected room ID room1, got %s", room.ID)
	}

	retrieved, exists := manager.GetRoom("room1")
	if !exists {
		t.Fatal("GetRoom should find the created room")
	}
	if retrieved != room {
		t.Error("GetRoom should return the same room instance")
	}
}

func TestNewRoom_Validation(t *testing.T) {
	if _, err := NewRoom("r", testParams("", 4), &MockBroadcaster{}, game.DefaultConfig(), time.Hour, &mockBridge{}); !errors.Is(err, ErrValidation) {
		t.Errorf("Empty name: got %v, want ErrValidation", err)
	}
	if _, err := NewRoom("r", testParams("Room", 0), &MockBroadcaster{}, game.DefaultConfig(), time.Hour, &mockBridge{}); !errors.Is(err, ErrValidation) {
		t.Errorf("Zero capacity: got %v, want ErrValidation", err)
	}
}

func TestRoom_JoinCapacity(t *testing.T) {
	room := newTestRoom(t, testParams("Capacity Test", 4))

	for i := 0; i < 4; i++ {
		s := newTestSession(string(rune('a'+i)), "player")
		if err := room.Join(s, ""); err != nil {
			t.Fatalf("Join %d failed: %v", i, err)
		}
	}

	fifth := newTestSession("e", "latecomer")
	if err := room.Join(fifth, ""); !errors.Is(err, ErrRoomFull) {
		t.Errorf("Fifth join: got %v, want ErrRoomFull", err)
	}
	if room.HumanCount() != 4 {
		t.Errorf("HumanCount = %d, want 4", room.HumanCount())
	}
}

func TestRoom_PrivatePassword(t *testing.T) {
	params := testParams("Private Test", 4)
	params.Private = true
	params.PasswordHash = "correct-hash"
	room := newTestRoom(t, params)

	s := newTestSession("a", "player")
	if err := room.Join(s, "wrong-hash"); !errors.Is(err, ErrAuth) {
		t.Errorf("Wrong password: got %v, want ErrAuth", err)
	}
	if err := room.Join(s, "correct-hash"); err != nil {
		t.Errorf("Correct password: got %v, want nil", err)
	}
}

func TestRoom_JoinCompletedRoom(t *testing.T) {
	room := newTestRoom(t, testParams("Done Test", 4))
	room.MarkCompleted()

	s := newTestSession("a", "player")
	if err := room.Join(s, ""); !errors.Is(err, ErrRoomCompleted) {
		t.Errorf("Join completed room: got %v, want ErrRoomCompleted", err)
	}
}

func TestRoom_Leave(t *testing.T) {
	room := newTestRoom(t, testParams("Leave Test", 4))

	s := newTestSession("a", "player")
	if err := room.Join(s, ""); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if s.RoomID != room.ID {
		t.Errorf("Session RoomID = %q, want %q", s.RoomID, room.ID)
	}

	room.Leave(s.GetID())
	if room.HumanCount() != 0 {
		t.Errorf("HumanCount after leave = %d, want 0", room.HumanCount())
	}
	if s.RoomID != "" {
		t.Errorf("Session RoomID after leave = %q, want empty", s.RoomID)
	}
}

func TestManager_ListOpenExcludesCompleted(t *testing.T) {
	manager := NewRoomManager()

	open, err := manager.CreateRoom("open", testParams("Open", 4),
		&MockBroadcaster{}, game.DefaultConfig(), time.Hour, &mockBridge{})
	if err != nil {
		t.Fatal(err)
	}
	defer open.Close()

	done, err := manager.CreateRoom("done", testParams("Done", 4),
		&MockBroadcaster{}, game.DefaultConfig(), time.Hour, &mockBridge{})
	if err != nil {
		t.Fatal(err)
	}
	defer done.Close()
	done.MarkCompleted()

	infos := manager.ListOpen()
	if len(infos) != 1 {
		t.Fatalf("ListOpen returned %d rooms, want 1", len(infos))
	}
	if infos[0].ID != "open" {
		t.Errorf("ListOpen returned %s, want open", infos[0].ID)
	}
}

func TestRoom_MessageLogCap(t *testing.T) {
	room := newTestRoom(t, testParams("Chat Test", 4))

	for i := 0; i < messageLogCap+50; i++ {
		room.AppendMessage(ChatMessage{
			RoomID:     room.ID,
			PlayerName: "spammer",
			Message:    "hello",
			Type:       "chat",
			Timestamp:  time.Now(),
		})
	}

	room.msgMutex.Lock()
	got := len(room.Messages)
	room.msgMutex.Unlock()
	if got != messageLogCap {
		t.Errorf("Message log length = %d, want %d", got, messageLogCap)
	}
}

func TestRoom_MarkCompletedIdempotent(t *testing.T) {
	room := newTestRoom(t, testParams("Complete Test", 4))

	room.MarkCompleted()
	first := room.CompletedAt
	room.MarkCompleted()
	if room.CompletedAt != first {
		t.Error("Second MarkCompleted should not move the completion time")
	}
}
