package server

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/wfunc/tycoon/game"
	"github.com/wfunc/tycoon/logger"
	"github.com/wfunc/tycoon/network"
	"github.com/wfunc/tycoon/room"
	"github.com/wfunc/tycoon/session"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

// stubBroadcaster is a test double for the room.Broadcaster interface.
type stubBroadcaster struct{}

func (b *stubBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	return nil
}

// stubConnection is a test double for the network.Connection interface.
type stubConnection struct{}

func (c *stubConnection) Send(msgID uint16, data []byte) error { return nil }
func (c *stubConnection) Close() error                         { return nil }
func (c *stubConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (c *stubConnection) SetHeartbeat(interval time.Duration)  {}
func (c *stubConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

// stubBridge is a test double for the state.CompletionBridge interface.
type stubBridge struct{}

func (b *stubBridge) Append(roomID string, entry game.ReplayEntry)        {}
func (b *stubBridge) HandleGameEnd(result game.Result, f *game.Snapshot) {}

// newReapRoom creates a room whose tick loop is effectively frozen so
// the sweep can be driven deterministically.
func newReapRoom(t *testing.T, manager *room.Manager, id string) *room.Room {
	t.Helper()
	params := room.Params{Name: "Reap Room", HostID: "host", MaxPlayers: 4}
	r, err := manager.CreateRoom(id, params, &stubBroadcaster{}, game.DefaultConfig(), time.Hour, &stubBridge{})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestReapRooms_CompletedRoomWaitsForViewers(t *testing.T) {
	manager := room.NewRoomManager()
	r := newReapRoom(t, manager, "room1")

	viewer := session.NewSession("viewer", &stubConnection{})
	viewer.PlayerName = "viewer"
	if err := r.Join(viewer, ""); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	r.MarkCompleted()

	removed := 0
	reapRooms(manager, time.Hour, func() { removed++ })

	if _, exists := manager.GetRoom("room1"); !exists {
		t.Fatal("Completed room with a connected viewer must survive the sweep")
	}
	if removed != 0 {
		t.Errorf("Removal callback fired %d times with a viewer present", removed)
	}

	r.Leave(viewer.GetID())
	reapRooms(manager, time.Hour, func() { removed++ })

	if _, exists := manager.GetRoom("room1"); exists {
		t.Error("Completed room should be removed once the last viewer leaves")
	}
	if removed != 1 {
		t.Errorf("Removal callback fired %d times, want 1", removed)
	}
}

func TestReapRooms_IdleEmptyRoomIsForceCompleted(t *testing.T) {
	manager := room.NewRoomManager()
	r := newReapRoom(t, manager, "room1")

	reapRooms(manager, 0, nil)

	if !r.IsCompleted() {
		t.Fatal("Empty room past the idle timeout should be force-completed")
	}

	// Second sweep tears the now-empty completed room down.
	reapRooms(manager, 0, nil)
	if _, exists := manager.GetRoom("room1"); exists {
		t.Error("Completed empty room should be removed on the next sweep")
	}
}

func TestReapRooms_OccupiedRoomIsLeftAlone(t *testing.T) {
	manager := room.NewRoomManager()
	r := newReapRoom(t, manager, "room1")

	player := session.NewSession("p1", &stubConnection{})
	player.PlayerName = "p1"
	if err := r.Join(player, ""); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	reapRooms(manager, 0, nil)

	if r.IsCompleted() {
		t.Error("Room with a connected player must not be reaped")
	}
	if _, exists := manager.GetRoom("room1"); !exists {
		t.Error("Room with a connected player must stay registered")
	}
}
