// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/tycoon/room"
	"github.com/wfunc/tycoon/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口。投递相对 tick 循环是 fire-and-forget：
// 会话自带丢弃式缓冲，慢订阅者永远不会拖住房间循环。
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToUsers(userIDs []int64, msgID uint16, data []byte) error
}

// 基于房间的广播器
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	// Get a thread-safe copy of the sessions
	for _, s := range r.GetSessions() {
		// 入队失败（会话已关闭）直接跳过
		s.Send(msgID, data)
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, r := range b.roomManager.Rooms() {
		for _, s := range r.GetSessions() {
			s.Send(msgID, data)
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToUsers(userIDs []int64, msgID uint16, data []byte) error {
	for _, userID := range userIDs {
		for _, s := range b.sessionManager.GetByUserID(userID) {
			s.Send(msgID, data)
		}
	}
	return nil
}
