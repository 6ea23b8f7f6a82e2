// session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/tycoon/network"
)

// sendQueueSize 每个会话的出站缓冲大小，写满即丢弃
const sendQueueSize = 64

var ErrSessionClosed = errors.New("session closed")

type outPacket struct {
	msgID uint16
	data  []byte
}

// Session 代表一条已连接的客户端会话。出站消息经过一个带缓冲的
// 队列由独立的写协程发送，慢客户端只会丢消息，不会阻塞房间循环。
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     int64
	PlayerName string
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time

	sendQueue chan outPacket
	closeOnce sync.Once
	closed    chan struct{}
	mutex     sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	s := &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
		sendQueue:  make(chan outPacket, sendQueueSize),
		closed:     make(chan struct{}),
	}
	go s.writePump()
	return s
}

// Send 将消息放入出站队列。队列满或会话已关闭时消息被丢弃。
func (s *Session) Send(msgID uint16, data []byte) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	select {
	case s.sendQueue <- outPacket{msgID: msgID, data: data}:
		return nil
	default:
		// 慢订阅者：丢弃而不是阻塞
		return nil
	}
}

func (s *Session) writePump() {
	for {
		select {
		case pkt := <-s.sendQueue:
			if err := s.Conn.Send(pkt.msgID, pkt.data); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) GetUserID() int64 {
	return s.UserID
}

func (s *Session) GetName() string {
	return s.PlayerName
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) GetByUserID(userID int64) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.UserID == userID {
			result = append(result, session)
		}
	}
	return result
}
