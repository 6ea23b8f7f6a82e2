package state

// waitTimeoutTicks 等待超时（10fps 下 10 秒），到点只要有人就开局
const waitTimeoutTicks = 100

// NewWaitingState creates a new waiting state.
func NewWaitingState(room RoomContext) *WaitingState {
	return &WaitingState{
		RoomStateBase: RoomStateBase{
			ID:   "waiting",
			Room: room,
		},
	}
}

// 等待状态：满员立即开局，否则等待超时后有人即开局，
// 空位由AI公司补齐。
type WaitingState struct {
	RoomStateBase
	timer int
}

func (s *WaitingState) OnEnter() {
	s.timer = waitTimeoutTicks
}

func (s *WaitingState) OnUpdate() {
	players := s.Room.GetPlayers()

	// 满员立即开始
	if len(players) >= s.Room.GetMaxPlayers() {
		s.Room.ChangeState(NewPlayingState(s.Room))
		return
	}

	s.timer--
	if s.timer <= 0 {
		if len(players) > 0 {
			s.Room.ChangeState(NewPlayingState(s.Room))
			return
		}
		s.timer = waitTimeoutTicks
	}
}
