package network

const (
	MsgTypeHeartbeat = 1

	MsgTypeCreateRoom = 101
	MsgTypeJoinRoom   = 102
	MsgTypeLeaveRoom  = 103
	MsgTypeListRooms  = 104

	MsgTypePlayerAction = 201
	MsgTypeChat         = 202
	MsgTypeKillGame     = 203

	MsgTypeRoomState  = 301
	MsgTypeSystemMsg  = 302
	MsgTypeGameStart  = 303
	MsgTypeGameSync   = 304
	MsgTypeGameEnd    = 305
	MsgTypeError      = 306
)
