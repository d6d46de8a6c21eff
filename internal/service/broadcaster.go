package service

// Outbound event names, shared by the service and the WebSocket transport.
const (
	MsgJoinedRoom   = "joinedRoom"
	MsgRoomUpdate   = "roomUpdate"
	MsgCountdown    = "countdown"
	MsgRaceStart    = "raceStart"
	MsgRaceFinished = "raceFinished"
)

// Broadcaster is the outbound side of the WebSocket hub (interface here to
// avoid an import cycle with the transport package). Bind/Unbind keep the
// hub's room buckets in step with the session bindings so room broadcasts
// reach exactly the current members.
type Broadcaster interface {
	SendToSession(sessionID, msgType string, payload interface{})
	BroadcastToRoom(roomID, msgType string, payload interface{})
	BindSession(sessionID, roomID string)
	UnbindSession(sessionID string)
}
