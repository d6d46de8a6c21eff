package model

// RoomStatus is the race lifecycle state of a room.
//
// A room only advances waiting → countdown → racing; it returns to waiting
// when a race finishes, which is what makes the next startRace acceptable.
type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomCountdown RoomStatus = "countdown"
	RoomRacing    RoomStatus = "racing"
)

// Room is one named race session: the authoritative race text and the set
// of connected players. Rooms are created on first join and reaped the
// moment the last player leaves.
type Room struct {
	ID      string
	Text    string
	Status  RoomStatus
	Players map[string]*Player // sessionID -> player
}

// RoomSnapshot is the full room state broadcast to every member on each
// change. Players are keyed by session ID so each client can find itself.
type RoomSnapshot struct {
	Text    string                     `json:"text"`
	Status  RoomStatus                 `json:"status"`
	Started bool                       `json:"started"`
	Players map[string]*PlayerSnapshot `json:"players"`
}

// Snapshot copies the room state for broadcasting. The returned value
// shares nothing with the live room.
func (r *Room) Snapshot() *RoomSnapshot {
	players := make(map[string]*PlayerSnapshot, len(r.Players))
	for sid, p := range r.Players {
		players[sid] = p.Snapshot()
	}
	return &RoomSnapshot{
		Text:    r.Text,
		Status:  r.Status,
		Started: r.Status != RoomWaiting,
		Players: players,
	}
}
