package service

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"typerace/internal/cache"
	"typerace/internal/model"
	"typerace/internal/textgen"
)

const countdownStart = 3

// RoomService owns all room and session state: the room registry, the
// session-to-room bindings, and the race state machine for every room.
// All mutation goes through its mutex. Room updates are emitted after the
// lock is released; countdown ticks and leaderboard writes go out under it
// so their order always matches the state they describe.
type RoomService struct {
	mu         sync.Mutex
	rooms      map[string]*model.Room
	sessions   map[string]string        // sessionID -> roomID
	countdowns map[string]chan struct{} // roomID -> pending countdown cancel

	gen         *textgen.Generator
	leaderboard cache.LeaderboardCache // optional, may be nil
	broadcaster Broadcaster
	tick        time.Duration
}

// Option configures a RoomService.
type Option func(*RoomService)

// WithLeaderboard enables mirroring live progress into Redis.
func WithLeaderboard(lb cache.LeaderboardCache) Option {
	return func(s *RoomService) { s.leaderboard = lb }
}

// WithCountdownInterval overrides the 1 s countdown tick, for tests.
func WithCountdownInterval(d time.Duration) Option {
	return func(s *RoomService) { s.tick = d }
}

// NewRoomService creates a room service around the given text generator.
func NewRoomService(gen *textgen.Generator, opts ...Option) *RoomService {
	s := &RoomService{
		rooms:      make(map[string]*model.Room),
		sessions:   make(map[string]string),
		countdowns: make(map[string]chan struct{}),
		gen:        gen,
		tick:       time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBroadcaster sets the outbound hub (wired late to break the cycle with
// the transport package, as the hub needs the service for inbound events).
func (s *RoomService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// outbound is a broadcast queued during a locked mutation and emitted after
// the lock is released.
type outbound struct {
	sessionID string // unicast when set, room broadcast otherwise
	roomID    string
	msgType   string
	payload   interface{}
}

func (s *RoomService) emit(events []outbound) {
	if s.broadcaster == nil {
		return
	}
	for _, e := range events {
		if e.sessionID != "" {
			s.broadcaster.SendToSession(e.sessionID, e.msgType, e.payload)
		} else {
			s.broadcaster.BroadcastToRoom(e.roomID, e.msgType, e.payload)
		}
	}
}

// Join puts the session into the room, creating the room on first join. A
// session occupies at most one room, so a prior binding is evicted first
// and the old room's members are told. Blank fields make this a no-op.
func (s *RoomService) Join(ctx context.Context, sessionID, roomID, username string) {
	if sessionID == "" || roomID == "" || username == "" {
		return
	}

	var events []outbound
	var evictedRoom string
	var evictedReaped bool

	s.mu.Lock()
	if oldRoomID, ok := s.sessions[sessionID]; ok && oldRoomID != roomID {
		snap, reaped := s.leaveLocked(oldRoomID, sessionID)
		evictedRoom, evictedReaped = oldRoomID, reaped
		if snap != nil {
			events = append(events, outbound{roomID: oldRoomID, msgType: MsgRoomUpdate, payload: snap})
		}
	}

	room, ok := s.rooms[roomID]
	if !ok {
		room = &model.Room{
			ID:      roomID,
			Text:    s.gen.Generate(textgen.ModeWords, textgen.DefaultSize),
			Status:  model.RoomWaiting,
			Players: make(map[string]*model.Player),
		}
		s.rooms[roomID] = room
		log.Printf("room %s created", roomID)
	}

	room.Players[sessionID] = &model.Player{SessionID: sessionID, Username: username}
	s.sessions[sessionID] = roomID
	snap := room.Snapshot()
	s.dropFromLeaderboard(ctx, evictedRoom, sessionID, evictedReaped)
	s.updateLeaderboard(ctx, roomID, sessionID, 0)
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.BindSession(sessionID, roomID)
	}

	events = append(events,
		outbound{sessionID: sessionID, msgType: MsgJoinedRoom},
		outbound{roomID: roomID, msgType: MsgRoomUpdate, payload: snap},
	)
	s.emit(events)

	log.Printf("session %s joined room %s as %q", sessionID, roomID, username)
}

// StartRace begins a new race in the session's room: fresh text, then a
// 3,2,1,0 countdown at the tick interval, then the race itself. Rejected
// while a countdown or race is already in flight. A count of zero means
// the default size; a mode other than "sentences" means words.
func (s *RoomService) StartRace(sessionID string, count int, mode string) bool {
	s.mu.Lock()
	roomID, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	room, ok := s.rooms[roomID]
	if !ok || room.Status != model.RoomWaiting {
		s.mu.Unlock()
		return false
	}

	size := textgen.DefaultSize
	if count != 0 {
		size = textgen.ClampSize(count)
	}
	genMode := textgen.ParseMode(mode)
	room.Text = s.gen.Generate(genMode, size)
	room.Status = model.RoomCountdown

	cancel := make(chan struct{})
	s.countdowns[roomID] = cancel
	s.mu.Unlock()

	log.Printf("room %s: race requested (%s, size %d)", roomID, genMode, size)
	go s.runCountdown(roomID, cancel)
	return true
}

// runCountdown broadcasts the 3..0 ticks, then promotes the room to racing
// one interval after the zero tick. Cancelled when the room is reaped. The
// cancel channel doubles as the goroutine's identity: a reaped room can be
// recreated and a new countdown registered before this goroutine observes
// the close, so every tick and the promotion re-check under the lock that
// this channel is still the room's registered countdown.
func (s *RoomService) runCountdown(roomID string, cancel <-chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	n := countdownStart
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			if n >= 0 {
				if !s.emitTick(roomID, cancel, n) {
					return
				}
				n--
				continue
			}
			text, ok := s.beginRace(roomID, cancel)
			if ok {
				s.emit([]outbound{{roomID: roomID, msgType: MsgRaceStart, payload: text}})
			}
			return
		}
	}
}

// emitTick broadcasts one countdown tick. The ownership check and the
// broadcast share the lock so a reap cannot land between them; reports
// false once the room's registered countdown is no longer this one.
func (s *RoomService) emitTick(roomID string, cancel <-chan struct{}, n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countdowns[roomID] != cancel {
		return false
	}
	s.emit([]outbound{{roomID: roomID, msgType: MsgCountdown, payload: n}})
	return true
}

// beginRace stamps every current player with the same start instant and
// moves the room to racing. Returns false if the room vanished, or this
// goroutine's countdown was superseded, while the ticks were running.
func (s *RoomService) beginRace(roomID string, cancel <-chan struct{}) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || room.Status != model.RoomCountdown || s.countdowns[roomID] != cancel {
		return "", false
	}
	delete(s.countdowns, roomID)

	now := time.Now()
	for _, p := range room.Players {
		t := now
		p.StartTime = &t
	}
	room.Status = model.RoomRacing
	log.Printf("room %s: race started with %d players", roomID, len(room.Players))
	return room.Text, true
}

// Progress records a client's reported position and rebroadcasts the room.
// When a racing player reaches the end of the text the race is finished on
// the spot: the room returns to waiting and a raceFinished broadcast
// carries the winner and the full ranking.
func (s *RoomService) Progress(ctx context.Context, sessionID string, chars, errors int) {
	s.mu.Lock()
	roomID, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	room, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return
	}
	player, ok := room.Players[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}

	applyProgress(player, chars, errors)

	var result *model.RaceResult
	if room.Status == model.RoomRacing && player.Chars >= len(room.Text) {
		result = finishRaceLocked(room, sessionID)
	}
	snap := room.Snapshot()
	s.updateLeaderboard(ctx, roomID, sessionID, player.Chars)
	s.mu.Unlock()

	events := []outbound{{roomID: roomID, msgType: MsgRoomUpdate, payload: snap}}
	if result != nil {
		events = append(events, outbound{roomID: roomID, msgType: MsgRaceFinished, payload: result})
		log.Printf("room %s: race won by %q", roomID, result.Winner)
	}
	s.emit(events)
}

// applyProgress stores client-reported progress verbatim. This is the
// single seam where a stricter validation policy would go.
func applyProgress(p *model.Player, chars, errors int) {
	p.Chars = chars
	p.Errors = errors
}

// finishRaceLocked ends the current race and ranks the field by chars
// typed, fewest errors breaking ties.
func finishRaceLocked(room *model.Room, winnerID string) *model.RaceResult {
	room.Status = model.RoomWaiting

	entries := make([]model.RankingEntry, 0, len(room.Players))
	for sid, p := range room.Players {
		entries = append(entries, model.RankingEntry{
			SessionID: sid,
			Username:  p.Username,
			Chars:     p.Chars,
			Errors:    p.Errors,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Chars != entries[j].Chars {
			return entries[i].Chars > entries[j].Chars
		}
		if entries[i].Errors != entries[j].Errors {
			return entries[i].Errors < entries[j].Errors
		}
		return entries[i].Username < entries[j].Username
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return &model.RaceResult{
		WinnerID: winnerID,
		Winner:   room.Players[winnerID].Username,
		Ranking:  entries,
	}
}

// Disconnect removes the session from its room and clears the binding.
// Safe to call for sessions that never joined anything.
func (s *RoomService) Disconnect(ctx context.Context, sessionID string) {
	s.mu.Lock()
	roomID, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	snap, reaped := s.leaveLocked(roomID, sessionID)
	s.dropFromLeaderboard(ctx, roomID, sessionID, reaped)
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.UnbindSession(sessionID)
	}

	if snap != nil {
		s.emit([]outbound{{roomID: roomID, msgType: MsgRoomUpdate, payload: snap}})
	}
	log.Printf("session %s left room %s", sessionID, roomID)
}

// leaveLocked removes the player and reaps the room if it is now empty,
// cancelling any countdown still pending. A nil snapshot with reaped false
// means the session was not actually in the room.
func (s *RoomService) leaveLocked(roomID, sessionID string) (*model.RoomSnapshot, bool) {
	room, ok := s.rooms[roomID]
	if !ok {
		delete(s.sessions, sessionID)
		return nil, false
	}
	if _, ok := room.Players[sessionID]; !ok {
		delete(s.sessions, sessionID)
		return nil, false
	}

	delete(room.Players, sessionID)
	delete(s.sessions, sessionID)

	if len(room.Players) == 0 {
		if cancel, ok := s.countdowns[roomID]; ok {
			close(cancel)
			delete(s.countdowns, roomID)
		}
		delete(s.rooms, roomID)
		log.Printf("room %s reaped", roomID)
		return nil, true
	}
	return room.Snapshot(), false
}

// GetSnapshot returns a copy of the room state for read-only callers.
func (s *RoomService) GetSnapshot(roomID string) (*model.RoomSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	return room.Snapshot(), true
}

// updateLeaderboard mirrors a score into Redis. Called with the mutex held
// so scores reach Redis in the order the room state took them.
func (s *RoomService) updateLeaderboard(ctx context.Context, roomID, sessionID string, chars int) {
	if s.leaderboard == nil || roomID == "" {
		return
	}
	if err := s.leaderboard.UpdateScore(ctx, roomID, sessionID, chars); err != nil {
		log.Printf("leaderboard update failed for room %s: %v", roomID, err)
	}
}

// dropFromLeaderboard removes a departed session's entry, or the whole key
// when the room was reaped. Called with the mutex held.
func (s *RoomService) dropFromLeaderboard(ctx context.Context, roomID, sessionID string, reaped bool) {
	if s.leaderboard == nil || roomID == "" {
		return
	}
	var err error
	if reaped {
		err = s.leaderboard.Delete(ctx, roomID)
	} else {
		err = s.leaderboard.Remove(ctx, roomID, sessionID)
	}
	if err != nil {
		log.Printf("leaderboard cleanup failed for room %s: %v", roomID, err)
	}
}
