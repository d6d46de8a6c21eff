package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typerace/internal/cache"
	"typerace/internal/corpus"
	"typerace/internal/model"
	"typerace/internal/service"
	"typerace/internal/textgen"
)

type recordedEvent struct {
	SessionID string
	RoomID    string
	Type      string
	Payload   interface{}
}

// fakeBroadcaster records everything the service emits.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeBroadcaster) SendToSession(sessionID, msgType string, payload interface{}) {
	f.record(recordedEvent{SessionID: sessionID, Type: msgType, Payload: payload})
}

func (f *fakeBroadcaster) BroadcastToRoom(roomID, msgType string, payload interface{}) {
	f.record(recordedEvent{RoomID: roomID, Type: msgType, Payload: payload})
}

func (f *fakeBroadcaster) BindSession(sessionID, roomID string) {}
func (f *fakeBroadcaster) UnbindSession(sessionID string)       {}

func (f *fakeBroadcaster) record(e recordedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeBroadcaster) ofType(msgType string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, e := range f.events {
		if e.Type == msgType {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeBroadcaster) count(msgType string) int {
	return len(f.ofType(msgType))
}

func newTestService(t *testing.T, opts ...service.Option) (*service.RoomService, *fakeBroadcaster) {
	t.Helper()
	gen := textgen.New(corpus.Default(), nil)
	opts = append([]service.Option{service.WithCountdownInterval(5 * time.Millisecond)}, opts...)
	svc := service.NewRoomService(gen, opts...)
	fb := &fakeBroadcaster{}
	svc.SetBroadcaster(fb)
	return svc, fb
}

// startAndAwaitRace gets a race running and returns the broadcast text.
func startAndAwaitRace(t *testing.T, svc *service.RoomService, fb *fakeBroadcaster, sessionID string, count int, mode string) string {
	t.Helper()
	before := fb.count(service.MsgRaceStart)
	require.True(t, svc.StartRace(sessionID, count, mode))
	require.Eventually(t, func() bool {
		return fb.count(service.MsgRaceStart) > before
	}, 2*time.Second, 2*time.Millisecond)
	starts := fb.ofType(service.MsgRaceStart)
	return starts[len(starts)-1].Payload.(string)
}

func TestJoinCreatesRoom(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")

	snap, ok := svc.GetSnapshot("r1")
	require.True(t, ok)
	assert.Equal(t, model.RoomWaiting, snap.Status)
	assert.False(t, snap.Started)
	assert.Len(t, strings.Fields(snap.Text), textgen.DefaultSize, "room starts with a default text")

	require.Contains(t, snap.Players, "s1")
	assert.Equal(t, "alice", snap.Players["s1"].Username)
	assert.Zero(t, snap.Players["s1"].Chars)
	assert.Zero(t, snap.Players["s1"].Errors)
	assert.Nil(t, snap.Players["s1"].StartTime)

	acks := fb.ofType(service.MsgJoinedRoom)
	require.Len(t, acks, 1)
	assert.Equal(t, "s1", acks[0].SessionID)

	updates := fb.ofType(service.MsgRoomUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "r1", updates[0].RoomID)
}

func TestJoinBlankFieldsIgnored(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "", "alice")
	svc.Join(ctx, "s1", "r1", "")

	_, ok := svc.GetSnapshot("r1")
	assert.False(t, ok)
	assert.Empty(t, fb.events)
}

func TestSecondJoinSharesRoom(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	svc.Join(ctx, "s2", "r1", "bob")

	snap, ok := svc.GetSnapshot("r1")
	require.True(t, ok)
	assert.Len(t, snap.Players, 2)
}

func TestRejoinDifferentRoomEvicts(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	svc.Join(ctx, "s2", "r1", "bob")
	svc.Join(ctx, "s2", "r2", "bob")

	snap1, ok := svc.GetSnapshot("r1")
	require.True(t, ok)
	assert.NotContains(t, snap1.Players, "s2", "bob left r1 on joining r2")

	snap2, ok := svc.GetSnapshot("r2")
	require.True(t, ok)
	assert.Contains(t, snap2.Players, "s2")

	// r1's remaining member saw the departure.
	var sawOneLeft bool
	for _, e := range fb.ofType(service.MsgRoomUpdate) {
		if e.RoomID == "r1" {
			if s, ok := e.Payload.(*model.RoomSnapshot); ok && len(s.Players) == 1 {
				sawOneLeft = true
			}
		}
	}
	assert.True(t, sawOneLeft)
}

func TestRejoinOnlyMemberReapsOldRoom(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	svc.Join(ctx, "s1", "r2", "alice")

	_, ok := svc.GetSnapshot("r1")
	assert.False(t, ok, "empty room is reaped")
	_, ok = svc.GetSnapshot("r2")
	assert.True(t, ok)
}

func TestStartRaceCountdownSequence(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	svc.Join(ctx, "s2", "r1", "bob")

	text := startAndAwaitRace(t, svc, fb, "s1", 10, "")
	assert.Len(t, strings.Fields(text), 10)

	var ticks []int
	for _, e := range fb.ofType(service.MsgCountdown) {
		ticks = append(ticks, e.Payload.(int))
	}
	assert.Equal(t, []int{3, 2, 1, 0}, ticks)
	assert.Equal(t, 1, fb.count(service.MsgRaceStart))

	snap, ok := svc.GetSnapshot("r1")
	require.True(t, ok)
	assert.Equal(t, model.RoomRacing, snap.Status)
	assert.True(t, snap.Started)
	assert.Equal(t, text, snap.Text)

	require.NotNil(t, snap.Players["s1"].StartTime)
	require.NotNil(t, snap.Players["s2"].StartTime)
	assert.True(t, snap.Players["s1"].StartTime.Equal(*snap.Players["s2"].StartTime),
		"all players share the same race epoch")
}

func TestStartRaceRejectedWhileInFlight(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	require.True(t, svc.StartRace("s1", 10, ""))
	textDuringCountdown, _ := svc.GetSnapshot("r1")

	// Countdown in flight.
	assert.False(t, svc.StartRace("s1", 20, ""))

	require.Eventually(t, func() bool {
		return fb.count(service.MsgRaceStart) == 1
	}, 2*time.Second, 2*time.Millisecond)

	// Race in flight.
	assert.False(t, svc.StartRace("s1", 20, ""))

	snap, _ := svc.GetSnapshot("r1")
	assert.Equal(t, textDuringCountdown.Text, snap.Text, "rejected startRace must not touch the text")
	assert.Equal(t, 4, fb.count(service.MsgCountdown), "no second countdown")
}

func TestStartRaceSizeAndMode(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		mode      string
		wantWords int
		wantDots  int
	}{
		{"default size", 0, "", textgen.DefaultSize, 0},
		{"clamped low", 2, "", textgen.MinSize, 0},
		{"clamped high", 999, "", textgen.MaxSize, 0},
		{"sentences", 6, "sentences", 0, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fb := newTestService(t)
			ctx := context.Background()
			sid := "s1"
			svc.Join(ctx, sid, "room", "alice")

			text := startAndAwaitRace(t, svc, fb, sid, tt.count, tt.mode)
			if tt.wantDots > 0 {
				assert.Equal(t, tt.wantDots, strings.Count(text, "."))
			} else {
				assert.Len(t, strings.Fields(text), tt.wantWords)
			}
		})
	}
}

func TestStartRaceWithoutJoinRejected(t *testing.T) {
	svc, _ := newTestService(t)
	assert.False(t, svc.StartRace("ghost", 10, ""))
}

func TestProgressIdempotentVisible(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	svc.Progress(ctx, "s1", 5, 1)

	snap, _ := svc.GetSnapshot("r1")
	assert.Equal(t, 5, snap.Players["s1"].Chars)
	assert.Equal(t, 1, snap.Players["s1"].Errors)

	svc.Progress(ctx, "s1", 5, 1)
	again, _ := svc.GetSnapshot("r1")
	assert.Equal(t, snap.Players["s1"], again.Players["s1"])

	// Every progress report rebroadcasts, even a repeated one.
	assert.Equal(t, 3, fb.count(service.MsgRoomUpdate))
}

func TestProgressUnknownSessionNoop(t *testing.T) {
	svc, fb := newTestService(t)
	svc.Progress(context.Background(), "ghost", 10, 0)
	assert.Empty(t, fb.events)
}

func TestRaceCompletion(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	svc.Join(ctx, "s2", "r1", "bob")
	text := startAndAwaitRace(t, svc, fb, "s1", 10, "")

	svc.Progress(ctx, "s2", 4, 2)
	svc.Progress(ctx, "s1", len(text), 0)

	finishes := fb.ofType(service.MsgRaceFinished)
	require.Len(t, finishes, 1)
	result := finishes[0].Payload.(*model.RaceResult)
	assert.Equal(t, "s1", result.WinnerID)
	assert.Equal(t, "alice", result.Winner)
	require.Len(t, result.Ranking, 2)
	assert.Equal(t, "s1", result.Ranking[0].SessionID)
	assert.Equal(t, 1, result.Ranking[0].Rank)
	assert.Equal(t, "s2", result.Ranking[1].SessionID)
	assert.Equal(t, 2, result.Ranking[1].Rank)

	snap, _ := svc.GetSnapshot("r1")
	assert.Equal(t, model.RoomWaiting, snap.Status, "finished race returns the room to waiting")

	// A straggler crossing the line later does not finish a second race.
	svc.Progress(ctx, "s2", len(text), 2)
	assert.Equal(t, 1, fb.count(service.MsgRaceFinished))

	// And a new race may now be requested.
	assert.True(t, svc.StartRace("s2", 10, ""))
}

func TestJoinMidRaceHasNilStartTime(t *testing.T) {
	svc, fb := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	startAndAwaitRace(t, svc, fb, "s1", 10, "")

	svc.Join(ctx, "s2", "r1", "bob")

	snap, _ := svc.GetSnapshot("r1")
	assert.NotNil(t, snap.Players["s1"].StartTime)
	assert.Nil(t, snap.Players["s2"].StartTime, "mid-race joiner waits for the next race")
	assert.Equal(t, model.RoomRacing, snap.Status)
}

func TestDisconnectRemovesOnlyThatPlayer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	svc.Join(ctx, "s2", "r1", "bob")
	svc.Progress(ctx, "s1", 7, 1)

	svc.Disconnect(ctx, "s2")

	snap, ok := svc.GetSnapshot("r1")
	require.True(t, ok)
	assert.NotContains(t, snap.Players, "s2")
	assert.Equal(t, 7, snap.Players["s1"].Chars)
	assert.Equal(t, 1, snap.Players["s1"].Errors)

	// The departed session's binding is gone.
	assert.False(t, svc.StartRace("s2", 10, ""))
}

func TestDisconnectLastPlayerReapsRoom(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	svc.Disconnect(ctx, "s1")

	_, ok := svc.GetSnapshot("r1")
	assert.False(t, ok)
}

func TestCountdownAfterReapAndRejoin(t *testing.T) {
	svc, fb := newTestService(t, service.WithCountdownInterval(20*time.Millisecond))
	ctx := context.Background()

	// Reap a room mid-countdown, then recreate it and start a new race
	// inside the old goroutine's tick interval. The new race must see one
	// clean countdown with nothing bleeding in from the cancelled one.
	svc.Join(ctx, "s1", "r1", "alice")
	require.True(t, svc.StartRace("s1", 10, ""))
	svc.Disconnect(ctx, "s1")

	svc.Join(ctx, "s2", "r1", "bob")
	seen := fb.count(service.MsgCountdown)
	text := startAndAwaitRace(t, svc, fb, "s2", 10, "")

	var ticks []int
	for _, e := range fb.ofType(service.MsgCountdown)[seen:] {
		ticks = append(ticks, e.Payload.(int))
	}
	assert.Equal(t, []int{3, 2, 1, 0}, ticks)
	assert.Equal(t, 1, fb.count(service.MsgRaceStart))

	snap, ok := svc.GetSnapshot("r1")
	require.True(t, ok)
	assert.Equal(t, model.RoomRacing, snap.Status)
	assert.Equal(t, text, snap.Text)
}

// fakeLeaderboard records every score pushed at it, in arrival order.
type fakeLeaderboard struct {
	mu     sync.Mutex
	scores []int
}

func (f *fakeLeaderboard) UpdateScore(ctx context.Context, roomID, sessionID string, chars int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = append(f.scores, chars)
	return nil
}

func (f *fakeLeaderboard) Remove(ctx context.Context, roomID, sessionID string) error { return nil }
func (f *fakeLeaderboard) Delete(ctx context.Context, roomID string) error            { return nil }

func (f *fakeLeaderboard) GetTop(ctx context.Context, roomID string, limit int) ([]cache.LeaderboardEntry, error) {
	return nil, nil
}

func (f *fakeLeaderboard) last() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scores) == 0 {
		return -1
	}
	return f.scores[len(f.scores)-1]
}

func TestLeaderboardFollowsProgressOrder(t *testing.T) {
	lb := &fakeLeaderboard{}
	svc, _ := newTestService(t, service.WithLeaderboard(lb))
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")

	// Concurrent reports may apply in either order, but the score that
	// reaches the leaderboard last must match the room state.
	for i := 0; i < 25; i++ {
		var wg sync.WaitGroup
		for _, chars := range []int{2 * i, 2*i + 1} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				svc.Progress(ctx, "s1", chars, 0)
			}()
		}
		wg.Wait()

		snap, ok := svc.GetSnapshot("r1")
		require.True(t, ok)
		assert.Equal(t, snap.Players["s1"].Chars, lb.last())
	}
}

func TestReapCancelsPendingCountdown(t *testing.T) {
	svc, fb := newTestService(t, service.WithCountdownInterval(50*time.Millisecond))
	ctx := context.Background()

	svc.Join(ctx, "s1", "r1", "alice")
	require.True(t, svc.StartRace("s1", 10, ""))
	svc.Disconnect(ctx, "s1")

	_, ok := svc.GetSnapshot("r1")
	assert.False(t, ok)

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, fb.count(service.MsgRaceStart), "cancelled countdown must not start a race")
}
