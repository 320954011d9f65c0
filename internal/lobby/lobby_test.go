package lobby

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kanabomb/server/internal/game"
	"github.com/kanabomb/server/internal/protocol"
	"github.com/kanabomb/server/internal/words"
)

var testDict = words.Dictionary{
	'か': {"かたな": {}, "かい": {}},
	'さ': {"さくら": {}},
}

var testPatterns = words.Patterns{
	words.TierEasy:   {"か"},
	words.TierMedium: {"かい"},
	words.TierHard:   {"か"},
}

func newTestLobby(t *testing.T, onEmpty func()) *Lobby {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if onEmpty == nil {
		onEmpty = func() {}
	}
	session := game.NewSession(testDict, testPatterns, game.WithRand(func(n int) int { return 0 }))
	return NewLobby(ctx, "TEST", session, zap.NewNop(), onEmpty)
}

// helpers: receive with a timeout so tests never hang

func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) []byte {
	t.Helper()
	select {
	case frame, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return frame
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return nil // unreachable
	}
}

func recvState(t *testing.T, ch <-chan []byte, within time.Duration) game.State {
	t.Helper()
	var state game.State
	if err := json.Unmarshal(recvFrame(t, ch, within), &state); err != nil {
		t.Fatalf("decode state frame: %v", err)
	}
	return state
}

func recvNoFrame(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	select {
	case frame, ok := <-ch:
		if !ok {
			return // closed is fine, nothing more can arrive
		}
		t.Fatalf("expected no frame within %v, got %s", within, frame)
	case <-time.After(within):
	}
}

func recvView(t *testing.T, l *Lobby, within time.Duration) View {
	t.Helper()
	reply := make(chan View, 1)
	l.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

// attach wires a fake socket and, when name is non-empty, joins the game
// with it, draining the join broadcast from every channel in drain.
func attach(t *testing.T, l *Lobby, connID, name, deviceID string, drain ...chan []byte) chan []byte {
	t.Helper()
	out := make(chan []byte, 8)
	l.Inbox() <- Join{ConnID: connID, Outbox: out}
	if name != "" {
		l.Inbox() <- FromClient{ConnID: connID, Cmd: protocol.Join{Name: name, DeviceID: deviceID}}
		_ = recvState(t, out, time.Second)
		for _, ch := range drain {
			_ = recvState(t, ch, time.Second)
		}
	}
	return out
}

func TestLobby_JoinBroadcastsRoster(t *testing.T) {
	l := newTestLobby(t, nil)

	out1 := attach(t, l, "c1", "", "")
	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Join{Name: "aki", DeviceID: "d1"}}

	state := recvState(t, out1, time.Second)
	if state.Started {
		t.Fatalf("game should be inactive before start")
	}
	if len(state.Players) != 1 || state.Players[0].Name != "aki" {
		t.Fatalf("want roster [aki], got %+v", state.Players)
	}
	if state.HostID == nil || *state.HostID != "d1" {
		t.Fatalf("want host d1, got %v", state.HostID)
	}
}

func TestLobby_StartThenSubmitAdvancesTurn(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")
	out2 := attach(t, l, "c2", "ben", "d2", out1)

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Start{}}
	started := recvState(t, out1, time.Second)
	_ = recvState(t, out2, time.Second)

	if !started.Started {
		t.Fatalf("game did not start")
	}
	// rand stub picks index 0, the baked-in advance lands on index 1
	if started.CurrentPlayerName != "ben" {
		t.Fatalf("want ben to open, got %q", started.CurrentPlayerName)
	}

	l.Inbox() <- FromClient{ConnID: "c2", Cmd: protocol.Submit{Word: "かたな"}}
	next := recvState(t, out2, time.Second)
	_ = recvState(t, out1, time.Second)

	if next.LastError != "" {
		t.Fatalf("unexpected rejection: %q", next.LastError)
	}
	if next.CurrentPlayerName != "aki" {
		t.Fatalf("turn should pass to aki, got %q", next.CurrentPlayerName)
	}
}

func TestLobby_RejectedSubmitBroadcastsError(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")
	out2 := attach(t, l, "c2", "ben", "d2", out1)

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Start{}}
	_ = recvState(t, out1, time.Second)
	_ = recvState(t, out2, time.Second)

	// pattern is か; さくら does not contain it
	l.Inbox() <- FromClient{ConnID: "c2", Cmd: protocol.Submit{Word: "さくら"}}
	state := recvState(t, out2, time.Second)

	if state.LastError != game.MsgWrongPattern {
		t.Fatalf("want %q, got %q", game.MsgWrongPattern, state.LastError)
	}
	if state.CurrentPlayerName != "ben" {
		t.Fatalf("turn must not advance on rejection")
	}
}

func TestLobby_SubmitIgnoredFromWrongSender(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")
	out2 := attach(t, l, "c2", "ben", "d2", out1)
	unbound := attach(t, l, "c3", "", "")

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Start{}}
	_ = recvState(t, out1, time.Second)
	_ = recvState(t, out2, time.Second)
	_ = recvState(t, unbound, time.Second)

	// ben has the turn: aki's socket and the unbound socket are ignored
	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Submit{Word: "かたな"}}
	l.Inbox() <- FromClient{ConnID: "c3", Cmd: protocol.Submit{Word: "かたな"}}

	recvNoFrame(t, out1, 200*time.Millisecond)
	recvNoFrame(t, out2, 50*time.Millisecond)
}

func TestLobby_ReconnectRebindsAndDetachesOldSocket(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")
	out2 := attach(t, l, "c2", "ben", "d2", out1)

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Start{}}
	_ = recvState(t, out1, time.Second)
	_ = recvState(t, out2, time.Second)

	// ben's device comes back on a new socket
	out3 := attach(t, l, "c3", "", "")
	l.Inbox() <- FromClient{ConnID: "c3", Cmd: protocol.Reconnect{DeviceID: "d2"}}
	_ = recvState(t, out1, time.Second)
	_ = recvState(t, out2, time.Second)
	_ = recvState(t, out3, time.Second)

	// the old socket is no longer bound to ben: its submit is ignored
	l.Inbox() <- FromClient{ConnID: "c2", Cmd: protocol.Submit{Word: "かたな"}}
	recvNoFrame(t, out1, 200*time.Millisecond)

	// the new socket holds the turn
	l.Inbox() <- FromClient{ConnID: "c3", Cmd: protocol.Submit{Word: "かたな"}}
	state := recvState(t, out3, time.Second)
	if state.LastError != "" || state.CurrentPlayerName != "aki" {
		t.Fatalf("rebound socket should play the turn, got %+v", state)
	}
}

func TestLobby_TimeoutCostsLifeAndAdvances(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")
	out2 := attach(t, l, "c2", "ben", "d2", out1)

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Start{}}
	_ = recvState(t, out1, time.Second)
	_ = recvState(t, out2, time.Second)

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Timeout{}}
	state := recvState(t, out1, time.Second)
	_ = recvState(t, out2, time.Second)

	// ben had the turn and pays for the timeout
	for _, p := range state.Players {
		want := 3
		if p.Name == "ben" {
			want = 2
		}
		if p.Lives != want {
			t.Fatalf("player %s: want %d lives, got %d", p.Name, want, p.Lives)
		}
	}
	if state.CurrentPlayerName != "aki" {
		t.Fatalf("turn should pass to aki, got %q", state.CurrentPlayerName)
	}
}

func TestLobby_TimeoutResolvesWinner(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")
	out2 := attach(t, l, "c2", "ben", "d2", out1)

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.ChangeSettings{
		Lives: 1, TimeLimit: 3 * time.Second, TurnsBeforeChange: 2, Difficulty: "easy",
	}}
	_ = recvState(t, out1, time.Second)
	_ = recvState(t, out2, time.Second)

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Start{}}
	_ = recvState(t, out1, time.Second)
	_ = recvState(t, out2, time.Second)

	// ben times out on one life: aki wins and the turn does not advance
	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Timeout{}}
	state := recvState(t, out1, time.Second)

	if state.Winner == nil || *state.Winner != "aki" {
		t.Fatalf("want winner aki, got %v", state.Winner)
	}
	recvNoFrame(t, out1, 100*time.Millisecond)
}

func TestLobby_RequestStateIsUnicast(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")
	out2 := attach(t, l, "c2", "ben", "d2", out1)

	l.Inbox() <- FromClient{ConnID: "c2", Cmd: protocol.RequestState{}}
	state := recvState(t, out2, time.Second)
	if len(state.Players) != 2 {
		t.Fatalf("want full roster in unicast state, got %+v", state.Players)
	}
	recvNoFrame(t, out1, 200*time.Millisecond)
}

func TestLobby_ReturnToLobbyBroadcastsControlFrame(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.ReturnToLobby{}}

	var control struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(recvFrame(t, out1, time.Second), &control); err != nil {
		t.Fatalf("decode control frame: %v", err)
	}
	if control.Type != "force_return_to_lobby" {
		t.Fatalf("want force_return_to_lobby, got %q", control.Type)
	}

	view := recvView(t, l, time.Second)
	if view.State.Started || len(view.State.Players) != 0 {
		t.Fatalf("session should be back in the empty lobby state, got %+v", view.State)
	}
}

func TestLobby_LeaveLastPlayerReportsEmpty(t *testing.T) {
	emptied := make(chan struct{})
	l := newTestLobby(t, func() { close(emptied) })
	out1 := attach(t, l, "c1", "aki", "d1")

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.LeaveLobby{DeviceID: "d1"}}

	select {
	case <-emptied:
	case <-time.After(time.Second):
		t.Fatalf("onEmpty was not called")
	}

	// the leaving socket's outbox is closed, never re-broadcast to
	if _, ok := <-out1; ok {
		t.Fatalf("expected closed outbox for departed socket")
	}
}

func TestLobby_TimeoutIgnoredAfterRosterEmpties(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")

	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.Start{}}
	_ = recvState(t, out1, time.Second)

	// mid-round joiner: queued until the next restart, but its socket is
	// bound immediately
	out2 := attach(t, l, "c2", "ben", "d2", out1)

	// the last roster player leaves, emptying the roster while the
	// session stays active
	l.Inbox() <- FromClient{ConnID: "c1", Cmd: protocol.LeaveLobby{DeviceID: "d1"}}
	_ = recvState(t, out2, time.Second)

	// with no current player there is no turn to expire or word to play:
	// both messages are dropped without a broadcast
	l.Inbox() <- FromClient{ConnID: "c2", Cmd: protocol.Timeout{}}
	l.Inbox() <- FromClient{ConnID: "c2", Cmd: protocol.Submit{Word: "かたな"}}
	recvNoFrame(t, out2, 200*time.Millisecond)

	view := recvView(t, l, time.Second)
	if !view.State.Started || len(view.State.Players) != 0 {
		t.Fatalf("expected active empty-roster session, got %+v", view.State)
	}
}

func TestLobby_DoneClosesAfterShutdown(t *testing.T) {
	l := newTestLobby(t, nil)

	l.Inbox() <- Shutdown{}

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatalf("done channel not closed after shutdown")
	}
}

func TestLobby_SlowClientIsDropped(t *testing.T) {
	l := newTestLobby(t, nil)

	// unbuffered outbox that nothing reads: first broadcast drops it
	slow := make(chan []byte)
	l.Inbox() <- Join{ConnID: "slow", Outbox: slow}
	l.Inbox() <- FromClient{ConnID: "slow", Cmd: protocol.Join{Name: "aki", DeviceID: "d1"}}

	view := recvView(t, l, time.Second)
	if view.NumConns != 0 {
		t.Fatalf("slow client should be dropped, NumConns=%d", view.NumConns)
	}
	if len(view.State.Players) != 1 {
		t.Fatalf("dropping a socket must not touch the roster, got %+v", view.State.Players)
	}
}

func TestLobby_ShutdownClosesOutboxes(t *testing.T) {
	l := newTestLobby(t, nil)
	out1 := attach(t, l, "c1", "aki", "d1")

	l.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out1:
		if ok {
			t.Fatalf("expected closed outbox")
		}
	case <-time.After(time.Second):
		t.Fatalf("outbox not closed on shutdown")
	}
}
