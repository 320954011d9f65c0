// Package lobby runs one goroutine per lobby that owns the game session,
// the socket bindings and the device map. All mutation happens inside the
// loop, so the session needs no locks: the inbox serializes every handler.
package lobby

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kanabomb/server/internal/game"
	"github.com/kanabomb/server/internal/protocol"
	"github.com/kanabomb/server/internal/words"
)

type Msg interface{ isLobbyMsg() }

// Join attaches a socket to the lobby. The socket stays unbound until the
// client sends a join or reconnect command.
type Join struct {
	ConnID string
	Outbox chan []byte // marshaled frames for this client's writer
}

// Leave detaches a socket. Never mutates the roster.
type Leave struct{ ConnID string }

// FromClient carries one decoded command from a connected socket.
type FromClient struct {
	ConnID string
	Cmd    protocol.Command
}

// GetView asks for a race-free peek at lobby internals (sweeper and tests).
type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Join) isLobbyMsg()       {}
func (Leave) isLobbyMsg()      {}
func (FromClient) isLobbyMsg() {}
func (GetView) isLobbyMsg()    {}
func (Shutdown) isLobbyMsg()   {}

type View struct {
	NumConns   int
	LastActive time.Time
	State      game.State
}

type Lobby struct {
	code    string
	inbox   chan Msg
	session *game.Session

	outboxes map[string]chan []byte  // connID -> writer channel
	bindings map[string]*game.Player // connID -> player, weak
	devices  map[string]*game.Player // deviceID -> player, survives sockets

	lastActive time.Time
	onEmpty    func() // tells the hub the roster emptied

	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewLobby(parent context.Context, code string, session *game.Session, log *zap.Logger, onEmpty func()) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		code:       code,
		inbox:      make(chan Msg, 64),
		session:    session,
		outboxes:   make(map[string]chan []byte),
		bindings:   make(map[string]*game.Player),
		devices:    make(map[string]*game.Player),
		lastActive: time.Now(),
		onEmpty:    onEmpty,
		log:        log.With(zap.String("lobby", code)),
		ctx:        ctx,
		cancel:     cancel,
	}

	go l.loop()
	return l
}

// Inbox exposes the message channel to the ws layer, the hub and tests.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done closes once the lobby goroutine has exited, so senders can bail out
// instead of blocking on an inbox nobody drains.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

func (l *Lobby) Code() string { return l.code }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.outboxes[msg.ConnID] = msg.Outbox
				l.lastActive = time.Now()

			case Leave:
				l.unbind(msg.ConnID)

			case FromClient:
				l.lastActive = time.Now()
				l.handle(msg.ConnID, msg.Cmd)

			case GetView:
				msg.Reply <- View{
					NumConns:   len(l.outboxes),
					LastActive: l.lastActive,
					State:      l.session.Snapshot(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// handle dispatches one client command. Unbound senders may only join,
// reconnect or request state; everything else from them is dropped without
// a broadcast.
func (l *Lobby) handle(connID string, cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.Join:
		if p, ok := l.devices[c.DeviceID]; ok {
			// known device: rebind this socket and take the new name
			p.Name = c.Name
			l.rebind(connID, p)
			l.broadcastState()
			return
		}
		p := game.NewPlayer(c.Name, c.DeviceID, l.session.StartingLives())
		l.session.AddPlayer(p)
		l.bindings[connID] = p
		l.devices[c.DeviceID] = p
		l.broadcastState()

	case protocol.Start:
		if l.session.PlayerCount() == 0 {
			return
		}
		if !l.session.Active() {
			l.session.RestartGame()
		}
		l.broadcastState()

	case protocol.Submit:
		p := l.bindings[connID]
		if p == nil || !l.session.Active() || p != l.session.CurrentPlayer() {
			return
		}
		if l.session.SubmitWord(c.Word) {
			l.session.AdvanceTurn()
		}
		l.broadcastState()

	case protocol.Reconnect:
		if p, ok := l.devices[c.DeviceID]; ok {
			l.rebind(connID, p)
		}
		l.broadcastState()

	case protocol.Timeout:
		// the roster can empty mid-round (last player leaves while a
		// mid-game joiner sits in the queue); there is no turn to expire
		if !l.session.Active() || l.bindings[connID] == nil || l.session.CurrentPlayer() == nil {
			return
		}
		l.session.CurrentPlayer().LoseLife()
		if w := l.session.CheckWinner(); w != nil {
			l.log.Info("round over", zap.String("winner", w.Name))
			l.broadcastState()
			return
		}
		l.session.AdvanceTurn()
		l.broadcastState()

	case protocol.ReturnToLobby:
		clear(l.devices)
		clear(l.bindings)
		l.session.ResetToLobby()
		l.broadcast(protocol.ForceReturnToLobby())

	case protocol.Restart:
		if l.session.PlayerCount() == 0 {
			return
		}
		l.session.RestartGame()
		l.broadcastState()

	case protocol.LeaveLobby:
		if p, ok := l.devices[c.DeviceID]; ok {
			l.session.RemovePlayer(p.Name)
			delete(l.devices, c.DeviceID)
			l.unbind(connID)
		}
		if l.session.PlayerCount() == 0 {
			l.log.Info("lobby emptied")
			l.onEmpty()
		}
		l.broadcastState()

	case protocol.ChangeSettings:
		l.session.ChangeSettings(c.Lives, c.TimeLimit, c.TurnsBeforeChange, words.ParseTier(c.Difficulty))
		l.broadcastState()

	case protocol.RequestState:
		l.send(connID, l.stateFrame())
	}
}

// rebind points the player's socket binding at connID, detaching any socket
// previously bound to the same player.
func (l *Lobby) rebind(connID string, p *game.Player) {
	for id, bound := range l.bindings {
		if bound == p {
			delete(l.bindings, id)
		}
	}
	l.bindings[connID] = p
}

// unbind drops a socket's outbox and binding. The roster and device map are
// untouched, so the identity survives for reconnects.
func (l *Lobby) unbind(connID string) {
	if out, ok := l.outboxes[connID]; ok {
		close(out)
		delete(l.outboxes, connID)
	}
	delete(l.bindings, connID)
}

func (l *Lobby) stateFrame() []byte {
	frame, err := json.Marshal(l.session.Snapshot())
	if err != nil {
		l.log.Error("marshal snapshot", zap.Error(err))
		return nil
	}
	return frame
}

func (l *Lobby) broadcastState() {
	l.broadcast(l.stateFrame())
}

// broadcast fans one frame out to every socket. A client whose outbox is
// full is dropped so it can never stall delivery to the rest.
func (l *Lobby) broadcast(frame []byte) {
	if frame == nil {
		return
	}
	for id, out := range l.outboxes {
		select {
		case out <- frame:
		default:
			l.drop(id)
		}
	}
}

func (l *Lobby) send(connID string, frame []byte) {
	out, ok := l.outboxes[connID]
	if frame == nil || !ok {
		return
	}
	select {
	case out <- frame:
	default:
		l.drop(connID)
	}
}

func (l *Lobby) drop(connID string) {
	l.log.Warn("dropping slow client", zap.String("conn", connID))
	if out, ok := l.outboxes[connID]; ok {
		close(out)
		delete(l.outboxes, connID)
	}
	delete(l.bindings, connID)
}

func (l *Lobby) shutdown() {
	for id, out := range l.outboxes {
		close(out)
		delete(l.outboxes, id)
	}
	clear(l.bindings)
	clear(l.devices)
	l.cancel()
}
