// Package hub owns the code -> lobby map. One goroutine serializes lobby
// creation, lookup and removal, and runs the periodic idle sweep, so a
// lobby can never be removed mid-handler.
package hub

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/kanabomb/server/internal/game"
	"github.com/kanabomb/server/internal/lobby"
)

const codeLength = 4

type HubMsg interface{ isHubMsg() }

// CreateLobby allocates a fresh lobby under a collision-free random code.
type CreateLobby struct {
	Reply chan *lobby.Lobby
}

// GetLobby replies with the lobby for Code, or nil.
type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby shuts the lobby down and forgets its code.
type RemoveLobby struct{ Code string }

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby

	newSession func() *game.Session
	ttl        time.Duration
	sweepEvery time.Duration

	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub starts the registry. newSession builds the per-lobby game state;
// lobbies with no connections are swept once idle for longer than ttl.
func NewHub(parent context.Context, newSession func() *game.Session, ttl, sweepEvery time.Duration, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:      make(chan HubMsg, 64),
		lobbies:    make(map[string]*lobby.Lobby),
		newSession: newSession,
		ttl:        ttl,
		sweepEvery: sweepEvery,
		log:        log.Named("hub"),
		ctx:        ctx,
		cancel:     cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	ticker := time.NewTicker(h.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case <-ticker.C:
			h.sweep()

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create()

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // may be nil

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					lb.Inbox() <- lobby.Shutdown{}
					delete(h.lobbies, msg.Code)
					h.log.Info("lobby removed", zap.String("lobby", msg.Code))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create() *lobby.Lobby {
	var code string
	for {
		c, err := generateCode()
		if err != nil {
			h.log.Error("generate lobby code", zap.Error(err))
			return nil
		}
		if _, taken := h.lobbies[c]; !taken {
			code = c
			break
		}
	}

	remove := func() { h.inbox <- RemoveLobby{Code: code} }
	lb := lobby.NewLobby(h.ctx, code, h.newSession(), h.log, remove)
	h.lobbies[code] = lb
	h.log.Info("lobby created", zap.String("lobby", code))
	return lb
}

// sweep removes lobbies with no connections that have been idle past the
// ttl. Views are fetched with a short timeout so one wedged lobby cannot
// stall the hub.
func (h *Hub) sweep() {
	now := time.Now()
	for code, lb := range h.lobbies {
		reply := make(chan lobby.View, 1)
		lb.Inbox() <- lobby.GetView{Reply: reply}

		var view lobby.View
		select {
		case view = <-reply:
		case <-time.After(time.Second):
			continue
		}

		if view.NumConns == 0 && now.Sub(view.LastActive) > h.ttl {
			lb.Inbox() <- lobby.Shutdown{}
			delete(h.lobbies, code)
			h.log.Info("idle lobby swept", zap.String("lobby", code))
		}
	}
}

func (h *Hub) shutdown() {
	for code, lb := range h.lobbies {
		lb.Inbox() <- lobby.Shutdown{}
		delete(h.lobbies, code)
	}
	h.cancel()
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}
