// Package ws bridges websocket connections to lobby actors: one reader
// loop feeding the lobby inbox and one writer goroutine draining the
// per-connection outbox.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kanabomb/server/internal/hub"
	"github.com/kanabomb/server/internal/lobby"
	"github.com/kanabomb/server/internal/protocol"
)

const (
	outboxSize   = 16
	writeTimeout = 3 * time.Second
)

// Handler upgrades GET /ws/{code} and ties the socket to that lobby for
// the connection's lifetime. Inbound frames beyond the rate limit are
// dropped, as are frames that fail to decode.
func Handler(h *hub.Hub, log *zap.Logger, msgRate rate.Limit, burst int) http.HandlerFunc {
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan []byte, outboxSize)

		// deliver drops the message once the lobby goroutine has exited,
		// so disconnect cleanup never blocks on a dead inbox
		deliver := func(m lobby.Msg) bool {
			select {
			case lb.Inbox() <- m:
				return true
			case <-lb.Done():
				return false
			}
		}

		if !deliver(lobby.Join{ConnID: connID, Outbox: out}) {
			return
		}
		defer deliver(lobby.Leave{ConnID: connID})

		// Writer: drains the outbox until the lobby closes it (drop,
		// leave or shutdown), then closes the socket to unblock the
		// reader.
		go func() {
			for frame := range out {
				ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, frame)
				cancel()
				if err != nil {
					return
				}
			}
			conn.Close(websocket.StatusGoingAway, "lobby closed")
		}()

		limiter := rate.NewLimiter(msgRate, burst)

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.String("conn", connID), zap.Error(err))
				}
				return
			}

			if !limiter.Allow() {
				log.Warn("rate limit exceeded, dropping frame", zap.String("conn", connID))
				continue
			}

			cmd, err := protocol.Parse(data)
			if err != nil {
				// protocol violations never get a reply
				log.Debug("unparseable frame", zap.String("conn", connID), zap.Error(err))
				continue
			}

			if !deliver(lobby.FromClient{ConnID: connID, Cmd: cmd}) {
				return
			}
		}
	}
}
