package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kanabomb/server/internal/hub"
	"github.com/kanabomb/server/internal/ws"
)

// SetupRoutes builds the router with the hub injected. staticDir, when
// set, serves the frontend assets from the root path.
func SetupRoutes(h *hub.Hub, log *zap.Logger, staticDir string, msgRate rate.Limit, burst int) http.Handler {
	r := chi.NewRouter()

	r.Post("/create_lobby", CreateLobby(h))
	r.Get("/check_lobby/{code}", CheckLobby(h))
	r.Get("/ws/{code}", ws.Handler(h, log, msgRate, burst))
	r.Get("/healthz", Healthz)

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	return r
}
