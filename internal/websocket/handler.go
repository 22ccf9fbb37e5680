package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/lineage/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and streams the caller's
// family events until the connection drops. Members need a confirmed session.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok || !auth.IsConfirmed(r.Context()) {
			http.Error(w, "identity challenge required", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		familyID := ac.FamilyID
		if auth.IsAdmin(r.Context()) {
			familyID = 0
		}
		NewClient(hub, conn, familyID).Run(r.Context())
	}
}
