package ws

import (
	"net/http"
	"slices"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// TokenVerifier resolves the ?token= query parameter to a user.
type TokenVerifier interface {
	VerifyToken(token string) (uuid.UUID, error)
}

type HandlerOptions struct {
	// OriginPatterns are host patterns accepted on the handshake; "*" accepts any origin.
	OriginPatterns []string
	SendBuffer     int
}

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func ServeWS(hub *Hub, verifier TokenVerifier, authz RoomAuthorizer, opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub.Stopped() {
			http.Error(w, `{"error":{"code":"UNAVAILABLE","message":"Realtime is unavailable"}}`, http.StatusServiceUnavailable)
			return
		}

		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, `{"error":{"code":"UNAUTHORIZED","message":"Missing token"}}`, http.StatusUnauthorized)
			return
		}
		userID, err := verifier.VerifyToken(tokenStr)
		if err != nil {
			http.Error(w, `{"error":{"code":"UNAUTHORIZED","message":"Invalid or expired token"}}`, http.StatusUnauthorized)
			return
		}

		accept := &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns}
		if slices.Contains(opts.OriginPatterns, "*") {
			accept = &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
		conn, err := websocket.Accept(w, r, accept)
		if err != nil {
			hub.log.Debug("accept error", "err", err)
			return
		}

		client := NewClient(hub, conn, userID, authz, opts.SendBuffer)
		if err := hub.Register(r.Context(), client); err != nil {
			conn.Close(websocket.StatusTryAgainLater, "realtime unavailable")
			return
		}

		go client.WritePump()
		client.ReadPump(r.Context())
	}
}
