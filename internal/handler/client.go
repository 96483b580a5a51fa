package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"privacyblur/internal/logger"
	hub "privacyblur/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the HubService to receive rendered frames.
func ViewWebsocketHandler(hubService *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hubService.Register(connection)
		defer hubService.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Error("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
