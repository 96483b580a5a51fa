package route

import (
	"net/http"
	"os"
	"path/filepath"

	"privacyblur/internal/config"
	"privacyblur/internal/handler"
	"privacyblur/internal/logger"
	"privacyblur/internal/middleware"
	"privacyblur/internal/repository"
	"privacyblur/internal/service"
	hub "privacyblur/internal/service/websocket"
)

// Services bundles what the HTTP surface talks to.
type Services struct {
	Manager  *service.Manager
	Hub      *hub.HubService
	Profiles repository.ProfileStore
	Sessions repository.SessionRepository
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers static pages, camera ingest, the viewer socket and
// the JSON API, and wraps the mux with the authentication middleware.
func SetupRoutes(svc Services, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Camera ingest
	mux.HandleFunc("POST /camera/upload", handler.UploadFrameHandler(svc.Manager, logger))

	// Viewers
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(svc.Hub, logger))

	// Streams and statistics
	mux.HandleFunc("GET /api/stats", handler.StatsHandler(svc.Manager))
	mux.HandleFunc("GET /api/streams", handler.ListStreamsHandler(svc.Manager))
	mux.HandleFunc("POST /api/streams/deactivate", handler.DeactivateStreamHandler(svc.Manager, logger))
	mux.HandleFunc("POST /api/streams/activate", handler.ActivateStreamHandler(svc.Manager, logger))
	mux.HandleFunc("GET /api/sessions", handler.ListSessionsHandler(svc.Sessions, logger))
	mux.HandleFunc("GET /api/sessions/{id}", handler.GetSessionHandler(svc.Sessions, logger))

	// Profiles
	mux.HandleFunc("GET /api/profiles", handler.ListProfilesHandler(svc.Profiles, cfg, logger))
	mux.HandleFunc("GET /api/profiles/{name}", handler.GetProfileHandler(svc.Profiles, logger))

	// Logs
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(cfg))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Auth
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// /settings -> static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.AuthMiddleware(mux)
}
