package middleware

import (
	"net/http"
	"strings"
)

// publicPrefixes are reachable without logging in. Cameras push frames
// from devices that cannot hold a session cookie.
var publicPrefixes = []string{"/css/", "/js/", "/camera/"}

// AuthMiddleware lets a request through only when it carries the
// authenticated=true cookie. API calls without it get 401; page requests
// are redirected to the login page.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie("authenticated")
		if err != nil || cookie.Value != "true" {
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublic(path string) bool {
	if path == "/login" || path == "/auth/login" {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
