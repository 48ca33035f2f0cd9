package middleware

import "net/http"

var securityHeaders = map[string]string{
	"Referrer-Policy":        "same-origin",
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	// Keyboard-only experiments; no device APIs.
	"Permissions-Policy": "camera=(), microphone=(), geolocation=(), fullscreen=(self)",
}

var noStoreHeaders = map[string]string{
	"Cache-Control": "no-store, no-cache, must-revalidate, max-age=0",
	"Pragma":        "no-cache",
	"Expires":       "0",
}

func setHeaders(next http.Handler, headers map[string]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// SecureHeaders adds the security headers sent with every page.
func SecureHeaders(next http.Handler) http.Handler {
	return setHeaders(next, securityHeaders)
}

// NoStore marks every response uncacheable. Run pages depend on session
// state, so a cached trial page would show the wrong stimulus.
func NoStore(next http.Handler) http.Handler {
	return setHeaders(next, noStoreHeaders)
}
