package http

import "net/http"

// NotFoundHandler answers every unrouted path. Handlers that match a
// prefix but not a full route use notFound directly.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		notFound(w)
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, codeNotFound, "route not found")
}
