package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"relay-server/internal/api"
)

type HTTPError = api.HTTPError

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path),
	}
}

// extractFromPath returns the single path segment that follows prefix.
func extractFromPath(path, prefix, resource string) (string, error) {
	notFound := func(reason string) error {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    resource + " not found",
			ErrorLog:   fmt.Errorf("%s: %s", reason, path),
		}
	}

	if prefix == "" {
		return "", notFound("route not configured")
	}
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", notFound("path mismatch")
	}
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", notFound("invalid path")
	}
	return trimmed, nil
}
