package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"relay-server/internal/api/middleware"
	"relay-server/internal/queue"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f on the request queue behind CORS and request
// logging, and renders returned errors as JSON.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, extra ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		job := queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		}

		if err := s.requestQueueManager.EnqueueJob(job); err != nil {
			s.writeError(w, r, &HTTPError{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "Server is shutting down",
				ErrorLog:   err,
			})
			return
		}

		if err := <-errc; err != nil {
			s.writeError(w, r, err)
		}
	}

	handler := baseHandler
	for _, m := range extra {
		handler = m(handler)
	}

	return middleware.Chain(handler, middleware.CORS(s.cors), middleware.Logging(s.logger))
}

// MakeStreamHandleFunc serves long-lived handlers such as the websocket
// upgrade. They bypass the request queue so they never hold a worker.
func (s *APIServer) MakeStreamHandleFunc(h http.Handler) http.HandlerFunc {
	return middleware.Chain(h.ServeHTTP, middleware.Logging(s.logger))
}

func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= http.StatusInternalServerError {
			s.logger.ErrorWithErr(httpErr.Message, httpErr.ErrorLog, "uri", r.URL.RequestURI())
		} else {
			s.logger.Debug(httpErr.Message, "error", httpErr.ErrorLog, "uri", r.URL.RequestURI())
		}
		WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message})
		return
	}

	s.logger.ErrorWithErr("unhandled endpoint error", err, "uri", r.URL.RequestURI())
	WriteJSON(w, http.StatusInternalServerError, ApiError{Error: "Internal server error"})
}
