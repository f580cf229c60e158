package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"relay-server/internal/dto"
	"relay-server/internal/model"
	"relay-server/internal/service/session"
)

type SessionEndpoints interface {
	Sessions(http.ResponseWriter, *http.Request) error
	Session(http.ResponseWriter, *http.Request) error
}

type sessionEndpoints struct {
	service       *session.Service
	sessionPrefix string
}

// NewSessionEndpoints serves the audit trail. A nil service answers every
// request with 404.
func NewSessionEndpoints(service *session.Service, sessionPrefix string) SessionEndpoints {
	return &sessionEndpoints{service: service, sessionPrefix: sessionPrefix}
}

func (h *sessionEndpoints) Sessions(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListSessions,
	})
}

func (h *sessionEndpoints) Session(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleGetSession,
	})
}

func (h *sessionEndpoints) handleListSessions(w http.ResponseWriter, r *http.Request) error {
	if err := h.ensureEnabled(); err != nil {
		return err
	}

	requested := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "limit must be a positive integer",
				ErrorLog:   fmt.Errorf("invalid limit %q", raw),
			}
		}
		requested = n
	}
	limit := session.ListLimit(requested)

	items, err := h.service.List(r.Context(), limit)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("list sessions: %w", err),
		}
	}

	res := dto.SessionsResponse{
		Sessions: make([]dto.SessionResponse, 0, len(items)),
		Limit:    limit,
	}
	for _, item := range items {
		res.Sessions = append(res.Sessions, toSessionResponse(item))
	}
	return WriteJSON(w, http.StatusOK, res)
}

func (h *sessionEndpoints) handleGetSession(w http.ResponseWriter, r *http.Request) error {
	if err := h.ensureEnabled(); err != nil {
		return err
	}

	id, err := extractFromPath(r.URL.Path, h.sessionPrefix, "Session")
	if err != nil {
		return err
	}

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return &HTTPError{StatusCode: http.StatusNotFound, Message: "Session not found", ErrorLog: err}
		}
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("get session %s: %w", id, err),
		}
	}
	return WriteJSON(w, http.StatusOK, toSessionResponse(item))
}

func (h *sessionEndpoints) ensureEnabled() error {
	if h.service == nil {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Session store disabled",
			ErrorLog:   fmt.Errorf("session store not configured"),
		}
	}
	return nil
}

func toSessionResponse(item model.SessionItem) dto.SessionResponse {
	return dto.SessionResponse{
		SessionID:      item.SessionID,
		NodeID:         item.NodeID,
		ClientID:       item.ClientID,
		RemoteAddr:     item.RemoteAddr,
		ConnectedAt:    item.ConnectedAt,
		DisconnectedAt: item.DisconnectedAt,
		Open:           item.Open(),
	}
}
