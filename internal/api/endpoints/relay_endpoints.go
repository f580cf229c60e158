package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"relay-server/internal/dto"
	"relay-server/internal/model"
	"relay-server/internal/relay"
)

type RelayEndpoints interface {
	Clients(http.ResponseWriter, *http.Request) error
	Client(http.ResponseWriter, *http.Request) error
}

type relayEndpoints struct {
	relay        *relay.Relay
	adminEnabled bool
	clientPrefix string
}

// NewRelayEndpoints serves the client list and per-client routes under
// clientPrefix. DELETE is refused unless adminEnabled is set.
func NewRelayEndpoints(rl *relay.Relay, adminEnabled bool, clientPrefix string) RelayEndpoints {
	return &relayEndpoints{
		relay:        rl,
		adminEnabled: adminEnabled,
		clientPrefix: clientPrefix,
	}
}

func (h *relayEndpoints) Clients(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListClients,
	})
}

func (h *relayEndpoints) Client(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:    h.handleGetClient,
		http.MethodDelete: h.handleDisconnectClient,
	})
}

func (h *relayEndpoints) handleListClients(w http.ResponseWriter, r *http.Request) error {
	clients := h.relay.Clients()
	res := dto.ClientsResponse{
		Total:   len(clients),
		Clients: make([]dto.ClientResponse, 0, len(clients)),
	}
	for _, c := range clients {
		res.Clients = append(res.Clients, toClientResponse(c))
	}
	return WriteJSON(w, http.StatusOK, res)
}

func (h *relayEndpoints) handleGetClient(w http.ResponseWriter, r *http.Request) error {
	id, err := extractFromPath(r.URL.Path, h.clientPrefix, "Client")
	if err != nil {
		return err
	}
	for _, c := range h.relay.Clients() {
		if c.ID == id {
			return WriteJSON(w, http.StatusOK, toClientResponse(c))
		}
	}
	return clientNotFound(id)
}

func (h *relayEndpoints) handleDisconnectClient(w http.ResponseWriter, r *http.Request) error {
	if !h.adminEnabled {
		return &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    "Administrative disconnect is disabled",
			ErrorLog:   fmt.Errorf("disconnect refused: admin disabled"),
		}
	}

	id, err := extractFromPath(r.URL.Path, h.clientPrefix, "Client")
	if err != nil {
		return err
	}

	if err := h.relay.Disconnect(id); err != nil {
		if errors.Is(err, relay.ErrClientNotFound) {
			return clientNotFound(id)
		}
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("disconnect %s: %w", id, err),
		}
	}

	return WriteJSON(w, http.StatusAccepted, dto.DisconnectResponse{ClientID: id, Status: "disconnecting"})
}

func clientNotFound(id string) error {
	return &HTTPError{
		StatusCode: http.StatusNotFound,
		Message:    "Client not found",
		ErrorLog:   fmt.Errorf("unknown client %s", id),
	}
}

func toClientResponse(c relay.ClientInfo) dto.ClientResponse {
	return dto.ClientResponse{
		ClientID:    c.ID,
		ConnectedAt: c.ConnectedAt.UTC().Format(model.TimestampLayout),
		RemoteAddr:  c.RemoteAddr,
	}
}
