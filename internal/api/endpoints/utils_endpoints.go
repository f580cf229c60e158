package endpoints

import (
	"net/http"
	"time"

	"relay-server/internal/dto"
	"relay-server/internal/relay"
)

type UtilsEndpoints interface {
	Health(http.ResponseWriter, *http.Request) error
}

type HealthInfo struct {
	NodeID       string
	StartedAt    time.Time
	Relay        *relay.Relay
	SessionStore bool
}

type utilsEndpoints struct {
	info HealthInfo
	now  func() time.Time
}

func NewUtilsEndpoints(info HealthInfo) UtilsEndpoints {
	return &utilsEndpoints{info: info, now: time.Now}
}

func (h *utilsEndpoints) Health(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleHealth,
	})
}

func (h *utilsEndpoints) handleHealth(w http.ResponseWriter, r *http.Request) error {
	clients := 0
	if h.info.Relay != nil {
		clients = h.info.Relay.Registry().Size()
	}
	return WriteJSON(w, http.StatusOK, dto.HealthResponse{
		Status:        "ok",
		NodeID:        h.info.NodeID,
		Clients:       clients,
		UptimeSeconds: int64(h.now().Sub(h.info.StartedAt).Seconds()),
		SessionStore:  h.info.SessionStore,
	})
}
