package router

import (
	"net/http"

	"relay-server/internal/api"
	"relay-server/internal/api/endpoints"
)

func UtilsRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		utilsEndpoints := endpoints.NewUtilsEndpoints(endpoints.HealthInfo{
			NodeID:       s.NodeID(),
			StartedAt:    s.StartedAt(),
			Relay:        s.Relay(),
			SessionStore: s.Sessions() != nil,
		})
		mux.HandleFunc(prefix+"/health", s.MakeHTTPHandleFunc(utilsEndpoints.Health))
	}
}
