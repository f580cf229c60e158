package router

import (
	"net/http"
	"strings"

	"relay-server/internal/api"
	"relay-server/internal/api/endpoints"
)

// WebsocketRoutes mounts the relay's upgrade endpoint at path.
func WebsocketRoutes(path string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		mux.HandleFunc(path, s.MakeStreamHandleFunc(s.WebSocket()))
	}
}

func RelayRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		clientPrefix := strings.TrimRight(prefix, "/") + "/clients/"
		relayEndpoints := endpoints.NewRelayEndpoints(s.Relay(), s.AdminEnabled(), clientPrefix)

		mux.HandleFunc(prefix+"/clients", s.MakeHTTPHandleFunc(relayEndpoints.Clients))
		mux.HandleFunc(clientPrefix, s.MakeHTTPHandleFunc(relayEndpoints.Client))
	}
}
