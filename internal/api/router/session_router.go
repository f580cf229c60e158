package router

import (
	"net/http"
	"strings"

	"relay-server/internal/api"
	"relay-server/internal/api/endpoints"
)

func SessionRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		sessionPrefix := strings.TrimRight(prefix, "/") + "/sessions/"
		sessionEndpoints := endpoints.NewSessionEndpoints(s.Sessions(), sessionPrefix)

		mux.HandleFunc(prefix+"/sessions", s.MakeHTTPHandleFunc(sessionEndpoints.Sessions))
		mux.HandleFunc(sessionPrefix, s.MakeHTTPHandleFunc(sessionEndpoints.Session))
	}
}
