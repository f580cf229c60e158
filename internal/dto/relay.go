package dto

type HealthResponse struct {
	Status        string `json:"status"`
	NodeID        string `json:"nodeId"`
	Clients       int    `json:"clients"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	SessionStore  bool   `json:"sessionStore"`
}

type ClientResponse struct {
	ClientID    string `json:"clientId"`
	ConnectedAt string `json:"connectedAt"`
	RemoteAddr  string `json:"remoteAddr,omitempty"`
}

type ClientsResponse struct {
	Total   int              `json:"total"`
	Clients []ClientResponse `json:"clients"`
}

type DisconnectResponse struct {
	ClientID string `json:"clientId"`
	Status   string `json:"status"`
}
