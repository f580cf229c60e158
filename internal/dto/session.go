package dto

type SessionResponse struct {
	SessionID      string `json:"sessionId"`
	NodeID         string `json:"nodeId"`
	ClientID       string `json:"clientId"`
	RemoteAddr     string `json:"remoteAddr,omitempty"`
	ConnectedAt    string `json:"connectedAt"`
	DisconnectedAt string `json:"disconnectedAt,omitempty"`
	Open           bool   `json:"open"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Limit    int               `json:"limit"`
}
