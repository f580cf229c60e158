package model

import "fmt"

const SessionsTable = "RelaySessions"

// TimestampLayout is fixed width so stored timestamps sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// SessionItem records one client connection on one relay node.
// DisconnectedAt stays empty while the client is connected.
type SessionItem struct {
	SessionID      string `dynamodbav:"sessionId"`
	NodeID         string `dynamodbav:"nodeId"`
	ClientID       string `dynamodbav:"clientId"`
	RemoteAddr     string `dynamodbav:"remoteAddr,omitempty"`
	ConnectedAt    string `dynamodbav:"connectedAt"`
	DisconnectedAt string `dynamodbav:"disconnectedAt,omitempty"`
}

func (s SessionItem) Open() bool {
	return s.DisconnectedAt == ""
}

func NodeScopedPK(nodeID, clientID string) string {
	return fmt.Sprintf("%s#%s", nodeID, clientID)
}
