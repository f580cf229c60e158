package protocol

import "encoding/json"

// Message is the closed set of frames exchanged with clients. Only types in
// this package implement it.
type Message interface {
	Kind() Kind
	sealed()
}

// Connect announces a newly joined client to everybody else.
type Connect struct {
	ClientID     string `json:"client_id"`
	TotalClients int    `json:"total_clients"`
}

// Disconnect announces a departed client to the remaining ones.
type Disconnect struct {
	ClientID     string `json:"client_id"`
	TotalClients int    `json:"total_clients"`
}

// Ping asks for the server clock. ClientTime is whatever JSON value the
// client sent and is handed back unchanged in the Pong.
type Ping struct {
	ClientTime json.RawMessage `json:"client_time,omitempty"`
}

type Pong struct {
	ClientTime json.RawMessage `json:"client_time,omitempty"`
	ServerTime int64           `json:"server_time"`
}

// Echo carries an opaque payload that is returned to its sender unchanged.
// Data is the exact JSON value found in the frame's "data" field.
type Echo struct {
	Data json.RawMessage
}

// Broadcast is fanned out to every client except the sender.
//
// Inbound, only Data is populated: it holds the sender's raw "data" value.
// Outbound, the frame's "data" field is the object {client_id, data}.
type Broadcast struct {
	ClientID string          `json:"client_id"`
	Data     json.RawMessage `json:"data"`
}

// Welcome tells a freshly opened connection which id it was assigned.
type Welcome struct {
	ClientID     string `json:"client_id"`
	TotalClients int    `json:"total_clients"`
}

// Unrecognized is a well-formed frame the server does not act on: an unknown
// code, or a server-only kind (CONNECT, DISCONNECT, PONG, WELCOME) sent by a
// client. Data is the frame's raw "data" value.
type Unrecognized struct {
	Code int
	Data json.RawMessage
}

func (Connect) Kind() Kind { return KindConnect }
func (Disconnect) Kind() Kind { return KindDisconnect }
func (Ping) Kind() Kind { return KindPing }
func (Pong) Kind() Kind { return KindPong }
func (Echo) Kind() Kind { return KindEcho }
func (Broadcast) Kind() Kind { return KindBroadcast }
func (Welcome) Kind() Kind { return KindWelcome }
func (u Unrecognized) Kind() Kind { return Kind(u.Code) }

func (Connect) sealed() {}
func (Disconnect) sealed() {}
func (Ping) sealed() {}
func (Pong) sealed() {}
func (Echo) sealed() {}
func (Broadcast) sealed() {}
func (Welcome) sealed() {}
func (Unrecognized) sealed() {}
