package protocol

import "strconv"

// Kind is the integer discriminator carried in the "id" field of every frame.
// The numeric values are part of the wire contract and must not be reordered.
type Kind int

const (
	KindConnect Kind = iota
	KindDisconnect
	KindPing
	KindPong
	KindEcho
	KindBroadcast
	KindWelcome
)

var kindNames = map[Kind]string{
	KindConnect:    "CONNECT",
	KindDisconnect: "DISCONNECT",
	KindPing:       "PING",
	KindPong:       "PONG",
	KindEcho:       "ECHO",
	KindBroadcast:  "BROADCAST",
	KindWelcome:    "WELCOME",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNRECOGNIZED(" + strconv.Itoa(int(k)) + ")"
}

// Known reports whether k is one of the codes this server understands.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}
