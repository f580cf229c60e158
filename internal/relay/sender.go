package relay

import (
	"slices"

	"relay-server/internal/protocol"
	"relay-server/internal/registry"
)

// Send encodes msg and hands it to conn. It reports whether the frame was
// accepted; failures are logged, never returned.
func (r *Relay) Send(conn registry.Conn, msg protocol.Message) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		r.logger.WarnWithErr("failed to encode message", err, "kind", kindOf(msg))
		return false
	}
	return r.write(conn, data)
}

// Broadcast encodes msg once and delivers it to every registered client whose
// id is not in except. It returns the number of connections that accepted the
// frame. The registry lock is not held while writing.
func (r *Relay) Broadcast(msg protocol.Message, except ...string) int {
	data, err := protocol.Encode(msg)
	if err != nil {
		r.logger.WarnWithErr("failed to encode broadcast", err, "kind", kindOf(msg))
		return 0
	}

	sent := 0
	for _, c := range r.registry.Snapshot() {
		if slices.Contains(except, c.ID) {
			continue
		}
		if r.write(c.Conn, data) {
			sent++
		}
	}
	return sent
}

func (r *Relay) write(conn registry.Conn, data []byte) bool {
	if err := conn.Send(data); err != nil {
		r.metrics.incDropped()
		r.logger.Debug("message not delivered", "remote_addr", remoteAddr(conn), "error", err)
		return false
	}
	r.metrics.incDelivered()
	return true
}

func kindOf(msg protocol.Message) string {
	if msg == nil {
		return "nil"
	}
	return msg.Kind().String()
}
