package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

var nullPayload = json.RawMessage("null")

type wireFrame struct {
	ID   json.RawMessage `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Decode parses one frame of the form {"id": <code>, "data": {...}}.
//
// Frames that are not JSON objects, or whose id is missing or not an integer,
// are rejected. The payload itself is never rejected: Ping only picks
// client_time out of it, Echo and Broadcast keep it verbatim, and every other
// code, including the server-only kinds, decodes to Unrecognized with the raw
// data.
func Decode(raw []byte) (Message, error) {
	var f wireFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &DecodeError{Err: ErrMalformedFrame, Cause: err}
	}

	if len(f.ID) == 0 || bytes.Equal(f.ID, nullPayload) {
		return nil, &DecodeError{Err: ErrMissingKind}
	}

	var code int
	if err := json.Unmarshal(f.ID, &code); err != nil {
		return nil, &DecodeError{Err: ErrMissingKind, Cause: err}
	}

	switch Kind(code) {
	case KindPing:
		return Ping{ClientTime: clientTime(f.Data)}, nil
	case KindEcho:
		return Echo{Data: f.Data}, nil
	case KindBroadcast:
		return Broadcast{Data: f.Data}, nil
	default:
		return Unrecognized{Code: code, Data: f.Data}, nil
	}
}

// clientTime returns the raw client_time member of data, or nil when data is
// not an object or has no such member.
func clientTime(data json.RawMessage) json.RawMessage {
	var p struct {
		ClientTime json.RawMessage `json:"client_time"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return p.ClientTime
}

// Encode renders m as a single wire frame. Raw payloads (Echo, Unrecognized,
// Broadcast data) are written byte for byte.
func Encode(m Message) ([]byte, error) {
	payload, err := Payload(m)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(payload)+24)
	buf = append(buf, `{"id":`...)
	buf = strconv.AppendInt(buf, int64(m.Kind()), 10)
	buf = append(buf, `,"data":`...)
	buf = append(buf, payload...)
	buf = append(buf, '}')
	return buf, nil
}

// Payload returns the JSON value that goes into the frame's "data" field.
func Payload(m Message) (json.RawMessage, error) {
	switch msg := m.(type) {
	case nil:
		return nil, ErrNilMessage
	case Echo:
		return rawPayload(msg.Data)
	case Unrecognized:
		return rawPayload(msg.Data)
	case Broadcast:
		data, err := rawPayload(msg.Data)
		if err != nil {
			return nil, err
		}
		msg.Data = data
		return marshalPayload(msg)
	default:
		return marshalPayload(msg)
	}
}

func rawPayload(data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 {
		return nullPayload, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: data is not valid JSON", ErrInvalidPayload)
	}
	return data, nil
}

func marshalPayload(m Message) (json.RawMessage, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return data, nil
}
