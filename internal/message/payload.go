package message

import "encoding/json"

// FromPayload turns a transport payload into a message. A JSON object
// becomes the message itself; anything else is carried as a string in the
// data field.
func FromPayload(b []byte) Message {
	var m Message
	if json.Valid(b) && m.UnmarshalJSON(b) == nil {
		return m
	}
	return New(map[string]Value{"data": String(string(b))})
}

// Payload encodes m for a transport, the inverse of FromPayload.
func Payload(m Message) ([]byte, error) {
	return m.MarshalJSON()
}
