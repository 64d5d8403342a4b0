// Package protocol defines the messages exchanged with the rendering surface
// and the host activity feed. Every frame is a JSON object whose "type"
// field selects one of a closed set of message kinds.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const Version = "1.0"

type Kind string

// Message is implemented only by the types in this package.
type Message interface {
	Kind() Kind
	message()
}

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

type envelope struct {
	Type Kind `json:"type"`
}

// Decode parses one frame into its concrete message type.
func Decode(b []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	mk, ok := registry[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	m := mk()
	if err := json.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return deref(m), nil
}

// Encode marshals m with its "type" field first.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%s: payload is not an object", m.Kind())
	}
	head, _ := json.Marshal(envelope{Type: m.Kind()})
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	out = append(out, body[1:]...)
	return out, nil
}

// Kinds returns every registered message kind.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}
