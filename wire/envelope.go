package wire

import (
	"encoding/json"
	"fmt"
)

// Envelope wraps every application message. The signature covers the exact
// raw bytes of Message; the initial table-list query is the only unsigned
// traffic.
type Envelope struct {
	Message   json.RawMessage `json:"message"`
	Signature []byte          `json:"signature,omitempty"`
}

// Seal marshals msg and signs the marshalled bytes with signer. A nil
// signer produces an unsigned envelope.
func Seal(msg any, signer func([]byte) ([]byte, error)) (Envelope, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal message: %w", err)
	}
	env := Envelope{Message: raw}
	if signer != nil {
		sig, err := signer(raw)
		if err != nil {
			return Envelope{}, fmt.Errorf("sign message: %w", err)
		}
		env.Signature = sig
	}
	return env, nil
}

// Frame marshals the envelope and appends the frame delimiter.
func (e Envelope) Frame() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return Frame(raw), nil
}

// ParseEnvelope decodes one frame into an envelope.
func ParseEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	if len(env.Message) == 0 {
		return Envelope{}, fmt.Errorf("envelope has no message")
	}
	return env, nil
}
