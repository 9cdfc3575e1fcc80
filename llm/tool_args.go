package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidArguments is returned when a tool call payload is not a JSON object.
var ErrInvalidArguments = errors.New("tool arguments are not a valid JSON object")

// NormalizeArguments returns raw tool arguments as compact JSON object text.
// Endpoints send either an object or a string holding one; both are
// accepted. Empty and null payloads become {}.
func NormalizeArguments(raw json.RawMessage) (json.RawMessage, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) > 0 && payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		payload = bytes.TrimSpace([]byte(inner))
	}
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return json.RawMessage(`{}`), nil
	}

	if payload[0] != '{' || !json.Valid(payload) {
		return nil, fmt.Errorf("%w: %.60s", ErrInvalidArguments, payload)
	}

	var out bytes.Buffer
	if err := json.Compact(&out, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return json.RawMessage(out.Bytes()), nil
}

// DecodeArguments normalizes raw and unmarshals it into target.
func DecodeArguments(raw json.RawMessage, target interface{}) error {
	normalized, err := NormalizeArguments(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(normalized, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
