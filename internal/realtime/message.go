package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned for a frame that is not a JSON object with a string type.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMalformedPayload is returned when a frame lacks a field its type requires.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Inbound message types.
const (
	TypeOrderStatusChanged     = "order_status_changed"
	TypeOrderCreatedByStaff    = "order_created_by_staff"
	TypePatientAssigned        = "patient_assigned"
	TypePatientAssignmentEnded = "patient_assignment_ended"
	TypeLimitsUpdated          = "limits_updated"
	TypeSurveyEnabled          = "survey_enabled"
	TypeSessionEnded           = "session_ended"
	TypeNewOrder               = "new_order"
	TypeOrderUpdated           = "order_updated"
)

// Message is one decoded inbound frame. Raw holds the whole frame.
type Message struct {
	Type string
	Raw  json.RawMessage
}

// ParseMessage decodes a frame strictly: it must be a JSON object whose type is a non-empty string.
func ParseMessage(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if dec.More() {
		return Message{}, fmt.Errorf("%w: trailing data", ErrMalformedFrame)
	}
	if fields == nil {
		return Message{}, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}

	rawType, ok := fields["type"]
	if !ok {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	var msgType string
	if err := json.Unmarshal(rawType, &msgType); err != nil || msgType == "" {
		return Message{}, fmt.Errorf("%w: type must be a non-empty string", ErrMalformedFrame)
	}

	return Message{Type: msgType, Raw: json.RawMessage(data)}, nil
}

type validator interface {
	validate() error
}

// Decode unmarshals the frame into one of the payload structs.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, m.Type, err)
	}
	if val, ok := v.(validator); ok {
		if err := val.validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, m.Type, err)
		}
	}
	return nil
}
