package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidateMessageEnvelope checks the fields every consumer relies on.
func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	switch {
	case msg == nil:
		return &ValidationError{Field: "envelope", Message: "missing"}
	case msg.ID == "":
		return &ValidationError{Field: "id", Message: "required"}
	case msg.Payload == nil:
		return &ValidationError{Field: "payload", Message: "required"}
	}
	return nil
}

// StringField returns the payload value under name, or "" when it is absent
// or not a string.
func (msg *MessageEnvelope) StringField(name string) string {
	v, _ := msg.Payload[name].(string)
	return v
}

// MapField returns the payload object under name, or nil.
func (msg *MessageEnvelope) MapField(name string) map[string]interface{} {
	v, _ := msg.Payload[name].(map[string]interface{})
	return v
}
