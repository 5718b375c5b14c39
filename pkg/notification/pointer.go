// Package notification decides whether inbound integration notifications
// are processed and extracts values from their payloads.
package notification

import (
	"net/url"

	"github.com/go-openapi/jsonpointer"

	"github.com/ekaya-inc/scorecard/pkg/jsonutil"
)

// Extract returns the value the JSON pointer addresses in payload.
// ok is false when the pointer is malformed, does not resolve, or resolves
// to null.
func Extract(payload any, pointer string) (any, bool) {
	ptr, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, false
	}
	value, _, err := ptr.Get(payload)
	if err != nil || value == nil {
		return nil, false
	}
	return value, true
}

// ValidPointer reports whether pointer is a well-formed JSON pointer.
func ValidPointer(pointer string) bool {
	_, err := jsonpointer.New(pointer)
	return err == nil
}

// ExtractString returns the value at pointer in its stored string form.
func ExtractString(payload any, pointer string) (string, bool) {
	value, ok := Extract(payload, pointer)
	if !ok {
		return "", false
	}
	return jsonutil.StringValue(value)
}

// QueryPayload builds a payload from query parameters, keeping the first
// value of each key.
func QueryPayload(values url.Values) map[string]any {
	payload := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			payload[key] = vals[0]
		}
	}
	return payload
}
