package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrNoPatient is returned when no patient is assigned to the device.
var ErrNoPatient = errors.New("no active patient assigned to this device")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	// LimitReached is set when an order was rejected by the category limits.
	LimitReached bool
	CategoryType CategoryType
	MaxAllowed   int
	// Fields holds field-keyed validation errors.
	Fields map[string][]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// IsAlreadySubmitted reports whether err is the backend rejecting a duplicate feedback submission.
func IsAlreadySubmitted(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "already submitted")
}

// IsLimitReached reports whether err is a server-side order limit rejection.
func IsLimitReached(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.LimitReached
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// parseAPIError understands {error}, {detail} and field-keyed validation bodies.
func parseAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, Status: status}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	for _, key := range []string{"error", "detail"} {
		if raw, ok := payload[key]; ok {
			var msg string
			if json.Unmarshal(raw, &msg) == nil && msg != "" {
				apiErr.Message = msg
				break
			}
		}
	}
	if raw, ok := payload["limit_reached"]; ok {
		_ = json.Unmarshal(raw, &apiErr.LimitReached)
	}
	if raw, ok := payload["category_type"]; ok {
		_ = json.Unmarshal(raw, &apiErr.CategoryType)
	}
	if raw, ok := payload["max_allowed"]; ok {
		_ = json.Unmarshal(raw, &apiErr.MaxAllowed)
	}

	if apiErr.Message == "" {
		apiErr.Fields = make(map[string][]string)
		for key, raw := range payload {
			var msgs []string
			if json.Unmarshal(raw, &msgs) == nil {
				apiErr.Fields[key] = msgs
				continue
			}
			var msg string
			if json.Unmarshal(raw, &msg) == nil {
				apiErr.Fields[key] = []string{msg}
			}
		}
		apiErr.Message = fieldSummary(apiErr.Fields)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func fieldSummary(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fields[k], ", "))
	}
	return strings.Join(parts, "; ")
}
