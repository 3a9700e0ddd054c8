// Package action dispatches domain actions to external business-system
// endpoints: it builds the payload, acquires a bearer token, POSTs the JSON
// payload, and normalizes the response into a Result.
//
// Dispatch never returns an error or panics; every failure is reported
// through Result.Status == StatusError.
package action

import (
	"encoding/json"
	"strconv"
)

// Status is the HTTP status code of an external call, or StatusError when no
// response was obtained.
type Status int

// StatusError marks a dispatch that failed before an HTTP response arrived.
const StatusError Status = -1

// String returns "ERROR" for StatusError and the decimal code otherwise.
func (s Status) String() string {
	if s == StatusError {
		return "ERROR"
	}
	return strconv.Itoa(int(s))
}

// MarshalJSON encodes StatusError as the string "ERROR" and any HTTP code as
// a JSON number.
func (s Status) MarshalJSON() ([]byte, error) {
	if s == StatusError {
		return []byte(`"ERROR"`), nil
	}
	return []byte(strconv.Itoa(int(s))), nil
}

// UnmarshalJSON accepts the forms written by MarshalJSON.
func (s *Status) UnmarshalJSON(b []byte) error {
	if string(b) == `"ERROR"` {
		*s = StatusError
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Status(n)
	return nil
}

// OK reports whether s is a 2xx HTTP status.
func (s Status) OK() bool { return s >= 200 && s < 300 }

// Payload is the JSON body sent to the business system.
type Payload map[string]any

// Builder derives a payload from the raw task text.
type Builder func(task string) Payload

// Action describes one external business-system operation.
type Action struct {
	// Name is the action tag, e.g. "leave_request". Outcome tags are derived
	// from it.
	Name string

	// Endpoint is the POST URL. Empty means the action is not configured.
	Endpoint string

	// Build produces the request payload from the task text.
	Build Builder
}

// Submitted returns the success outcome tag for the action.
func (a Action) Submitted() string { return a.Name + "_submitted" }

// Failed returns the failure outcome tag for the action.
func (a Action) Failed() string { return a.Name + "_failed" }

// Result is the normalized outcome of one dispatch.
type Result struct {
	// Status is the HTTP status code or StatusError.
	Status Status `json:"status"`

	// Body is the external response: json.RawMessage for JSON responses,
	// string otherwise (including error text on failure).
	Body any `json:"body"`

	// Outcome is the action tag suffixed with _submitted or _failed.
	Outcome string `json:"outcome"`
}

// failed builds an ERROR result carrying msg as the body.
func failed(a Action, msg string) *Result {
	return &Result{Status: StatusError, Body: msg, Outcome: a.Failed()}
}
