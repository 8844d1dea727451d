// Package audit records security-relevant derpki operations as a
// hash-chained JSON lines log.
//
// The audit trail is separate from technical logging:
//   - a failed audit write fails the operation that produced it
//   - private keys and passphrases are never recorded
//   - timestamps are UTC
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// EventType is the category of an audit event.
type EventType string

const (
	EventCACreated EventType = "CA_CREATED"
	EventCALoaded  EventType = "CA_LOADED"

	EventKeyGenerated EventType = "KEY_GENERATED"
	EventKeyAccessed  EventType = "KEY_ACCESSED"

	EventCertSigned EventType = "CERT_SIGNED"
	EventCSRSigned  EventType = "CSR_SIGNED"
)

// Result is the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor identifies who performed the operation.
type Actor struct {
	Type string `json:"type"` // "user" or "service"
	ID   string `json:"id"`
	Host string `json:"host,omitempty"`
}

// Object identifies what was acted upon.
type Object struct {
	Type    string `json:"type"` // "ca", "certificate", "csr", "key"
	Serial  string `json:"serial,omitempty"`
	Subject string `json:"subject,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Context carries operation details.
type Context struct {
	Profile   string `json:"profile,omitempty"`
	CA        string `json:"ca,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Event is one line of the audit log.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"` // RFC3339, UTC
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Context   Context   `json:"context,omitempty"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"`
	Hash      string    `json:"hash"`
}

// NewEvent returns an event stamped with the current time and the local
// user as actor.
func NewEvent(eventType EventType, result Result) *Event {
	hostname, _ := os.Hostname()
	return &Event{
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor:     Actor{Type: "user", ID: currentUser(), Host: hostname},
		Result:    result,
	}
}

func currentUser() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(key); u != "" {
			return u
		}
	}
	return "unknown"
}

// WithObject sets the object.
func (e *Event) WithObject(obj Object) *Event {
	e.Object = obj
	return e
}

// WithContext sets the context.
func (e *Event) WithContext(ctx Context) *Event {
	e.Context = ctx
	return e
}

// Validate reports a missing required field.
func (e *Event) Validate() error {
	switch {
	case e.EventType == "":
		return fmt.Errorf("event_type is required")
	case e.Timestamp == "":
		return fmt.Errorf("timestamp is required")
	case e.Actor.Type == "" || e.Actor.ID == "":
		return fmt.Errorf("actor type and id are required")
	case e.Result == "":
		return fmt.Errorf("result is required")
	}
	return nil
}

// CanonicalJSON returns the bytes the event hash covers: every field
// except Hash, in declaration order.
func (e *Event) CanonicalJSON() ([]byte, error) {
	type hashed struct {
		EventType EventType `json:"event_type"`
		Timestamp string    `json:"timestamp"`
		Actor     Actor     `json:"actor"`
		Object    Object    `json:"object"`
		Context   Context   `json:"context,omitempty"`
		Result    Result    `json:"result"`
		HashPrev  string    `json:"hash_prev"`
	}
	return json.Marshal(hashed{
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Object:    e.Object,
		Context:   e.Context,
		Result:    e.Result,
		HashPrev:  e.HashPrev,
	})
}

// JSON returns the full event, hash included.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}
