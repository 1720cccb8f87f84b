package model

import "time"

// AccessEvent is the wire message published when a short code is resolved
// and the access counter should advance. It deliberately carries nothing
// about the visitor, only the code and the time of the event.
type AccessEvent struct {
	ID   string    `json:"id"`
	Code string    `json:"code"`
	At   time.Time `json:"at"`
}

const (
	AccessStreamName    = "ACCESS"
	AccessStreamSubject = "access.events"
	AccessConsumerName  = "access-counter"
	AccessStreamMaxAge  = 24 * time.Hour
)
