package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"shortreg/internal/app/model"
)

// AccessPublisher pushes access events to JetStream so the counter write
// happens off the redirect path. It carries only the code and a timestamp.
type AccessPublisher struct {
	js nats.JetStreamContext
}

// NewAccessPublisher creates a publisher over an established JetStream
// context.
func NewAccessPublisher(js nats.JetStreamContext) *AccessPublisher {
	return &AccessPublisher{js: js}
}

// Publish emits one access event for code.
func (p *AccessPublisher) Publish(code string) error {
	event := model.AccessEvent{
		ID:   uuid.NewString(),
		Code: code,
		At:   time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.AccessStreamSubject, data)
	return err
}
