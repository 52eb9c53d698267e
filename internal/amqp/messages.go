package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

// EventMessage is the envelope published for every committed ledger
// mutation. ID lets consumers drop redeliveries.
type EventMessage struct {
	ID          string           `json:"id"`
	Event       core.LedgerEvent `json:"event"`
	PublishedAt time.Time        `json:"publishedAt"`
}

// NewEventMessage wraps ev with a fresh message id.
func NewEventMessage(ev core.LedgerEvent) *EventMessage {
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
		ev.ID = id
	}
	return &EventMessage{
		ID:          id,
		Event:       ev,
		PublishedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a delivery body.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
