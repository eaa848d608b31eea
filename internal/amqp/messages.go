package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is what happened to a record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ChangeEvent announces a successful mutation of one record.
// Deletes carry no record body, only the id.
type ChangeEvent struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Action    Action          `json:"action"`
	RecordID  string          `json:"record_id"`
	Origin    string          `json:"origin"`
	Timestamp time.Time       `json:"timestamp"`
	Record    json.RawMessage `json:"record,omitempty"`
}

// NewChangeEvent builds an event for entity/recordID. record may be nil.
func NewChangeEvent(entity string, action Action, recordID, origin string, record any) (*ChangeEvent, error) {
	ev := &ChangeEvent{
		ID:        uuid.NewString(),
		Entity:    entity,
		Action:    action,
		RecordID:  recordID,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
	}
	if record != nil {
		raw, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		ev.Record = raw
	}
	return ev, nil
}

// RoutingKey is "<entity>.<action>", e.g. "incomes.created".
func (e *ChangeEvent) RoutingKey() string {
	return e.Entity + "." + string(e.Action)
}

// DecodeRecord unmarshals the carried record into dest.
func (e *ChangeEvent) DecodeRecord(dest any) error {
	if len(e.Record) == 0 {
		return errors.New("event carries no record")
	}
	return json.Unmarshal(e.Record, dest)
}

// ToJSON converts the message to JSON bytes
func (e *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ChangeEventFromJSON parses and minimally validates a message body.
func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Entity == "" || ev.Action == "" {
		return nil, errors.New("change event without entity or action")
	}
	return &ev, nil
}
