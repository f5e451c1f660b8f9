package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Entity names carried in RecordChanged messages.
const (
	EntityStudySession = "study_session"
	EntityHabit        = "habit"
	EntityFinance      = "finance"
	EntityMood         = "mood"
	EntityTask         = "task"
)

// Operations carried in RecordChanged messages.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpToggle = "toggle"
)

// RecordChanged announces a write to one of a user's records. It carries
// ids only; consumers reload whatever they need from the database.
type RecordChanged struct {
	Entity    string    `json:"entity"`
	Op        string    `json:"op"`
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordChanged creates a message stamped with the current time.
func NewRecordChanged(entity, op string, id, userID uuid.UUID) *RecordChanged {
	return &RecordChanged{
		Entity:    entity,
		Op:        op,
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedFromJSON decodes and sanity-checks a message body.
func RecordChangedFromJSON(data []byte) (*RecordChanged, error) {
	var msg RecordChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Entity == "" || msg.Op == "" {
		return nil, errors.New("message is missing entity or op")
	}
	if msg.UserID == uuid.Nil {
		return nil, errors.New("message is missing user_id")
	}
	return &msg, nil
}
