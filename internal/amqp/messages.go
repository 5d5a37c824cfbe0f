package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ExpenseEventMessage is the revalidation signal published after every
// successful mutation. Consumers refresh their cached views; the export
// worker additionally mirrors created expenses to the report sheet.
// The message carries only the ID; consumers fetch current state from
// the database.
type ExpenseEventMessage struct {
	ExpenseID string    `json:"expense_id"`
	Action    string    `json:"action"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEventMessage creates a revalidation message for one mutation.
func NewExpenseEventMessage(expenseID, action, userID string) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		ExpenseID: expenseID,
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// Validate checks the action field.
func (m *ExpenseEventMessage) Validate() error {
	switch m.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return nil
	}
	return fmt.Errorf("unknown action %q", m.Action)
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON decodes a message from JSON bytes.
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
