package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"bilancio/internal/core"
)

// BudgetSavedMessage announces that a budget document was written. It only
// carries the key; consumers read the document itself from the store.
type BudgetSavedMessage struct {
	Key       string     `json:"key"`
	UserID    string     `json:"userId"`
	Month     core.Month `json:"month"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewBudgetSavedMessage builds the message for a freshly saved document.
func NewBudgetSavedMessage(key string, doc core.BudgetDocument) *BudgetSavedMessage {
	msg := &BudgetSavedMessage{
		Key:       key,
		UserID:    doc.UserID,
		Month:     doc.Month,
		Timestamp: time.Now().UTC(),
	}
	if doc.UpdatedAt != nil {
		msg.UpdatedAt = doc.UpdatedAt.UTC()
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *BudgetSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetSavedMessageFromJSON decodes and validates a message body.
func BudgetSavedMessageFromJSON(data []byte) (*BudgetSavedMessage, error) {
	var msg BudgetSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Key == "" {
		return nil, fmt.Errorf("budget saved message without key")
	}
	return &msg, nil
}
