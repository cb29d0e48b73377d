package amqp

import (
	"encoding/json"
	"time"

	"potrosnja/internal/core"
)

// ExpenseRecordedMessage announces a newly saved expense. It carries the
// fields a downstream consumer needs without the receipt payload.
type ExpenseRecordedMessage struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	Date        string    `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewExpenseRecordedMessage(e core.Expense) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ID:          e.ID,
		UserID:      e.UserID,
		Category:    e.Category,
		AmountCents: e.Amount.Cents,
		Date:        e.Date.String(),
		Timestamp:   time.Now(),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
