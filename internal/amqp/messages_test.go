package amqp

import (
	"testing"

	"potrosnja/internal/core"
)

func TestExpenseRecordedMessage(t *testing.T) {
	e := core.Expense{
		ID:       7,
		UserID:   3,
		Category: "Hrana",
		Amount:   core.Money{Cents: 4250},
		Date:     core.NewDate(2024, 3, 15),
	}

	msg := NewExpenseRecordedMessage(e)
	if msg.Date != "2024-03-15" {
		t.Errorf("Date = %q, want 2024-03-15", msg.Date)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := ExpenseRecordedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.ID != 7 || got.UserID != 3 || got.Category != "Hrana" || got.AmountCents != 4250 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestExpenseRecordedMessageFromJSONInvalid(t *testing.T) {
	if _, err := ExpenseRecordedMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
