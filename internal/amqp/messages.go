package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"gastos/internal/core"
	"gastos/internal/ports"
)

// ExpenseChangedMessage announces a write to an owner's ledger. Consumers
// reload whatever they need from storage; the message carries no amounts.
type ExpenseChangedMessage struct {
	Op        string    `json:"op"`
	OwnerID   string    `json:"owner_id"`
	ExpenseID string    `json:"expense_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseChangedMessage(ev ports.ExpenseChanged) *ExpenseChangedMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ExpenseChangedMessage{
		Op:        string(ev.Op),
		OwnerID:   ev.OwnerID,
		ExpenseID: ev.ExpenseID,
		Year:      ev.Month.Year,
		Month:     int(ev.Month.Month),
		Timestamp: ts.UTC(),
	}
}

// Event converts the message back to the domain event.
func (m *ExpenseChangedMessage) Event() ports.ExpenseChanged {
	return ports.ExpenseChanged{
		Op:        ports.ChangeOp(m.Op),
		OwnerID:   m.OwnerID,
		ExpenseID: m.ExpenseID,
		Month:     core.MonthSelector{Year: m.Year, Month: time.Month(m.Month)},
		At:        m.Timestamp,
	}
}

func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes and checks a message body.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("message without owner_id")
	}
	switch ports.ChangeOp(msg.Op) {
	case ports.OpCreated, ports.OpDeleted:
	default:
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	if err := (core.MonthSelector{Year: msg.Year, Month: time.Month(msg.Month)}).Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
