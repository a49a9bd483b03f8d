package audit

import (
	"encoding/json"
	"log"
	"time"
)

// Event is one structured record in the escrow audit trail.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

// Logger records every fund movement the escrow controller performs.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogHold(orderID, founderID string, amount int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "HOLD",
		OrderID:   orderID,
		UserID:    founderID,
		Amount:    amount,
		Status:    "SUCCESS",
	})
}

func (a *Logger) LogRelease(orderID, talentID string, amount int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "RELEASE",
		OrderID:   orderID,
		UserID:    talentID,
		Amount:    amount,
		Status:    "SUCCESS",
	})
}

func (a *Logger) LogRefund(orderID, founderID string, amount int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "REFUND",
		OrderID:   orderID,
		UserID:    founderID,
		Amount:    amount,
		Status:    "SUCCESS",
	})
}

func (a *Logger) LogError(orderID, userID string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		OrderID:   orderID,
		UserID:    userID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
