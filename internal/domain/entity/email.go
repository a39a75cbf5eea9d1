package entity

import (
	"time"
)

// Scanned message outcomes
const (
	OutcomeCreated   = "CREATED"
	OutcomeDuplicate = "DUPLICATE"
	OutcomeSkipped   = "SKIPPED"
	OutcomeFailed    = "FAILED"
)

// MailMessage is a message fetched from a mailbox provider
type MailMessage struct {
	MessageID  string
	From       string
	Subject    string
	Body       string
	HTMLBody   string
	ReceivedAt time.Time
}

// Text returns the plain body when present, otherwise the HTML body
func (m *MailMessage) Text() string {
	if m.Body != "" {
		return m.Body
	}
	return m.HTMLBody
}

// ScannedMessage records what happened to a mailbox message in a scan
type ScannedMessage struct {
	AccountID  uint      `bson:"accountId"`
	MessageID  string    `bson:"messageId"`
	Subject    string    `bson:"subject"`
	From       string    `bson:"from"`
	ReceivedAt time.Time `bson:"receivedAt"`
	ScannedAt  time.Time `bson:"scannedAt"`
	Outcome    string    `bson:"outcome"`
	Reason     string    `bson:"reason,omitempty"`
	FlightCode string    `bson:"confirmationCode,omitempty"`
}
