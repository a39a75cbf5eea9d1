// Package mailbox holds the translation step shared by every mailbox provider.
package mailbox

import (
	"fmt"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	"travelsync-service/pkg/parser"
)

// Translator turns a fetched mail message into a flight candidate
type Translator struct{}

// Translate runs the extraction engine over a message item
func (Translator) Translate(item provider.Item) provider.Translation {
	if item.Err != nil {
		return provider.Skip(fmt.Sprintf("unreadable message: %v", item.Err))
	}

	msg, ok := item.Payload.(*entity.MailMessage)
	if !ok || msg == nil {
		return provider.Skip("unexpected payload")
	}

	candidate, reason := parser.Extract(msg.Text(), msg.Subject, msg.From)
	if candidate == nil {
		return provider.Translation{SkipReason: reason, Message: msg}
	}
	candidate.SourceID = msg.MessageID

	return provider.Translation{Flight: candidate, Message: msg}
}
