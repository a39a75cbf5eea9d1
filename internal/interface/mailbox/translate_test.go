package mailbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
)

func TestTranslate_Flight(t *testing.T) {
	msg := &entity.MailMessage{
		MessageID: "m-1",
		From:      "United <unitedairlines@united.com>",
		Subject:   "Your flight confirmation",
		Body:      "Flight UA1234 JFK to LAX. Confirmation: AB12CD",
	}

	tr := Translator{}.Translate(provider.Item{NativeID: "m-1", Payload: msg})
	require.False(t, tr.Skipped(), tr.SkipReason)
	require.NotNil(t, tr.Flight)
	assert.Equal(t, "m-1", tr.Flight.SourceID)
	assert.Equal(t, "AB12CD", tr.Flight.ConfirmationCode)
	assert.Same(t, msg, tr.Message)
}

func TestTranslate_Skips(t *testing.T) {
	tr := Translator{}.Translate(provider.Item{NativeID: "x", Err: errors.New("boom")})
	assert.True(t, tr.Skipped())
	assert.Contains(t, tr.SkipReason, "boom")

	tr = Translator{}.Translate(provider.Item{NativeID: "x", Payload: "not a message"})
	assert.True(t, tr.Skipped())

	msg := &entity.MailMessage{MessageID: "m-2", From: "friend@example.com", Subject: "lunch?", Body: "see you"}
	tr = Translator{}.Translate(provider.Item{NativeID: "m-2", Payload: msg})
	assert.Equal(t, "no airline signature", tr.SkipReason)
	assert.Same(t, msg, tr.Message)
}
