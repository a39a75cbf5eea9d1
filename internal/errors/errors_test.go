package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("scan account 7: %w", NewAuthExpired("gmail", stderrors.New("401")))

	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.NotErrorIs(t, err, ErrTransient)
	assert.Equal(t, KindAuthExpired, KindOf(err))
}

func TestProviderError_UnwrapReachesCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewTransient("outlook", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "outlook: transient: provider call failed: connection reset", err.Error())
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindAuthExpired},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusNotFound, KindMalformedItem},
		{http.StatusBadRequest, KindMalformedItem},
		{http.StatusBadGateway, KindTransient},
		{http.StatusInternalServerError, KindTransient},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus("united", tt.status, nil)
			assert.Equal(t, tt.want, err.Kind)
			assert.Equal(t, tt.status, err.StatusCode)
		})
	}
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(stderrors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, MessageNoNewItems, UserMessage(nil))
	assert.Equal(t, MessageNotConfigured, UserMessage(NewConfigurationMissing("foursquare", "oauth client credentials")))

	raw := FromStatus("gmail", http.StatusServiceUnavailable, stderrors.New(`{"error":"backendError","secret":"x"}`))
	msg := UserMessage(raw)
	assert.Equal(t, MessageTemporary, msg)
	assert.NotContains(t, msg, "backendError")
}

func TestDuplicateKind(t *testing.T) {
	err := fmt.Errorf("create flight: %w", New(KindDuplicate, "", "duplicate record", nil))

	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, KindDuplicate, KindOf(err))
	assert.Equal(t, "create flight: duplicate_candidate: duplicate record", err.Error())
}
