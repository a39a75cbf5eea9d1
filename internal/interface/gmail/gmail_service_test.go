package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelsync-service/internal/domain/entity"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/internal/infrastructure/ratelimit"
	"travelsync-service/pkg/logger"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newTestService(t *testing.T, handler http.HandlerFunc) *GmailService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGmailService(srv.URL+"/", 5*time.Second, ratelimit.NewLimiters(0, 0), logger.NewNopLogger())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchSince_ReadsMessages(t *testing.T) {
	var query string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/messages"):
			query = r.URL.Query().Get("q")
			writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "b"}, {"id": "a"}}})
		case strings.HasSuffix(r.URL.Path, "/messages/a"):
			writeJSON(w, map[string]any{
				"id":           "a",
				"internalDate": "1735732800000",
				"payload": map[string]any{
					"mimeType": "multipart/alternative",
					"headers": []map[string]string{
						{"name": "From", "value": "United <notify@united.com>"},
						{"name": "Subject", "value": "Flight confirmation"},
					},
					"parts": []map[string]any{
						{"mimeType": "text/plain", "body": map[string]string{"data": encode("Flight UA1234 JFK LAX")}},
						{"mimeType": "text/html", "body": map[string]string{"data": encode("<html>x</html>")}},
					},
				},
			})
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
		}
	})

	account := &entity.Account{ID: 1, Kind: entity.ProviderGmail, AccessToken: "access-1"}
	checkpoint := entity.Checkpoint{At: time.Unix(1735689600, 0)}

	items, next, err := svc.FetchSince(context.Background(), account, checkpoint)
	require.NoError(t, err)
	assert.Equal(t, SearchQuery+" after:1735689600", query)
	assert.True(t, strings.HasPrefix(query, "from:(united.com OR aa.com OR delta.com OR southwest.com) subject:("))

	require.Len(t, items, 2)
	assert.NoError(t, items[0].Err)
	msg := items[0].Payload.(*entity.MailMessage)
	assert.Equal(t, "Flight confirmation", msg.Subject)
	assert.Equal(t, "United <notify@united.com>", msg.From)
	assert.Equal(t, "Flight UA1234 JFK LAX", msg.Body)
	assert.Equal(t, "<html>x</html>", msg.HTMLBody)

	assert.Error(t, items[1].Err, "an unreadable message is carried as an item error")
	assert.ErrorIs(t, items[1].Err, apperrors.ErrMalformedItem)

	assert.Equal(t, time.UnixMilli(1735732800000).UTC(), next.At)

	tr := svc.Translate(items[0])
	require.NotNil(t, tr.Flight, tr.SkipReason)
	assert.Equal(t, "UA1234", tr.Flight.FlightNumber)
}

func TestFetchSince_Unauthorized(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	})

	checkpoint := entity.Checkpoint{At: time.Unix(100, 0)}
	_, next, err := svc.FetchSince(context.Background(), &entity.Account{ID: 1, AccessToken: "stale"}, checkpoint)
	assert.ErrorIs(t, err, apperrors.ErrAuthExpired)
	assert.Equal(t, checkpoint, next)
}

func TestFetchSince_RateLimited(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, _, err := svc.FetchSince(context.Background(), &entity.Account{ID: 1}, entity.Checkpoint{})
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestFetchSince_SkipsMessagesAtCheckpoint(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/users/me/messages") {
			writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "old"}}})
			return
		}
		writeJSON(w, map[string]any{"id": "old", "internalDate": "1000", "payload": map[string]any{}})
	})

	checkpoint := entity.Checkpoint{At: time.UnixMilli(1000)}
	items, next, err := svc.FetchSince(context.Background(), &entity.Account{ID: 1}, checkpoint)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, checkpoint, next)
}

func TestFetchSince_TransientBodyErrorStaysRetryable(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/users/me/messages") {
			writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "m1"}}})
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	items, _, err := svc.FetchSince(context.Background(), &entity.Account{ID: 1}, entity.Checkpoint{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.ErrorIs(t, items[0].Err, apperrors.ErrTransient)
	assert.NotErrorIs(t, items[0].Err, apperrors.ErrMalformedItem)
}

func TestFetchSince_UserRateLimitOn403(t *testing.T) {
	tests := []struct {
		reason string
		want   error
	}{
		{"userRateLimitExceeded", apperrors.ErrRateLimited},
		{"rateLimitExceeded", apperrors.ErrRateLimited},
		{"insufficientPermissions", apperrors.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied","errors":[{"reason":"` + tt.reason + `"}]}}`))
			})

			_, _, err := svc.FetchSince(context.Background(), &entity.Account{ID: 1}, entity.Checkpoint{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetchSince_BacklogIsReadOldestFirst(t *testing.T) {
	dates := map[string]string{"a": "1000", "b": "2000", "c": "3000"}
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/users/me/messages") {
			if r.URL.Query().Get("pageToken") == "" {
				writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "c"}}, "nextPageToken": "p2"})
				return
			}
			writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "b"}, {"id": "a"}}})
			return
		}
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		writeJSON(w, map[string]any{"id": id, "internalDate": dates[id], "payload": map[string]any{}})
	})
	svc.maxBodies = 2
	account := &entity.Account{ID: 1}

	first, next, err := svc.FetchSince(context.Background(), account, entity.Checkpoint{})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].NativeID)
	assert.Equal(t, "b", first[1].NativeID)
	assert.True(t, next.At.Before(time.UnixMilli(2000)), "the checkpoint stays below the last read message")

	second, next, err := svc.FetchSince(context.Background(), account, next)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, item := range append(first, second...) {
		seen[item.NativeID] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, seen)
	assert.Equal(t, time.UnixMilli(3000).UTC(), next.At)
}
