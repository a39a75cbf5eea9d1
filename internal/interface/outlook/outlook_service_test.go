package outlook

import (
	"context"
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

func TestFetchSince_FollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	var filters []string
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			_ = json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{{
				"id":               "m2",
				"subject":          "Itinerary",
				"receivedDateTime": "2025-01-03T09:00:00Z",
				"from":             map[string]any{"emailAddress": map[string]string{"address": "x@delta.com"}},
				"body":             map[string]string{"contentType": "text", "content": "Flight DL 45 ATL BOS"},
			}}})
			return
		}
		filters = append(filters, r.URL.Query().Get("$filter"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{{
				"id":               "m1",
				"subject":          "Flight confirmation",
				"receivedDateTime": "2025-01-02T10:00:00Z",
				"from":             map[string]any{"emailAddress": map[string]string{"address": "notify@united.com"}},
				"body":             map[string]string{"contentType": "html", "content": "<html><p>Flight UA1 JFK LAX</p></html>"},
			}},
			"@odata.nextLink": srv.URL + "/me/messages?page=2",
		})
	}))
	defer srv.Close()

	svc := NewOutlookService(srv.URL, 5*time.Second, ratelimit.NewLimiters(0, 0), logger.NewNopLogger())
	checkpoint := entity.Checkpoint{At: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	items, next, err := svc.FetchSince(context.Background(), &entity.Account{ID: 3, AccessToken: "tok"}, checkpoint)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Len(t, filters, 1)
	assert.Contains(t, filters[0], "receivedDateTime gt 2025-01-01T00:00:00Z")

	first := items[0].Payload.(*entity.MailMessage)
	assert.Equal(t, "<html><p>Flight UA1 JFK LAX</p></html>", first.HTMLBody)
	assert.Equal(t, "notify@united.com", first.From)
	assert.Equal(t, time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC), next.At)

	tr := svc.Translate(items[1])
	require.NotNil(t, tr.Flight, tr.SkipReason)
	assert.Equal(t, "DELTA", tr.Flight.Airline)
}

func TestFetchSince_StatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:       apperrors.ErrAuthExpired,
		http.StatusTooManyRequests:    apperrors.ErrRateLimited,
		http.StatusServiceUnavailable: apperrors.ErrTransient,
	}
	for status, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		svc := NewOutlookService(srv.URL, time.Second, nil, logger.NewNopLogger())

		_, _, err := svc.FetchSince(context.Background(), &entity.Account{ID: 1}, entity.Checkpoint{})
		assert.ErrorIs(t, err, want, "status %d", status)
		srv.Close()
	}
}

func TestFetchSince_BacklogResumesAfterLastPage(t *testing.T) {
	message := func(id, received string) map[string]any {
		return map[string]any{
			"id":               id,
			"subject":          "Flight confirmation",
			"receivedDateTime": received,
			"body":             map[string]string{"contentType": "text", "content": "Flight UA1 JFK LAX"},
		}
	}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		assert.Equal(t, "receivedDateTime asc", r.URL.Query().Get("$orderby"))
		if strings.Contains(r.URL.Query().Get("$filter"), "gt 2025-01-02T09:59:59Z") {
			_ = json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{
				message("m1", "2025-01-02T10:00:00Z"),
				message("m2", "2025-01-02T11:00:00Z"),
			}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value":           []map[string]any{message("m1", "2025-01-02T10:00:00Z")},
			"@odata.nextLink": srv.URL + "/me/messages?page=2",
		})
	}))
	defer srv.Close()

	svc := NewOutlookService(srv.URL, 5*time.Second, ratelimit.NewLimiters(0, 0), logger.NewNopLogger())
	svc.maxPages = 1
	account := &entity.Account{ID: 3, AccessToken: "tok"}

	first, next, err := svc.FetchSince(context.Background(), account, entity.Checkpoint{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, next.At.Before(time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)))

	second, next, err := svc.FetchSince(context.Background(), account, next)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "m1", second[0].NativeID)
	assert.Equal(t, "m2", second[1].NativeID)
	assert.Equal(t, time.Date(2025, 1, 2, 11, 0, 0, 0, time.UTC), next.At)
}
