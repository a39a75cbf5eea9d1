// Package foursquare syncs venue check-ins from the Foursquare v2 API.
package foursquare

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/internal/infrastructure/httpx"
	"travelsync-service/internal/infrastructure/ratelimit"
	"travelsync-service/pkg/logger"
)

const providerName = string(entity.ProviderFoursquare)

type checkinsResponse struct {
	Meta struct {
		Code        int    `json:"code"`
		ErrorType   string `json:"errorType"`
		ErrorDetail string `json:"errorDetail"`
	} `json:"meta"`
	Response struct {
		Checkins struct {
			Count int           `json:"count"`
			Items []checkinItem `json:"items"`
		} `json:"checkins"`
	} `json:"response"`
}

type checkinItem struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	Shout     string `json:"shout"`
	Venue     *struct {
		Name     string `json:"name"`
		Location struct {
			Address string   `json:"address"`
			City    string   `json:"city"`
			Lat     *float64 `json:"lat"`
			Lng     *float64 `json:"lng"`
		} `json:"location"`
		Categories []struct {
			Name    string `json:"name"`
			Primary bool   `json:"primary"`
		} `json:"categories"`
	} `json:"venue"`
	Photos struct {
		Items []struct {
			Prefix string `json:"prefix"`
			Suffix string `json:"suffix"`
		} `json:"items"`
	} `json:"photos"`
}

// CheckinService lists a user's check-ins
type CheckinService struct {
	baseURL    string
	version    string
	httpClient *http.Client
	limiters   *ratelimit.Limiters
	logger     logger.Logger
	limit      int
	maxPages   int
	now        func() time.Time
}

// NewCheckinService creates a Foursquare client rooted at baseURL (https://api.foursquare.com)
func NewCheckinService(baseURL, version string, timeout time.Duration, limiters *ratelimit.Limiters, logger logger.Logger) *CheckinService {
	return &CheckinService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		httpClient: &http.Client{Timeout: timeout},
		limiters:   limiters,
		logger:     logger,
		limit:      250,
		maxPages:   20,
		now:        time.Now,
	}
}

var _ provider.Client = (*CheckinService)(nil)

// Kind implements provider.Client
func (s *CheckinService) Kind() entity.ProviderKind {
	return entity.ProviderFoursquare
}

// FetchSince lists check-ins in the window (checkpoint, now], oldest first and
// page by page. When the window holds more than maxPages pages the checkpoint
// stops just before the last check-in read; otherwise it is the window's upper bound.
func (s *CheckinService) FetchSince(ctx context.Context, account *entity.Account, checkpoint entity.Checkpoint) ([]provider.Item, entity.Checkpoint, error) {
	before := s.now().UTC().Truncate(time.Second)

	var items []provider.Item
	for page := 0; page < s.maxPages; page++ {
		checkins, err := s.ListCheckins(ctx, account.AccessToken, checkpoint.At, before, page*s.limit)
		if err != nil {
			return nil, checkpoint, err
		}
		for _, c := range checkins {
			items = append(items, provider.Item{
				NativeID:   c.ID,
				ReceivedAt: time.Unix(c.CreatedAt, 0).UTC(),
				Payload:    c,
			})
		}
		if len(checkins) < s.limit {
			s.logger.Debug("Fetched check-ins", "accountId", account.ID, "count", len(items))
			return items, checkpoint.Max(entity.Checkpoint{At: before}), nil
		}
	}

	s.logger.Warn("Check-in backlog exceeds one sync", "accountId", account.ID, "read", len(items))
	last := items[len(items)-1].ReceivedAt
	return items, checkpoint.Max(entity.Checkpoint{At: last.Add(-time.Nanosecond)}), nil
}

// ListCheckins calls /v2/users/self/checkins for one page of the window [after, before].
// A zero after means no lower bound.
func (s *CheckinService) ListCheckins(ctx context.Context, token string, after, before time.Time, offset int) ([]checkinItem, error) {
	params := url.Values{}
	params.Set("oauth_token", token)
	params.Set("v", s.version)
	params.Set("limit", strconv.Itoa(s.limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sort", "oldestfirst")
	if !after.IsZero() {
		params.Set("afterTimestamp", strconv.FormatInt(after.Unix(), 10))
	}
	params.Set("beforeTimestamp", strconv.FormatInt(before.Unix(), 10))

	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/v2/users/self/checkins?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewTransient(providerName, err)
	}

	var resp checkinsResponse
	if err := httpx.GetJSON(ctx, s.httpClient, s.limiters, providerName, req, &resp); err != nil {
		return nil, err
	}
	if resp.Meta.Code != 0 && resp.Meta.Code != http.StatusOK {
		return nil, apperrors.FromStatus(providerName, resp.Meta.Code,
			fmt.Errorf("%s: %s", resp.Meta.ErrorType, resp.Meta.ErrorDetail))
	}

	return resp.Response.Checkins.Items, nil
}

// Translate maps a Foursquare check-in to the canonical shape
func (s *CheckinService) Translate(item provider.Item) provider.Translation {
	if item.Err != nil {
		return provider.Skip(fmt.Sprintf("unreadable check-in: %v", item.Err))
	}

	c, ok := item.Payload.(checkinItem)
	if !ok {
		return provider.Skip("unexpected payload")
	}
	if c.ID == "" || c.CreatedAt == 0 {
		return provider.Skip("check-in without id or time")
	}
	if c.Venue == nil {
		return provider.Skip("check-in without venue")
	}

	candidate := &entity.CheckinCandidate{
		NativeID:     c.ID,
		VenueName:    c.Venue.Name,
		VenueAddress: c.Venue.Location.Address,
		Latitude:     c.Venue.Location.Lat,
		Longitude:    c.Venue.Location.Lng,
		CheckinTime:  time.Unix(c.CreatedAt, 0).UTC(),
		Shout:        c.Shout,
	}
	for i, cat := range c.Venue.Categories {
		if i == 0 || cat.Primary {
			candidate.VenueCategory = cat.Name
		}
	}
	if len(c.Photos.Items) > 0 {
		p := c.Photos.Items[0]
		candidate.PhotoURL = p.Prefix + "original" + p.Suffix
	}

	return provider.Translation{Checkin: candidate}
}
