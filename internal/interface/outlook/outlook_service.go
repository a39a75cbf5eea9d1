// Package outlook reads confirmation emails through Microsoft Graph.
package outlook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/internal/infrastructure/httpx"
	"travelsync-service/internal/infrastructure/ratelimit"
	"travelsync-service/internal/interface/mailbox"
	"travelsync-service/pkg/logger"
)

const providerName = string(entity.ProviderOutlook)

const subjectFilter = "(contains(subject,'flight') or contains(subject,'confirmation') or contains(subject,'itinerary'))"

type messagePage struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type graphMessage struct {
	ID               string    `json:"id"`
	Subject          string    `json:"subject"`
	ReceivedDateTime time.Time `json:"receivedDateTime"`
	From             struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

// OutlookService is the Microsoft Graph mailbox client
type OutlookService struct {
	mailbox.Translator

	baseURL    string
	httpClient *http.Client
	limiters   *ratelimit.Limiters
	logger     logger.Logger
	pageSize   int
	maxPages   int
}

// NewOutlookService creates a Graph client rooted at baseURL (https://graph.microsoft.com/v1.0)
func NewOutlookService(baseURL string, timeout time.Duration, limiters *ratelimit.Limiters, logger logger.Logger) *OutlookService {
	return &OutlookService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiters:   limiters,
		logger:     logger,
		pageSize:   50,
		maxPages:   5,
	}
}

var _ provider.Client = (*OutlookService)(nil)

// Kind implements provider.Client
func (s *OutlookService) Kind() entity.ProviderKind {
	return entity.ProviderOutlook
}

// FetchSince lists messages received after the checkpoint whose subject looks
// like a confirmation, oldest first. When the backlog is longer than maxPages the
// checkpoint stops just before the newest message read, so the next firing resumes there.
func (s *OutlookService) FetchSince(ctx context.Context, account *entity.Account, checkpoint entity.Checkpoint) ([]provider.Item, entity.Checkpoint, error) {
	// Graph only sorts on a property that leads the filter
	since := time.Unix(0, 0).UTC()
	if !checkpoint.IsZero() {
		since = checkpoint.At.UTC()
	}
	filter := fmt.Sprintf("receivedDateTime gt %s and %s", since.Format(time.RFC3339), subjectFilter)

	params := url.Values{}
	params.Set("$filter", filter)
	params.Set("$orderby", "receivedDateTime asc")
	params.Set("$top", fmt.Sprint(s.pageSize))
	params.Set("$select", "id,subject,from,receivedDateTime,body")
	link := s.baseURL + "/me/messages?" + params.Encode()

	s.logger.Info("Querying Outlook", "accountId", account.ID, "filter", filter)

	next := checkpoint
	var items []provider.Item
	for page := 0; page < s.maxPages && link != ""; page++ {
		req, err := http.NewRequest(http.MethodGet, link, nil)
		if err != nil {
			return nil, checkpoint, apperrors.NewTransient(providerName, err)
		}
		req.Header.Set("Authorization", "Bearer "+account.AccessToken)
		req.Header.Set("Accept", "application/json")

		var resp messagePage
		if err := httpx.GetJSON(ctx, s.httpClient, s.limiters, providerName, req, &resp); err != nil {
			return nil, checkpoint, err
		}

		for _, m := range resp.Value {
			msg := toMailMessage(m)
			if !checkpoint.IsZero() && !msg.ReceivedAt.After(checkpoint.At) {
				continue
			}
			next = next.Max(entity.Checkpoint{At: msg.ReceivedAt})
			items = append(items, provider.Item{NativeID: m.ID, ReceivedAt: msg.ReceivedAt, Payload: msg})
		}
		link = resp.NextLink
	}

	if link != "" && next.At.After(checkpoint.At) {
		s.logger.Warn("Outlook backlog exceeds one scan", "accountId", account.ID, "read", len(items))
		next = entity.Checkpoint{At: next.At.Add(-time.Nanosecond)}
	}
	return items, next, nil
}

func toMailMessage(m graphMessage) *entity.MailMessage {
	msg := &entity.MailMessage{
		MessageID:  m.ID,
		From:       m.From.EmailAddress.Address,
		Subject:    m.Subject,
		ReceivedAt: m.ReceivedDateTime.UTC(),
	}
	if strings.EqualFold(m.Body.ContentType, "html") {
		msg.HTMLBody = m.Body.Content
	} else {
		msg.Body = m.Body.Content
	}
	return msg
}
