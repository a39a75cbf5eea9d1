package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	apperrors "travelsync-service/internal/errors"
	"travelsync-service/internal/infrastructure/ratelimit"
	"travelsync-service/internal/interface/mailbox"
	"travelsync-service/pkg/logger"
)

const providerName = string(entity.ProviderGmail)

// SearchQuery selects airline confirmation mail from the supported carriers
const SearchQuery = "from:(united.com OR aa.com OR delta.com OR southwest.com) " +
	"subject:(flight confirmation OR itinerary OR booking confirmation)"

// GmailService reads confirmation emails from a Gmail mailbox
type GmailService struct {
	mailbox.Translator

	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	limiters   *ratelimit.Limiters
	logger     logger.Logger
	pageSize   int64
	maxBodies  int
}

// NewGmailService creates a new Gmail client. An empty endpoint uses the public API.
func NewGmailService(endpoint string, timeout time.Duration, limiters *ratelimit.Limiters, logger logger.Logger) *GmailService {
	return &GmailService{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		timeout:    timeout,
		limiters:   limiters,
		logger:     logger,
		pageSize:   100,
		maxBodies:  500,
	}
}

var _ provider.Client = (*GmailService)(nil)

// Kind implements provider.Client
func (s *GmailService) Kind() entity.ProviderKind {
	return entity.ProviderGmail
}

// FetchSince lists matching messages received after the checkpoint and reads
// them oldest first. Messages whose body cannot be read are returned with Err set.
// At most maxBodies items are returned; the checkpoint then stops just before the
// newest of them so the next firing picks up the rest.
func (s *GmailService) FetchSince(ctx context.Context, account *entity.Account, checkpoint entity.Checkpoint) ([]provider.Item, entity.Checkpoint, error) {
	service, err := s.newService(ctx, account)
	if err != nil {
		return nil, checkpoint, err
	}

	query := SearchQuery
	if !checkpoint.IsZero() {
		query = fmt.Sprintf("%s after:%d", SearchQuery, checkpoint.At.Unix())
	}
	s.logger.Info("Querying Gmail", "accountId", account.ID, "query", query)

	ids, err := s.listMessageIDs(ctx, service, query)
	if err != nil {
		return nil, checkpoint, err
	}

	// the list is newest first
	slices.Reverse(ids)

	next := checkpoint
	truncated := false
	items := make([]provider.Item, 0, min(len(ids), s.maxBodies))
	for i, id := range ids {
		if len(items) == s.maxBodies {
			truncated = true
			s.logger.Warn("Gmail backlog exceeds one scan", "accountId", account.ID, "unread", len(ids)-i)
			break
		}
		if err := s.limiters.Wait(ctx, providerName); err != nil {
			return items, next, apperrors.NewTransient(providerName, err)
		}

		fullMsg, err := service.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			mapped := mapError(err)
			if errors.Is(mapped, apperrors.ErrAuthExpired) || errors.Is(mapped, apperrors.ErrRateLimited) {
				return nil, checkpoint, mapped
			}
			s.logger.Error("Failed to get message", "emailID", id, "error", err)
			if !errors.Is(mapped, apperrors.ErrTransient) {
				mapped = apperrors.NewMalformedItem(providerName, id, err)
			}
			items = append(items, provider.Item{NativeID: id, Err: mapped})
			continue
		}

		msg := convertToMessage(fullMsg)

		// after: has day granularity on some mailboxes, so filter precisely here
		if !checkpoint.IsZero() && !msg.ReceivedAt.After(checkpoint.At) {
			continue
		}

		next = next.Max(entity.Checkpoint{At: msg.ReceivedAt})
		items = append(items, provider.Item{NativeID: id, ReceivedAt: msg.ReceivedAt, Payload: msg})
	}

	if truncated && next.At.After(checkpoint.At) {
		// unread messages may share the newest timestamp
		next = entity.Checkpoint{At: next.At.Add(-time.Nanosecond)}
	}
	return items, next, nil
}

func (s *GmailService) listMessageIDs(ctx context.Context, service *gmail.Service, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		if err := s.limiters.Wait(ctx, providerName); err != nil {
			return nil, apperrors.NewTransient(providerName, err)
		}

		req := service.Users.Messages.List("me").Q(query).MaxResults(s.pageSize)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		resp, err := req.Context(ctx).Do()
		if err != nil {
			s.logger.Error("Failed to list messages", "error", err)
			return nil, mapError(err)
		}

		for _, msg := range resp.Messages {
			ids = append(ids, msg.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

func (s *GmailService) newService(ctx context.Context, account *entity.Account) (*gmail.Service, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	client := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: account.AccessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = s.timeout

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewTransient(providerName, err)
	}
	return service, nil
}

// mapError converts a Gmail API error to the failure taxonomy. Gmail reports
// per-user throttling as 403 with a rate limit reason.
func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusForbidden && rateLimitReason(gerr) {
			limited := apperrors.New(apperrors.KindRateLimited, providerName, "rate limited", err)
			limited.StatusCode = gerr.Code
			return limited
		}
		return apperrors.FromStatus(providerName, gerr.Code, err)
	}
	return apperrors.NewTransient(providerName, err)
}

func rateLimitReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

// convertToMessage converts a Gmail message to our domain entity
func convertToMessage(msg *gmail.Message) *entity.MailMessage {
	m := &entity.MailMessage{
		MessageID:  msg.Id,
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload == nil {
		return m
	}

	// Extract header information
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			m.From = header.Value
		case "Subject":
			m.Subject = header.Value
		}
	}

	collectBodies(msg.Payload, m)
	return m
}

// collectBodies walks nested multipart parts, keeping the first plain and HTML body
func collectBodies(part *gmail.MessagePart, m *entity.MailMessage) {
	if part.Body != nil && part.Body.Data != "" {
		data, err := decodeBody(part.Body.Data)
		if err == nil {
			switch {
			case strings.HasPrefix(part.MimeType, "text/html"):
				if m.HTMLBody == "" {
					m.HTMLBody = data
				}
			case part.Filename == "" && (part.MimeType == "" || strings.HasPrefix(part.MimeType, "text/plain")):
				if m.Body == "" {
					m.Body = data
				}
			}
		}
	}
	for _, child := range part.Parts {
		collectBodies(child, m)
	}
}

func decodeBody(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}
