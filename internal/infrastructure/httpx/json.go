// Package httpx holds the JSON-over-HTTP call shared by the REST provider clients.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "travelsync-service/internal/errors"
	"travelsync-service/internal/infrastructure/ratelimit"
)

// maxErrorBody bounds how much of an error response is kept for logs
const maxErrorBody = 2048

// GetJSON waits on the provider's limiter, performs req and decodes a 2xx body into out.
// Non-2xx statuses are mapped to the error taxonomy; transport failures are Transient.
func GetJSON(ctx context.Context, client *http.Client, limiters *ratelimit.Limiters, provider string, req *http.Request, out any) error {
	if err := limiters.Wait(ctx, provider); err != nil {
		return apperrors.NewTransient(provider, err)
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return apperrors.NewTransient(provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperrors.FromStatus(provider, resp.StatusCode, fmt.Errorf("%s", body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewTransient(provider, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
