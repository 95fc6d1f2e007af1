package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/model"
)

// IdentityClient resolves user ids to display names for presentation.
// Lookups are best effort; callers fall back to raw ids.
type IdentityClient struct {
	httpClient *HttpClient
}

func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{
		httpClient: NewHttpClient(baseURL, timeout),
	}
}

func (c *IdentityClient) ProfileFor(ctx context.Context, userID string) (*model.UserProfile, error) {
	path := "/api/v1/users/id/" + url.PathEscape(userID)

	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "identity service is temporarily unavailable", http.StatusServiceUnavailable)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFoundWithID("User", userID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Unavailable("identity service").WithDetails(map[string]any{
			"status": resp.StatusCode,
		})
	}

	var wrapper struct {
		Data model.UserProfile `json:"data"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return nil, apperrors.Internal("Failed to decode user profile", err)
	}

	return &wrapper.Data, nil
}
