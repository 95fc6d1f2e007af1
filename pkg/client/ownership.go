package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/model"
)

// OwnershipClient reads co-owner stakes from the ownership collaborator.
// The data is read-only for the core and refreshed per computation.
type OwnershipClient struct {
	httpClient *HttpClient
	backoff    time.Duration
}

func NewOwnershipClient(baseURL string, timeout, backoff time.Duration) *OwnershipClient {
	return &OwnershipClient{
		httpClient: NewHttpClient(baseURL, timeout),
		backoff:    backoff,
	}
}

// RecordsFor fetches the ownership rows for a (group, vehicle) pair. A
// failed call is retried once after a short backoff, then surfaced as
// unavailable.
func (c *OwnershipClient) RecordsFor(ctx context.Context, groupID, vehicleID string) ([]model.OwnershipRecord, error) {
	q := url.Values{}
	q.Set("group_id", groupID)
	q.Set("vehicle_id", vehicleID)
	path := "/api/v1/ownership?" + q.Encode()

	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, apperrors.Timeout("ownership lookup cancelled")
		case <-time.After(c.backoff):
		}
		resp, err = c.httpClient.GET(ctx, path)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "ownership service is temporarily unavailable", http.StatusServiceUnavailable)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Unavailable("ownership service").WithDetails(map[string]any{
			"status": resp.StatusCode,
			"error":  GetErrorMessage(resp),
		})
	}

	var wrapper struct {
		Data []model.OwnershipRecord `json:"data"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return nil, apperrors.Internal("Failed to decode ownership records", err)
	}

	return wrapper.Data, nil
}
