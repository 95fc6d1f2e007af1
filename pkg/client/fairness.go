package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/model"
)

// FairnessClient is the scheduler's view of the fairness service. It only
// asks one question: what is this user's current priority on a vehicle.
type FairnessClient struct {
	httpClient *HttpClient
	backoff    time.Duration
}

func NewFairnessClient(baseURL string, timeout, backoff time.Duration) *FairnessClient {
	return &FairnessClient{
		httpClient: NewHttpClient(baseURL, timeout),
		backoff:    backoff,
	}
}

// PriorityFor looks up the requester's fairness priority. One retry with
// backoff, then the caller degrades to normal priority; booking admission
// never depends on this call succeeding.
func (c *FairnessClient) PriorityFor(ctx context.Context, userID, groupID, vehicleID string) (*model.PriorityLookup, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("group_id", groupID)
	q.Set("vehicle_id", vehicleID)
	path := "/api/v1/fairness/priority?" + q.Encode()

	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, apperrors.Timeout("fairness lookup cancelled")
		case <-time.After(c.backoff):
		}
		resp, err = c.httpClient.GET(ctx, path)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "fairness service is temporarily unavailable", http.StatusServiceUnavailable)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Unavailable("fairness service").WithDetails(map[string]any{
			"status": resp.StatusCode,
			"error":  GetErrorMessage(resp),
		})
	}

	var wrapper struct {
		Data model.PriorityLookup `json:"data"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return nil, apperrors.Internal("Failed to decode priority lookup", err)
	}

	return &wrapper.Data, nil
}
