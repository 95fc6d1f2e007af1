package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/model"
)

// ReservationClient lets the checkpoint service drive reservation usage
// transitions when handovers complete.
type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseURL string, timeout time.Duration) *ReservationClient {
	return &ReservationClient{
		httpClient: NewHttpClient(baseURL, timeout),
	}
}

// StartUsage signals that the vehicle was physically handed over: the
// reservation moves from booked to in_use.
func (c *ReservationClient) StartUsage(ctx context.Context, reservationID string) error {
	path := "/api/v1/reservations/id/" + url.PathEscape(reservationID) + "/start"
	return c.post(ctx, path, nil)
}

// CompleteUsage signals that the vehicle was returned: the reservation
// moves from in_use to completed.
func (c *ReservationClient) CompleteUsage(ctx context.Context, reservationID string, completion *model.ReservationCompletion) error {
	path := "/api/v1/reservations/id/" + url.PathEscape(reservationID) + "/complete"
	return c.post(ctx, path, completion)
}

func (c *ReservationClient) GetByID(ctx context.Context, reservationID string) (*model.Reservation, error) {
	path := "/api/v1/reservations/id/" + url.PathEscape(reservationID)

	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "reservations service is temporarily unavailable", http.StatusServiceUnavailable)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFoundWithID("Reservation", reservationID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Unavailable("reservations service").WithDetails(map[string]any{
			"status": resp.StatusCode,
			"error":  GetErrorMessage(resp),
		})
	}

	var wrapper struct {
		Data model.Reservation `json:"data"`
	}
	if err := resp.DecodeJSON(&wrapper); err != nil {
		return nil, apperrors.Internal("Failed to decode reservation", err)
	}

	return &wrapper.Data, nil
}

func (c *ReservationClient) post(ctx context.Context, path string, body any) error {
	resp, err := c.httpClient.POST(ctx, path, body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "reservations service is temporarily unavailable", http.StatusServiceUnavailable)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return apperrors.NotFound("Reservation")
	case http.StatusConflict:
		return apperrors.InvalidState(GetErrorMessage(resp), "")
	default:
		return apperrors.Unavailable("reservations service").WithDetails(map[string]any{
			"status": resp.StatusCode,
			"error":  GetErrorMessage(resp),
		})
	}
}
