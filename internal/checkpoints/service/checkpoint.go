package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	checkpointserrors "fleetshare/internal/checkpoints/errors"
	"fleetshare/internal/checkpoints/repository"
	"fleetshare/internal/checkpoints/validator"
	"fleetshare/pkg/config"
	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/kafka"
	"fleetshare/pkg/model"
	"fleetshare/pkg/observability"
	"fleetshare/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// tokenBytes is the entropy of a handover token; hex-encoded to 32 chars.
const tokenBytes = 16

type CheckpointService interface {
	Issue(ctx context.Context, reservationID string, req *model.CheckpointIssueRequest) (*model.Checkpoint, error)
	Scan(ctx context.Context, req *model.CheckpointScanRequest) (*model.Checkpoint, error)
	Sign(ctx context.Context, req *model.CheckpointSignRequest) (*model.Checkpoint, error)
	Complete(ctx context.Context, req *model.CheckpointCompleteRequest) (*CompletionResult, error)
	GetByToken(ctx context.Context, token string) (*model.Checkpoint, error)
	ListByReservation(ctx context.Context, reservationID string) ([]*model.Checkpoint, error)
	ExpireDue(ctx context.Context) (int64, error)
	ExpireForReservation(ctx context.Context, reservationID string) (int64, error)
}

// ReservationUsage is the reservations service seen from the handover flow.
type ReservationUsage interface {
	StartUsage(ctx context.Context, reservationID string) error
	CompleteUsage(ctx context.Context, reservationID string, completion *model.ReservationCompletion) error
	GetByID(ctx context.Context, reservationID string) (*model.Reservation, error)
}

// EventPublisher emits checkpoint lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// CompletionResult reports a completed handover. Degraded means the
// checkpoint completed but the reservation transition failed and needs
// reconciliation.
type CompletionResult struct {
	Checkpoint *model.Checkpoint `json:"checkpoint"`
	Degraded   bool              `json:"degraded,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

type checkpointService struct {
	repo         repository.CheckpointRepository
	validator    *validator.CheckpointValidator
	reservations ReservationUsage
	events       EventPublisher
	cfg          *config.Config
}

func NewCheckpointService(
	repo repository.CheckpointRepository,
	validator *validator.CheckpointValidator,
	reservations ReservationUsage,
	events EventPublisher,
	cfg *config.Config,
) CheckpointService {
	return &checkpointService{
		repo:         repo,
		validator:    validator,
		reservations: reservations,
		events:       events,
		cfg:          cfg,
	}
}

// Issue creates a fresh handover token for the reservation. Any open
// checkpoint of the same type is superseded in the same transaction, so at
// most one token per (reservation, type) is ever live.
func (s *checkpointService) Issue(ctx context.Context, reservationID string, req *model.CheckpointIssueRequest) (*model.Checkpoint, error) {
	if reservationID == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	req.Notes = sanitizer.NormalizeNotes(req.Notes)
	if err := s.validator.ValidateIssue(req); err != nil {
		s.cfg.Log.Warn("Checkpoint issue validation failed", "error", err)
		return nil, apperrors.Validation("Checkpoint validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.verifyReservation(ctx, reservationID); err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate checkpoint token", err)
	}

	validMinutes := req.ValidMinutes
	if validMinutes <= 0 {
		validMinutes = s.cfg.CheckpointValidMinutes
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	checkpoint := &model.Checkpoint{
		ReservationID: reservationID,
		Type:          req.Type,
		Status:        model.CheckpointStatusPending,
		Token:         token,
		IssuedBy:      req.IssuedBy,
		ExpiresAt:     now.Add(time.Duration(validMinutes) * time.Minute),
		Notes:         req.Notes,
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		superseded, err := s.repo.ExpireOpenForReservation(sessCtx, reservationID, req.Type)
		if err != nil {
			return apperrors.Internal("Failed to supersede open checkpoints", err)
		}
		if superseded > 0 {
			observability.CheckpointsExpired.Inc()
			s.cfg.Log.Info("Superseded open checkpoints",
				"reservation_id", reservationID,
				"type", req.Type,
				"count", superseded,
			)
		}
		if err := s.repo.Create(sessCtx, checkpoint); err != nil {
			return apperrors.Internal("Failed to create checkpoint", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to issue checkpoint", "reservation_id", reservationID, "error", err)
		return nil, err
	}

	observability.CheckpointsIssued.Inc()
	s.cfg.Log.Info("Checkpoint issued",
		"id", checkpoint.ID,
		"reservation_id", reservationID,
		"type", checkpoint.Type,
		"expires_at", checkpoint.ExpiresAt,
	)
	return checkpoint, nil
}

// Scan moves a pending checkpoint to scanned and records where the QR code
// was read.
func (s *checkpointService) Scan(ctx context.Context, req *model.CheckpointScanRequest) (*model.Checkpoint, error) {
	if err := s.validator.ValidateScan(req); err != nil {
		return nil, apperrors.Validation("Checkpoint validation failed", map[string]any{"error": err.Error()})
	}

	checkpoint, err := s.liveByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if !CanTransition(checkpoint.Status, model.CheckpointStatusScanned) {
		return nil, transitionRefused(checkpoint.Status, model.CheckpointStatusScanned)
	}

	matched, err := s.repo.Scan(ctx, checkpoint.ID, req)
	if err != nil {
		return nil, apperrors.Internal("Failed to scan checkpoint", err)
	}
	if matched == 0 {
		return nil, s.invalidTransition(ctx, checkpoint.ID, model.CheckpointStatusScanned)
	}

	observability.CheckpointScans.WithLabelValues(model.CheckpointStatusScanned).Inc()
	s.cfg.Log.Info("Checkpoint scanned", "id", checkpoint.ID, "reservation_id", checkpoint.ReservationID)
	return s.repo.FindByID(ctx, checkpoint.ID)
}

// Sign moves a scanned checkpoint to signed with the receiving party's
// identity and signature.
func (s *checkpointService) Sign(ctx context.Context, req *model.CheckpointSignRequest) (*model.Checkpoint, error) {
	req.SignerName = sanitizer.NormalizeName(req.SignerName)
	if err := s.validator.ValidateSign(req); err != nil {
		return nil, apperrors.Validation("Checkpoint validation failed", map[string]any{"error": err.Error()})
	}

	checkpoint, err := s.liveByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if !CanTransition(checkpoint.Status, model.CheckpointStatusSigned) {
		return nil, transitionRefused(checkpoint.Status, model.CheckpointStatusSigned)
	}

	matched, err := s.repo.Sign(ctx, checkpoint.ID, req)
	if err != nil {
		return nil, apperrors.Internal("Failed to sign checkpoint", err)
	}
	if matched == 0 {
		return nil, s.invalidTransition(ctx, checkpoint.ID, model.CheckpointStatusSigned)
	}

	observability.CheckpointScans.WithLabelValues(model.CheckpointStatusSigned).Inc()
	s.cfg.Log.Info("Checkpoint signed", "id", checkpoint.ID, "signer", req.SignerName)
	return s.repo.FindByID(ctx, checkpoint.ID)
}

// Complete confirms a signed handover and drives the reservation: a
// check_in starts usage, a check_out completes it. The reservation call is
// not allowed to undo the handover; its failure is surfaced as degraded.
func (s *checkpointService) Complete(ctx context.Context, req *model.CheckpointCompleteRequest) (*CompletionResult, error) {
	if err := s.validator.ValidateComplete(req); err != nil {
		return nil, apperrors.Validation("Checkpoint validation failed", map[string]any{"error": err.Error()})
	}

	checkpoint, err := s.liveByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if !CanTransition(checkpoint.Status, model.CheckpointStatusCompleted) {
		return nil, transitionRefused(checkpoint.Status, model.CheckpointStatusCompleted)
	}

	matched, err := s.repo.Complete(ctx, checkpoint.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to complete checkpoint", err)
	}
	if matched == 0 {
		return nil, s.invalidTransition(ctx, checkpoint.ID, model.CheckpointStatusCompleted)
	}

	observability.CheckpointScans.WithLabelValues(model.CheckpointStatusCompleted).Inc()

	completed, err := s.repo.FindByID(ctx, checkpoint.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to reload checkpoint", err)
	}

	result := &CompletionResult{Checkpoint: completed}
	if err := s.driveReservation(ctx, completed); err != nil {
		result.Degraded = true
		result.Reason = "reservation transition failed and needs reconciliation"
		s.cfg.Log.Error("Reservation transition failed after handover",
			"checkpoint_id", completed.ID,
			"reservation_id", completed.ReservationID,
			"type", completed.Type,
			"error", err,
		)
	}

	s.publishCompleted(ctx, completed)

	s.cfg.Log.Info("Checkpoint completed",
		"id", completed.ID,
		"reservation_id", completed.ReservationID,
		"degraded", result.Degraded,
	)
	return result, nil
}

// GetByToken reads a checkpoint, lazily expiring it when past its deadline.
func (s *checkpointService) GetByToken(ctx context.Context, token string) (*model.Checkpoint, error) {
	if token == "" {
		return nil, apperrors.InvalidInput("Token cannot be empty")
	}

	checkpoint, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.expireLazily(ctx, checkpoint) {
		return s.repo.FindByID(ctx, checkpoint.ID)
	}
	return checkpoint, nil
}

func (s *checkpointService) ListByReservation(ctx context.Context, reservationID string) ([]*model.Checkpoint, error) {
	if reservationID == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	checkpoints, err := s.repo.FindByReservation(ctx, reservationID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve checkpoints", err)
	}
	return checkpoints, nil
}

// ExpireDue sweeps all overdue checkpoints. Called by the background
// sweeper; safe to run concurrently across instances.
func (s *checkpointService) ExpireDue(ctx context.Context) (int64, error) {
	expired, err := s.repo.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		return 0, apperrors.Internal("Failed to expire due checkpoints", err)
	}
	if expired > 0 {
		observability.CheckpointsExpired.Add(float64(expired))
		s.cfg.Log.Info("Expired overdue checkpoints", "count", expired)
	}
	return expired, nil
}

// ExpireForReservation expires all open checkpoints of a cancelled
// reservation. Driven by the reservation.cancelled event consumer.
func (s *checkpointService) ExpireForReservation(ctx context.Context, reservationID string) (int64, error) {
	if reservationID == "" {
		return 0, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	expired, err := s.repo.ExpireOpenForReservation(ctx, reservationID, "")
	if err != nil {
		return 0, apperrors.Internal("Failed to expire checkpoints for reservation", err)
	}
	if expired > 0 {
		observability.CheckpointsExpired.Add(float64(expired))
		s.cfg.Log.Info("Expired checkpoints for cancelled reservation",
			"reservation_id", reservationID,
			"count", expired,
		)
	}
	return expired, nil
}

// --- Helpers ---

// liveByToken resolves a token to a non-terminal, non-overdue checkpoint.
// Overdue tokens are expired on the spot and reported as EXPIRED; settled
// checkpoints report INVALID_STATE.
func (s *checkpointService) liveByToken(ctx context.Context, token string) (*model.Checkpoint, error) {
	checkpoint, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.expireLazily(ctx, checkpoint) || checkpoint.Status == model.CheckpointStatusExpired {
		return nil, apperrors.Expired("Checkpoint token")
	}
	if checkpoint.IsTerminal() {
		return nil, apperrors.InvalidState("Checkpoint is already settled", checkpoint.Status)
	}

	return checkpoint, nil
}

func (s *checkpointService) findByToken(ctx context.Context, token string) (*model.Checkpoint, error) {
	checkpoint, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, checkpointserrors.ErrTokenNotFound) {
			return nil, apperrors.NotFound("Checkpoint token")
		}
		return nil, apperrors.Internal("Failed to retrieve checkpoint", err)
	}
	return checkpoint, nil
}

// expireLazily runs the expiry CAS when the deadline has passed. A false
// return after a zero-match CAS means another writer settled the document
// first; the caller re-reads in that case anyway.
func (s *checkpointService) expireLazily(ctx context.Context, checkpoint *model.Checkpoint) bool {
	if !checkpoint.IsPastExpiry(time.Now().UTC()) {
		return false
	}

	matched, err := s.repo.Expire(ctx, checkpoint.ID)
	if err != nil {
		s.cfg.Log.Warn("Lazy expiry failed", "id", checkpoint.ID, "error", err)
		return false
	}
	if matched > 0 {
		observability.CheckpointsExpired.Inc()
	}
	return true
}

// invalidTransition classifies a zero-match CAS, distinguishing a vanished
// document from a forbidden move observed after the re-read.
func (s *checkpointService) invalidTransition(ctx context.Context, id, target string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, checkpointserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Checkpoint", id)
		}
		return apperrors.Internal("Failed to check checkpoint state", err)
	}
	return transitionRefused(existing.Status, target)
}

// transitionRefused reports a move the state machine forbids. A token that
// raced into expiry surfaces as EXPIRED, every other refusal as
// INVALID_STATE.
func transitionRefused(from, to string) error {
	if from == model.CheckpointStatusExpired {
		return apperrors.Expired("Checkpoint token")
	}
	return apperrors.InvalidState(
		fmt.Sprintf("Checkpoint cannot move to %s from its current status", to),
		from,
	)
}

func (s *checkpointService) verifyReservation(ctx context.Context, reservationID string) error {
	if s.reservations == nil {
		return nil
	}

	_, err := s.reservations.GetByID(ctx, reservationID)
	if err == nil {
		return nil
	}
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		return apperrors.NotFoundWithID("Reservation", reservationID)
	}

	// Issuance keeps working through a reservations outage; the token is
	// useless without a valid reservation at completion time anyway.
	s.cfg.Log.Warn("Could not verify reservation, issuing anyway",
		"reservation_id", reservationID,
		"error", err,
	)
	return nil
}

func (s *checkpointService) driveReservation(ctx context.Context, checkpoint *model.Checkpoint) error {
	if s.reservations == nil {
		return nil
	}

	switch checkpoint.Type {
	case model.CheckpointTypeCheckIn:
		return s.reservations.StartUsage(ctx, checkpoint.ReservationID)
	case model.CheckpointTypeCheckOut:
		return s.reservations.CompleteUsage(ctx, checkpoint.ReservationID, &model.ReservationCompletion{})
	default:
		return nil
	}
}

func (s *checkpointService) publishCompleted(ctx context.Context, checkpoint *model.Checkpoint) {
	if s.events == nil {
		return
	}

	event := kafka.CheckpointEvent{
		CheckpointID:  checkpoint.ID,
		ReservationID: checkpoint.ReservationID,
		Kind:          checkpoint.Type,
		Status:        checkpoint.Status,
		OccurredAt:    time.Now().UTC(),
	}
	if s.reservations != nil {
		if reservation, err := s.reservations.GetByID(ctx, checkpoint.ReservationID); err == nil {
			event.VehicleID = reservation.VehicleID
		}
	}

	key := event.VehicleID
	if key == "" {
		key = checkpoint.ReservationID
	}

	msg := kafka.NewMessage().
		WithKey(key).
		WithEventType(kafka.EventCheckpointCompleted).
		WithSource("checkpoints").
		WithValue(event).
		Build()

	if err := s.events.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish checkpoint event",
			"checkpoint_id", checkpoint.ID,
			"error", err,
		)
	}
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
