package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	reservationserrors "fleetshare/internal/reservations/errors"
	"fleetshare/internal/reservations/repository"
	"fleetshare/internal/reservations/validator"
	"fleetshare/pkg/config"
	apperrors "fleetshare/pkg/errors"
	"fleetshare/pkg/kafka"
	"fleetshare/pkg/model"
	"fleetshare/pkg/observability"
	"fleetshare/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// maxOverlapCheck bounds the conflict scan inside the booking transaction.
const maxOverlapCheck = 30

type ReservationService interface {
	Request(ctx context.Context, reservation *model.Reservation) (*model.ReservationDecision, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	SearchByVehicle(ctx context.Context, vehicleID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Reservation, int64, error)
	Start(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, completion *model.ReservationCompletion) error
	Cancel(ctx context.Context, id string, cancelledBy string) error
	Suggest(ctx context.Context, req *SuggestionRequest) ([]model.TimeSlot, error)
}

// PriorityLookup is the fairness service seen from the scheduler.
type PriorityLookup interface {
	PriorityFor(ctx context.Context, userID, groupID, vehicleID string) (*model.PriorityLookup, error)
}

// EventPublisher emits reservation lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.VehicleLockRepository
	validator *validator.ReservationValidator
	fairness  PriorityLookup
	events    EventPublisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.VehicleLockRepository,
	validator *validator.ReservationValidator,
	fairness PriorityLookup,
	events EventPublisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator,
		fairness:  fairness,
		events:    events,
		cfg:       cfg,
	}
}

// Request runs the booking pipeline: validate the window, resolve fairness
// priority, then check-and-insert atomically under the per-vehicle advisory
// lock. A conflicting window yields a rejection decision with the blocking
// reservations and ranked alternatives, not an error.
func (s *reservationService) Request(ctx context.Context, reservation *model.Reservation) (*model.ReservationDecision, error) {
	s.applyDefaults(reservation)
	s.sanitize(reservation)
	if err := s.validate(reservation); err != nil {
		return nil, err
	}

	priority := s.lookupPriority(ctx, reservation.UserID, reservation.GroupID, reservation.VehicleID)

	if s.cfg.FairnessGateBookings && priority == model.PriorityLow {
		s.cfg.Log.Info("Reservation rejected by fairness gate",
			"user_id", reservation.UserID,
			"vehicle_id", reservation.VehicleID,
		)
		return &model.ReservationDecision{
			Approved: false,
			Priority: priority,
			Reason:   "fairness priority is too low for new reservations in this group",
		}, nil
	}

	lockID, err := s.acquireVehicleLock(ctx, reservation.VehicleID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseVehicleLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release vehicle lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	var conflicts []*model.Reservation
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		found, err := s.findConflicts(sessCtx, reservation)
		if err != nil {
			return err
		}
		if len(found) > 0 {
			conflicts = found
			return reservationserrors.ErrTimeConflict
		}
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})

	if errors.Is(err, reservationserrors.ErrTimeConflict) {
		observability.BookingConflicts.Inc()
		suggestions := s.suggestionsForConflict(ctx, reservation, priority)
		return &model.ReservationDecision{
			Approved:    false,
			Priority:    priority,
			Conflicts:   conflicts,
			Suggestions: suggestions,
			Reason:      "requested window conflicts with existing reservations",
		}, nil
	}
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation", "error", err)
		return nil, err
	}

	observability.ReservationsCreated.Inc()
	s.publishEvent(ctx, kafka.EventReservationCreated, reservation)

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"vehicle_id", reservation.VehicleID,
		"user_id", reservation.UserID,
		"start_time", reservation.StartTime,
		"priority", priority,
	)

	return &model.ReservationDecision{
		Approved:    true,
		Reservation: reservation,
		Priority:    priority,
	}, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}

	return reservation, nil
}

func (s *reservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, count, nil
}

func (s *reservationService) SearchByVehicle(ctx context.Context, vehicleID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if vehicleID == "" {
		return nil, 0, apperrors.InvalidInput("VehicleID is required")
	}

	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByVehicle(ctx, vehicleID, startTime, endTime)
		if err != nil {
			s.cfg.Log.Error("Failed to count reservations by vehicle",
				"vehicle_id", vehicleID,
				"error", err,
			)
			errCount = apperrors.Internal("Failed to count reservations", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		reservations, err = s.repo.FindByVehicle(ctx, vehicleID, startTime, endTime, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to search reservations",
				"vehicle_id", vehicleID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to search reservations", err)
		}
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, count, nil
}

// Start moves a reservation from booked to in_use.
func (s *reservationService) Start(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.ReservationStatusInUse, func(txCtx context.Context) (int64, error) {
		return s.repo.Start(txCtx, id)
	})
}

// Complete moves a reservation from in_use to completed and records the
// usage totals that feed fairness aggregation.
func (s *reservationService) Complete(ctx context.Context, id string, completion *model.ReservationCompletion) error {
	if completion == nil {
		completion = &model.ReservationCompletion{}
	}
	if err := s.validator.ValidateCompletion(completion); err != nil {
		return apperrors.Validation("Invalid completion input", map[string]any{"error": err.Error()})
	}

	err := s.transition(ctx, id, model.ReservationStatusCompleted, func(txCtx context.Context) (int64, error) {
		return s.repo.Complete(txCtx, id, completion)
	})
	if err != nil {
		return err
	}

	if reservation, findErr := s.repo.FindByID(ctx, id); findErr == nil {
		s.publishEvent(ctx, kafka.EventReservationCompleted, reservation)
	}
	return nil
}

// Cancel releases the window from booked or in_use. The emitted event lets
// the checkpoint service expire any open handover checkpoints.
func (s *reservationService) Cancel(ctx context.Context, id string, cancelledBy string) error {
	err := s.transition(ctx, id, model.ReservationStatusCancelled, func(txCtx context.Context) (int64, error) {
		return s.repo.Cancel(txCtx, id, cancelledBy)
	})
	if err != nil {
		return err
	}

	if reservation, findErr := s.repo.FindByID(ctx, id); findErr == nil {
		s.publishEvent(ctx, kafka.EventReservationCancelled, reservation)
	}
	return nil
}

// transition runs one CAS status update. A zero match means either the
// document is gone or its current status forbids the move; the follow-up
// read tells the two apart.
func (s *reservationService) transition(ctx context.Context, id string, target string, update func(context.Context) (int64, error)) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	matched, err := update(ctx)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid reservation ID format")
		}
		return apperrors.Internal("Failed to update reservation status", err)
	}

	if matched == 0 {
		existing, findErr := s.repo.FindByID(ctx, id)
		if findErr != nil {
			if errors.Is(findErr, reservationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Reservation", id)
			}
			return apperrors.Internal("Failed to check reservation state", findErr)
		}
		if !CanTransition(existing.Status, target) {
			return apperrors.InvalidState(
				fmt.Sprintf("Reservation cannot move to %s from its current status", target),
				existing.Status,
			)
		}
		// The table allows the move from the status the re-read observed,
		// so the CAS lost to a concurrent writer.
		return apperrors.Conflict(fmt.Sprintf("Reservation was updated concurrently, cannot move to %s", target))
	}

	s.cfg.Log.Info("Reservation status updated", "id", id, "status", target)
	return nil
}

// --- Helpers ---

func (s *reservationService) applyDefaults(r *model.Reservation) {
	if r.Status == "" {
		r.Status = model.ReservationStatusBooked
	}
}

func (s *reservationService) sanitize(r *model.Reservation) {
	r.Purpose = sanitizer.NormalizePurpose(r.Purpose)
}

func (s *reservationService) validate(reservation *model.Reservation) error {
	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *reservationService) findConflicts(ctx context.Context, reservation *model.Reservation) ([]*model.Reservation, error) {
	existing, err := s.repo.FindActiveOverlapping(ctx, reservation.VehicleID, reservation.StartTime, reservation.EndTime, maxOverlapCheck)
	if err != nil {
		return nil, apperrors.Internal("Failed to check existing reservations", err)
	}

	var conflicts []*model.Reservation
	for _, r := range existing {
		if r.ID == reservation.ID {
			continue
		}
		if r.Overlaps(reservation.StartTime, reservation.EndTime) {
			conflicts = append(conflicts, r)
		}
	}
	return conflicts, nil
}

// lookupPriority asks the fairness service for the requester's standing.
// Admission never depends on this call, so failures degrade to normal.
func (s *reservationService) lookupPriority(ctx context.Context, userID, groupID, vehicleID string) string {
	if s.fairness == nil {
		return model.PriorityNormal
	}

	lookup, err := s.fairness.PriorityFor(ctx, userID, groupID, vehicleID)
	if err != nil || lookup == nil || lookup.Priority == "" {
		observability.FairnessDegradations.Inc()
		s.cfg.Log.Warn("Fairness priority lookup degraded to normal",
			"user_id", userID,
			"vehicle_id", vehicleID,
			"error", err,
		)
		return model.PriorityNormal
	}

	return lookup.Priority
}

func (s *reservationService) acquireVehicleLock(ctx context.Context, vehicleID string) (string, error) {
	lockID := fmt.Sprintf("vehicle_lock_%s", vehicleID)

	lock := &model.VehicleLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.VehicleLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This vehicle is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire vehicle lock", err)
	}

	return lockID, nil
}

func (s *reservationService) releaseVehicleLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func (s *reservationService) publishEvent(ctx context.Context, eventType string, reservation *model.Reservation) {
	if s.events == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(reservation.VehicleID).
		WithEventType(eventType).
		WithSource("reservations").
		WithValue(kafka.ReservationEvent{
			ReservationID: reservation.ID,
			VehicleID:     reservation.VehicleID,
			GroupID:       reservation.GroupID,
			UserID:        reservation.UserID,
			Status:        reservation.Status,
			StartTime:     reservation.StartTime,
			EndTime:       reservation.EndTime,
			OccurredAt:    time.Now().UTC(),
		}).
		Build()

	if err := s.events.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"event_type", eventType,
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}
