package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "fleetshare/internal/reservations/errors"
	"fleetshare/pkg/config"
	mongotx "fleetshare/pkg/db/mongo"
	"fleetshare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context) (int64, error)
	FindByVehicle(ctx context.Context, vehicleID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Reservation, error)
	CountByVehicle(ctx context.Context, vehicleID string, startTime, endTime *time.Time) (int64, error)
	FindActiveOverlapping(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]*model.Reservation, error)
	Start(ctx context.Context, id string) (int64, error)
	Complete(ctx context.Context, id string, completion *model.ReservationCompletion) (int64, error)
	Cancel(ctx context.Context, id string, cancelledBy string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// SessionContext cannot be wrapped without breaking transaction semantics, so
// inside a transaction the original context is returned with a no-op cancel.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	var reservation model.Reservation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) FindByVehicle(
	ctx context.Context,
	vehicleID string,
	startTime, endTime *time.Time,
	limit int, offset int64,
) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := r.buildVehicleFilter(vehicleID, startTime, endTime)

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) CountByVehicle(ctx context.Context, vehicleID string, startTime, endTime *time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.buildVehicleFilter(vehicleID, startTime, endTime))
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations by vehicle: %w", err)
	}
	return count, nil
}

// FindActiveOverlapping returns booked and in_use reservations whose window
// intersects [start, end) under half-open semantics.
func (r *mongoReservationRepository) FindActiveOverlapping(ctx context.Context, vehicleID string, start, end time.Time, limit int) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"vehicle_id": vehicleID,
		"status":     bson.M{"$in": []string{model.ReservationStatusBooked, model.ReservationStatusInUse}},
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping reservations: %w", err)
	}

	return reservations, nil
}

// Start moves booked to in_use. The status precondition lives in the update
// filter so concurrent transitions resolve to a single winner.
func (r *mongoReservationRepository) Start(ctx context.Context, id string) (int64, error) {
	return r.transition(ctx, id,
		[]string{model.ReservationStatusBooked},
		bson.M{"status": model.ReservationStatusInUse},
	)
}

// Complete moves in_use to completed and records the usage totals.
func (r *mongoReservationRepository) Complete(ctx context.Context, id string, completion *model.ReservationCompletion) (int64, error) {
	return r.transition(ctx, id,
		[]string{model.ReservationStatusInUse},
		bson.M{
			"status":     model.ReservationStatusCompleted,
			"kilometers": completion.Kilometers,
			"cost":       completion.Cost,
		},
	)
}

// Cancel moves booked or in_use to cancelled.
func (r *mongoReservationRepository) Cancel(ctx context.Context, id string, cancelledBy string) (int64, error) {
	return r.transition(ctx, id,
		[]string{model.ReservationStatusBooked, model.ReservationStatusInUse},
		bson.M{
			"status":       model.ReservationStatusCancelled,
			"cancelled_by": cancelledBy,
		},
	)
}

func (r *mongoReservationRepository) transition(ctx context.Context, id string, fromStatuses []string, set bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": fromStatuses},
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("failed to transition reservation: %w", err)
	}

	return result.MatchedCount, nil
}

func (r *mongoReservationRepository) buildVehicleFilter(vehicleID string, startTime, endTime *time.Time) bson.M {
	filter := bson.M{
		"vehicle_id": vehicleID,
	}

	if startTime != nil && endTime != nil {
		filter["start_time"] = bson.M{"$lt": *endTime}
		filter["end_time"] = bson.M{"$gt": *startTime}
	} else if startTime != nil {
		filter["end_time"] = bson.M{"$gt": *startTime}
	} else if endTime != nil {
		filter["start_time"] = bson.M{"$lt": *endTime}
	}

	return filter
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
