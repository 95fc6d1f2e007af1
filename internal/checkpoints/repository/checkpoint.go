package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	checkpointserrors "fleetshare/internal/checkpoints/errors"
	"fleetshare/pkg/config"
	mongotx "fleetshare/pkg/db/mongo"
	"fleetshare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Checkpoints"
)

type mongoCheckpointRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type CheckpointRepository interface {
	Create(ctx context.Context, checkpoint *model.Checkpoint) error
	FindByID(ctx context.Context, id string) (*model.Checkpoint, error)
	FindByToken(ctx context.Context, token string) (*model.Checkpoint, error)
	FindByReservation(ctx context.Context, reservationID string) ([]*model.Checkpoint, error)
	Scan(ctx context.Context, id string, scan *model.CheckpointScanRequest) (int64, error)
	Sign(ctx context.Context, id string, sign *model.CheckpointSignRequest) (int64, error)
	Complete(ctx context.Context, id string) (int64, error)
	Expire(ctx context.Context, id string) (int64, error)
	ExpireOpenForReservation(ctx context.Context, reservationID, checkpointType string) (int64, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoCheckpointRepository(cfg *config.Config) CheckpointRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCheckpointRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// SessionContext cannot be wrapped without breaking transaction semantics, so
// inside a transaction the original context is returned with a no-op cancel.
func (r *mongoCheckpointRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoCheckpointRepository) Create(ctx context.Context, checkpoint *model.Checkpoint) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	checkpoint.IssuedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, checkpoint)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		checkpoint.ID = oid.Hex()
	}
	return nil
}

func (r *mongoCheckpointRepository) FindByID(ctx context.Context, id string) (*model.Checkpoint, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", checkpointserrors.ErrInvalidID, id)
	}

	var checkpoint model.Checkpoint
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&checkpoint)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, checkpointserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find checkpoint: %w", err)
	}

	return &checkpoint, nil
}

func (r *mongoCheckpointRepository) FindByToken(ctx context.Context, token string) (*model.Checkpoint, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var checkpoint model.Checkpoint
	err := r.collection.FindOne(ctx, bson.M{"token": token}).Decode(&checkpoint)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, checkpointserrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to find checkpoint by token: %w", err)
	}

	return &checkpoint, nil
}

func (r *mongoCheckpointRepository) FindByReservation(ctx context.Context, reservationID string) ([]*model.Checkpoint, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "issued_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"reservation_id": reservationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkpoints: %w", err)
	}
	defer cursor.Close(ctx)

	var checkpoints []*model.Checkpoint
	if err = cursor.All(ctx, &checkpoints); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoints: %w", err)
	}

	return checkpoints, nil
}

// Scan moves pending to scanned and stamps geolocation.
func (r *mongoCheckpointRepository) Scan(ctx context.Context, id string, scan *model.CheckpointScanRequest) (int64, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	set := bson.M{
		"status":     model.CheckpointStatusScanned,
		"scanned_at": now,
	}
	if scan.Latitude != nil {
		set["latitude"] = *scan.Latitude
	}
	if scan.Longitude != nil {
		set["longitude"] = *scan.Longitude
	}

	return r.transition(ctx, id, []string{model.CheckpointStatusPending}, set)
}

// Sign moves scanned to signed and records the receiving party.
func (r *mongoCheckpointRepository) Sign(ctx context.Context, id string, sign *model.CheckpointSignRequest) (int64, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return r.transition(ctx, id,
		[]string{model.CheckpointStatusScanned},
		bson.M{
			"status":           model.CheckpointStatusSigned,
			"signed_at":        now,
			"signer_name":      sign.SignerName,
			"signer_id_number": sign.SignerIDNumber,
			"signature_data":   sign.SignatureData,
		},
	)
}

// Complete moves signed to completed.
func (r *mongoCheckpointRepository) Complete(ctx context.Context, id string) (int64, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return r.transition(ctx, id,
		[]string{model.CheckpointStatusSigned},
		bson.M{
			"status":       model.CheckpointStatusCompleted,
			"completed_at": now,
		},
	)
}

// Expire moves any non-terminal checkpoint to expired.
func (r *mongoCheckpointRepository) Expire(ctx context.Context, id string) (int64, error) {
	return r.transition(ctx, id,
		[]string{model.CheckpointStatusPending, model.CheckpointStatusScanned, model.CheckpointStatusSigned},
		bson.M{"status": model.CheckpointStatusExpired},
	)
}

// ExpireOpenForReservation expires all open checkpoints of a reservation.
// An empty checkpointType matches both types.
func (r *mongoCheckpointRepository) ExpireOpenForReservation(ctx context.Context, reservationID, checkpointType string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"reservation_id": reservationID,
		"status": bson.M{"$in": []string{
			model.CheckpointStatusPending,
			model.CheckpointStatusScanned,
			model.CheckpointStatusSigned,
		}},
	}
	if checkpointType != "" {
		filter["type"] = checkpointType
	}

	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": model.CheckpointStatusExpired}})
	if err != nil {
		return 0, fmt.Errorf("failed to expire checkpoints for reservation: %w", err)
	}

	return result.ModifiedCount, nil
}

// ExpireDue expires every non-terminal checkpoint whose deadline has passed.
// Idempotent; safe to run from multiple instances.
func (r *mongoCheckpointRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status": bson.M{"$in": []string{
			model.CheckpointStatusPending,
			model.CheckpointStatusScanned,
			model.CheckpointStatusSigned,
		}},
		"expires_at": bson.M{"$lt": now},
	}

	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": model.CheckpointStatusExpired}})
	if err != nil {
		return 0, fmt.Errorf("failed to expire due checkpoints: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *mongoCheckpointRepository) transition(ctx context.Context, id string, fromStatuses []string, set bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", checkpointserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": fromStatuses},
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("failed to transition checkpoint: %w", err)
	}

	return result.MatchedCount, nil
}

func (r *mongoCheckpointRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
