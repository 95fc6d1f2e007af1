package repository

import (
	"context"
	"time"

	"fleetshare/pkg/config"
	"fleetshare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// VehicleLockRepository provides operations for advisory booking locks.
type VehicleLockRepository interface {
	Create(ctx context.Context, lock *model.VehicleLock) (*model.VehicleLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoVehicleLockRepository struct {
	collection *mongo.Collection
}

func NewVehicleLockRepository(cfg *config.Config) VehicleLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVehicleLockRepository{
		collection: db.Collection("Vehicle_locks"),
	}
}

// Create returns a duplicate key error when the lock is already held.
func (r *mongoVehicleLockRepository) Create(ctx context.Context, lock *model.VehicleLock) (*model.VehicleLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

func (r *mongoVehicleLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
