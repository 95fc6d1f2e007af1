package repository

import (
	"context"
	"fmt"
	"time"

	"fleetshare/pkg/config"
	"fleetshare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// reservationCollection mirrors the scheduler's collection name; the
// fairness service only ever reads from it.
const reservationCollection = "Reservations"

// ReservationReader gives the aggregator read-only access to reservation
// history.
type ReservationReader interface {
	FindForAggregation(ctx context.Context, groupID, vehicleID string, periodStart, periodEnd time.Time, statuses []string) ([]*model.Reservation, error)
}

type mongoReservationReader struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewReservationReader(cfg *config.Config) ReservationReader {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationReader{
		cfg:        cfg,
		collection: db.Collection(reservationCollection),
	}
}

// FindForAggregation returns reservations of the given statuses whose
// window intersects the analysis period.
func (r *mongoReservationReader) FindForAggregation(ctx context.Context, groupID, vehicleID string, periodStart, periodEnd time.Time, statuses []string) ([]*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"group_id":   groupID,
		"vehicle_id": vehicleID,
		"status":     bson.M{"$in": statuses},
		"start_time": bson.M{"$lt": periodEnd},
		"end_time":   bson.M{"$gt": periodStart},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations for aggregation: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations for aggregation: %w", err)
	}

	return reservations, nil
}
