package repository

import (
	"context"
	"fmt"
	"time"

	"fleetshare/pkg/config"
	"fleetshare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const UsageStatCollection = "Usage_stats"

// UsageStatRepository persists append-only usage snapshots.
type UsageStatRepository interface {
	InsertMany(ctx context.Context, stats []*model.UsageStat) error
	FindLatestPeriod(ctx context.Context, groupID, vehicleID string) ([]*model.UsageStat, error)
	FindByPeriod(ctx context.Context, groupID, vehicleID string, periodStart, periodEnd time.Time) ([]*model.UsageStat, error)
}

type mongoUsageStatRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewUsageStatRepository(cfg *config.Config) UsageStatRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUsageStatRepository{
		cfg:        cfg,
		collection: db.Collection(UsageStatCollection),
	}
}

func (r *mongoUsageStatRepository) InsertMany(ctx context.Context, stats []*model.UsageStat) error {
	if len(stats) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, 0, len(stats))
	now := time.Now().UTC().Truncate(time.Millisecond)
	for _, s := range stats {
		s.ComputedAt = now
		docs = append(docs, s)
	}

	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to insert usage stats: %w", err)
	}

	for i, id := range result.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok && i < len(stats) {
			stats[i].ID = oid.Hex()
		}
	}
	return nil
}

// FindLatestPeriod returns the rows of the most recently computed snapshot
// for the pair.
func (r *mongoUsageStatRepository) FindLatestPeriod(ctx context.Context, groupID, vehicleID string) ([]*model.UsageStat, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var latest model.UsageStat
	err := r.collection.FindOne(ctx,
		bson.M{"group_id": groupID, "vehicle_id": vehicleID},
		options.FindOne().SetSort(bson.D{{Key: "computed_at", Value: -1}}),
	).Decode(&latest)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest usage snapshot: %w", err)
	}

	return r.FindByPeriod(ctx, groupID, vehicleID, latest.PeriodStart, latest.PeriodEnd)
}

func (r *mongoUsageStatRepository) FindByPeriod(ctx context.Context, groupID, vehicleID string, periodStart, periodEnd time.Time) ([]*model.UsageStat, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"group_id":     groupID,
		"vehicle_id":   vehicleID,
		"period_start": periodStart,
		"period_end":   periodEnd,
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find usage stats: %w", err)
	}
	defer cursor.Close(ctx)

	var stats []*model.UsageStat
	if err = cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode usage stats: %w", err)
	}

	return stats, nil
}
