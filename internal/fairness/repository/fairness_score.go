package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fleetshare/pkg/config"
	"fleetshare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const FairnessScoreCollection = "Fairness_scores"

// FairnessScoreRepository persists append-only fairness calculations.
type FairnessScoreRepository interface {
	InsertMany(ctx context.Context, scores []*model.FairnessScore) error
	FindLatestPeriod(ctx context.Context, groupID, vehicleID string) ([]*model.FairnessScore, error)
	FindLatestForUser(ctx context.Context, userID, vehicleID string) (*model.FairnessScore, error)
	FindRecentCalculations(ctx context.Context, groupID, vehicleID string, limit int) ([][]*model.FairnessScore, error)
}

type mongoFairnessScoreRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewFairnessScoreRepository(cfg *config.Config) FairnessScoreRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoFairnessScoreRepository{
		cfg:        cfg,
		collection: db.Collection(FairnessScoreCollection),
	}
}

func (r *mongoFairnessScoreRepository) InsertMany(ctx context.Context, scores []*model.FairnessScore) error {
	if len(scores) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, 0, len(scores))
	now := time.Now().UTC().Truncate(time.Millisecond)
	for _, s := range scores {
		s.CalculatedAt = now
		docs = append(docs, s)
	}

	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to insert fairness scores: %w", err)
	}

	for i, id := range result.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok && i < len(scores) {
			scores[i].ID = oid.Hex()
		}
	}
	return nil
}

func (r *mongoFairnessScoreRepository) FindLatestPeriod(ctx context.Context, groupID, vehicleID string) ([]*model.FairnessScore, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var latest model.FairnessScore
	err := r.collection.FindOne(ctx,
		bson.M{"group_id": groupID, "vehicle_id": vehicleID},
		options.FindOne().SetSort(bson.D{{Key: "calculated_at", Value: -1}}),
	).Decode(&latest)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest fairness calculation: %w", err)
	}

	filter := bson.M{
		"group_id":      groupID,
		"vehicle_id":    vehicleID,
		"calculated_at": latest.CalculatedAt,
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find fairness scores: %w", err)
	}
	defer cursor.Close(ctx)

	var scores []*model.FairnessScore
	if err = cursor.All(ctx, &scores); err != nil {
		return nil, fmt.Errorf("failed to decode fairness scores: %w", err)
	}

	return scores, nil
}

// FindRecentCalculations groups score rows by calculation timestamp,
// newest first, up to limit calculations.
func (r *mongoFairnessScoreRepository) FindRecentCalculations(ctx context.Context, groupID, vehicleID string, limit int) ([][]*model.FairnessScore, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	raw, err := r.collection.Distinct(ctx, "calculated_at", bson.M{
		"group_id":   groupID,
		"vehicle_id": vehicleID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list fairness calculations: %w", err)
	}

	timestamps := make([]time.Time, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case primitive.DateTime:
			timestamps = append(timestamps, t.Time())
		case time.Time:
			timestamps = append(timestamps, t)
		}
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].After(timestamps[j]) })
	if len(timestamps) > limit {
		timestamps = timestamps[:limit]
	}

	calculations := make([][]*model.FairnessScore, 0, len(timestamps))
	for _, ts := range timestamps {
		cursor, err := r.collection.Find(ctx, bson.M{
			"group_id":      groupID,
			"vehicle_id":    vehicleID,
			"calculated_at": ts,
		}, options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}}))
		if err != nil {
			return nil, fmt.Errorf("failed to load fairness calculation: %w", err)
		}

		var scores []*model.FairnessScore
		if err = cursor.All(ctx, &scores); err != nil {
			return nil, fmt.Errorf("failed to decode fairness calculation: %w", err)
		}
		calculations = append(calculations, scores)
	}

	return calculations, nil
}

func (r *mongoFairnessScoreRepository) FindLatestForUser(ctx context.Context, userID, vehicleID string) (*model.FairnessScore, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var score model.FairnessScore
	err := r.collection.FindOne(ctx,
		bson.M{"user_id": userID, "vehicle_id": vehicleID},
		options.FindOne().SetSort(bson.D{{Key: "calculated_at", Value: -1}}),
	).Decode(&score)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find fairness score for user: %w", err)
	}

	return &score, nil
}
