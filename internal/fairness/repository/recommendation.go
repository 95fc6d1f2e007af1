package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	fairnesserrors "fleetshare/internal/fairness/errors"
	"fleetshare/pkg/config"
	"fleetshare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const RecommendationCollection = "Recommendations"

type RecommendationRepository interface {
	Create(ctx context.Context, rec *model.Recommendation) error
	FindByID(ctx context.Context, id string) (*model.Recommendation, error)
	FindByGroup(ctx context.Context, groupID, status string, limit int, offset int64) ([]*model.Recommendation, error)
	CountByGroup(ctx context.Context, groupID, status string) (int64, error)
	UpdateStatus(ctx context.Context, id string, fromStatuses []string, toStatus string, stampReadAt bool) (int64, error)
}

type mongoRecommendationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewRecommendationRepository(cfg *config.Config) RecommendationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRecommendationRepository{
		cfg:        cfg,
		collection: db.Collection(RecommendationCollection),
	}
}

func (r *mongoRecommendationRepository) Create(ctx context.Context, rec *model.Recommendation) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	rec.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to create recommendation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRecommendationRepository) FindByID(ctx context.Context, id string) (*model.Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", fairnesserrors.ErrInvalidID, id)
	}

	var rec model.Recommendation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fairnesserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find recommendation: %w", err)
	}

	return &rec, nil
}

func (r *mongoRecommendationRepository) FindByGroup(ctx context.Context, groupID, status string, limit int, offset int64) ([]*model.Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, r.buildGroupFilter(groupID, status), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find recommendations: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []*model.Recommendation
	if err = cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}

	return recs, nil
}

func (r *mongoRecommendationRepository) CountByGroup(ctx context.Context, groupID, status string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.buildGroupFilter(groupID, status))
	if err != nil {
		return 0, fmt.Errorf("failed to count recommendations: %w", err)
	}
	return count, nil
}

// UpdateStatus is a CAS move guarded by the current status. read_at is
// stamped only on the first transition out of active.
func (r *mongoRecommendationRepository) UpdateStatus(ctx context.Context, id string, fromStatuses []string, toStatus string, stampReadAt bool) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", fairnesserrors.ErrInvalidID, id)
	}

	set := bson.M{"status": toStatus}
	if stampReadAt {
		set["read_at"] = time.Now().UTC().Truncate(time.Millisecond)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": fromStatuses},
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("failed to update recommendation status: %w", err)
	}

	return result.MatchedCount, nil
}

func (r *mongoRecommendationRepository) buildGroupFilter(groupID, status string) bson.M {
	filter := bson.M{"group_id": groupID}
	if status != "" {
		filter["status"] = status
	}
	return filter
}
