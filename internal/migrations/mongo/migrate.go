package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fleetshare/internal/migrations/mongo/validators"
)

var (
	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "vehicle_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "group_id", Value: 1},
			{Key: "vehicle_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
	}

	// Stale locks are reaped by Mongo itself once expires_at passes.
	VehicleLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	CheckpointsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{
			{Key: "reservation_id", Value: 1},
			{Key: "type", Value: 1},
			{Key: "status", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "expires_at", Value: 1},
		}},
	}

	UsageStatsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "group_id", Value: 1},
			{Key: "vehicle_id", Value: 1},
			{Key: "computed_at", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "group_id", Value: 1},
			{Key: "vehicle_id", Value: 1},
			{Key: "period_start", Value: 1},
			{Key: "period_end", Value: 1},
		}},
	}

	FairnessScoresIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "group_id", Value: 1},
			{Key: "vehicle_id", Value: 1},
			{Key: "calculated_at", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "vehicle_id", Value: 1},
			{Key: "calculated_at", Value: -1},
		}},
	}

	RecommendationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "group_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running fleetshare Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Reservations": {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		"Vehicle_locks": {
			Indexes:   VehicleLocksIndexes,
			Validator: validators.VehicleLockValidator,
		},
		"Checkpoints": {
			Indexes:   CheckpointsIndexes,
			Validator: validators.CheckpointValidator,
		},
		"Usage_stats": {
			Indexes:   UsageStatsIndexes,
			Validator: validators.UsageStatValidator,
		},
		"Fairness_scores": {
			Indexes:   FairnessScoresIndexes,
			Validator: validators.FairnessScoreValidator,
		},
		"Recommendations": {
			Indexes:   RecommendationsIndexes,
			Validator: validators.RecommendationValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else {
		fmt.Printf("ℹ️ Collection %s already exists — updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}
