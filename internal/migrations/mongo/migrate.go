package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"turnera/internal/migrations/mongo/validators"
	"turnera/pkg/config"
)

var (
	ReservationsIndexes = []mongo.IndexModel{
		// Serves the overlap window query used by both the availability
		// index and the locked re-check inside the reservation transaction.
		{Keys: bson.D{
			{Key: "professional_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "professional_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "customer_ref", Value: 1},
			{Key: "start_time", Value: -1},
		}},
	}

	SlotLocksIndexes = []mongo.IndexModel{
		// TTL reclaim of locks abandoned by crashed writers. The lock
		// repository also reclaims expired locks inline, since TTL
		// deletion granularity is too coarse for contended slots.
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	ProfessionalsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "categories", Value: 1},
			{Key: "active", Value: 1},
		}},
	}

	ServicesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
	}

	BlockingIntervalsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "professional_id", Value: 1},
			{Key: "start", Value: 1},
		}},
	}

	HolidaysIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}}},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client) error {
	db := client.Database(config.DefaultMongoDatabaseName)
	fmt.Printf("🚀 Running Turnera Mongo migrations on database: %s\n", db.Name())

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Reservations": {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		"Slot_locks": {
			Indexes:   SlotLocksIndexes,
			Validator: validators.SlotLockValidator,
		},
		"Professionals": {
			Indexes:   ProfessionalsIndexes,
			Validator: validators.ProfessionalValidator,
		},
		"Services": {
			Indexes:   ServicesIndexes,
			Validator: validators.ServiceValidator,
		},
		"BlockingIntervals": {
			Indexes:   BlockingIntervalsIndexes,
			Validator: validators.BlockingIntervalValidator,
		},
		"Holidays": {
			Indexes:   HolidaysIndexes,
			Validator: validators.HolidayValidator,
		},
		"BusinessHours": {
			Validator: validators.BusinessHoursValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if len(def.Indexes) == 0 {
			continue
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
