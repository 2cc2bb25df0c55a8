package repository

import (
	"context"
	"fmt"
	"time"

	reservationserrors "turnera/internal/reservations/errors"
	"turnera/pkg/config"
	"turnera/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	SlotLocksCollection = "Slot_locks"

	lockTTL = 10 * time.Second
)

// SlotLockRepository provides advisory locks serializing reservation
// writes per professional. Acquisition is atomic via the unique _id.
type SlotLockRepository interface {
	TryAcquire(ctx context.Context, professionalID, owner string) error
	Release(ctx context.Context, professionalID, owner string) error
}

type mongoSlotLockRepository struct {
	collection *mongo.Collection
}

func NewMongoSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		collection: db.Collection(SlotLocksCollection),
	}
}

func lockID(professionalID string) string {
	return fmt.Sprintf("slot_lock_%s", professionalID)
}

// TryAcquire inserts the lock document. A duplicate key means another
// writer holds the lock; if that holder's lease has expired (crashed
// writer), the stale document is removed and the insert retried once.
func (r *mongoSlotLockRepository) TryAcquire(ctx context.Context, professionalID, owner string) error {
	lock := &model.SlotLock{
		ID:        lockID(professionalID),
		Owner:     owner,
		ExpiresAt: time.Now().Add(lockTTL),
		CreatedAt: time.Now(),
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}

	// Reclaim an expired lease left behind by a crashed writer.
	result, delErr := r.collection.DeleteOne(ctx, bson.M{
		"_id":        lock.ID,
		"expires_at": bson.M{"$lt": time.Now()},
	})
	if delErr != nil || result.DeletedCount == 0 {
		return reservationserrors.ErrLockHeld
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	return nil
}

// Release removes the lock only when still owned by the caller, so a
// writer that outlived its lease cannot release a successor's lock.
func (r *mongoSlotLockRepository) Release(ctx context.Context, professionalID, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":   lockID(professionalID),
		"owner": owner,
	})
	return err
}
