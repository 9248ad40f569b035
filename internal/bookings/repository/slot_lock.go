package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"slotbook/pkg/config"
	"slotbook/pkg/model"
)

const (
	LockCollectionName = "Slot_locks"
)

// SlotLockRepository provides advisory locks over (giver_id, date). The
// unique _id insert is the serialization point: the second writer for the
// same key gets a duplicate key error. A TTL index on expires_at reaps locks
// abandoned by crashed processes.
type SlotLockRepository interface {
	Acquire(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)
	Release(ctx context.Context, lockID string) error
}

type mongoSlotLockRepository struct {
	collection *mongo.Collection
}

func NewSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Acquire returns the driver's duplicate key error untranslated when the
// lock is already held; the service maps it to a conflict.
func (r *mongoSlotLockRepository) Acquire(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	lock.CreatedAt = time.Now()

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		return nil, err
	}

	return lock, nil
}

func (r *mongoSlotLockRepository) Release(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
