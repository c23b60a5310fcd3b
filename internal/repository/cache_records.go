package repository

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/charforge/asset-service/internal/cache"
	"github.com/charforge/asset-service/internal/domain/model"
)

// CacheRecordsRepository is the MongoDB implementation of cache.Backend.
// Version checks ride on Mongo's single-document atomicity: an insert races
// through the unique _id constraint, an overwrite through a version-matched
// replace.
type CacheRecordsRepository struct {
	collection *mongo.Collection
}

// NewCacheRecordsRepository creates a cache backend over the asset_cache
// collection.
func NewCacheRecordsRepository(db *MongoDB) *CacheRecordsRepository {
	return &CacheRecordsRepository{
		collection: db.AssetCache,
	}
}

// Get implements cache.Backend.
func (r *CacheRecordsRepository) Get(ctx context.Context, key string) (*model.CacheRecord, error) {
	var rec model.CacheRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put implements cache.Backend.
func (r *CacheRecordsRepository) Put(ctx context.Context, rec model.CacheRecord, expect int64) error {
	if expect == 0 {
		_, err := r.collection.InsertOne(ctx, rec)
		if mongo.IsDuplicateKeyError(err) {
			return cache.ErrStaleWrite
		}
		return err
	}

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rec.Key, "version": expect}, rec)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return cache.ErrStaleWrite
	}
	return nil
}

// Delete implements cache.Backend.
func (r *CacheRecordsRepository) Delete(ctx context.Context, key string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// DeletePrefix implements cache.Backend.
func (r *CacheRecordsRepository) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteExpired implements cache.Backend.
func (r *CacheRecordsRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lte": now},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
