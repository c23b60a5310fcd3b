package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/charforge/asset-service/internal/domain/model"
)

// ErrAssetNotFound is returned when no asset exists for the given ID.
var ErrAssetNotFound = errors.New("asset not found")

// AssetsRepository provides access to stored character assets.
type AssetsRepository struct {
	collection *mongo.Collection
}

// NewAssetsRepository creates a new assets repository.
func NewAssetsRepository(db *MongoDB) *AssetsRepository {
	return &AssetsRepository{
		collection: db.Assets,
	}
}

// Create stores a new asset, assigning an ID when the caller did not.
func (r *AssetsRepository) Create(ctx context.Context, asset *model.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, asset)
	return err
}

// GetByID returns the asset with the given ID.
func (r *AssetsRepository) GetByID(ctx context.Context, id string) (*model.Asset, error) {
	var asset model.Asset
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&asset)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// UpdateMetadata attaches analyzed metadata to an existing asset.
func (r *AssetsRepository) UpdateMetadata(ctx context.Context, id string, metadata model.AssetMetadata) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"metadata":   metadata,
			"updated_at": time.Now(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAssetNotFound
	}
	return nil
}

// List returns assets, newest first, optionally filtered by category.
func (r *AssetsRepository) List(ctx context.Context, category string, limit int) ([]model.Asset, error) {
	filter := bson.M{}
	if category != "" {
		filter["metadata.category"] = category
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var assets []model.Asset
	if err := cursor.All(ctx, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}
