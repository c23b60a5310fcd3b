package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/generation"
)

// GenerationsRepository is the MongoDB implementation of generation.JobStore.
// The guarded Update is a state-filtered replace, so transitions race on the
// document's single-writer atomicity rather than on a lock.
type GenerationsRepository struct {
	collection *mongo.Collection
}

// NewGenerationsRepository creates a job store over the generations
// collection.
func NewGenerationsRepository(db *MongoDB) *GenerationsRepository {
	return &GenerationsRepository{
		collection: db.Generations,
	}
}

// Insert implements generation.JobStore.
func (r *GenerationsRepository) Insert(ctx context.Context, job *model.GenerationJob) error {
	_, err := r.collection.InsertOne(ctx, job)
	return err
}

// Get implements generation.JobStore.
func (r *GenerationsRepository) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, generation.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListDue implements generation.JobStore.
func (r *GenerationsRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.GenerationJob, error) {
	filter := bson.M{
		"state":        bson.M{"$in": []model.JobState{model.JobSubmitted, model.JobPolling}},
		"next_poll_at": bson.M{"$lte": now},
	}

	opts := options.Find().SetSort(bson.M{"next_poll_at": 1})
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

	var jobs []*model.GenerationJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Update implements generation.JobStore.
func (r *GenerationsRepository) Update(ctx context.Context, job *model.GenerationJob, fromStates ...model.JobState) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{
		"_id":   job.ID,
		"state": bson.M{"$in": fromStates},
	}, job)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Distinguish a missing job from one whose state moved on.
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": job.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return generation.ErrJobNotFound
	}
	return generation.ErrJobConflict
}
