package store

import (
	"context"
	"time"

	"BranchLMS/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProgressExists is the per-training idempotence check of the assigners.
func (r *Repository) ProgressExists(ctx context.Context, userID, trainingID primitive.ObjectID) (bool, error) {
	n, err := r.progressCollection.CountDocuments(ctx,
		bson.M{"userId": userID, "trainingId": trainingID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, wrap("count progress", err)
	}
	return n > 0, nil
}

func (r *Repository) FindProgress(ctx context.Context, userID, trainingID primitive.ObjectID) (*domain.TrainingProgress, error) {
	return r.findProgress(ctx, bson.M{"userId": userID, "trainingId": trainingID})
}

func (r *Repository) FindProgressByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingProgress, error) {
	return r.findProgress(ctx, bson.M{"_id": id})
}

func (r *Repository) findProgress(ctx context.Context, filter bson.M) (*domain.TrainingProgress, error) {
	var p domain.TrainingProgress
	err := r.progressCollection.FindOne(ctx, filter).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, wrap("find progress", err)
	}
	return &p, nil
}

// FindProgressByUsers returns the progress records of userIDs; nil means every record.
func (r *Repository) FindProgressByUsers(ctx context.Context, userIDs []primitive.ObjectID) ([]domain.TrainingProgress, error) {
	filter := bson.M{}
	if userIDs != nil {
		filter["userId"] = bson.M{"$in": userIDs}
	}
	cursor, err := r.progressCollection.Find(ctx, filter)
	if err != nil {
		return nil, wrap("find progress", err)
	}
	var records []domain.TrainingProgress
	if err := cursor.All(ctx, &records); err != nil {
		return nil, wrap("decode progress", err)
	}
	return records, nil
}

// InsertProgress stores p, assigning an id and timestamps when missing. A second
// record for the same user and training fails with domain.ErrDuplicate.
func (r *Repository) InsertProgress(ctx context.Context, p *domain.TrainingProgress) error {
	now := time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := r.progressCollection.InsertOne(ctx, p)
	return wrap("insert progress", err)
}

// ReplaceProgress overwrites the stored record with p.
func (r *Repository) ReplaceProgress(ctx context.Context, p *domain.TrainingProgress) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.progressCollection.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return wrap("replace progress", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteProgress(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.progressCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap("delete progress", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
