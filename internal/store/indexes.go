package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureIndexes creates the lookup and uniqueness indexes. Legacy data may hold
// duplicates that make a unique index impossible to build; that is logged and
// startup continues, since the assignment path checks for existing records anyway.
func (r *Repository) EnsureIndexes(ctx context.Context, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	specs := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{r.usersCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "empID", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_empID"),
		}},
		{r.usersCollection, mongo.IndexModel{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email").
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string", "$gt": ""}}),
		}},
		{r.usersCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "locCode", Value: 1}},
			Options: options.Index().SetName("locCode"),
		}},
		{r.progressCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "trainingId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_user_training"),
		}},
		{r.progressCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "trainingId", Value: 1}},
			Options: options.Index().SetName("trainingId"),
		}},
		{r.branchesCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "locCode", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_locCode"),
		}},
		{r.auditCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "progressId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("progress_createdAt"),
		}},
	}

	for _, s := range specs {
		name, err := s.coll.Indexes().CreateOne(ctx, s.model)
		if err != nil {
			if isTransientErr(err) {
				return wrap("create index", err)
			}
			log.Warn("index not created",
				zap.String("collection", s.coll.Name()),
				zap.String("index", *s.model.Options.Name),
				zap.Error(err))
			continue
		}
		log.Debug("index ready", zap.String("collection", s.coll.Name()), zap.String("index", name))
	}
	return nil
}

func isTransientErr(err error) bool {
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}
