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

// UserFilter narrows FindUsers. A nil LocCodes slice means every user.
type UserFilter struct {
	LocCodes []string
}

func (r *Repository) FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"_id": id})
}

func (r *Repository) FindUserByEmpID(ctx context.Context, empID string) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"empID": empID})
}

func (r *Repository) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.usersCollection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, wrap("find user", err)
	}
	return &user, nil
}

func (r *Repository) FindUsers(ctx context.Context, f UserFilter) ([]domain.User, error) {
	filter := bson.M{}
	if f.LocCodes != nil {
		filter["locCode"] = bson.M{"$in": f.LocCodes}
	}
	cursor, err := r.usersCollection.Find(ctx, filter)
	if err != nil {
		return nil, wrap("find users", err)
	}
	var users []domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, wrap("decode users", err)
	}
	return users, nil
}

// ExistingUserIDs returns which of ids are present in the users collection.
func (r *Repository) ExistingUserIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]struct{}, error) {
	return existingIDs(ctx, r.usersCollection, ids)
}

// UpsertUserByEmpID creates or refreshes the identity fields of the user with
// u.EmpID. Assignment arrays are only initialised on insert and never replaced.
// It reports whether a new document was created.
func (r *Repository) UpsertUserByEmpID(ctx context.Context, u *domain.User) (*domain.User, bool, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"username":      u.Username,
			"email":         u.Email,
			"designation":   u.Designation,
			"workingBranch": u.WorkingBranch,
			"locCode":       u.LocCode,
			"phoneNumber":   u.PhoneNumber,
			"updatedAt":     now,
		},
		"$setOnInsert": bson.M{
			"empID":               u.EmpID,
			"training":            bson.A{},
			"assignedAssessments": bson.A{},
			"assignedModules":     bson.A{},
			"createdAt":           now,
		},
	}
	res, err := r.usersCollection.UpdateOne(ctx, bson.M{"empID": u.EmpID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, false, wrap("upsert user", err)
	}
	created := res.UpsertedCount > 0

	saved, err := r.FindUserByEmpID(ctx, u.EmpID)
	if err != nil {
		return nil, false, err
	}
	if saved == nil {
		return nil, false, wrap("upsert user", domain.ErrNotFound)
	}
	return saved, created, nil
}

// PushTrainingAssignment appends a to the user's training list unless an entry
// for the same training is already present. It reports whether it appended.
func (r *Repository) PushTrainingAssignment(ctx context.Context, userID primitive.ObjectID, a domain.TrainingAssignment) (bool, error) {
	filter := bson.M{"_id": userID, "training.trainingId": bson.M{"$ne": a.TrainingID}}
	update := bson.M{
		"$push": bson.M{"training": a},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.usersCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, wrap("push training", err)
	}
	if res.MatchedCount == 0 {
		exists, err := r.usersCollection.CountDocuments(ctx, bson.M{"_id": userID}, options.Count().SetLimit(1))
		if err != nil {
			return false, wrap("count user", err)
		}
		if exists == 0 {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

// PullTrainingAssignment removes every User.training entry for trainingID.
func (r *Repository) PullTrainingAssignment(ctx context.Context, userID, trainingID primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"training": bson.M{"trainingId": trainingID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.usersCollection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return wrap("pull training", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func existingIDs(ctx context.Context, coll *mongo.Collection, ids []primitive.ObjectID) (map[primitive.ObjectID]struct{}, error) {
	found := make(map[primitive.ObjectID]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, wrap("find "+coll.Name(), err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, wrap("decode "+coll.Name(), err)
		}
		found[doc.ID] = struct{}{}
	}
	return found, wrap("iterate "+coll.Name(), cursor.Err())
}
