package store

import (
	"context"

	"BranchLMS/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func (r *Repository) FindAdminByID(ctx context.Context, id primitive.ObjectID) (*domain.Admin, error) {
	var admin domain.Admin
	err := r.adminsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&admin)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, wrap("find admin", err)
	}
	return &admin, nil
}

// FindBranchesByIDs loads the branches an admin references. Dangling ids are skipped.
func (r *Repository) FindBranchesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Branch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.branchesCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, wrap("find branches", err)
	}
	var branches []domain.Branch
	if err := cursor.All(ctx, &branches); err != nil {
		return nil, wrap("decode branches", err)
	}
	return branches, nil
}

func (r *Repository) FindBranches(ctx context.Context) ([]domain.Branch, error) {
	cursor, err := r.branchesCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, wrap("find branches", err)
	}
	var branches []domain.Branch
	if err := cursor.All(ctx, &branches); err != nil {
		return nil, wrap("decode branches", err)
	}
	return branches, nil
}

// InsertAudit records a repair. Audit entries are append-only.
func (r *Repository) InsertAudit(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	_, err := r.auditCollection.InsertOne(ctx, e)
	return wrap("insert audit", err)
}
