package branchscope

import (
	"context"

	"BranchLMS/internal/domain"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminStore loads the documents a scope is derived from.
type AdminStore interface {
	FindAdminByID(ctx context.Context, id primitive.ObjectID) (*domain.Admin, error)
	FindBranchesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Branch, error)
}

// Resolver resolves scopes for admins by id.
type Resolver struct {
	store AdminStore
}

func NewResolver(store AdminStore) *Resolver {
	return &Resolver{store: store}
}

// ForAdmin loads the admin and its branches and returns its scope.
func (r *Resolver) ForAdmin(ctx context.Context, adminID primitive.ObjectID) (*domain.Admin, Scope, error) {
	admin, err := r.store.FindAdminByID(ctx, adminID)
	if err != nil {
		return nil, Scope{}, err
	}
	if admin == nil {
		return nil, Scope{}, errors.Wrapf(domain.ErrNotFound, "admin %s", adminID.Hex())
	}

	var branches []domain.Branch
	if len(admin.Branches) > 0 {
		branches, err = r.store.FindBranchesByIDs(ctx, admin.Branches)
		if err != nil {
			return nil, Scope{}, errors.Wrap(err, "load admin branches")
		}
	}
	scope, err := ResolveAllowedLocCodes(admin, branches)
	if err != nil {
		return nil, Scope{}, err
	}
	return admin, scope, nil
}
