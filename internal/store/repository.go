// Package store persists LMS documents in MongoDB. Find methods return (nil, nil)
// when nothing matches; writes that target a missing document return
// domain.ErrNotFound.
package store

import (
	"context"

	"BranchLMS/internal/config"
	"BranchLMS/internal/domain"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Collection names are part of the persisted contract.
const (
	UsersCollection     = "users"
	TrainingsCollection = "trainings"
	ModulesCollection   = "modules"
	ProgressCollection  = "trainingprogresses"
	AdminsCollection    = "admins"
	BranchesCollection  = "branches"
	AuditCollection     = "integrity_audit"
)

// Repository handles DB operations for every LMS entity.
type Repository struct {
	client *mongo.Client

	usersCollection     *mongo.Collection
	trainingsCollection *mongo.Collection
	modulesCollection   *mongo.Collection
	progressCollection  *mongo.Collection
	adminsCollection    *mongo.Collection
	branchesCollection  *mongo.Collection
	auditCollection     *mongo.Collection
}

// NewRepository creates a repository over the configured database.
func NewRepository(mc *config.MongoDBClient) *Repository {
	db := mc.Database
	return &Repository{
		client:              mc.Client,
		usersCollection:     db.Collection(UsersCollection),
		trainingsCollection: db.Collection(TrainingsCollection),
		modulesCollection:   db.Collection(ModulesCollection),
		progressCollection:  db.Collection(ProgressCollection),
		adminsCollection:    db.Collection(AdminsCollection),
		branchesCollection:  db.Collection(BranchesCollection),
		auditCollection:     db.Collection(AuditCollection),
	}
}

// WithTransaction runs fn inside a multi-document transaction. The context passed
// to fn carries the session; repository calls made with it join the transaction.
// fn may be invoked more than once when the server reports a transient
// transaction error.
func (r *Repository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return wrap("start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return wrap("transaction", err)
}

// wrap annotates a driver error, marking network failures and timeouts transient
// and duplicate keys as domain.ErrDuplicate.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrapf(domain.ErrDuplicate, "%s: %v", op, err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return &domain.TransientIOError{Op: op, Err: err}
	}
	var de *domain.TransientIOError
	if errors.As(err, &de) {
		return err
	}
	return errors.Wrap(err, op)
}

// Module provides the repository and creates its indexes at startup.
var Module = fx.Module("store",
	fx.Provide(NewRepository),
	fx.Invoke(func(lc fx.Lifecycle, r *Repository, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return r.EnsureIndexes(ctx, log)
			},
		})
	}),
)
