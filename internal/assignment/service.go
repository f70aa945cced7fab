// Package assignment provisions trainings to users. Mandatory trainings are
// matched on designation and tracked by TrainingProgress only; explicit
// assignments write both the User.training entry and the progress record in
// one transaction.
package assignment

import (
	"context"
	"time"

	"BranchLMS/internal/config"
	"BranchLMS/internal/domain"
	"BranchLMS/internal/textutil"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store is the persistence the assigners need.
type Store interface {
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	FindUserByEmpID(ctx context.Context, empID string) (*domain.User, error)
	FindTrainingByID(ctx context.Context, id primitive.ObjectID) (*domain.Training, error)
	FindMandatoryTrainings(ctx context.Context) ([]domain.Training, error)
	FindModulesByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Module, error)
	ProgressExists(ctx context.Context, userID, trainingID primitive.ObjectID) (bool, error)
	FindProgress(ctx context.Context, userID, trainingID primitive.ObjectID) (*domain.TrainingProgress, error)
	InsertProgress(ctx context.Context, p *domain.TrainingProgress) error
	PushTrainingAssignment(ctx context.Context, userID primitive.ObjectID, a domain.TrainingAssignment) (bool, error)
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Failure is a matching training that could not be provisioned.
type Failure struct {
	Training domain.Training `json:"training"`
	Err      error           `json:"-"`
	Reason   string          `json:"reason"`
}

// Result lists what AssignMandatoryTrainings did with each matching training.
type Result struct {
	Assigned []domain.Training `json:"assigned"`
	Skipped  []domain.Training `json:"skipped"` // already had a progress record
	Failed   []Failure         `json:"failed,omitempty"`
}

type Service struct {
	store        Store
	log          *zap.Logger
	deadlineDays int
	now          func() time.Time
}

func NewService(store Store, cfg *config.Config, log *zap.Logger) *Service {
	return &Service{
		store:        store,
		log:          log.Named("assignment"),
		deadlineDays: cfg.MandatoryDeadlineDays,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// MatchesDesignation reports whether t is a mandatory training for designation.
// Both sides are compared whole after trimming, case folding and removing
// whitespace; partial matches never count.
func MatchesDesignation(designation string, t *domain.Training) bool {
	if !t.IsMandatory() {
		return false
	}
	key := textutil.MatchKey(designation)
	if key == "" {
		return false
	}
	for _, target := range t.AssignedFor {
		if textutil.MatchKey(target) == key {
			return true
		}
	}
	return false
}

// AssignMandatoryTrainings creates a progress record for every mandatory training
// in catalog that matches the user's designation and that the user does not
// already have. The existence check runs per training, right before the insert,
// so concurrent callers for the same user cannot both create a record. A
// training whose modules are missing is reported in Failed and does not stop
// the others.
func (s *Service) AssignMandatoryTrainings(ctx context.Context, user *domain.User, catalog []domain.Training) (Result, error) {
	var res Result
	if user == nil || user.ID.IsZero() {
		return res, domain.NewValidationError("user with id is required")
	}

	deadline := s.now().AddDate(0, 0, s.deadlineDays)
	for i := range catalog {
		t := catalog[i]
		if !MatchesDesignation(user.Designation, &t) {
			continue
		}

		exists, err := s.store.ProgressExists(ctx, user.ID, t.ID)
		if err != nil {
			return res, errors.Wrapf(err, "check progress of training %s", t.ID.Hex())
		}
		if exists {
			res.Skipped = append(res.Skipped, t)
			continue
		}

		p, err := s.newProgress(ctx, user, &t, deadline)
		if err != nil {
			var rie *domain.ReferentialIntegrityError
			if errors.As(err, &rie) {
				s.log.Warn("mandatory training references a missing module",
					zap.String("empID", user.EmpID), zap.String("trainingId", t.ID.Hex()), zap.Error(err))
				res.Failed = append(res.Failed, Failure{Training: t, Err: err, Reason: err.Error()})
				continue
			}
			return res, err
		}

		if err := s.store.InsertProgress(ctx, p); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				// another caller created it after our existence check
				res.Skipped = append(res.Skipped, t)
				continue
			}
			return res, errors.Wrapf(err, "create progress for training %s", t.ID.Hex())
		}
		res.Assigned = append(res.Assigned, t)
		s.log.Info("mandatory training assigned",
			zap.String("empID", user.EmpID),
			zap.String("training", t.TrainingName),
			zap.Time("deadline", deadline))
	}
	return res, nil
}

// UserByEmpID loads a user, failing with domain.ErrNotFound when absent.
func (s *Service) UserByEmpID(ctx context.Context, empID string) (*domain.User, error) {
	user, err := s.store.FindUserByEmpID(ctx, empID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.Wrapf(domain.ErrNotFound, "user %s", empID)
	}
	return user, nil
}

// AssignMandatoryForUser loads the mandatory catalog and runs
// AssignMandatoryTrainings for user.
func (s *Service) AssignMandatoryForUser(ctx context.Context, user *domain.User) (Result, error) {
	catalog, err := s.store.FindMandatoryTrainings(ctx)
	if err != nil {
		return Result{}, err
	}
	return s.AssignMandatoryTrainings(ctx, user, catalog)
}

// newProgress builds a record with every module and video of t not passed.
func (s *Service) newProgress(ctx context.Context, user *domain.User, t *domain.Training, deadline time.Time) (*domain.TrainingProgress, error) {
	modules, err := s.store.FindModulesByIDs(ctx, t.Modules)
	if err != nil {
		return nil, errors.Wrapf(err, "load modules of training %s", t.ID.Hex())
	}

	tree, err := BuildModuleTree(t, modules)
	if err != nil {
		return nil, err
	}
	return &domain.TrainingProgress{
		UserID:       user.ID,
		TrainingID:   t.ID,
		TrainingName: t.TrainingName,
		Deadline:     deadline,
		Pass:         false,
		Status:       domain.StatusPending,
		Modules:      tree,
	}, nil
}

// BuildModuleTree lists t's modules in order with every video not passed.
// A module id missing from modules is a ReferentialIntegrityError.
func BuildModuleTree(t *domain.Training, modules map[primitive.ObjectID]domain.Module) ([]domain.ModuleProgress, error) {
	tree := make([]domain.ModuleProgress, 0, len(t.Modules))
	for _, id := range t.Modules {
		m, ok := modules[id]
		if !ok {
			return nil, &domain.ReferentialIntegrityError{Entity: "module", ID: id, ReferencedBy: t.ID}
		}
		mp := domain.ModuleProgress{ModuleID: m.ID, Videos: make([]domain.VideoProgress, 0, len(m.Videos))}
		for _, v := range m.Videos {
			mp.Videos = append(mp.Videos, domain.VideoProgress{VideoID: v.ID})
		}
		tree = append(tree, mp)
	}
	return tree, nil
}
