// Package integrity reports dangling references between users, trainings,
// modules and progress records, and applies explicit, audited repairs. Nothing
// here runs implicitly.
package integrity

import (
	"context"
	"sort"
	"time"

	"BranchLMS/internal/branchscope"
	"BranchLMS/internal/domain"
	"BranchLMS/internal/progress"
	"BranchLMS/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Store interface {
	FindUsers(ctx context.Context, f store.UserFilter) ([]domain.User, error)
	FindTrainings(ctx context.Context) ([]domain.Training, error)
	FindTrainingByID(ctx context.Context, id primitive.ObjectID) (*domain.Training, error)
	FindModulesByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Module, error)
	ExistingModuleIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]struct{}, error)
	ExistingUserIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]struct{}, error)
	FindProgressByUsers(ctx context.Context, userIDs []primitive.ObjectID) ([]domain.TrainingProgress, error)
	FindProgressByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingProgress, error)
	FindProgress(ctx context.Context, userID, trainingID primitive.ObjectID) (*domain.TrainingProgress, error)
	ReplaceProgress(ctx context.Context, p *domain.TrainingProgress) error
	DeleteProgress(ctx context.Context, id primitive.ObjectID) error
	PullTrainingAssignment(ctx context.Context, userID, trainingID primitive.ObjectID) error
	InsertAudit(ctx context.Context, e *domain.AuditEntry) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrphanProgress is a progress record with at least one dangling reference.
type OrphanProgress struct {
	ProgressID primitive.ObjectID                  `json:"progressId"`
	UserID     primitive.ObjectID                  `json:"userId"`
	TrainingID primitive.ObjectID                  `json:"trainingId"`
	Problems   []string                            `json:"problems"`
	Errors     []*domain.ReferentialIntegrityError `json:"-"`
}

// DanglingAssignment is a User.training entry whose training no longer exists.
type DanglingAssignment struct {
	UserID     primitive.ObjectID `json:"userId"`
	EmpID      string             `json:"empID"`
	TrainingID primitive.ObjectID `json:"trainingId"`
}

// MissingProgress is a User.training entry with no progress record, the trace
// of an assignment written halfway.
type MissingProgress struct {
	UserID     primitive.ObjectID `json:"userId"`
	EmpID      string             `json:"empID"`
	TrainingID primitive.ObjectID `json:"trainingId"`
}

type Inconsistency struct {
	ProgressID primitive.ObjectID `json:"progressId"`
	StoredPass bool               `json:"storedPass"`
	StrictPct  float64            `json:"strictPct"`
}

type Report struct {
	GeneratedAt         time.Time            `json:"generatedAt"`
	Scope               string               `json:"scope"`
	ScannedProgress     int                  `json:"scannedProgress"`
	ScannedUsers        int                  `json:"scannedUsers"`
	OrphanProgress      []OrphanProgress     `json:"orphanProgress"`
	DanglingAssignments []DanglingAssignment `json:"danglingAssignments"`
	MissingProgress     []MissingProgress    `json:"missingProgress"`
	Inconsistent        []Inconsistency      `json:"inconsistent"`
}

type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log.Named("integrity"), now: func() time.Time { return time.Now().UTC() }}
}

// FindOrphans scans the progress records and user assignments visible in scope
// and reports references to missing entities. Records whose user no longer
// exists belong to no branch and are reported to unrestricted scopes only. It
// never modifies data.
func (s *Service) FindOrphans(ctx context.Context, scope branchscope.Scope) (Report, error) {
	var (
		users     []domain.User
		records   []domain.TrainingProgress
		trainings []domain.Training
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		trainings, err = s.store.FindTrainings(gctx)
		return err
	})
	g.Go(func() (err error) {
		if users, err = s.store.FindUsers(gctx, store.UserFilter{LocCodes: scope.LocCodes()}); err != nil {
			return err
		}
		users = visible(users, scope)
		var owners []primitive.ObjectID
		if !scope.IsAll() {
			owners = make([]primitive.ObjectID, 0, len(users))
			for _, u := range users {
				owners = append(owners, u.ID)
			}
		}
		records, err = s.store.FindProgressByUsers(gctx, owners)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	trainingIDs := make(map[primitive.ObjectID]struct{}, len(trainings))
	for _, t := range trainings {
		trainingIDs[t.ID] = struct{}{}
	}

	var userRefs []primitive.ObjectID
	seenUser := map[primitive.ObjectID]struct{}{}
	for _, p := range records {
		if _, ok := seenUser[p.UserID]; !ok {
			seenUser[p.UserID] = struct{}{}
			userRefs = append(userRefs, p.UserID)
		}
	}
	userIDs, err := s.store.ExistingUserIDs(ctx, userRefs)
	if err != nil {
		return Report{}, err
	}

	var moduleRefs []primitive.ObjectID
	seenModule := map[primitive.ObjectID]struct{}{}
	for _, p := range records {
		for _, m := range p.Modules {
			if _, ok := seenModule[m.ModuleID]; !ok {
				seenModule[m.ModuleID] = struct{}{}
				moduleRefs = append(moduleRefs, m.ModuleID)
			}
		}
	}
	moduleIDs, err := s.store.ExistingModuleIDs(ctx, moduleRefs)
	if err != nil {
		return Report{}, err
	}

	rep := Report{GeneratedAt: s.now(), Scope: scope.String(), ScannedProgress: len(records), ScannedUsers: len(users)}
	progressKeys := make(map[[2]primitive.ObjectID]struct{}, len(records))
	for _, p := range records {
		progressKeys[[2]primitive.ObjectID{p.UserID, p.TrainingID}] = struct{}{}

		var errs []*domain.ReferentialIntegrityError
		if _, ok := userIDs[p.UserID]; !ok {
			errs = append(errs, &domain.ReferentialIntegrityError{Entity: "user", ID: p.UserID, ReferencedBy: p.ID})
		}
		if _, ok := trainingIDs[p.TrainingID]; !ok {
			errs = append(errs, &domain.ReferentialIntegrityError{Entity: "training", ID: p.TrainingID, ReferencedBy: p.ID})
		}
		for _, m := range p.Modules {
			if _, ok := moduleIDs[m.ModuleID]; !ok {
				errs = append(errs, &domain.ReferentialIntegrityError{Entity: "module", ID: m.ModuleID, ReferencedBy: p.ID})
			}
		}
		if len(errs) > 0 {
			o := OrphanProgress{ProgressID: p.ID, UserID: p.UserID, TrainingID: p.TrainingID, Errors: errs}
			for _, e := range errs {
				o.Problems = append(o.Problems, e.Error())
			}
			rep.OrphanProgress = append(rep.OrphanProgress, o)
		}

		if w := progress.CheckConsistency(&p); w != nil {
			rep.Inconsistent = append(rep.Inconsistent, Inconsistency{ProgressID: w.ProgressID, StoredPass: w.StoredPass, StrictPct: w.StrictPct})
		}
	}

	for _, u := range users {
		for _, a := range u.Training {
			if _, ok := trainingIDs[a.TrainingID]; !ok {
				rep.DanglingAssignments = append(rep.DanglingAssignments, DanglingAssignment{UserID: u.ID, EmpID: u.EmpID, TrainingID: a.TrainingID})
				continue
			}
			if _, ok := progressKeys[[2]primitive.ObjectID{u.ID, a.TrainingID}]; !ok {
				rep.MissingProgress = append(rep.MissingProgress, MissingProgress{UserID: u.ID, EmpID: u.EmpID, TrainingID: a.TrainingID})
			}
		}
	}

	sort.Slice(rep.OrphanProgress, func(i, j int) bool {
		return rep.OrphanProgress[i].ProgressID.Hex() < rep.OrphanProgress[j].ProgressID.Hex()
	})
	sort.Slice(rep.DanglingAssignments, func(i, j int) bool {
		a, b := rep.DanglingAssignments[i], rep.DanglingAssignments[j]
		if a.EmpID != b.EmpID {
			return a.EmpID < b.EmpID
		}
		return a.TrainingID.Hex() < b.TrainingID.Hex()
	})
	sort.Slice(rep.MissingProgress, func(i, j int) bool {
		a, b := rep.MissingProgress[i], rep.MissingProgress[j]
		if a.EmpID != b.EmpID {
			return a.EmpID < b.EmpID
		}
		return a.TrainingID.Hex() < b.TrainingID.Hex()
	})
	sort.Slice(rep.Inconsistent, func(i, j int) bool {
		return rep.Inconsistent[i].ProgressID.Hex() < rep.Inconsistent[j].ProgressID.Hex()
	})

	s.log.Info("integrity scan finished",
		zap.String("scope", rep.Scope),
		zap.Int("progress", rep.ScannedProgress),
		zap.Int("orphans", len(rep.OrphanProgress)),
		zap.Int("dangling", len(rep.DanglingAssignments)),
		zap.Int("missingProgress", len(rep.MissingProgress)),
		zap.Int("inconsistent", len(rep.Inconsistent)))
	return rep, nil
}

func visible(users []domain.User, scope branchscope.Scope) []domain.User {
	out := users[:0:0]
	for _, u := range users {
		if scope.Allows(u.LocCode) {
			out = append(out, u)
		}
	}
	return out
}
