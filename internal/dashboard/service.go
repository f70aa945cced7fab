// Package dashboard serves the admin reports: overdue counts, completion rates
// and top performers, each limited to the admin's branch scope. Reports are
// computed from a single read of users and progress; records that cannot be
// interpreted mark the report degraded instead of failing it.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"BranchLMS/internal/branchscope"
	"BranchLMS/internal/domain"
	"BranchLMS/internal/overdue"
	"BranchLMS/internal/progress"
	"BranchLMS/internal/store"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopLimit = 10
	MaxTopLimit     = 100
	maxWarnings     = 50
)

type Store interface {
	FindUsers(ctx context.Context, f store.UserFilter) ([]domain.User, error)
	FindProgressByUsers(ctx context.Context, userIDs []primitive.ObjectID) ([]domain.TrainingProgress, error)
	FindTrainings(ctx context.Context) ([]domain.Training, error)
}

type ScopeResolver interface {
	ForAdmin(ctx context.Context, adminID primitive.ObjectID) (*domain.Admin, branchscope.Scope, error)
}

// Health is embedded in every report.
type Health struct {
	Degraded bool     `json:"degraded"`
	Warnings []string `json:"warnings"`
}

func (h *Health) warn(format string, args ...interface{}) {
	h.Degraded = true
	if len(h.Warnings) < maxWarnings {
		h.Warnings = append(h.Warnings, fmt.Sprintf(format, args...))
	}
}

type OverdueReport struct {
	AsOf   time.Time            `json:"asOf"`
	Scope  string               `json:"scope"`
	Scoped overdue.Counts       `json:"scoped"`
	Global overdue.Counts       `json:"global"`
	Users  []overdue.UserCounts `json:"users"`
	Health
}

type TrainingCompletion struct {
	TrainingID    primitive.ObjectID `json:"trainingId"`
	TrainingName  string             `json:"trainingName"`
	Records       int                `json:"records"`
	Completed     int                `json:"completed"`
	AveragePct    float64            `json:"averagePct"`
	CompletionPct float64            `json:"completionPct"`
}

type CompletionReport struct {
	Policy        progress.Policy      `json:"policy"`
	Scope         string               `json:"scope"`
	Records       int                  `json:"records"`
	Completed     int                  `json:"completed"`
	AveragePct    float64              `json:"averagePct"`
	CompletionPct float64              `json:"completionPct"`
	Trainings     []TrainingCompletion `json:"trainings"`
	Health
}

type Performer struct {
	UserID        primitive.ObjectID `json:"userId"`
	EmpID         string             `json:"empID"`
	Username      string             `json:"username"`
	WorkingBranch string             `json:"workingBranch"`
	LocCode       string             `json:"locCode"`
	Completed     int                `json:"completed"`
}

type TopPerformersReport struct {
	Scope      string      `json:"scope"`
	Limit      int         `json:"limit"`
	Performers []Performer `json:"performers"`
	Health
}

type Service struct {
	store    Store
	resolver ScopeResolver
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Store, resolver ScopeResolver, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		log:      log.Named("dashboard"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// snapshot is one consistent read for a report.
type snapshot struct {
	users     []domain.User
	progress  []domain.TrainingProgress
	trainings map[primitive.ObjectID]domain.Training
}

// load reads users, progress and, when withCatalog is set, the training catalog
// in parallel. A nil filter reads everything.
func (s *Service) load(ctx context.Context, f store.UserFilter, withCatalog bool) (*snapshot, error) {
	snap := &snapshot{}
	var catalog []domain.Training

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.users, err = s.store.FindUsers(gctx, f)
		return errors.Wrap(err, "load users")
	})
	g.Go(func() (err error) {
		snap.progress, err = s.store.FindProgressByUsers(gctx, nil)
		return errors.Wrap(err, "load progress")
	})
	if withCatalog {
		g.Go(func() (err error) {
			catalog, err = s.store.FindTrainings(gctx)
			return errors.Wrap(err, "load trainings")
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.trainings = make(map[primitive.ObjectID]domain.Training, len(catalog))
	for _, t := range catalog {
		snap.trainings[t.ID] = t
	}
	return snap, nil
}

// Overdue counts overdue assignments as of asOf, for the admin's scope and for
// all branches. Users lists the per-user breakdown of the admin's scope, or of
// all branches when allUsers is set; only an unrestricted admin may ask for that.
func (s *Service) Overdue(ctx context.Context, adminID primitive.ObjectID, asOf time.Time, allUsers bool) (OverdueReport, error) {
	_, scope, err := s.resolver.ForAdmin(ctx, adminID)
	if err != nil {
		return OverdueReport{}, err
	}
	if allUsers && !scope.IsAll() {
		return OverdueReport{}, domain.NewValidationError("scope=all requires unrestricted branch access",
			domain.FieldError{Field: "scope", Error: "must be mine"})
	}
	if asOf.IsZero() {
		asOf = startOfDay(s.now())
	}

	snap, err := s.load(ctx, store.UserFilter{}, false)
	if err != nil {
		return OverdueReport{}, err
	}

	rep := OverdueReport{
		AsOf:   asOf,
		Scope:  scope.String(),
		Scoped: overdue.ComputeOverdue(snap.users, snap.progress, asOf, scope),
		Global: overdue.ComputeOverdue(snap.users, snap.progress, asOf, branchscope.All()),
	}
	listed := scope
	if allUsers {
		listed = branchscope.All()
	}
	rep.Users = withOverdue(overdue.PerUser(snap.users, snap.progress, asOf, listed))

	s.checkSnapshot(snap, scope, &rep.Health)
	return rep, nil
}

func withOverdue(in []overdue.UserCounts) []overdue.UserCounts {
	out := make([]overdue.UserCounts, 0, len(in))
	for _, uc := range in {
		if uc.Total > 0 {
			out = append(out, uc)
		}
	}
	return out
}

// Completion computes completion rates of the progress records of in-scope
// users under policy. Completed counts records at 100% under that policy.
func (s *Service) Completion(ctx context.Context, adminID primitive.ObjectID, policy progress.Policy) (CompletionReport, error) {
	if _, err := progress.ParsePolicy(string(policy)); err != nil {
		return CompletionReport{}, err
	}
	_, scope, err := s.resolver.ForAdmin(ctx, adminID)
	if err != nil {
		return CompletionReport{}, err
	}
	snap, err := s.load(ctx, store.UserFilter{LocCodes: scope.LocCodes()}, true)
	if err != nil {
		return CompletionReport{}, err
	}

	rep := CompletionReport{Policy: policy, Scope: scope.String()}
	inScope := scopedUserIDs(snap.users, scope)
	byTraining := map[primitive.ObjectID]*TrainingCompletion{}
	sums := map[primitive.ObjectID]float64{}
	var total float64

	for i := range snap.progress {
		p := &snap.progress[i]
		if _, ok := inScope[p.UserID]; !ok {
			continue
		}
		res, err := progress.ComputeTrainingProgress(p, policy)
		if err != nil {
			rep.warn("progress %s skipped: %v", p.ID.Hex(), err)
			continue
		}
		for _, w := range res.Warnings {
			rep.warn("%v", w)
		}

		tc, ok := byTraining[p.TrainingID]
		if !ok {
			tc = &TrainingCompletion{TrainingID: p.TrainingID, TrainingName: p.TrainingName}
			if t, known := snap.trainings[p.TrainingID]; known {
				tc.TrainingName = t.TrainingName
			} else {
				rep.warn("progress %s references missing training %s", p.ID.Hex(), p.TrainingID.Hex())
			}
			byTraining[p.TrainingID] = tc
		}
		tc.Records++
		sums[p.TrainingID] += res.OverallPct
		rep.Records++
		total += res.OverallPct
		if res.TotalModules > 0 && res.OverallPct == 100 {
			tc.Completed++
			rep.Completed++
		}
	}

	rep.Trainings = make([]TrainingCompletion, 0, len(byTraining))
	for id, tc := range byTraining {
		tc.AveragePct = sums[id] / float64(tc.Records)
		tc.CompletionPct = ratio(tc.Completed, tc.Records)
		rep.Trainings = append(rep.Trainings, *tc)
	}
	sort.Slice(rep.Trainings, func(i, j int) bool {
		a, b := rep.Trainings[i], rep.Trainings[j]
		if a.TrainingName != b.TrainingName {
			return a.TrainingName < b.TrainingName
		}
		return a.TrainingID.Hex() < b.TrainingID.Hex()
	})
	if rep.Records > 0 {
		rep.AveragePct = total / float64(rep.Records)
	}
	rep.CompletionPct = ratio(rep.Completed, rep.Records)
	s.checkSnapshot(snap, scope, &rep.Health)
	return rep, nil
}

// TopPerformers ranks in-scope users by the number of distinct trainings they
// passed, counting a training once whichever source records it. Ties are broken
// by username, then empID. Users with nothing passed are not listed.
func (s *Service) TopPerformers(ctx context.Context, adminID primitive.ObjectID, limit int) (TopPerformersReport, error) {
	if limit == 0 {
		limit = DefaultTopLimit
	}
	if limit < 0 || limit > MaxTopLimit {
		return TopPerformersReport{}, domain.NewValidationError("invalid limit",
			domain.FieldError{Field: "limit", Error: fmt.Sprintf("must be between 1 and %d", MaxTopLimit)})
	}
	_, scope, err := s.resolver.ForAdmin(ctx, adminID)
	if err != nil {
		return TopPerformersReport{}, err
	}
	snap, err := s.load(ctx, store.UserFilter{LocCodes: scope.LocCodes()}, false)
	if err != nil {
		return TopPerformersReport{}, err
	}

	passed := map[primitive.ObjectID]map[primitive.ObjectID]struct{}{}
	mark := func(userID, trainingID primitive.ObjectID) {
		set, ok := passed[userID]
		if !ok {
			set = map[primitive.ObjectID]struct{}{}
			passed[userID] = set
		}
		set[trainingID] = struct{}{}
	}
	for _, p := range snap.progress {
		if p.Pass {
			mark(p.UserID, p.TrainingID)
		}
	}

	rep := TopPerformersReport{Scope: scope.String(), Limit: limit}
	seen := map[primitive.ObjectID]struct{}{}
	var ranked []Performer
	for _, u := range snap.users {
		if !scope.Allows(u.LocCode) {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		for _, t := range u.Training {
			if t.Pass {
				mark(u.ID, t.TrainingID)
			}
		}
		n := len(passed[u.ID])
		if n == 0 {
			continue
		}
		ranked = append(ranked, Performer{
			UserID:        u.ID,
			EmpID:         u.EmpID,
			Username:      u.Username,
			WorkingBranch: u.WorkingBranch,
			LocCode:       u.LocCode,
			Completed:     n,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Completed != b.Completed {
			return a.Completed > b.Completed
		}
		if a.Username != b.Username {
			return a.Username < b.Username
		}
		return a.EmpID < b.EmpID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	rep.Performers = ranked
	if rep.Performers == nil {
		rep.Performers = []Performer{}
	}
	s.checkSnapshot(snap, scope, &rep.Health)
	return rep, nil
}

// checkSnapshot reports data the counts had to ignore.
func (s *Service) checkSnapshot(snap *snapshot, scope branchscope.Scope, h *Health) {
	known := make(map[primitive.ObjectID]struct{}, len(snap.users))
	unlocated := 0
	for _, u := range snap.users {
		known[u.ID] = struct{}{}
		if scope.IsAll() && (u.LocCode == "" || u.LocCode == branchscope.UnknownLocCode) {
			unlocated++
		}
	}
	if unlocated > 0 {
		h.warn("%d users have no known location code and are only visible to unrestricted admins", unlocated)
	}
	if !scope.IsAll() {
		return
	}
	orphans := 0
	for _, p := range snap.progress {
		if _, ok := known[p.UserID]; !ok {
			orphans++
		}
	}
	if orphans > 0 {
		h.warn("%d progress records reference missing users and were not counted", orphans)
		s.log.Warn("orphan progress records in report", zap.Int("count", orphans))
	}
}

func scopedUserIDs(users []domain.User, scope branchscope.Scope) map[primitive.ObjectID]struct{} {
	ids := make(map[primitive.ObjectID]struct{}, len(users))
	for _, u := range users {
		if scope.Allows(u.LocCode) {
			ids[u.ID] = struct{}{}
		}
	}
	return ids
}

// startOfDay is 00:00 UTC of t's UTC date.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
