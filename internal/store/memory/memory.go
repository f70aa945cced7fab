// Package memory is an in-process stand-in for the Mongo repository, used by
// service tests. Transactions are emulated by snapshotting the whole state and
// restoring it when the callback fails.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"BranchLMS/internal/domain"
	"BranchLMS/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds documents by id. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	users     map[primitive.ObjectID]domain.User
	trainings map[primitive.ObjectID]domain.Training
	modules   map[primitive.ObjectID]domain.Module
	progress  map[primitive.ObjectID]domain.TrainingProgress
	admins    map[primitive.ObjectID]domain.Admin
	branches  map[primitive.ObjectID]domain.Branch
	audit     []domain.AuditEntry

	// UniqueProgress enforces the (userId, trainingId) unique index.
	UniqueProgress bool
	// Fail makes the named method return the error once, then clears it.
	Fail map[string]error
}

func New() *Store {
	return &Store{
		users:          map[primitive.ObjectID]domain.User{},
		trainings:      map[primitive.ObjectID]domain.Training{},
		modules:        map[primitive.ObjectID]domain.Module{},
		progress:       map[primitive.ObjectID]domain.TrainingProgress{},
		admins:         map[primitive.ObjectID]domain.Admin{},
		branches:       map[primitive.ObjectID]domain.Branch{},
		UniqueProgress: true,
		Fail:           map[string]error{},
	}
}

func (s *Store) failure(method string) error {
	if err, ok := s.Fail[method]; ok {
		delete(s.Fail, method)
		return err
	}
	return nil
}

// Seeding helpers. Ids are assigned when zero.

func (s *Store) AddUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = cloneUser(u)
	return u
}

func (s *Store) AddTraining(t domain.Training) domain.Training {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	s.trainings[t.ID] = t
	return t
}

func (s *Store) AddModule(m domain.Module) domain.Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	s.modules[m.ID] = m
	return m
}

func (s *Store) AddAdmin(a domain.Admin) domain.Admin {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	s.admins[a.ID] = a
	return a
}

func (s *Store) AddBranch(b domain.Branch) domain.Branch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	s.branches[b.ID] = b
	return b
}

// AddProgress stores p without the uniqueness check, for seeding legacy duplicates.
func (s *Store) AddProgress(p domain.TrainingProgress) domain.TrainingProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.progress[p.ID] = cloneProgress(p)
	return p
}

// AllProgress returns every progress record sorted by id.
func (s *Store) AllProgress() []domain.TrainingProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressWhere(func(domain.TrainingProgress) bool { return true })
}

func (s *Store) Audit() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.audit...)
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if err := s.failure("WithTransaction"); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	users    map[primitive.ObjectID]domain.User
	progress map[primitive.ObjectID]domain.TrainingProgress
	audit    []domain.AuditEntry
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		users:    make(map[primitive.ObjectID]domain.User, len(s.users)),
		progress: make(map[primitive.ObjectID]domain.TrainingProgress, len(s.progress)),
		audit:    append([]domain.AuditEntry(nil), s.audit...),
	}
	for id, u := range s.users {
		snap.users[id] = cloneUser(u)
	}
	for id, p := range s.progress {
		snap.progress[id] = cloneProgress(p)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.progress = snap.progress
	s.audit = snap.audit
}

// Users

func (s *Store) FindUserByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindUserByID"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	u = cloneUser(u)
	return &u, nil
}

func (s *Store) FindUserByEmpID(_ context.Context, empID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindUserByEmpID"); err != nil {
		return nil, err
	}
	return s.userByEmpID(empID), nil
}

func (s *Store) userByEmpID(empID string) *domain.User {
	for _, u := range s.users {
		if u.EmpID == empID {
			u = cloneUser(u)
			return &u
		}
	}
	return nil
}

func (s *Store) FindUsers(_ context.Context, f store.UserFilter) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindUsers"); err != nil {
		return nil, err
	}
	var allowed map[string]struct{}
	if f.LocCodes != nil {
		allowed = make(map[string]struct{}, len(f.LocCodes))
		for _, c := range f.LocCodes {
			allowed[c] = struct{}{}
		}
	}
	var out []domain.User
	for _, u := range s.users {
		if allowed != nil {
			if _, ok := allowed[u.LocCode]; !ok {
				continue
			}
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (s *Store) ExistingUserIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ExistingUserIDs"); err != nil {
		return nil, err
	}
	found := map[primitive.ObjectID]struct{}{}
	for _, id := range ids {
		if _, ok := s.users[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (s *Store) UpsertUserByEmpID(_ context.Context, u *domain.User) (*domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpsertUserByEmpID"); err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()
	for _, other := range s.users {
		if u.Email != "" && other.Email == u.Email && other.EmpID != u.EmpID {
			return nil, false, domain.ErrDuplicate
		}
	}
	existing := s.userByEmpID(u.EmpID)
	created := existing == nil
	if created {
		existing = &domain.User{
			ID:                  primitive.NewObjectID(),
			EmpID:               u.EmpID,
			Training:            []domain.TrainingAssignment{},
			AssignedAssessments: []domain.AssessmentAssignment{},
			AssignedModules:     []domain.ModuleAssignment{},
			CreatedAt:           now,
		}
	}
	existing.Username = u.Username
	existing.Email = u.Email
	existing.Designation = u.Designation
	existing.WorkingBranch = u.WorkingBranch
	existing.LocCode = u.LocCode
	existing.PhoneNumber = u.PhoneNumber
	existing.UpdatedAt = now
	s.users[existing.ID] = cloneUser(*existing)
	return existing, created, nil
}

func (s *Store) PushTrainingAssignment(_ context.Context, userID primitive.ObjectID, a domain.TrainingAssignment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("PushTrainingAssignment"); err != nil {
		return false, err
	}
	u, ok := s.users[userID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if u.HasTraining(a.TrainingID) {
		return false, nil
	}
	u.Training = append(u.Training, a)
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return true, nil
}

func (s *Store) PullTrainingAssignment(_ context.Context, userID, trainingID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("PullTrainingAssignment"); err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	kept := u.Training[:0:0]
	for _, t := range u.Training {
		if t.TrainingID != trainingID {
			kept = append(kept, t)
		}
	}
	u.Training = kept
	s.users[userID] = u
	return nil
}

// Trainings and modules

func (s *Store) FindTrainingByID(_ context.Context, id primitive.ObjectID) (*domain.Training, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindTrainingByID"); err != nil {
		return nil, err
	}
	t, ok := s.trainings[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) FindMandatoryTrainings(_ context.Context) ([]domain.Training, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindMandatoryTrainings"); err != nil {
		return nil, err
	}
	return s.trainingsWhere(func(t domain.Training) bool { return t.IsMandatory() }), nil
}

func (s *Store) FindTrainings(_ context.Context) ([]domain.Training, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindTrainings"); err != nil {
		return nil, err
	}
	return s.trainingsWhere(func(domain.Training) bool { return true }), nil
}

func (s *Store) trainingsWhere(keep func(domain.Training) bool) []domain.Training {
	var out []domain.Training
	for _, t := range s.trainings {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

func (s *Store) FindModulesByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindModulesByIDs"); err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]domain.Module, len(ids))
	for _, id := range ids {
		if m, ok := s.modules[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (s *Store) ExistingModuleIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ExistingModuleIDs"); err != nil {
		return nil, err
	}
	found := map[primitive.ObjectID]struct{}{}
	for _, id := range ids {
		if _, ok := s.modules[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

// Progress

func (s *Store) ProgressExists(_ context.Context, userID, trainingID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ProgressExists"); err != nil {
		return false, err
	}
	return s.findProgress(userID, trainingID) != nil, nil
}

func (s *Store) FindProgress(_ context.Context, userID, trainingID primitive.ObjectID) (*domain.TrainingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindProgress"); err != nil {
		return nil, err
	}
	return s.findProgress(userID, trainingID), nil
}

func (s *Store) findProgress(userID, trainingID primitive.ObjectID) *domain.TrainingProgress {
	matches := s.progressWhere(func(p domain.TrainingProgress) bool {
		return p.UserID == userID && p.TrainingID == trainingID
	})
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

func (s *Store) FindProgressByID(_ context.Context, id primitive.ObjectID) (*domain.TrainingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindProgressByID"); err != nil {
		return nil, err
	}
	p, ok := s.progress[id]
	if !ok {
		return nil, nil
	}
	p = cloneProgress(p)
	return &p, nil
}

func (s *Store) FindProgressByUsers(_ context.Context, userIDs []primitive.ObjectID) ([]domain.TrainingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindProgressByUsers"); err != nil {
		return nil, err
	}
	if userIDs == nil {
		return s.progressWhere(func(domain.TrainingProgress) bool { return true }), nil
	}
	want := make(map[primitive.ObjectID]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}
	return s.progressWhere(func(p domain.TrainingProgress) bool {
		_, ok := want[p.UserID]
		return ok
	}), nil
}

func (s *Store) progressWhere(keep func(domain.TrainingProgress) bool) []domain.TrainingProgress {
	var out []domain.TrainingProgress
	for _, p := range s.progress {
		if keep(p) {
			out = append(out, cloneProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

func (s *Store) InsertProgress(_ context.Context, p *domain.TrainingProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertProgress"); err != nil {
		return err
	}
	if s.UniqueProgress && s.findProgress(p.UserID, p.TrainingID) != nil {
		return domain.ErrDuplicate
	}
	now := time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.progress[p.ID] = cloneProgress(*p)
	return nil
}

func (s *Store) ReplaceProgress(_ context.Context, p *domain.TrainingProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ReplaceProgress"); err != nil {
		return err
	}
	if _, ok := s.progress[p.ID]; !ok {
		return domain.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	s.progress[p.ID] = cloneProgress(*p)
	return nil
}

func (s *Store) DeleteProgress(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteProgress"); err != nil {
		return err
	}
	if _, ok := s.progress[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.progress, id)
	return nil
}

// Admins, branches, audit

func (s *Store) FindAdminByID(_ context.Context, id primitive.ObjectID) (*domain.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindAdminByID"); err != nil {
		return nil, err
	}
	a, ok := s.admins[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) FindBranchesByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindBranchesByIDs"); err != nil {
		return nil, err
	}
	var out []domain.Branch
	for _, id := range ids {
		if b, ok := s.branches[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) FindBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindBranches"); err != nil {
		return nil, err
	}
	var out []domain.Branch
	for _, b := range s.branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocCode < out[j].LocCode })
	return out, nil
}

func (s *Store) InsertAudit(_ context.Context, e *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertAudit"); err != nil {
		return err
	}
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	s.audit = append(s.audit, *e)
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.Training = append([]domain.TrainingAssignment(nil), u.Training...)
	u.AssignedAssessments = append([]domain.AssessmentAssignment(nil), u.AssignedAssessments...)
	u.AssignedModules = append([]domain.ModuleAssignment(nil), u.AssignedModules...)
	return u
}

func cloneProgress(p domain.TrainingProgress) domain.TrainingProgress {
	mods := make([]domain.ModuleProgress, len(p.Modules))
	for i, m := range p.Modules {
		m.Videos = append([]domain.VideoProgress(nil), m.Videos...)
		mods[i] = m
	}
	p.Modules = mods
	return p
}
