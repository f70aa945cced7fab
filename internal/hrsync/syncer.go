// Package hrsync reconciles local users with the HR employee directory and
// provisions their mandatory trainings.
package hrsync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"BranchLMS/internal/assignment"
	"BranchLMS/internal/branchscope"
	"BranchLMS/internal/config"
	"BranchLMS/internal/domain"
	"BranchLMS/internal/textutil"
	"BranchLMS/internal/validation"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxWarnings = 50

// ErrSyncInProgress is returned when a run is requested while another is active.
var ErrSyncInProgress = errors.New("hr sync already running")

// ErrSyncDisabled is returned by triggers when no HR API is configured.
var ErrSyncDisabled = errors.New("hr sync is not configured")

type Fetcher interface {
	FetchEmployeeRange(ctx context.Context, start, end string) ([]Employee, error)
}

type Store interface {
	UpsertUserByEmpID(ctx context.Context, u *domain.User) (*domain.User, bool, error)
	FindMandatoryTrainings(ctx context.Context) ([]domain.Training, error)
}

type Assigner interface {
	AssignMandatoryTrainings(ctx context.Context, user *domain.User, catalog []domain.Training) (assignment.Result, error)
}

// Summary reports one reconciliation run. Degraded is set when part of the
// directory could not be read or the catalog was unavailable; users already
// stored are left as they were.
type Summary struct {
	RunID             string    `json:"runId"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
	Pages             int       `json:"pages"`
	Fetched           int       `json:"fetched"`
	Created           int       `json:"created"`
	Updated           int       `json:"updated"`
	Invalid           int       `json:"invalid"`
	Failed            int       `json:"failed"`
	UnknownLocations  int       `json:"unknownLocations"`
	MandatoryAssigned int       `json:"mandatoryAssigned"`
	Degraded          bool      `json:"degraded"`
	Warnings          []string  `json:"warnings"`
}

func (s *Summary) warn(format string, args ...interface{}) {
	if len(s.Warnings) < maxWarnings {
		s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
	}
}

type Syncer struct {
	fetcher  Fetcher
	store    Store
	assigner Assigner
	table    *branchscope.Table
	cfg      config.HRConfig
	log      *zap.Logger
	now      func() time.Time

	running sync.Mutex
	active  atomic.Bool
	mu      sync.Mutex
	last    *Summary
}

func NewSyncer(fetcher Fetcher, store Store, assigner Assigner, table *branchscope.Table, cfg *config.Config, log *zap.Logger) *Syncer {
	return &Syncer{
		fetcher:  fetcher,
		store:    store,
		assigner: assigner,
		table:    table,
		cfg:      cfg.HR,
		log:      log.Named("hr-sync"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Running reports whether a run is in progress.
func (s *Syncer) Running() bool { return s.active.Load() }

// LastSummary returns the most recent finished run, or nil.
func (s *Syncer) LastSummary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run pages through the configured employee range. Each user is upserted and
// provisioned on its own; no transaction spans the run.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	if !s.acquire() {
		return Summary{}, ErrSyncInProgress
	}
	defer s.release()
	return s.run(ctx), nil
}

// acquire claims the single run slot; release frees it.
func (s *Syncer) acquire() bool {
	if !s.running.TryLock() {
		return false
	}
	s.active.Store(true)
	return true
}

func (s *Syncer) release() {
	s.active.Store(false)
	s.running.Unlock()
}

// run is one reconciliation; the caller holds the run slot.
func (s *Syncer) run(ctx context.Context) Summary {
	sum := Summary{RunID: uuid.NewString(), StartedAt: s.now()}
	log := s.log.With(zap.String("runId", sum.RunID))
	log.Info("hr sync started")

	catalog, err := s.store.FindMandatoryTrainings(ctx)
	if err != nil {
		sum.Degraded = true
		sum.warn("mandatory catalog unavailable, trainings not provisioned: %v", err)
		log.Warn("mandatory catalog unavailable", zap.Error(err))
		catalog = nil
	}

	for start := s.cfg.EmpIDStart; start <= s.cfg.EmpIDEnd; start += s.cfg.PageSize {
		if ctx.Err() != nil {
			sum.Degraded = true
			sum.warn("sync interrupted: %v", ctx.Err())
			break
		}
		end := min(start+s.cfg.PageSize-1, s.cfg.EmpIDEnd)
		from, to := s.empID(start), s.empID(end)

		employees, err := s.fetcher.FetchEmployeeRange(ctx, from, to)
		if err != nil {
			sum.Degraded = true
			sum.warn("employees %s-%s not fetched: %v", from, to, err)
			log.Warn("hr page failed", zap.String("start", from), zap.String("end", to), zap.Error(err))
			if domain.IsTransient(err) || ctx.Err() != nil {
				// the directory is unreachable; keep local data as is
				break
			}
			continue
		}
		sum.Pages++
		sum.Fetched += len(employees)

		for i := range employees {
			s.syncEmployee(ctx, &employees[i], catalog, &sum, log)
		}
	}

	sum.FinishedAt = s.now()
	log.Info("hr sync finished",
		zap.Int("fetched", sum.Fetched),
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("invalid", sum.Invalid),
		zap.Int("failed", sum.Failed),
		zap.Int("mandatoryAssigned", sum.MandatoryAssigned),
		zap.Bool("degraded", sum.Degraded))

	s.mu.Lock()
	s.last = &sum
	s.mu.Unlock()
	return sum
}

func (s *Syncer) syncEmployee(ctx context.Context, e *Employee, catalog []domain.Training, sum *Summary, log *zap.Logger) {
	if err := validation.Struct(e); err != nil {
		sum.Invalid++
		sum.warn("employee %q skipped: %v", e.EmpCode, describe(err))
		return
	}

	u := ToUser(e, s.table)
	if u.LocCode == branchscope.UnknownLocCode {
		sum.UnknownLocations++
		log.Debug("store name not in location table", zap.String("empID", u.EmpID), zap.String("store", e.StoreName))
	}

	saved, created, err := s.store.UpsertUserByEmpID(ctx, u)
	if err != nil {
		sum.Failed++
		sum.warn("employee %s not saved: %v", u.EmpID, err)
		log.Warn("user upsert failed", zap.String("empID", u.EmpID), zap.Error(err))
		return
	}
	if created {
		sum.Created++
	} else {
		sum.Updated++
	}

	if catalog == nil {
		return
	}
	res, err := s.assigner.AssignMandatoryTrainings(ctx, saved, catalog)
	sum.MandatoryAssigned += len(res.Assigned)
	if err != nil {
		sum.Failed++
		sum.warn("mandatory trainings of %s not provisioned: %v", u.EmpID, err)
		log.Warn("mandatory assignment failed", zap.String("empID", u.EmpID), zap.Error(err))
	}
	for _, f := range res.Failed {
		sum.warn("training %s for %s: %s", f.Training.TrainingName, u.EmpID, f.Reason)
	}
}

func (s *Syncer) empID(n int) string {
	return s.cfg.EmpIDPrefix + strconv.Itoa(n)
}

// ToUser maps a directory record to the identity fields of a User. A missing
// store code is resolved from the store name.
func ToUser(e *Employee, table *branchscope.Table) *domain.User {
	return &domain.User{
		EmpID:         textutil.Clean(e.EmpCode),
		Username:      textutil.Clean(e.Name),
		Email:         strings.ToLower(textutil.Clean(e.Email)),
		Designation:   textutil.Clean(e.RoleName),
		WorkingBranch: textutil.Clean(e.StoreName),
		LocCode:       table.ResolveLocCode(e.StoreCode, e.StoreName),
		PhoneNumber:   textutil.Clean(e.Phone),
	}
}

func describe(err error) string {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		parts := make([]string, len(vErr.Fields))
		for i, f := range vErr.Fields {
			parts[i] = f.Error
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
