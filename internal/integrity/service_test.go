package integrity

import (
	"context"
	"testing"
	"time"

	"BranchLMS/internal/branchscope"
	"BranchLMS/internal/domain"
	"BranchLMS/internal/store/memory"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type world struct {
	store    *memory.Store
	svc      *Service
	user     domain.User
	module   domain.Module
	training domain.Training
	healthy  domain.TrainingProgress
}

func newWorld(t *testing.T) *world {
	t.Helper()
	st := memory.New()
	module := st.AddModule(domain.Module{ModuleName: "Basics", Videos: []domain.Video{{ID: primitive.NewObjectID()}, {ID: primitive.NewObjectID()}}})
	training := st.AddTraining(domain.Training{TrainingName: "Basics", Modules: []primitive.ObjectID{module.ID}, TrainingType: domain.TrainingTypeAssigned})
	user := st.AddUser(domain.User{EmpID: "EMP1", Username: "anu", Training: []domain.TrainingAssignment{{TrainingID: training.ID}}})
	healthy := st.AddProgress(domain.TrainingProgress{
		UserID:     user.ID,
		TrainingID: training.ID,
		Modules: []domain.ModuleProgress{{ModuleID: module.ID, Videos: []domain.VideoProgress{
			{VideoID: module.Videos[0].ID}, {VideoID: module.Videos[1].ID},
		}}},
	})
	return &world{store: st, svc: NewService(st, zap.NewNop()), user: user, module: module, training: training, healthy: healthy}
}

func TestFindOrphans_Clean(t *testing.T) {
	w := newWorld(t)

	rep, err := w.svc.FindOrphans(context.Background(), branchscope.All())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ScannedProgress)
	assert.Empty(t, rep.OrphanProgress)
	assert.Empty(t, rep.DanglingAssignments)
	assert.Empty(t, rep.MissingProgress)
	assert.Empty(t, rep.Inconsistent)
}

func TestFindOrphans_ReportsEveryKind(t *testing.T) {
	w := newWorld(t)
	ghostUser := w.store.AddProgress(domain.TrainingProgress{UserID: primitive.NewObjectID(), TrainingID: w.training.ID})
	ghostModule := primitive.NewObjectID()
	ghostTraining := w.store.AddProgress(domain.TrainingProgress{
		UserID:     w.user.ID,
		TrainingID: primitive.NewObjectID(),
		Modules:    []domain.ModuleProgress{{ModuleID: ghostModule}},
	})
	passedEarly := w.store.AddProgress(domain.TrainingProgress{
		UserID:     w.user.ID,
		TrainingID: w.training.ID,
		Pass:       true,
		Modules:    []domain.ModuleProgress{{ModuleID: w.module.ID, Pass: true, Videos: []domain.VideoProgress{{Pass: false}}}},
	})
	other := w.store.AddTraining(domain.Training{TrainingName: "Other"})
	missingTraining := primitive.NewObjectID()
	w.store.AddUser(domain.User{EmpID: "EMP2", Training: []domain.TrainingAssignment{
		{TrainingID: missingTraining},
		{TrainingID: other.ID},
	}})

	rep, err := w.svc.FindOrphans(context.Background(), branchscope.All())
	require.NoError(t, err)

	byID := map[primitive.ObjectID]OrphanProgress{}
	for _, o := range rep.OrphanProgress {
		byID[o.ProgressID] = o
	}
	require.Len(t, byID, 2)
	require.Len(t, byID[ghostUser.ID].Errors, 1)
	assert.Equal(t, "user", byID[ghostUser.ID].Errors[0].Entity)

	entities := []string{}
	for _, e := range byID[ghostTraining.ID].Errors {
		entities = append(entities, e.Entity)
	}
	assert.ElementsMatch(t, []string{"training", "module"}, entities)

	require.Len(t, rep.DanglingAssignments, 1)
	assert.Equal(t, missingTraining, rep.DanglingAssignments[0].TrainingID)
	require.Len(t, rep.MissingProgress, 1)
	assert.Equal(t, other.ID, rep.MissingProgress[0].TrainingID)

	require.Len(t, rep.Inconsistent, 1)
	assert.Equal(t, passedEarly.ID, rep.Inconsistent[0].ProgressID)
	assert.Len(t, w.store.AllProgress(), 4, "scan never modifies data")
}

func TestFindOrphans_RestrictedScope(t *testing.T) {
	w := newWorld(t)
	inside := w.store.AddUser(domain.User{EmpID: "IN-1", LocCode: "1", Training: []domain.TrainingAssignment{{TrainingID: w.training.ID}}})
	w.store.AddUser(domain.User{EmpID: "OUT-18", LocCode: "18", Training: []domain.TrainingAssignment{{TrainingID: w.training.ID}}})
	w.store.AddProgress(domain.TrainingProgress{UserID: primitive.NewObjectID(), TrainingID: w.training.ID})

	rep, err := w.svc.FindOrphans(context.Background(), branchscope.Restricted("1"))
	require.NoError(t, err)
	assert.Equal(t, "1", rep.Scope)
	assert.Equal(t, 1, rep.ScannedUsers)
	assert.Equal(t, 0, rep.ScannedProgress)
	assert.Empty(t, rep.OrphanProgress, "records without a user go to unrestricted scopes only")
	require.Len(t, rep.MissingProgress, 1)
	assert.Equal(t, inside.ID, rep.MissingProgress[0].UserID)

	all, err := w.svc.FindOrphans(context.Background(), branchscope.All())
	require.NoError(t, err)
	assert.Len(t, all.MissingProgress, 2)
	assert.Len(t, all.OrphanProgress, 1)
}

func TestFindOrphans_StoreFailure(t *testing.T) {
	w := newWorld(t)
	w.store.Fail["FindTrainings"] = &domain.TransientIOError{Op: "find trainings", Err: errors.New("timeout")}

	_, err := w.svc.FindOrphans(context.Background(), branchscope.All())
	assert.True(t, domain.IsTransient(err))
}

func TestRepair_Delete(t *testing.T) {
	w := newWorld(t)

	res, err := w.svc.Repair(context.Background(), "root@example.com", RepairRequest{
		ProgressIDs: []string{w.healthy.ID.Hex()},
		Action:      ActionDelete,
		Reason:      "training retired",
	})
	require.NoError(t, err)
	require.Len(t, res.Repaired, 1)
	assert.Empty(t, res.Failed)
	assert.Empty(t, w.store.AllProgress())

	u, err := w.store.FindUserByID(context.Background(), w.user.ID)
	require.NoError(t, err)
	assert.Empty(t, u.Training)

	audit := w.store.Audit()
	require.Len(t, audit, 1)
	assert.Equal(t, res.CorrelationID, audit[0].CorrelationID)
	assert.Equal(t, "root@example.com", audit[0].Actor)
	assert.Equal(t, w.healthy.ID, audit[0].Before.ID)
	assert.Nil(t, audit[0].After)
}

func TestRepair_Reassign(t *testing.T) {
	w := newWorld(t)
	orphan := w.store.AddProgress(domain.TrainingProgress{UserID: w.user.ID, TrainingID: primitive.NewObjectID(), Pass: true})
	target := w.store.AddTraining(domain.Training{TrainingName: "Basics v2", Modules: []primitive.ObjectID{w.module.ID}})

	res, err := w.svc.Repair(context.Background(), "root@example.com", RepairRequest{
		ProgressIDs: []string{orphan.ID.Hex()},
		Action:      ActionReassign,
		TrainingID:  target.ID.Hex(),
		Reason:      "training was recreated",
	})
	require.NoError(t, err)
	require.Len(t, res.Repaired, 1)

	got, err := w.store.FindProgressByID(context.Background(), orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, got.TrainingID)
	assert.Equal(t, "Basics v2", got.TrainingName)
	assert.False(t, got.Pass)
	require.Len(t, got.Modules, 1)
	assert.Len(t, got.Modules[0].Videos, 2)

	// the user already has progress for the original training
	res, err = w.svc.Repair(context.Background(), "root@example.com", RepairRequest{
		ProgressIDs: []string{orphan.ID.Hex()},
		Action:      ActionReassign,
		TrainingID:  w.training.ID.Hex(),
		Reason:      "wrong target",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Repaired)
	require.Len(t, res.Failed, 1)
	assert.Len(t, w.store.Audit(), 1)
}

func TestRepair_CompleteIsExplicitAndAudited(t *testing.T) {
	w := newWorld(t)

	res, err := w.svc.Repair(context.Background(), "root@example.com", RepairRequest{
		ProgressIDs: []string{w.healthy.ID.Hex(), primitive.NewObjectID().Hex()},
		Action:      ActionComplete,
		Reason:      "completed offline session",
	})
	require.NoError(t, err)
	require.Len(t, res.Repaired, 1)
	require.Len(t, res.Failed, 1)

	got, err := w.store.FindProgressByID(context.Background(), w.healthy.ID)
	require.NoError(t, err)
	assert.True(t, got.Pass)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	for _, v := range got.Modules[0].Videos {
		assert.True(t, v.Pass)
	}
	audit := w.store.Audit()
	require.Len(t, audit, 1)
	assert.False(t, audit[0].Before.Pass)
	assert.True(t, audit[0].After.Pass)
	assert.WithinDuration(t, time.Now(), audit[0].CreatedAt, time.Minute)
}

func TestRepair_AuditFailureRollsBack(t *testing.T) {
	w := newWorld(t)
	w.store.Fail["InsertAudit"] = errors.New("audit collection unavailable")

	res, err := w.svc.Repair(context.Background(), "root@example.com", RepairRequest{
		ProgressIDs: []string{w.healthy.ID.Hex()},
		Action:      ActionDelete,
		Reason:      "cleanup run",
	})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Len(t, w.store.AllProgress(), 1, "no change without an audit entry")
}

func TestRepair_Validation(t *testing.T) {
	w := newWorld(t)
	var vErr *domain.ValidationError

	_, err := w.svc.Repair(context.Background(), "root", RepairRequest{ProgressIDs: []string{"zzz"}, Action: ActionDelete, Reason: "because"})
	assert.ErrorAs(t, err, &vErr)

	_, err = w.svc.Repair(context.Background(), "root", RepairRequest{ProgressIDs: []string{w.healthy.ID.Hex()}, Action: "heal", Reason: "because"})
	assert.ErrorAs(t, err, &vErr)

	_, err = w.svc.Repair(context.Background(), "root", RepairRequest{ProgressIDs: []string{w.healthy.ID.Hex()}, Action: ActionReassign, Reason: "because"})
	assert.ErrorAs(t, err, &vErr)

	_, err = w.svc.Repair(context.Background(), "", RepairRequest{ProgressIDs: []string{w.healthy.ID.Hex()}, Action: ActionDelete, Reason: "because"})
	assert.ErrorAs(t, err, &vErr)
}
