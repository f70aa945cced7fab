package assignment

import (
	"context"
	"testing"
	"time"

	"BranchLMS/internal/domain"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func explicitTraining(f *fixture) domain.Training {
	return f.store.AddTraining(domain.Training{
		TrainingName: "Visual Merchandising",
		Modules:      []primitive.ObjectID{f.modules[0].ID},
		TrainingType: domain.TrainingTypeAssigned,
		DeadlineDays: 10,
		CreatedDate:  fixedNow,
	})
}

func TestAssignTraining_WritesBothHalves(t *testing.T) {
	f := newFixture(t)
	tr := explicitTraining(f)

	out, err := f.svc.AssignTraining(context.Background(), f.user.ID, tr.ID, time.Time{})
	require.NoError(t, err)

	assert.True(t, out.EntryCreated)
	assert.True(t, out.ProgressCreated)
	assert.False(t, out.Repaired)
	assert.Equal(t, fixedNow.AddDate(0, 0, 10), out.Progress.Deadline)

	u, err := f.store.FindUserByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, u.Training, 1)
	assert.Equal(t, tr.ID, u.Training[0].TrainingID)
	assert.Len(t, f.store.AllProgress(), 1)

	again, err := f.svc.AssignTraining(context.Background(), f.user.ID, tr.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, again.AlreadyAssigned())
	assert.Len(t, f.store.AllProgress(), 1)
}

func TestAssignTraining_ExplicitDeadline(t *testing.T) {
	f := newFixture(t)
	tr := explicitTraining(f)
	deadline := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	out, err := f.svc.AssignTraining(context.Background(), f.user.ID, tr.ID, deadline)
	require.NoError(t, err)
	assert.Equal(t, deadline, out.Progress.Deadline)
}

func TestAssignTraining_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	tr := explicitTraining(f)
	f.store.Fail["InsertProgress"] = &domain.TransientIOError{Op: "insert progress", Err: errors.New("primary stepped down")}

	_, err := f.svc.AssignTraining(context.Background(), f.user.ID, tr.ID, time.Time{})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))

	u, err := f.store.FindUserByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, u.Training, "entry must not survive a failed transaction")
	assert.Empty(t, f.store.AllProgress())
}

func TestAssignTraining_RepairsEntryWithoutProgress(t *testing.T) {
	f := newFixture(t)
	tr := explicitTraining(f)
	f.user.Training = []domain.TrainingAssignment{{TrainingID: tr.ID, Deadline: fixedNow, Status: domain.StatusPending}}
	f.store.AddUser(f.user)

	out, err := f.svc.AssignTraining(context.Background(), f.user.ID, tr.ID, time.Time{})
	require.NoError(t, err)

	assert.False(t, out.EntryCreated)
	assert.True(t, out.ProgressCreated)
	assert.True(t, out.Repaired)
	assert.Len(t, f.store.AllProgress(), 1)
}

func TestAssignTraining_RepairsProgressWithoutEntry(t *testing.T) {
	f := newFixture(t)
	tr := explicitTraining(f)
	f.store.AddProgress(domain.TrainingProgress{UserID: f.user.ID, TrainingID: tr.ID, Deadline: fixedNow})

	out, err := f.svc.AssignTraining(context.Background(), f.user.ID, tr.ID, time.Time{})
	require.NoError(t, err)

	assert.True(t, out.EntryCreated)
	assert.False(t, out.ProgressCreated)
	assert.True(t, out.Repaired)
	assert.Len(t, f.store.AllProgress(), 1)
}

func TestAssignTraining_MandatoryProgressIsNotARepair(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AssignMandatoryTrainings(context.Background(), &f.user, []domain.Training{f.training})
	require.NoError(t, err)

	out, err := f.svc.AssignTraining(context.Background(), f.user.ID, f.training.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, out.EntryCreated)
	assert.False(t, out.Repaired)
}

func TestAssignTraining_Errors(t *testing.T) {
	f := newFixture(t)
	tr := explicitTraining(f)

	_, err := f.svc.AssignTraining(context.Background(), primitive.NewObjectID(), tr.ID, time.Time{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.AssignTraining(context.Background(), f.user.ID, primitive.NewObjectID(), time.Time{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	broken := f.store.AddTraining(domain.Training{TrainingName: "Broken", Modules: []primitive.ObjectID{primitive.NewObjectID()}})
	_, err = f.svc.AssignTraining(context.Background(), f.user.ID, broken.ID, time.Time{})
	var rie *domain.ReferentialIntegrityError
	assert.ErrorAs(t, err, &rie)
	assert.Empty(t, f.store.AllProgress())
}
