package overdue

import (
	"math/rand"
	"testing"
	"time"

	"BranchLMS/internal/branchscope"
	"BranchLMS/internal/domain"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var asOf = time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)

func past(days int) time.Time   { return asOf.AddDate(0, 0, -days) }
func future(days int) time.Time { return asOf.AddDate(0, 0, days) }

func progressFor(u domain.User, trainingID primitive.ObjectID, deadline time.Time, pass bool) domain.TrainingProgress {
	return domain.TrainingProgress{
		ID:         primitive.NewObjectID(),
		UserID:     u.ID,
		TrainingID: trainingID,
		Deadline:   deadline,
		Pass:       pass,
	}
}

func TestOverdue(t *testing.T) {
	assert.True(t, Overdue(past(1), false, asOf))
	assert.False(t, Overdue(past(1), true, asOf))
	assert.False(t, Overdue(asOf, false, asOf))
	assert.False(t, Overdue(future(1), false, asOf))
	assert.False(t, Overdue(time.Time{}, false, asOf))
}

func TestComputeOverdue_TwoSources(t *testing.T) {
	assignedA, assignedB, mandatory := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	u := domain.User{
		ID:      primitive.NewObjectID(),
		LocCode: "3",
		Training: []domain.TrainingAssignment{
			{TrainingID: assignedA, Deadline: past(3)},
			{TrainingID: assignedB, Deadline: past(3), Pass: true},
		},
	}
	progress := []domain.TrainingProgress{
		progressFor(u, assignedA, past(3), false), // same training as the embedded entry
		progressFor(u, mandatory, past(1), false),
	}

	got := ComputeOverdue([]domain.User{u}, progress, asOf, branchscope.All())

	assert.Equal(t, Counts{AssignedOverdue: 1, MandatoryOverdue: 1, Total: 2}, got)
}

func TestComputeOverdue_DedupCountsOnce(t *testing.T) {
	trainingID := primitive.NewObjectID()
	u := domain.User{
		ID:       primitive.NewObjectID(),
		Training: []domain.TrainingAssignment{{TrainingID: trainingID, Deadline: past(10)}},
	}
	progress := []domain.TrainingProgress{
		progressFor(u, trainingID, past(10), false),
		progressFor(u, trainingID, past(10), false),
	}

	got := ComputeOverdue([]domain.User{u}, progress, asOf, branchscope.All())

	assert.Equal(t, 1, got.Total)
	assert.Equal(t, 0, got.MandatoryOverdue)
}

func TestComputeOverdue_DuplicateProgressRecords(t *testing.T) {
	trainingID := primitive.NewObjectID()
	u := domain.User{ID: primitive.NewObjectID()}

	dup := []domain.TrainingProgress{
		progressFor(u, trainingID, past(2), false),
		progressFor(u, trainingID, past(2), false),
	}
	assert.Equal(t, 1, ComputeOverdue([]domain.User{u}, dup, asOf, branchscope.All()).MandatoryOverdue)

	onePassed := []domain.TrainingProgress{
		progressFor(u, trainingID, past(2), false),
		progressFor(u, trainingID, past(2), true),
	}
	assert.Equal(t, 0, ComputeOverdue([]domain.User{u}, onePassed, asOf, branchscope.All()).Total)
	onePassed[0], onePassed[1] = onePassed[1], onePassed[0]
	assert.Equal(t, 0, ComputeOverdue([]domain.User{u}, onePassed, asOf, branchscope.All()).Total)
}

func TestComputeOverdue_ScopedAndUnscoped(t *testing.T) {
	mandatory := primitive.NewObjectID()
	inScope := domain.User{ID: primitive.NewObjectID(), Username: "anu", LocCode: "1"}
	outOfScope := domain.User{ID: primitive.NewObjectID(), Username: "biju", LocCode: "18"}
	users := []domain.User{inScope, outOfScope}
	progress := []domain.TrainingProgress{
		progressFor(inScope, mandatory, past(5), false),
		progressFor(outOfScope, mandatory, past(5), false),
	}

	scoped := ComputeOverdue(users, progress, asOf, branchscope.Restricted("1"))
	global := ComputeOverdue(users, progress, asOf, branchscope.All())

	assert.Equal(t, 1, scoped.Total)
	assert.Equal(t, 2, global.Total)
}

func TestComputeOverdue_MissingLocCodeOnlyGlobal(t *testing.T) {
	mandatory := primitive.NewObjectID()
	noLoc := domain.User{ID: primitive.NewObjectID()}
	unknown := domain.User{ID: primitive.NewObjectID(), LocCode: branchscope.UnknownLocCode}
	progress := []domain.TrainingProgress{
		progressFor(noLoc, mandatory, past(1), false),
		progressFor(unknown, mandatory, past(1), false),
	}
	users := []domain.User{noLoc, unknown}

	assert.Equal(t, 0, ComputeOverdue(users, progress, asOf, branchscope.Restricted("1", "3")).Total)
	assert.Equal(t, 2, ComputeOverdue(users, progress, asOf, branchscope.All()).Total)
}

func TestComputeOverdue_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	trainings := make([]primitive.ObjectID, 6)
	for i := range trainings {
		trainings[i] = primitive.NewObjectID()
	}

	var users []domain.User
	var progress []domain.TrainingProgress
	for i := 0; i < 40; i++ {
		u := domain.User{ID: primitive.NewObjectID(), LocCode: []string{"1", "3", ""}[rng.Intn(3)]}
		for _, tid := range trainings {
			switch rng.Intn(4) {
			case 0:
				u.Training = append(u.Training, domain.TrainingAssignment{TrainingID: tid, Deadline: past(rng.Intn(10) - 5), Pass: rng.Intn(2) == 0})
			case 1:
				progress = append(progress, progressFor(u, tid, past(rng.Intn(10)-5), rng.Intn(2) == 0))
			case 2:
				u.Training = append(u.Training, domain.TrainingAssignment{TrainingID: tid, Deadline: past(2)})
				progress = append(progress, progressFor(u, tid, past(2), false))
			}
		}
		users = append(users, u)
	}

	for _, scope := range []branchscope.Scope{branchscope.All(), branchscope.Restricted("3")} {
		want := ComputeOverdue(users, progress, asOf, scope)
		assert.Equal(t, want, ComputeOverdue(users, progress, asOf, scope), "idempotent")
		for i := 0; i < 20; i++ {
			rng.Shuffle(len(users), func(a, b int) { users[a], users[b] = users[b], users[a] })
			rng.Shuffle(len(progress), func(a, b int) { progress[a], progress[b] = progress[b], progress[a] })
			assert.Equal(t, want, ComputeOverdue(users, progress, asOf, scope))
		}
	}
}

func TestPerUser_Ordering(t *testing.T) {
	mandatory := primitive.NewObjectID()
	zed := domain.User{ID: primitive.NewObjectID(), Username: "zed"}
	amal := domain.User{ID: primitive.NewObjectID(), Username: "amal"}
	idle := domain.User{ID: primitive.NewObjectID(), Username: "idle"}
	progress := []domain.TrainingProgress{
		progressFor(zed, mandatory, past(1), false),
		progressFor(amal, mandatory, past(1), false),
	}

	got := PerUser([]domain.User{idle, zed, amal, zed}, progress, asOf, branchscope.All())

	if assert.Len(t, got, 3) {
		assert.Equal(t, "amal", got[0].Username)
		assert.Equal(t, "zed", got[1].Username)
		assert.Equal(t, "idle", got[2].Username)
		assert.Equal(t, 0, got[2].Total)
	}
}
