// Package overdue counts overdue assignments across the two assignment sources:
// the embedded User.training entries (assigned trainings) and standalone
// TrainingProgress records (mandatory trainings). A training id present in a
// user's training list is never counted again from a progress record.
package overdue

import (
	"sort"
	"time"

	"BranchLMS/internal/branchscope"
	"BranchLMS/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Counts is the overdue total split by source.
type Counts struct {
	AssignedOverdue  int `json:"assignedOverdue"`
	MandatoryOverdue int `json:"mandatoryOverdue"`
	Total            int `json:"total"`
}

func (c *Counts) add(o Counts) {
	c.AssignedOverdue += o.AssignedOverdue
	c.MandatoryOverdue += o.MandatoryOverdue
	c.Total += o.Total
}

// UserCounts is one user's share of a Counts.
type UserCounts struct {
	UserID   primitive.ObjectID `json:"userId"`
	EmpID    string             `json:"empID"`
	Username string             `json:"username"`
	LocCode  string             `json:"locCode"`
	Counts
}

// Overdue reports whether an unpassed assignment is past its deadline. An
// assignment without a deadline is never overdue.
func Overdue(deadline time.Time, pass bool, asOf time.Time) bool {
	return !pass && !deadline.IsZero() && deadline.Before(asOf)
}

// ComputeOverdue sums PerUser over the users allowed by scope. Input order does
// not affect the result.
func ComputeOverdue(users []domain.User, progress []domain.TrainingProgress, asOf time.Time, scope branchscope.Scope) Counts {
	var total Counts
	for _, uc := range PerUser(users, progress, asOf, scope) {
		total.add(uc.Counts)
	}
	return total
}

// PerUser returns the overdue breakdown of every in-scope user, ordered by total
// descending then username. Users listed twice are counted once, as are repeated
// progress records for the same training.
func PerUser(users []domain.User, progress []domain.TrainingProgress, asOf time.Time, scope branchscope.Scope) []UserCounts {
	byUser := make(map[primitive.ObjectID][]*domain.TrainingProgress, len(users))
	for i := range progress {
		p := &progress[i]
		byUser[p.UserID] = append(byUser[p.UserID], p)
	}

	seen := make(map[primitive.ObjectID]struct{}, len(users))
	out := make([]UserCounts, 0, len(users))
	for i := range users {
		u := &users[i]
		if !scope.Allows(u.LocCode) {
			continue
		}
		if !u.ID.IsZero() {
			if _, dup := seen[u.ID]; dup {
				continue
			}
			seen[u.ID] = struct{}{}
		}
		out = append(out, UserCounts{
			UserID:   u.ID,
			EmpID:    u.EmpID,
			Username: u.Username,
			LocCode:  u.LocCode,
			Counts:   countUser(u, byUser[u.ID], asOf),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].EmpID < out[j].EmpID
	})
	return out
}

func countUser(u *domain.User, records []*domain.TrainingProgress, asOf time.Time) Counts {
	var c Counts
	for _, t := range u.Training {
		if Overdue(t.Deadline, t.Pass, asOf) {
			c.AssignedOverdue++
		}
	}

	// already counted from User.training
	assigned := u.AssignedTrainingIDs()
	// a training with duplicated records is overdue once, and only if none passed
	passed := make(map[primitive.ObjectID]bool, len(records))
	for _, p := range records {
		passed[p.TrainingID] = passed[p.TrainingID] || p.Pass
	}
	counted := make(map[primitive.ObjectID]struct{}, len(records))
	for _, p := range records {
		if _, ok := assigned[p.TrainingID]; ok || passed[p.TrainingID] {
			continue
		}
		if _, ok := counted[p.TrainingID]; ok {
			continue
		}
		if Overdue(p.Deadline, false, asOf) {
			counted[p.TrainingID] = struct{}{}
			c.MandatoryOverdue++
		}
	}
	c.Total = c.AssignedOverdue + c.MandatoryOverdue
	return c
}
