package assignment

import (
	"context"
	"time"

	"BranchLMS/internal/domain"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Outcome describes what AssignTraining wrote.
type Outcome struct {
	Progress        *domain.TrainingProgress `json:"progress"`
	EntryCreated    bool                     `json:"entryCreated"`
	ProgressCreated bool                     `json:"progressCreated"`
	// Repaired is set when only one half of an earlier assignment existed.
	Repaired bool `json:"repaired"`
}

// AlreadyAssigned reports that both halves existed and nothing was written.
func (o Outcome) AlreadyAssigned() bool { return !o.EntryCreated && !o.ProgressCreated }

// AssignTraining explicitly assigns a training: it appends the User.training entry
// and creates the TrainingProgress record in one transaction. When an earlier
// attempt left only one of the two, the missing half is created and the repair
// is logged. A zero deadline falls back to the training's own deadline, then to
// the mandatory deadline window.
func (s *Service) AssignTraining(ctx context.Context, userID, trainingID primitive.ObjectID, deadline time.Time) (Outcome, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	if user == nil {
		return Outcome{}, errors.Wrapf(domain.ErrNotFound, "user %s", userID.Hex())
	}
	training, err := s.store.FindTrainingByID(ctx, trainingID)
	if err != nil {
		return Outcome{}, err
	}
	if training == nil {
		return Outcome{}, errors.Wrapf(domain.ErrNotFound, "training %s", trainingID.Hex())
	}

	if deadline.IsZero() {
		if d, ok := training.EffectiveDeadline(); ok {
			deadline = d
		} else {
			deadline = s.now().AddDate(0, 0, s.deadlineDays)
		}
	}

	// built outside the transaction; a missing module aborts before any write
	fresh, err := s.newProgress(ctx, user, training, deadline)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		out = Outcome{}
		pushed, err := s.store.PushTrainingAssignment(ctx, user.ID, domain.TrainingAssignment{
			TrainingID: training.ID,
			Deadline:   deadline,
			Pass:       false,
			Status:     domain.StatusPending,
		})
		if err != nil {
			return errors.Wrap(err, "append training entry")
		}
		out.EntryCreated = pushed

		existing, err := s.store.FindProgress(ctx, user.ID, training.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out.Progress = existing
			return nil
		}
		p := *fresh
		p.ID = primitive.NilObjectID
		if err := s.store.InsertProgress(ctx, &p); err != nil {
			return errors.Wrap(err, "create progress")
		}
		out.Progress = &p
		out.ProgressCreated = true
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	out.Repaired = out.EntryCreated != out.ProgressCreated
	if training.IsMandatory() && out.EntryCreated {
		// progress came from mandatory provisioning, not a failed assignment
		out.Repaired = false
	}
	fields := []zap.Field{
		zap.String("empID", user.EmpID),
		zap.String("trainingId", training.ID.Hex()),
		zap.Bool("entryCreated", out.EntryCreated),
		zap.Bool("progressCreated", out.ProgressCreated),
	}
	switch {
	case out.Repaired:
		s.log.Warn("repaired half-written assignment", fields...)
	case out.AlreadyAssigned():
		s.log.Debug("training already assigned", fields...)
	default:
		s.log.Info("training assigned", fields...)
	}
	return out, nil
}
