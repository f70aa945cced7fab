package integrity

import (
	"context"

	"BranchLMS/internal/assignment"
	"BranchLMS/internal/domain"
	"BranchLMS/internal/validation"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Repair actions. ActionComplete force-completes records and is never applied
// unless requested explicitly.
const (
	ActionDelete   = "delete"
	ActionReassign = "reassign"
	ActionComplete = "complete"
)

type RepairRequest struct {
	ProgressIDs []string `json:"progressIds" validate:"required,min=1,max=500,dive,objectid"`
	Action      string   `json:"action" validate:"required,oneof=delete reassign complete"`
	TrainingID  string   `json:"trainingId" validate:"required_if=Action reassign,omitempty,objectid"`
	Reason      string   `json:"reason" validate:"required,min=5"`
}

type RepairFailure struct {
	ProgressID string `json:"progressId"`
	Error      string `json:"error"`
}

type RepairResult struct {
	CorrelationID string              `json:"correlationId"`
	Repaired      []domain.AuditEntry `json:"repaired"`
	Failed        []RepairFailure     `json:"failed"`
}

// Repair applies one action to each listed progress record. Every record is
// changed in its own transaction together with its audit entry; one failing
// record does not stop the rest.
func (s *Service) Repair(ctx context.Context, actor string, req RepairRequest) (RepairResult, error) {
	if err := validation.Struct(req); err != nil {
		return RepairResult{}, err
	}
	if actor == "" {
		return RepairResult{}, domain.NewValidationError("repair requires an actor")
	}

	var target *domain.Training
	if req.Action == ActionReassign {
		id, _ := primitive.ObjectIDFromHex(req.TrainingID)
		t, err := s.store.FindTrainingByID(ctx, id)
		if err != nil {
			return RepairResult{}, err
		}
		if t == nil {
			return RepairResult{}, errors.Wrapf(domain.ErrNotFound, "training %s", req.TrainingID)
		}
		target = t
	}

	res := RepairResult{CorrelationID: uuid.NewString()}
	for _, hex := range req.ProgressIDs {
		id, _ := primitive.ObjectIDFromHex(hex)
		entry, err := s.repairOne(ctx, actor, req, id, target, res.CorrelationID)
		if err != nil {
			if domain.IsTransient(err) {
				return res, err
			}
			res.Failed = append(res.Failed, RepairFailure{ProgressID: hex, Error: err.Error()})
			continue
		}
		res.Repaired = append(res.Repaired, *entry)
	}

	s.log.Warn("progress repaired",
		zap.String("correlationId", res.CorrelationID),
		zap.String("actor", actor),
		zap.String("action", req.Action),
		zap.String("reason", req.Reason),
		zap.Int("repaired", len(res.Repaired)),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

func (s *Service) repairOne(ctx context.Context, actor string, req RepairRequest, id primitive.ObjectID, target *domain.Training, correlationID string) (*domain.AuditEntry, error) {
	var entry *domain.AuditEntry
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		before, err := s.store.FindProgressByID(ctx, id)
		if err != nil {
			return err
		}
		if before == nil {
			return errors.Wrapf(domain.ErrNotFound, "progress %s", id.Hex())
		}

		var after *domain.TrainingProgress
		switch req.Action {
		case ActionDelete:
			if err := s.store.DeleteProgress(ctx, id); err != nil {
				return err
			}
			// drop the matching entry so the assignment does not reappear half-written
			if err := s.store.PullTrainingAssignment(ctx, before.UserID, before.TrainingID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		case ActionReassign:
			after, err = s.reassigned(ctx, before, target)
			if err != nil {
				return err
			}
			if err := s.store.ReplaceProgress(ctx, after); err != nil {
				return err
			}
		case ActionComplete:
			after = completed(before)
			if err := s.store.ReplaceProgress(ctx, after); err != nil {
				return err
			}
		}

		entry = &domain.AuditEntry{
			CorrelationID: correlationID,
			Actor:         actor,
			Action:        req.Action,
			ProgressID:    id,
			Reason:        req.Reason,
			Before:        before,
			After:         after,
			CreatedAt:     s.now(),
		}
		return s.store.InsertAudit(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// reassigned points p at target with a fresh, unpassed module tree.
func (s *Service) reassigned(ctx context.Context, p *domain.TrainingProgress, target *domain.Training) (*domain.TrainingProgress, error) {
	if p.TrainingID == target.ID {
		return nil, domain.NewValidationError("progress already belongs to the target training")
	}
	existing, err := s.store.FindProgress(ctx, p.UserID, target.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewValidationError("user already has progress for the target training")
	}
	modules, err := s.store.FindModulesByIDs(ctx, target.Modules)
	if err != nil {
		return nil, err
	}

	tree, err := assignment.BuildModuleTree(target, modules)
	if err != nil {
		return nil, err
	}

	out := *p
	out.TrainingID = target.ID
	out.TrainingName = target.TrainingName
	out.Pass = false
	out.Status = domain.StatusPending
	out.Modules = tree
	return &out, nil
}

func completed(p *domain.TrainingProgress) *domain.TrainingProgress {
	out := *p
	out.Pass = true
	out.Status = domain.StatusCompleted
	out.Modules = make([]domain.ModuleProgress, len(p.Modules))
	for i, m := range p.Modules {
		m.Pass = true
		videos := make([]domain.VideoProgress, len(m.Videos))
		for j, v := range m.Videos {
			v.Pass = true
			videos[j] = v
		}
		m.Videos = videos
		out.Modules[i] = m
	}
	return &out
}
