package store

import (
	"context"

	"BranchLMS/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func (r *Repository) FindTrainingByID(ctx context.Context, id primitive.ObjectID) (*domain.Training, error) {
	var training domain.Training
	err := r.trainingsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&training)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, wrap("find training", err)
	}
	return &training, nil
}

// FindMandatoryTrainings returns the catalog the mandatory assigner matches against.
func (r *Repository) FindMandatoryTrainings(ctx context.Context) ([]domain.Training, error) {
	return r.findTrainings(ctx, bson.M{"Trainingtype": domain.TrainingTypeMandatory})
}

func (r *Repository) FindTrainings(ctx context.Context) ([]domain.Training, error) {
	return r.findTrainings(ctx, bson.M{})
}

func (r *Repository) findTrainings(ctx context.Context, filter bson.M) ([]domain.Training, error) {
	cursor, err := r.trainingsCollection.Find(ctx, filter)
	if err != nil {
		return nil, wrap("find trainings", err)
	}
	var trainings []domain.Training
	if err := cursor.All(ctx, &trainings); err != nil {
		return nil, wrap("decode trainings", err)
	}
	return trainings, nil
}

// FindModulesByIDs returns the modules found among ids, keyed by id. Missing ids
// are simply absent from the map.
func (r *Repository) FindModulesByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Module, error) {
	modules := make(map[primitive.ObjectID]domain.Module, len(ids))
	if len(ids) == 0 {
		return modules, nil
	}
	cursor, err := r.modulesCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, wrap("find modules", err)
	}
	var found []domain.Module
	if err := cursor.All(ctx, &found); err != nil {
		return nil, wrap("decode modules", err)
	}
	for _, m := range found {
		modules[m.ID] = m
	}
	return modules, nil
}

// ExistingModuleIDs returns which of ids are present in the modules collection.
func (r *Repository) ExistingModuleIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]struct{}, error) {
	return existingIDs(ctx, r.modulesCollection, ids)
}
