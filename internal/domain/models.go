package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Training types as stored in Training.Trainingtype.
const (
	TrainingTypeAssigned  = "Assigned"
	TrainingTypeMandatory = "Mandatory"
)

// Admin roles.
const (
	RoleSuperAdmin   = "super_admin"
	RoleClusterAdmin = "cluster_admin"
	RoleStoreAdmin   = "store_admin"
)

// Assignment statuses written by this service.
const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
)

// TrainingAssignment is an entry of User.training.
type TrainingAssignment struct {
	TrainingID primitive.ObjectID `bson:"trainingId" json:"trainingId"`
	Deadline   time.Time          `bson:"deadline" json:"deadline"`
	Pass       bool               `bson:"pass" json:"pass"`
	Status     string             `bson:"status" json:"status"`
}

// AssessmentAssignment is an entry of User.assignedAssessments.
type AssessmentAssignment struct {
	AssessmentID primitive.ObjectID `bson:"assessmentId" json:"assessmentId"`
	Deadline     time.Time          `bson:"deadline" json:"deadline"`
	Pass         bool               `bson:"pass" json:"pass"`
	Status       string             `bson:"status" json:"status"`
	Complete     float64            `bson:"complete,omitempty" json:"complete,omitempty"`
}

// ModuleAssignment is an entry of User.assignedModules.
type ModuleAssignment struct {
	ModuleID primitive.ObjectID `bson:"moduleId" json:"moduleId"`
	Deadline time.Time          `bson:"deadline" json:"deadline"`
	Pass     bool               `bson:"pass" json:"pass"`
	Status   string             `bson:"status" json:"status"`
	Complete float64            `bson:"complete,omitempty" json:"complete,omitempty"`
}

// User is an employee whose training is tracked.
type User struct {
	ID                  primitive.ObjectID     `bson:"_id,omitempty" json:"_id"`
	EmpID               string                 `bson:"empID" json:"empID"`                 // unique, HR emp_code
	Username            string                 `bson:"username" json:"username"`           // display name
	Email               string                 `bson:"email" json:"email"`                 // unique
	Designation         string                 `bson:"designation" json:"designation"`     // job role, matched against Training.Assignedfor
	WorkingBranch       string                 `bson:"workingBranch" json:"workingBranch"` // display name, not a join key
	LocCode             string                 `bson:"locCode" json:"locCode"`             // join key to Branch.locCode
	PhoneNumber         string                 `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Training            []TrainingAssignment   `bson:"training" json:"training"`
	AssignedAssessments []AssessmentAssignment `bson:"assignedAssessments" json:"assignedAssessments"`
	AssignedModules     []ModuleAssignment     `bson:"assignedModules" json:"assignedModules"`
	CreatedAt           time.Time              `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt           time.Time              `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// AssignedTrainingIDs returns the set of training ids present in User.training.
func (u *User) AssignedTrainingIDs() map[primitive.ObjectID]struct{} {
	ids := make(map[primitive.ObjectID]struct{}, len(u.Training))
	for _, t := range u.Training {
		ids[t.TrainingID] = struct{}{}
	}
	return ids
}

// HasTraining reports whether User.training references trainingID.
func (u *User) HasTraining(trainingID primitive.ObjectID) bool {
	for _, t := range u.Training {
		if t.TrainingID == trainingID {
			return true
		}
	}
	return false
}

// Training is a catalog entry made of ordered modules.
type Training struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	TrainingName string               `bson:"trainingName" json:"trainingName"`
	Modules      []primitive.ObjectID `bson:"modules" json:"modules"`
	TrainingType string               `bson:"Trainingtype" json:"Trainingtype"`
	AssignedFor  []string             `bson:"Assignedfor" json:"Assignedfor"`
	DeadlineDays int                  `bson:"deadline,omitempty" json:"deadline,omitempty"`
	DeadlineDate *time.Time           `bson:"deadlineDate,omitempty" json:"deadlineDate,omitempty"`
	CreatedDate  time.Time            `bson:"createdDate" json:"createdDate"`
}

// IsMandatory reports whether the training is auto-provisioned by designation.
func (t *Training) IsMandatory() bool {
	return t.TrainingType == TrainingTypeMandatory
}

// EffectiveDeadline is deadlineDate when set, else createdDate plus deadline days.
// ok is false when the training carries neither.
func (t *Training) EffectiveDeadline() (deadline time.Time, ok bool) {
	if t.DeadlineDate != nil && !t.DeadlineDate.IsZero() {
		return *t.DeadlineDate, true
	}
	if t.DeadlineDays > 0 && !t.CreatedDate.IsZero() {
		return t.CreatedDate.AddDate(0, 0, t.DeadlineDays), true
	}
	return time.Time{}, false
}

// Video belongs to a Module.
type Video struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Title    string             `bson:"title" json:"title"`
	VideoURI string             `bson:"videoUri" json:"videoUri"`
}

// Module is an ordered list of videos.
type Module struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ModuleName string             `bson:"moduleName" json:"moduleName"`
	Videos     []Video            `bson:"videos" json:"videos"`
}

// VideoProgress is the per-video completion flag inside a TrainingProgress.
type VideoProgress struct {
	VideoID         primitive.ObjectID `bson:"videoId" json:"videoId"`
	Pass            bool               `bson:"pass" json:"pass"`
	WatchedDuration float64            `bson:"watchedDuration,omitempty" json:"watchedDuration,omitempty"` // seconds
	TotalDuration   float64            `bson:"totalDuration,omitempty" json:"totalDuration,omitempty"`     // seconds
}

// ModuleProgress is the per-module entry inside a TrainingProgress.
type ModuleProgress struct {
	ModuleID primitive.ObjectID `bson:"moduleId" json:"moduleId"`
	Pass     bool               `bson:"pass" json:"pass"`
	Videos   []VideoProgress    `bson:"videos" json:"videos"`
}

// TrainingProgress is the detailed completion record, one per user and training.
type TrainingProgress struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	TrainingID   primitive.ObjectID `bson:"trainingId" json:"trainingId"`
	TrainingName string             `bson:"trainingName,omitempty" json:"trainingName,omitempty"`
	Deadline     time.Time          `bson:"deadline" json:"deadline"`
	Pass         bool               `bson:"pass" json:"pass"`
	Status       string             `bson:"status" json:"status"`
	Modules      []ModuleProgress   `bson:"modules" json:"modules"`
	CreatedAt    time.Time          `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt    time.Time          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Admin is a dashboard operator whose visibility is limited to branches.
type Admin struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Name            string               `bson:"name" json:"name"`
	Email           string               `bson:"email" json:"email"`
	Role            string               `bson:"role" json:"role"`
	Branches        []primitive.ObjectID `bson:"branches" json:"branches"`
	AllowedLocCodes []string             `bson:"allowedLocCodes,omitempty" json:"allowedLocCodes,omitempty"`
}

// Branch maps a canonical location code to its display name.
type Branch struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	LocCode       string             `bson:"locCode" json:"locCode"`
	WorkingBranch string             `bson:"workingBranch" json:"workingBranch"`
}

// AuditEntry records an explicit repair performed on progress data.
type AuditEntry struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CorrelationID string             `bson:"correlationId" json:"correlationId"`
	Actor         string             `bson:"actor" json:"actor"`
	Action        string             `bson:"action" json:"action"`
	ProgressID    primitive.ObjectID `bson:"progressId" json:"progressId"`
	Reason        string             `bson:"reason" json:"reason"`
	Before        *TrainingProgress  `bson:"before,omitempty" json:"before,omitempty"`
	After         *TrainingProgress  `bson:"after,omitempty" json:"after,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}
