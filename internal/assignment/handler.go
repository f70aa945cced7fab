package assignment

import (
	"context"
	"net/http"
	"time"

	"BranchLMS/internal/auth"
	"BranchLMS/internal/branchscope"
	"BranchLMS/internal/domain"
	"BranchLMS/internal/validation"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ScopeResolver interface {
	ForAdmin(ctx context.Context, adminID primitive.ObjectID) (*domain.Admin, branchscope.Scope, error)
}

type Handler struct {
	service  *Service
	resolver ScopeResolver
}

func NewHandler(service *Service, resolver ScopeResolver) *Handler {
	return &Handler{service: service, resolver: resolver}
}

type empIDParam struct {
	EmpID string `param:"empID" validate:"required,max=64"`
}

type assignTrainingRequest struct {
	EmpID      string     `param:"empID" json:"-" validate:"required,max=64"`
	TrainingID string     `json:"trainingId" validate:"required,objectid"`
	Deadline   *time.Time `json:"deadline"`
}

type mandatoryResponse struct {
	EmpID string `json:"empID"`
	Result
}

type assignTrainingResponse struct {
	EmpID           string                   `json:"empID"`
	AlreadyAssigned bool                     `json:"alreadyAssigned"`
	Repaired        bool                     `json:"repaired"`
	Progress        *domain.TrainingProgress `json:"progress"`
}

// userInScope loads the user and hides it from admins outside its branch.
func (h *Handler) userInScope(c echo.Context, empID string) (*domain.User, error) {
	_, adminID, err := auth.AdminFromContext(c)
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()
	_, scope, err := h.resolver.ForAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	user, err := h.service.UserByEmpID(ctx, empID)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(user.LocCode) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "user is outside your branches")
	}
	return user, nil
}

// AssignMandatory serves POST /api/users/:empID/mandatory.
func (h *Handler) AssignMandatory(c echo.Context) error {
	var p empIDParam
	if err := c.Bind(&p); err != nil {
		return domain.NewValidationError("invalid request")
	}
	if err := validation.Struct(p); err != nil {
		return err
	}
	user, err := h.userInScope(c, p.EmpID)
	if err != nil {
		return err
	}

	res, err := h.service.AssignMandatoryForUser(c.Request().Context(), user)
	if err != nil {
		return err
	}
	code := http.StatusOK
	if len(res.Assigned) > 0 {
		code = http.StatusCreated
	}
	return c.JSON(code, mandatoryResponse{EmpID: user.EmpID, Result: res})
}

// AssignTraining serves POST /api/users/:empID/trainings.
func (h *Handler) AssignTraining(c echo.Context) error {
	var req assignTrainingRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewValidationError("invalid request body")
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	user, err := h.userInScope(c, req.EmpID)
	if err != nil {
		return err
	}

	trainingID, _ := primitive.ObjectIDFromHex(req.TrainingID)
	var deadline time.Time
	if req.Deadline != nil {
		deadline = req.Deadline.UTC()
	}
	out, err := h.service.AssignTraining(c.Request().Context(), user.ID, trainingID, deadline)
	if err != nil {
		return err
	}

	code := http.StatusCreated
	if out.AlreadyAssigned() {
		code = http.StatusOK
	}
	return c.JSON(code, assignTrainingResponse{
		EmpID:           user.EmpID,
		AlreadyAssigned: out.AlreadyAssigned(),
		Repaired:        out.Repaired,
		Progress:        out.Progress,
	})
}

// Register mounts the user assignment routes on g.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/users/:empID/mandatory", h.AssignMandatory)
	g.POST("/users/:empID/trainings", h.AssignTraining)
}
