package integrity

import (
	"context"
	"net/http"

	"BranchLMS/internal/auth"
	"BranchLMS/internal/branchscope"
	"BranchLMS/internal/domain"

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

// Orphans serves GET /api/integrity/orphans, limited to the admin's branches.
func (h *Handler) Orphans(c echo.Context) error {
	_, adminID, err := auth.AdminFromContext(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	_, scope, err := h.resolver.ForAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	rep, err := h.service.FindOrphans(ctx, scope)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

// Repair serves POST /api/integrity/repair. The acting admin is recorded in
// every audit entry.
func (h *Handler) Repair(c echo.Context) error {
	claims, _, err := auth.AdminFromContext(c)
	if err != nil {
		return err
	}
	var req RepairRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewValidationError("invalid request body")
	}

	res, err := h.service.Repair(c.Request().Context(), claims.Actor(), req)
	if err != nil {
		return err
	}
	code := http.StatusOK
	if len(res.Failed) > 0 {
		code = http.StatusMultiStatus
	}
	return c.JSON(code, res)
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/integrity/orphans", h.Orphans)
	g.POST("/integrity/repair", h.Repair)
}
