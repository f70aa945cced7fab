package dashboard

import (
	"net/http"
	"time"

	"BranchLMS/internal/auth"
	"BranchLMS/internal/domain"
	"BranchLMS/internal/progress"
	"BranchLMS/internal/validation"

	"github.com/labstack/echo/v4"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type overdueQuery struct {
	AsOf  string `query:"asOf" validate:"omitempty,datetime=2006-01-02"`
	Scope string `query:"scope" validate:"omitempty,oneof=all mine"`
}

type progressQuery struct {
	Policy string `query:"policy" validate:"required,oneof=strict lenient"`
}

type topQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// Overdue serves GET /api/dashboard/overdue. asOf is a UTC date; assignments
// due before its start are overdue. It defaults to today.
func (h *Handler) Overdue(c echo.Context) error {
	_, adminID, err := auth.AdminFromContext(c)
	if err != nil {
		return err
	}
	var q overdueQuery
	if err := c.Bind(&q); err != nil {
		return domain.NewValidationError("invalid query")
	}
	if err := validation.Struct(q); err != nil {
		return err
	}

	var asOf time.Time
	if q.AsOf != "" {
		asOf, _ = time.Parse(dateLayout, q.AsOf)
	}
	rep, err := h.service.Overdue(c.Request().Context(), adminID, asOf, q.Scope == "all")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

// Progress serves GET /api/dashboard/progress. The policy has no default.
func (h *Handler) Progress(c echo.Context) error {
	_, adminID, err := auth.AdminFromContext(c)
	if err != nil {
		return err
	}
	var q progressQuery
	if err := c.Bind(&q); err != nil {
		return domain.NewValidationError("invalid query")
	}
	if err := validation.Struct(q); err != nil {
		return err
	}

	rep, err := h.service.Completion(c.Request().Context(), adminID, progress.Policy(q.Policy))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

// TopPerformers serves GET /api/dashboard/top-performers.
func (h *Handler) TopPerformers(c echo.Context) error {
	_, adminID, err := auth.AdminFromContext(c)
	if err != nil {
		return err
	}
	var q topQuery
	if err := c.Bind(&q); err != nil {
		return domain.NewValidationError("invalid query", domain.FieldError{Field: "limit", Error: "limit must be a number"})
	}
	if err := validation.Struct(q); err != nil {
		return err
	}

	rep, err := h.service.TopPerformers(c.Request().Context(), adminID, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

// Register mounts the dashboard routes on g.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/dashboard/overdue", h.Overdue)
	g.GET("/dashboard/progress", h.Progress)
	g.GET("/dashboard/top-performers", h.TopPerformers)
}
