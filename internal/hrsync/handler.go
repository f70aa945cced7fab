package hrsync

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type Handler struct {
	scheduler *Scheduler
}

func NewHandler(scheduler *Scheduler) *Handler {
	return &Handler{scheduler: scheduler}
}

// Trigger serves POST /api/hr/sync. The run continues in the background;
// GET /api/hr/sync reports its summary once finished.
func (h *Handler) Trigger(c echo.Context) error {
	err := h.scheduler.Trigger()
	switch {
	case errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrSyncDisabled):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "hr sync started"})
}

// Status serves GET /api/hr/sync with the last finished run.
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"enabled": h.scheduler.syncer.cfg.Enabled(),
		"running": h.scheduler.syncer.Running(),
		"last":    h.scheduler.syncer.LastSummary(),
	})
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/hr/sync", h.Trigger)
	g.GET("/hr/sync", h.Status)
}
