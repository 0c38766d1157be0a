package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/service"
)

// DashboardReader serves the cached dashboard snapshot.
type DashboardReader interface {
	Dashboard(ctx context.Context) (*model.DashboardSnapshot, error)
}

type StatsHandler struct {
	dashboard DashboardReader
	summaries service.SummaryService
	logger    *logger.Logger
}

func NewStatsHandler(dashboard DashboardReader, summaries service.SummaryService, logger *logger.Logger) *StatsHandler {
	return &StatsHandler{
		dashboard: dashboard,
		summaries: summaries,
		logger:    logger,
	}
}

func (h *StatsHandler) GetStats(c echo.Context) error {
	snap, err := h.dashboard.Dashboard(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to load dashboard:", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// GetSubscriptions lists newsletter and promotion senders. advise=true adds a
// KEEP/UNSUBSCRIBE recommendation to each.
func (h *StatsHandler) GetSubscriptions(c echo.Context) error {
	limit, err := intParam(c, "limit", 50)
	if err != nil {
		return respondError(c, err)
	}
	advise := c.QueryParam("advise") == "true"

	subs, err := h.summaries.Subscriptions(c.Request().Context(), limit, advise)
	if err != nil {
		h.logger.Error("Failed to list subscriptions:", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"total":         len(subs),
	})
}
