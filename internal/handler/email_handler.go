package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/service"
)

const (
	defaultGroupLimit    = 50
	categoryPreviewLimit = 50
)

// Grouper returns messages grouped by sender.
type Grouper interface {
	GroupedBySender(ctx context.Context, filter model.ReadFilter, limit int) ([]*model.SenderGroup, error)
}

type EmailHandler struct {
	messages service.MessageService
	groups   Grouper
	logger   *logger.Logger
}

func NewEmailHandler(messages service.MessageService, groups Grouper, logger *logger.Logger) *EmailHandler {
	return &EmailHandler{
		messages: messages,
		groups:   groups,
		logger:   logger,
	}
}

// GetEmails lists active messages, filtered by category or sender.
func (h *EmailHandler) GetEmails(c echo.Context) error {
	read, err := model.ParseReadFilter(c.QueryParam("read_filter"))
	if err != nil {
		return respondError(c, err)
	}
	limit, err := intParam(c, "limit", 500)
	if err != nil {
		return respondError(c, err)
	}
	offset, err := intParam(c, "offset", 0)
	if err != nil {
		return respondError(c, err)
	}

	q := model.MessageQuery{Read: read, Sender: c.QueryParam("sender"), Limit: limit, Offset: offset}
	if raw := c.QueryParam("category"); raw != "" {
		cat, err := model.ParseCategory(raw)
		if err != nil {
			return respondError(c, err)
		}
		q.Category = &cat
	}

	emails, err := h.messages.List(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("Failed to list emails:", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"emails": emails,
		"total":  len(emails),
	})
}

func (h *EmailHandler) GetGrouped(c echo.Context) error {
	read, err := model.ParseReadFilter(c.QueryParam("read_filter"))
	if err != nil {
		return respondError(c, err)
	}
	limit, err := intParam(c, "limit", defaultGroupLimit)
	if err != nil {
		return respondError(c, err)
	}

	groups, err := h.groups.GroupedBySender(c.Request().Context(), read, limit)
	if err != nil {
		h.logger.Error("Failed to group emails:", err)
		return respondError(c, err)
	}

	total := 0
	for _, g := range groups {
		total += g.Total
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"groups":       groups,
		"total_groups": len(groups),
		"total_emails": total,
	})
}

func (h *EmailHandler) GetByCategory(c echo.Context) error {
	listing, err := h.messages.ByCategory(c.Request().Context(), categoryPreviewLimit)
	if err != nil {
		h.logger.Error("Failed to list emails by category:", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}

type deleteRequest struct {
	EmailIDs    []string `json:"email_ids"`
	SenderEmail string   `json:"sender_email"`
	Category    string   `json:"category"`
	Permanent   bool     `json:"permanent"`
}

func (h *EmailHandler) bind(c echo.Context) (*deleteRequest, error) {
	var req deleteRequest
	if err := c.Bind(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (h *EmailHandler) Delete(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}
	res, err := h.messages.Delete(c.Request().Context(), req.EmailIDs, req.Permanent)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *EmailHandler) DeleteBySender(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}
	res, err := h.messages.DeleteBySender(c.Request().Context(), req.SenderEmail, req.Permanent)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *EmailHandler) DeleteByCategory(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}
	res, err := h.messages.DeleteByCategory(c.Request().Context(), req.Category, req.Permanent)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
