package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mailcleaner/internal/logger"
	"mailcleaner/internal/service"
)

type SummaryHandler struct {
	summaries service.SummaryService
	logger    *logger.Logger
}

func NewSummaryHandler(summaries service.SummaryService, logger *logger.Logger) *SummaryHandler {
	return &SummaryHandler{
		summaries: summaries,
		logger:    logger,
	}
}

type summaryRequest struct {
	EmailID     string `json:"email_id"`
	SenderEmail string `json:"sender_email"`
	Limit       int    `json:"limit"`
}

// Summarize summarizes a single email, or every email of a sender.
func (h *SummaryHandler) Summarize(c echo.Context) error {
	var req summaryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ctx := c.Request().Context()

	switch {
	case req.EmailID != "":
		summary, err := h.summaries.SummarizeMessage(ctx, req.EmailID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"summary": summary,
		})
	case req.SenderEmail != "":
		summary, count, err := h.summaries.SummarizeSender(ctx, req.SenderEmail)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"summary":     summary,
			"email_count": count,
		})
	}
	return badRequest(c, "email_id or sender_email required")
}

func (h *SummaryHandler) Review(c echo.Context) error {
	var req summaryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	review, err := h.summaries.Review(c.Request().Context(), req.EmailID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, review)
}

func (h *SummaryHandler) DeletionSuggestions(c echo.Context) error {
	var req summaryRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	emails, err := h.summaries.DeletionSuggestions(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("Failed to suggest deletions:", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"emails": emails,
		"total":  len(emails),
	})
}
