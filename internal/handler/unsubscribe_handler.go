package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mailcleaner/internal/logger"
	"mailcleaner/internal/service"
)

type UnsubscribeHandler struct {
	unsubscribeService service.UnsubscribeService
	logger             *logger.Logger
}

func NewUnsubscribeHandler(unsubscribeService service.UnsubscribeService, logger *logger.Logger) *UnsubscribeHandler {
	return &UnsubscribeHandler{
		unsubscribeService: unsubscribeService,
		logger:             logger,
	}
}

type unsubscribeRequest struct {
	EmailID      string   `json:"email_id"`
	SenderEmail  string   `json:"sender_email"`
	SenderEmails []string `json:"sender_emails"`
}

// Unsubscribe handles one email, one sender, or a batch of senders.
func (h *UnsubscribeHandler) Unsubscribe(c echo.Context) error {
	var req unsubscribeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ctx := c.Request().Context()

	if len(req.SenderEmails) > 0 {
		results, err := h.unsubscribeService.UnsubscribeSenders(ctx, req.SenderEmails)
		if err != nil {
			return respondError(c, err)
		}
		succeeded := 0
		for _, r := range results {
			if r.Success {
				succeeded++
			}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"results":   results,
			"total":     len(results),
			"succeeded": succeeded,
		})
	}

	result, err := h.unsubscribeService.Unsubscribe(ctx, req.EmailID, req.SenderEmail)
	if err != nil {
		h.logger.Error("Failed to unsubscribe:", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
