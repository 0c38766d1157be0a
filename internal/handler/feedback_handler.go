package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"mailcleaner/internal/classifier"
	"mailcleaner/internal/logger"
	"mailcleaner/internal/service"
)

type FeedbackHandler struct {
	feedback service.FeedbackService
	logger   *logger.Logger
}

func NewFeedbackHandler(feedback service.FeedbackService, logger *logger.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		feedback: feedback,
		logger:   logger,
	}
}

type feedbackRequest struct {
	EmailID         string `json:"email_id"`
	Decision        string `json:"decision"`
	CorrectCategory string `json:"correct_category"`
}

func (h *FeedbackHandler) Submit(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.feedback.Submit(c.Request().Context(), req.EmailID, req.Decision, req.CorrectCategory); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{
		"success": true,
	})
}

// Train refits the classifier. Too little feedback is reported, not failed.
func (h *FeedbackHandler) Train(c echo.Context) error {
	n, err := h.feedback.Train(c.Request().Context())
	if errors.Is(err, classifier.ErrNotEnoughData) {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "Training failed or insufficient data",
		})
	}
	if err != nil {
		h.logger.Error("Failed to train classifier:", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"samples": n,
		"message": "Model retrained successfully",
	})
}
