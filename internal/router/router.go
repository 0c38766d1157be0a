package router

import (
	"net/http"

	"mailcleaner/internal/handler"

	"github.com/labstack/echo/v4"
)

// Handlers bundles every HTTP handler the API exposes.
type Handlers struct {
	Emails      *handler.EmailHandler
	Stats       *handler.StatsHandler
	Sync        *handler.SyncHandler
	Summaries   *handler.SummaryHandler
	Unsubscribe *handler.UnsubscribeHandler
	Feedback    *handler.FeedbackHandler
}

func SetupRoutes(e *echo.Echo, h Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	api := e.Group("/api")

	// Sync
	api.POST("/fetch", h.Sync.Fetch)
	api.POST("/sync/stop", h.Sync.Stop)
	api.GET("/sync/status", h.Sync.Status)
	api.GET("/sync/events", h.Sync.Events)

	// Emails
	api.GET("/emails", h.Emails.GetEmails)
	api.GET("/emails/grouped", h.Emails.GetGrouped)
	api.GET("/emails/by-category", h.Emails.GetByCategory)
	api.POST("/delete", h.Emails.Delete)
	api.POST("/delete/by-sender", h.Emails.DeleteBySender)
	api.POST("/delete/by-category", h.Emails.DeleteByCategory)

	// Stats
	api.GET("/stats", h.Stats.GetStats)
	api.GET("/subscriptions", h.Stats.GetSubscriptions)

	// AI
	api.POST("/summarize", h.Summaries.Summarize)
	api.POST("/review", h.Summaries.Review)
	api.POST("/suggestions/deletion", h.Summaries.DeletionSuggestions)

	api.POST("/unsubscribe", h.Unsubscribe.Unsubscribe)
	api.POST("/feedback", h.Feedback.Submit)
	api.POST("/train", h.Feedback.Train)
}
