package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/sse"
)

// SyncRunner controls the background fetch.
type SyncRunner interface {
	Start(req model.SyncRequest) (model.SyncStatus, error)
	Stop() bool
	Status() model.SyncStatus
}

type SyncHandler struct {
	job    SyncRunner
	broker *sse.Broker
	logger *logger.Logger
}

func NewSyncHandler(job SyncRunner, broker *sse.Broker, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{
		job:    job,
		broker: broker,
		logger: logger,
	}
}

// Fetch starts a background sync and answers with its initial status.
func (h *SyncHandler) Fetch(c echo.Context) error {
	var req model.SyncRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	status, err := h.job.Start(req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, status)
}

func (h *SyncHandler) Stop(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{
		"stopped": h.job.Stop(),
	})
}

func (h *SyncHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.job.Status())
}

// Events streams sync progress as server-sent events.
func (h *SyncHandler) Events(c echo.Context) error {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	clientChannel := h.broker.AddClient()
	defer h.broker.RemoveClient(clientChannel)

	fmt.Fprintf(c.Response(), "event: status\ndata: %s\n\n", mustJSON(h.job.Status()))
	c.Response().Flush()

	for {
		select {
		case eventData, ok := <-clientChannel:
			if !ok {
				return nil
			}
			fmt.Fprintf(c.Response(), "data: %s\n\n", eventData)
			c.Response().Flush()
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
