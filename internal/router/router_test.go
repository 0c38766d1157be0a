package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestSetupRoutes(t *testing.T) {
	e := echo.New()
	SetupRoutes(e, Handlers{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	routes := map[string]bool{}
	for _, r := range e.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/fetch",
		"GET /api/sync/events",
		"GET /api/emails/grouped",
		"POST /api/delete/by-category",
		"GET /api/subscriptions",
		"POST /api/suggestions/deletion",
		"POST /api/unsubscribe",
		"POST /api/train",
	} {
		assert.True(t, routes[want], want)
	}
}
