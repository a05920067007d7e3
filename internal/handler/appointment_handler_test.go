package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sanvida/hms-api/internal/service"
)

func TestAppointmentHandlerRateRejectsNonIntegerRating(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// binding fails before the service is touched, so empty wiring is fine
	h := NewAppointmentHandler(service.NewAppointmentService(nil, nil, nil, 0, false, nil, nil))
	router := gin.New()
	router.POST("/appointments/:id/rate", h.Rate)

	req := httptest.NewRequest(http.MethodPost, "/appointments/a1/rate", strings.NewReader(`{"rating":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := performRequest(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION")
}
