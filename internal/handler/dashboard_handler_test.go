package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sanvida/hms-api/internal/service"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

type fakeDashboardSrv struct {
	summary *service.DashboardSummary
	err     error
	calls   int
}

func (f *fakeDashboardSrv) Summary(context.Context) (*service.DashboardSummary, error) {
	f.calls++
	return f.summary, f.err
}

func TestDashboardHandlerSummarySuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{summary: &service.DashboardSummary{
		Patients:     42,
		BedsTotal:    30,
		BedsOccupied: 18,
		RevenueToday: 1250.5,
		GeneratedAt:  time.Now().UTC(),
	}}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, srv.calls)

	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, float64(42), envelope.Data["patients"])
	assert.Equal(t, float64(18), envelope.Data["beds_occupied"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestDashboardHandlerSummaryError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.ErrInternal})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDashboardHandlerNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
