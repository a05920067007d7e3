package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	internalmiddleware "github.com/sanvida/hms-api/internal/middleware"
	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/service"
)

func buildSecuredRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{
				UserID: "test-user",
				Role:   models.UserRole(role),
			})
		}
		c.Next()
	})

	dashboardHandler := NewDashboardHandler(&fakeDashboardSrv{summary: &service.DashboardSummary{
		Patients:    7,
		GeneratedAt: time.Now().UTC(),
	}})

	secured := router.Group("")
	secured.GET("/dashboard", internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), dashboardHandler.Summary)

	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSecuredRoutesRBAC(t *testing.T) {
	router := buildSecuredRouter()

	t.Run("dashboard admin success", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"patients":7`)
	})

	t.Run("dashboard forbidden for doctor", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("X-Test-Role", string(models.RoleDoctor))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("dashboard unauthorized without claims", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/dashboard", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
