package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sanvida/hms-api/internal/middleware"
	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/repository"
	"github.com/sanvida/hms-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Employees    *EmployeeHandler
	Shifts       *ShiftHandler
	Appointments *AppointmentHandler
	Patients     *PatientHandler
	Rooms        *RoomHandler
	Billing      *BillingHandler
	Insurance    *InsuranceHandler
	Dashboard    *DashboardHandler
	Exports      *ExportHandler
	Metrics      *MetricsHandler
	System       *SystemHandler
}

// RouterConfig toggles optional route groups.
type RouterConfig struct {
	DashboardEnabled bool
	ExportsEnabled   bool
}

// RegisterRoutes mounts every endpoint under the given prefix. audit may be
// nil to skip audit trails on state-changing clinical routes.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, audit *repository.UserRepository, cfg RouterConfig) {
	api := r.Group(prefix)

	audited := func(action, resource string) gin.HandlerFunc {
		if audit == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.Audit(audit, action, resource)
	}

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	admin := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	clinical := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDoctor, models.RoleNurse)
	frontdesk := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleReceptionist)
	wardStaff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleNurse, models.RoleReceptionist)

	users := secured.Group("/users")
	{
		users.GET("", admin, h.Users.List)
		users.POST("", admin, h.Users.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), "SELF"), h.Users.Get)
		users.PUT("/:id", admin, h.Users.Update)
		users.DELETE("/:id", admin, h.Users.Delete)
	}

	employees := secured.Group("/employees")
	{
		employees.GET("", h.Employees.List)
		employees.POST("", admin, h.Employees.Create)
		employees.GET("/:id", h.Employees.Get)
		employees.PUT("/:id", admin, h.Employees.Update)
		employees.DELETE("/:id", admin, h.Employees.Delete)

		employees.POST("/:id/rotation", admin, h.Shifts.AssignGroup)
		employees.POST("/:id/rotation/regenerate", admin, h.Shifts.Regenerate)
		employees.GET("/:id/shifts", h.Shifts.Calendar)
		employees.GET("/:id/shifts/day", h.Shifts.Day)
		employees.POST("/:id/shifts/override", admin, h.Shifts.Override)
	}
	secured.DELETE("/shifts/:shiftId", admin, h.Shifts.RemoveOverride)

	patients := secured.Group("/patients")
	{
		patients.GET("", h.Patients.List)
		patients.POST("", frontdesk, h.Patients.Create)
		patients.GET("/:id", h.Patients.Get)
		patients.PUT("/:id", frontdesk, h.Patients.Update)

		patients.POST("/:id/anamnesis", clinical, h.Patients.AddAnamnesis)
		patients.GET("/:id/anamnesis", clinical, h.Patients.History)
		patients.POST("/:id/diagnoses", clinical, h.Patients.AddDiagnosis)
		patients.GET("/:id/diagnoses", clinical, h.Patients.Diagnoses)
	}
	secured.POST("/diagnoses/:diagnosisId/close", clinical, h.Patients.CloseDiagnosis)

	appointments := secured.Group("/appointments")
	{
		appointments.GET("", h.Appointments.List)
		appointments.POST("", frontdesk, h.Appointments.Create)
		appointments.GET("/:id", h.Appointments.Get)
		appointments.POST("/:id/accept", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDoctor), h.Appointments.Accept)
		appointments.POST("/:id/reject", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDoctor), h.Appointments.Reject)
		appointments.POST("/:id/cancel", frontdesk, h.Appointments.Cancel)
		appointments.POST("/:id/checkin", frontdesk, audited(models.AuditActionCheckIn, "appointments"), h.Appointments.CheckIn)
		appointments.POST("/:id/start", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDoctor), h.Appointments.Start)
		appointments.POST("/:id/finish", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDoctor), h.Appointments.Finish)
		// Rating comes from the patient kiosk under any signed-in session.
		appointments.POST("/:id/rate", h.Appointments.Rate)
	}
	secured.GET("/queue", h.Appointments.Board)
	secured.GET("/queue/:doctorId", h.Appointments.Queue)
	secured.POST("/queue/:doctorId/next", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDoctor), h.Appointments.Next)
	secured.GET("/reports/doctor-performance", admin, h.Appointments.Performance)

	rooms := secured.Group("/rooms")
	{
		rooms.GET("", h.Rooms.ListRooms)
		rooms.POST("", admin, h.Rooms.CreateRoom)
		rooms.GET("/:id", h.Rooms.GetRoom)
		rooms.POST("/:id/beds", admin, h.Rooms.AddBed)
	}

	beds := secured.Group("/beds")
	{
		beds.POST("/:id/clean", wardStaff, h.Rooms.ConfirmCleaning)
		beds.POST("/:id/block", wardStaff, h.Rooms.BlockBed)
		beds.POST("/:id/unblock", wardStaff, h.Rooms.UnblockBed)
	}

	admissions := secured.Group("/admissions")
	{
		admissions.GET("", h.Rooms.ListAdmitted)
		admissions.POST("", wardStaff, audited(models.AuditActionBedAssign, "admissions"), h.Rooms.Admit)
		admissions.POST("/:id/discharge", wardStaff, audited(models.AuditActionBedRelease, "admissions"), h.Rooms.Discharge)
	}

	secured.GET("/availability/rooms", h.Rooms.AvailableRooms)
	secured.GET("/availability/rooms/:id/beds", h.Rooms.AvailableBeds)

	waitlist := secured.Group("/waitlist")
	{
		waitlist.GET("", h.Rooms.Waitlist)
		waitlist.POST("", wardStaff, h.Rooms.JoinWaitlist)
		waitlist.DELETE("/:id", wardStaff, h.Rooms.LeaveWaitlist)
	}

	billing := secured.Group("/billing")
	{
		billing.GET("/services", h.Billing.Services)
		billing.POST("/services", admin, h.Billing.CreateService)
		billing.GET("/payment-methods", h.Billing.PaymentMethods)
	}

	invoices := secured.Group("/invoices")
	{
		invoices.GET("", frontdesk, h.Billing.ListInvoices)
		invoices.POST("", frontdesk, h.Billing.CreateInvoice)
		invoices.GET("/:id", frontdesk, h.Billing.GetInvoice)
		invoices.POST("/:id/items", frontdesk, h.Billing.AddItem)
		invoices.DELETE("/:id/items/:itemId", frontdesk, h.Billing.RemoveItem)
		invoices.POST("/:id/pay", frontdesk, audited(models.AuditActionInvoicePay, "invoices"), h.Billing.Pay)
		invoices.POST("/:id/void", admin, h.Billing.Void)
	}
	secured.GET("/transactions", frontdesk, h.Billing.Transactions)

	insurers := secured.Group("/insurers")
	{
		insurers.GET("", h.Insurance.Insurers)
		insurers.POST("", admin, h.Insurance.CreateInsurer)
		insurers.GET("/:id/plans", h.Insurance.Plans)
	}
	secured.POST("/plans", admin, h.Insurance.CreatePlan)
	secured.GET("/plans/:id/estimate", h.Insurance.Estimate)

	claims := secured.Group("/claims")
	{
		claims.GET("", frontdesk, h.Insurance.Claims)
		claims.POST("", frontdesk, h.Insurance.Submit)
		claims.GET("/:id", frontdesk, h.Insurance.GetClaim)
		claims.POST("/:id/review", admin, audited(models.AuditActionClaimReview, "claims"), h.Insurance.Review)
	}

	if cfg.DashboardEnabled {
		secured.GET("/dashboard", admin, h.Dashboard.Summary)
	}

	if cfg.ExportsEnabled {
		secured.POST("/exports", admin, h.Exports.Generate)
		secured.POST("/exports/cleanup", admin, h.Exports.Cleanup)
		// Download is token-authenticated: the signed URL is the credential.
		api.GET("/exports/:token", h.Exports.Download)
	}

	if h.Metrics != nil {
		secured.GET("/metrics/summary", admin, h.Metrics.Snapshot)
	}
	if h.System != nil {
		secured.POST("/system/cache/invalidate", admin, h.System.InvalidateCache)
	}
}
