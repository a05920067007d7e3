package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

type dashboardPatientRepository interface {
	Count(ctx context.Context) (int, error)
}

type dashboardAppointmentRepository interface {
	CountTodayByStatus(ctx context.Context, day time.Time) (map[models.AppointmentStatus]int, error)
}

type dashboardRoomRepository interface {
	BedOccupancy(ctx context.Context) (total, occupied int, err error)
}

type dashboardAdmissionRepository interface {
	CountAdmitted(ctx context.Context) (int, error)
}

type dashboardClaimRepository interface {
	CountClaimsByStatus(ctx context.Context) (map[models.ClaimStatus]int, error)
}

type dashboardBillingRepository interface {
	RevenueSince(ctx context.Context, since time.Time) (float64, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const dashboardCacheKey = "dashboard:summary"

// DashboardSummary aggregates the operational counters shown on the home
// screen.
type DashboardSummary struct {
	Patients          int                              `json:"patients"`
	AppointmentsToday map[models.AppointmentStatus]int `json:"appointments_today"`
	BedsTotal         int                              `json:"beds_total"`
	BedsOccupied      int                              `json:"beds_occupied"`
	Admitted          int                              `json:"admitted"`
	Claims            map[models.ClaimStatus]int       `json:"claims"`
	RevenueToday      float64                          `json:"revenue_today"`
	GeneratedAt       time.Time                        `json:"generated_at"`
}

// DashboardService assembles the summary, served from cache when fresh.
type DashboardService struct {
	patients     dashboardPatientRepository
	appointments dashboardAppointmentRepository
	rooms        dashboardRoomRepository
	admissions   dashboardAdmissionRepository
	claims       dashboardClaimRepository
	billing      dashboardBillingRepository
	cache        dashboardCache
	ttl          time.Duration
	logger       *zap.Logger
}

// NewDashboardService constructs the service. cache may be nil.
func NewDashboardService(
	patients dashboardPatientRepository,
	appointments dashboardAppointmentRepository,
	rooms dashboardRoomRepository,
	admissions dashboardAdmissionRepository,
	claims dashboardClaimRepository,
	billing dashboardBillingRepository,
	cache dashboardCache,
	ttl time.Duration,
	logger *zap.Logger,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		patients:     patients,
		appointments: appointments,
		rooms:        rooms,
		admissions:   admissions,
		claims:       claims,
		billing:      billing,
		cache:        cache,
		ttl:          ttl,
		logger:       logger,
	}
}

// Summary returns the dashboard counters.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	if s.cache != nil {
		var cached DashboardSummary
		if err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	summary := &DashboardSummary{GeneratedAt: now}

	var err error
	if summary.Patients, err = s.patients.Count(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count patients")
	}
	if summary.AppointmentsToday, err = s.appointments.CountTodayByStatus(ctx, today); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count appointments")
	}
	if summary.BedsTotal, summary.BedsOccupied, err = s.rooms.BedOccupancy(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read bed occupancy")
	}
	if summary.Admitted, err = s.admissions.CountAdmitted(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count admissions")
	}
	if summary.Claims, err = s.claims.CountClaimsByStatus(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count claims")
	}
	if summary.RevenueToday, err = s.billing.RevenueSince(ctx, revenueWindow(now)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum revenue")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.ttl); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}
