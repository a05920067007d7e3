package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

type insuranceRepository interface {
	ListInsurers(ctx context.Context) ([]models.Insurer, error)
	CreateInsurer(ctx context.Context, insurer *models.Insurer) error
	ListPlans(ctx context.Context, insurerID string) ([]models.InsurancePlan, error)
	FindPlanByID(ctx context.Context, id string) (*models.InsurancePlan, error)
	CreatePlan(ctx context.Context, plan *models.InsurancePlan) error
	ListClaims(ctx context.Context, filter models.ClaimFilter) ([]models.Claim, int, error)
	FindClaimByID(ctx context.Context, id string) (*models.Claim, error)
	CreateClaim(ctx context.Context, claim *models.Claim) error
	TransitionClaim(ctx context.Context, id string, from, to models.ClaimStatus, amountApproved *float64) (bool, error)
}

type insurancePatientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
}

// InsuranceService handles insurers, plans and the claim review workflow.
type InsuranceService struct {
	repo      insuranceRepository
	patients  insurancePatientRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInsuranceService constructs the service.
func NewInsuranceService(repo insuranceRepository, patients insurancePatientRepository, validate *validator.Validate, logger *zap.Logger) *InsuranceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsuranceService{repo: repo, patients: patients, validator: validate, logger: logger}
}

// CreateInsurerRequest describes an insurer payload.
type CreateInsurerRequest struct {
	Name         string  `json:"name" validate:"required"`
	ContactEmail *string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone *string `json:"contact_phone"`
}

// CreatePlanRequest describes an insurance plan payload.
type CreatePlanRequest struct {
	InsurerID       string  `json:"insurer_id" validate:"required,uuid4"`
	Name            string  `json:"name" validate:"required"`
	CoveragePercent float64 `json:"coverage_percent" validate:"required,gt=0,lte=100"`
	Deductible      float64 `json:"deductible" validate:"gte=0"`
}

// SubmitClaimRequest files a claim for a patient under a plan.
type SubmitClaimRequest struct {
	PatientID     string  `json:"patient_id" validate:"required,uuid4"`
	PlanID        string  `json:"plan_id" validate:"required,uuid4"`
	ServiceDate   string  `json:"service_date" validate:"required,datetime=2006-01-02"`
	AmountClaimed float64 `json:"amount_claimed" validate:"required,gt=0"`
}

// ReviewClaimRequest moves a claim through its workflow.
type ReviewClaimRequest struct {
	Status         string   `json:"status" validate:"required,oneof=in_review approved denied paid"`
	AmountApproved *float64 `json:"amount_approved" validate:"omitempty,gte=0"`
}

// CoverageEstimate is the payable breakdown for an amount under a plan.
type CoverageEstimate struct {
	Amount     float64 `json:"amount"`
	Deductible float64 `json:"deductible"`
	Covered    float64 `json:"covered"`
	PatientDue float64 `json:"patient_due"`
}

// Insurers returns the insurer directory.
func (s *InsuranceService) Insurers(ctx context.Context) ([]models.Insurer, error) {
	insurers, err := s.repo.ListInsurers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list insurers")
	}
	return insurers, nil
}

// CreateInsurer registers an insurer.
func (s *InsuranceService) CreateInsurer(ctx context.Context, req CreateInsurerRequest) (*models.Insurer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	insurer := &models.Insurer{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	}
	if err := s.repo.CreateInsurer(ctx, insurer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create insurer")
	}
	return insurer, nil
}

// Plans returns the plans offered by an insurer.
func (s *InsuranceService) Plans(ctx context.Context, insurerID string) ([]models.InsurancePlan, error) {
	plans, err := s.repo.ListPlans(ctx, insurerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	return plans, nil
}

// CreatePlan registers an insurance plan.
func (s *InsuranceService) CreatePlan(ctx context.Context, req CreatePlanRequest) (*models.InsurancePlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	plan := &models.InsurancePlan{
		InsurerID:       req.InsurerID,
		Name:            req.Name,
		CoveragePercent: req.CoveragePercent,
		Deductible:      req.Deductible,
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan")
	}
	return plan, nil
}

// Estimate computes the payable breakdown for an amount under a plan. The
// deductible comes out first; coverage applies to the remainder.
func (s *InsuranceService) Estimate(ctx context.Context, planID string, amount float64) (*CoverageEstimate, error) {
	if amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	plan, err := s.repo.FindPlanByID(ctx, planID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get plan")
	}

	deductible := plan.Deductible
	if deductible > amount {
		deductible = amount
	}
	covered := (amount - deductible) * plan.CoveragePercent / 100

	return &CoverageEstimate{
		Amount:     amount,
		Deductible: deductible,
		Covered:    covered,
		PatientDue: amount - covered,
	}, nil
}

// Claims returns claims with pagination.
func (s *InsuranceService) Claims(ctx context.Context, filter models.ClaimFilter) ([]models.Claim, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.ListClaims(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list claims")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// GetClaim returns a claim by id.
func (s *InsuranceService) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	claim, err := s.repo.FindClaimByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "claim not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get claim")
	}
	return claim, nil
}

// Submit files a new claim in submitted state.
func (s *InsuranceService) Submit(ctx context.Context, req SubmitClaimRequest) (*models.Claim, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.patients.FindByID(ctx, req.PatientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get patient")
	}
	if _, err := s.repo.FindPlanByID(ctx, req.PlanID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get plan")
	}

	serviceDate, err := time.ParseInLocation("2006-01-02", req.ServiceDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid service date")
	}

	claim := &models.Claim{
		PatientID:     req.PatientID,
		PlanID:        req.PlanID,
		ServiceDate:   serviceDate,
		AmountClaimed: req.AmountClaimed,
		Status:        models.ClaimSubmitted,
	}
	if err := s.repo.CreateClaim(ctx, claim); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create claim")
	}
	return claim, nil
}

// Review moves a claim along its workflow. Approval requires an approved
// amount no greater than the claimed amount.
func (s *InsuranceService) Review(ctx context.Context, id string, req ReviewClaimRequest) (*models.Claim, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	claim, err := s.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}

	to := models.ClaimStatus(req.Status)
	if !models.CanTransitionClaim(claim.Status, to) {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, fmt.Sprintf("cannot move claim from %s to %s", claim.Status, to))
	}
	if to == models.ClaimApproved {
		if req.AmountApproved == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "approval requires amount_approved")
		}
		if *req.AmountApproved > claim.AmountClaimed {
			return nil, appErrors.Clone(appErrors.ErrValidation, "amount_approved exceeds amount_claimed")
		}
	}

	ok, err := s.repo.TransitionClaim(ctx, id, claim.Status, to, req.AmountApproved)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update claim")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "claim changed state concurrently")
	}
	return s.GetClaim(ctx, id)
}
