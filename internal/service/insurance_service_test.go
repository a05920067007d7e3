package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

const testPlanID = "6c7d8e9f-0a1b-4c2d-9e3f-4a5b6c7d8e9f"

type mockInsuranceRepo struct {
	insurers map[string]*models.Insurer
	plans    map[string]*models.InsurancePlan
	claims   map[string]*models.Claim
	seq      int
}

func (m *mockInsuranceRepo) ListInsurers(_ context.Context) ([]models.Insurer, error) {
	var out []models.Insurer
	for _, insurer := range m.insurers {
		out = append(out, *insurer)
	}
	return out, nil
}

func (m *mockInsuranceRepo) CreateInsurer(_ context.Context, insurer *models.Insurer) error {
	m.seq++
	insurer.ID = fmt.Sprintf("ins-%d", m.seq)
	if m.insurers == nil {
		m.insurers = make(map[string]*models.Insurer)
	}
	stored := *insurer
	m.insurers[insurer.ID] = &stored
	return nil
}

func (m *mockInsuranceRepo) ListPlans(_ context.Context, insurerID string) ([]models.InsurancePlan, error) {
	var out []models.InsurancePlan
	for _, plan := range m.plans {
		if insurerID == "" || plan.InsurerID == insurerID {
			out = append(out, *plan)
		}
	}
	return out, nil
}

func (m *mockInsuranceRepo) FindPlanByID(_ context.Context, id string) (*models.InsurancePlan, error) {
	plan, ok := m.plans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *plan
	return &copied, nil
}

func (m *mockInsuranceRepo) CreatePlan(_ context.Context, plan *models.InsurancePlan) error {
	m.seq++
	plan.ID = fmt.Sprintf("plan-%d", m.seq)
	if m.plans == nil {
		m.plans = make(map[string]*models.InsurancePlan)
	}
	stored := *plan
	m.plans[plan.ID] = &stored
	return nil
}

func (m *mockInsuranceRepo) ListClaims(_ context.Context, _ models.ClaimFilter) ([]models.Claim, int, error) {
	var out []models.Claim
	for _, claim := range m.claims {
		out = append(out, *claim)
	}
	return out, len(out), nil
}

func (m *mockInsuranceRepo) FindClaimByID(_ context.Context, id string) (*models.Claim, error) {
	claim, ok := m.claims[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *claim
	return &copied, nil
}

func (m *mockInsuranceRepo) CreateClaim(_ context.Context, claim *models.Claim) error {
	m.seq++
	claim.ID = fmt.Sprintf("claim-%d", m.seq)
	if m.claims == nil {
		m.claims = make(map[string]*models.Claim)
	}
	stored := *claim
	m.claims[claim.ID] = &stored
	return nil
}

func (m *mockInsuranceRepo) TransitionClaim(_ context.Context, id string, from, to models.ClaimStatus, amountApproved *float64) (bool, error) {
	claim, ok := m.claims[id]
	if !ok || claim.Status != from {
		return false, nil
	}
	claim.Status = to
	if amountApproved != nil {
		claim.AmountApproved = amountApproved
	}
	return true, nil
}

func newInsuranceFixture() (*InsuranceService, *mockInsuranceRepo) {
	repo := &mockInsuranceRepo{
		plans: map[string]*models.InsurancePlan{
			testPlanID: {ID: testPlanID, InsurerID: "ins-1", Name: "Gold", CoveragePercent: 80, Deductible: 100},
		},
	}
	patients := &mockPatientFinder{patients: map[string]*models.Patient{
		testPatientID: {ID: testPatientID, FirstName: "Luis", LastName: "Mora"},
	}}
	return NewInsuranceService(repo, patients, validator.New(), zap.NewNop()), repo
}

func TestInsuranceServiceEstimate(t *testing.T) {
	svc, _ := newInsuranceFixture()

	estimate, err := svc.Estimate(context.Background(), testPlanID, 1100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, estimate.Deductible)
	assert.Equal(t, 800.0, estimate.Covered)
	assert.Equal(t, 300.0, estimate.PatientDue)
}

func TestInsuranceServiceEstimateCapsDeductible(t *testing.T) {
	svc, _ := newInsuranceFixture()

	// amount below the deductible: nothing covered, patient pays everything
	estimate, err := svc.Estimate(context.Background(), testPlanID, 60)
	require.NoError(t, err)
	assert.Equal(t, 60.0, estimate.Deductible)
	assert.Equal(t, 0.0, estimate.Covered)
	assert.Equal(t, 60.0, estimate.PatientDue)
}

func TestInsuranceServiceClaimWorkflow(t *testing.T) {
	svc, _ := newInsuranceFixture()
	ctx := context.Background()

	claim, err := svc.Submit(ctx, SubmitClaimRequest{
		PatientID:     testPatientID,
		PlanID:        testPlanID,
		ServiceDate:   "2026-03-10",
		AmountClaimed: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimSubmitted, claim.Status)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), claim.ServiceDate)

	claim, err = svc.Review(ctx, claim.ID, ReviewClaimRequest{Status: "in_review"})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimInReview, claim.Status)

	approved := 450.0
	claim, err = svc.Review(ctx, claim.ID, ReviewClaimRequest{Status: "approved", AmountApproved: &approved})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, claim.Status)
	require.NotNil(t, claim.AmountApproved)
	assert.Equal(t, 450.0, *claim.AmountApproved)

	claim, err = svc.Review(ctx, claim.ID, ReviewClaimRequest{Status: "paid"})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPaid, claim.Status)

	// a paid claim is terminal
	_, err = svc.Review(ctx, claim.ID, ReviewClaimRequest{Status: "in_review"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
}

func TestInsuranceServiceApprovalRequiresAmount(t *testing.T) {
	svc, _ := newInsuranceFixture()
	ctx := context.Background()

	claim, err := svc.Submit(ctx, SubmitClaimRequest{
		PatientID:     testPatientID,
		PlanID:        testPlanID,
		ServiceDate:   "2026-03-10",
		AmountClaimed: 500,
	})
	require.NoError(t, err)

	_, err = svc.Review(ctx, claim.ID, ReviewClaimRequest{Status: "approved"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	tooMuch := 600.0
	_, err = svc.Review(ctx, claim.ID, ReviewClaimRequest{Status: "approved", AmountApproved: &tooMuch})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInsuranceServiceDeniedClaimIsTerminal(t *testing.T) {
	svc, _ := newInsuranceFixture()
	ctx := context.Background()

	claim, err := svc.Submit(ctx, SubmitClaimRequest{
		PatientID:     testPatientID,
		PlanID:        testPlanID,
		ServiceDate:   "2026-03-10",
		AmountClaimed: 500,
	})
	require.NoError(t, err)

	claim, err = svc.Review(ctx, claim.ID, ReviewClaimRequest{Status: "denied"})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimDenied, claim.Status)

	_, err = svc.Review(ctx, claim.ID, ReviewClaimRequest{Status: "paid"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
}
