package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/incial/crm-api/internal/cache"
	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/metrics"
	"github.com/incial/crm-api/internal/repository"
	"github.com/incial/crm-api/internal/service"
	"github.com/incial/crm-api/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	execUser    = "exec-1"
	salesUser   = "sales-1"
	accountUser = "accounts-1"
	installUser = "install-1"
	adminUser   = "admin-1"
)

var testStart = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	db      *gorm.DB
	clock   *testutil.FakeClock
	metrics *metrics.Metrics
	redis   *miniredis.Miniredis

	projects *service.ProjectService
	workflow *service.WorkflowService
	alerts   *service.AlertService

	projectRepo  *repository.ProjectRepository
	paymentRepo  *repository.PaymentTransactionRepository
	historyRepo  *repository.StageHistoryRepository
	activityRepo *repository.ActivityRepository
	alertRepo    *repository.AlertRepository
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	clock := testutil.NewFakeClock(testStart)
	log := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())

	mr := miniredis.RunT(t)
	cacheClient := cache.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), log)
	t.Cleanup(func() { _ = cacheClient.Close() })

	projectRepo := repository.NewProjectRepository(db)
	paymentRepo := repository.NewPaymentTransactionRepository(db)
	historyRepo := repository.NewStageHistoryRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	alerts := service.NewAlertService(db, alertRepo, projectRepo, cacheClient,
		service.AlertServiceConfig{Thresholds: service.DefaultAlertThresholds(), SummaryTTL: time.Minute},
		m, clock, log)

	return &testEnv{
		db:           db,
		clock:        clock,
		metrics:      m,
		redis:        mr,
		projects:     service.NewProjectService(projectRepo, paymentRepo, historyRepo, activityRepo, "IN", clock, log, db),
		workflow:     service.NewWorkflowService(db, paymentRepo, alerts, m, clock, log),
		alerts:       alerts,
		projectRepo:  projectRepo,
		paymentRepo:  paymentRepo,
		historyRepo:  historyRepo,
		activityRepo: activityRepo,
		alertRepo:    alertRepo,
	}
}

func (e *testEnv) createLead(t *testing.T) *domain.ProjectDTO {
	t.Helper()
	dto, err := e.projects.Create(context.Background(), testutil.FakeIntake(), execUser, domain.RoleExecutive)
	require.NoError(t, err)
	return dto
}

func (e *testEnv) transition(id uint, to domain.ProjectStage, actor string, role domain.UserRoleType) (*domain.ProjectDTO, error) {
	return e.workflow.Transition(context.Background(), id, service.TransitionCommand{
		ToStage:   to,
		Actor:     actor,
		ActorRole: role,
	})
}

// onboard walks a lead through the executive stages; the cascade lands it in SALES
func (e *testEnv) onboard(t *testing.T, id uint) *domain.ProjectDTO {
	t.Helper()
	var dto *domain.ProjectDTO
	for _, to := range []domain.ProjectStage{
		domain.StageOnProgress, domain.StageQuotationSent, domain.StageInReview, domain.StageOnboarded,
	} {
		var err error
		dto, err = e.transition(id, to, execUser, domain.RoleExecutive)
		require.NoError(t, err)
	}
	return dto
}

// toAccounts sets sales figures and hands the project to accounts
func (e *testEnv) toAccounts(t *testing.T, id uint, invoice int64) *domain.ProjectDTO {
	t.Helper()
	ctx := context.Background()
	value := decimal.NewFromInt(invoice)
	inv := decimal.NewFromInt(invoice)
	_, err := e.workflow.UpdateSalesData(ctx, id, service.SalesCommand{
		ProjectValue:  &value,
		InvoiceAmount: &inv,
		Actor:         salesUser,
		ActorRole:     domain.RoleSalesCoordinator,
	})
	require.NoError(t, err)

	dto, err := e.workflow.MarkReadyForAccounts(ctx, id, salesUser, domain.RoleSalesCoordinator)
	require.NoError(t, err)
	return dto
}

func (e *testEnv) pay(id uint, amount int64) (*domain.ProjectDTO, error) {
	return e.workflow.RecordPayment(context.Background(), id, service.PaymentCommand{
		Amount:    decimal.NewFromInt(amount),
		Actor:     accountUser,
		ActorRole: domain.RoleAccounts,
	})
}

func (e *testEnv) reload(t *testing.T, id uint) *domain.Project {
	t.Helper()
	p, err := e.projectRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (e *testEnv) history(t *testing.T, id uint) []domain.StageHistoryEntry {
	t.Helper()
	h, err := e.historyRepo.ListByProject(context.Background(), id)
	require.NoError(t, err)
	return h
}

func (e *testEnv) activities(t *testing.T, id uint) []domain.ActivityLogEntry {
	t.Helper()
	a, err := e.activityRepo.ListByProject(context.Background(), id)
	require.NoError(t, err)
	return a
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
