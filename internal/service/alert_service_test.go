package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/service"
	"github.com/incial/crm-api/internal/testutil"
)

const summaryKey = "crm:alerts:summary"

func daysAgo(n int) time.Time {
	return testStart.Add(-time.Duration(n) * 24 * time.Hour)
}

func (e *testEnv) activeAlerts(t *testing.T, projectID uint) []domain.Alert {
	t.Helper()
	alerts, err := e.alertRepo.ListActiveByProject(context.Background(), projectID)
	require.NoError(t, err)
	return alerts
}

func TestScan_ReviewInactivity(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	p := testutil.CreateProjectAt(t, env.db, domain.StageInReview, daysAgo(10))

	result, err := env.alerts.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Evaluated)
	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Failed)

	alerts := env.activeAlerts(t, p.ID)
	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, domain.AlertStageInactivity, alert.AlertType)
	assert.Equal(t, domain.SeverityWarning, alert.Severity)
	assert.Equal(t, 3, alert.DaysOverdue)
	assert.True(t, alert.IsActive)
	assert.Equal(t,
		fmt.Sprintf("Project '%s' has been in Review stage for 10 days (threshold: 7 days)", p.School),
		alert.Message)
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.AlertsCreated.WithLabelValues("STAGE_INACTIVITY")))

	t.Run("second scan is idempotent", func(t *testing.T) {
		result, err := env.alerts.Scan(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Created)
		assert.Len(t, env.activeAlerts(t, p.ID), 1)
	})

	t.Run("later scans do not refresh the overdue count", func(t *testing.T) {
		env.clock.Advance(48 * time.Hour)
		_, err := env.alerts.Scan(ctx)
		require.NoError(t, err)
		alerts := env.activeAlerts(t, p.ID)
		require.Len(t, alerts, 1)
		assert.Equal(t, 3, alerts[0].DaysOverdue)
	})
}

func TestScan_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name        string
		since       time.Time
		wantAlert   bool
		wantOverdue int
	}{
		{name: "exactly at threshold", since: daysAgo(7)},
		{name: "just short of eight days", since: daysAgo(8).Add(time.Minute)},
		{name: "one day over", since: daysAgo(8), wantAlert: true, wantOverdue: 1},
		{name: "fresh", since: testStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			p := testutil.CreateProjectAt(t, env.db, domain.StageInReview, tt.since)

			_, err := env.alerts.Scan(context.Background())
			require.NoError(t, err)

			alerts := env.activeAlerts(t, p.ID)
			if !tt.wantAlert {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.wantOverdue, alerts[0].DaysOverdue)
		})
	}
}

func TestScan_OnlyWatchedStages(t *testing.T) {
	env := setupEnv(t)
	for _, stage := range []domain.ProjectStage{
		domain.StageLead, domain.StageOnProgress, domain.StageQuotationSent,
		domain.StageSales, domain.StageCompleted,
	} {
		testutil.CreateProjectAt(t, env.db, stage, daysAgo(60))
	}

	result, err := env.alerts.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Evaluated)
	assert.Zero(t, result.Created)

	count, err := env.alerts.CountActive(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScan_PaymentDelay(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	lead := env.createLead(t)
	env.onboard(t, lead.ID)
	env.toAccounts(t, lead.ID, 1000)
	_, err := env.pay(lead.ID, 400)
	require.NoError(t, err)

	env.clock.Advance(11 * 24 * time.Hour)
	result, err := env.alerts.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	alerts := env.activeAlerts(t, lead.ID)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertPaymentDelay, alerts[0].AlertType)
	assert.Equal(t, domain.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, 1, alerts[0].DaysOverdue)
	assert.Equal(t,
		fmt.Sprintf("Payment pending for project '%s' for 11 days (threshold: 10 days). Invoice Amount: ₹1,000.00, Pending: ₹600.00", lead.School),
		alerts[0].Message)

	t.Run("settling the invoice retires the alert", func(t *testing.T) {
		dto, err := env.pay(lead.ID, 600)
		require.NoError(t, err)
		assert.Equal(t, domain.StageInstallation, dto.CurrentStage)

		assert.Empty(t, env.activeAlerts(t, lead.ID))
		all, err := env.alertRepo.ListByProject(ctx, lead.ID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.False(t, all[0].IsActive)
		assert.Equal(t, domain.SystemActor, all[0].DismissedBy)
		require.NotNil(t, all[0].DismissedAt)
		assert.True(t, all[0].DismissedAt.Equal(env.clock.Now()))
		assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.AlertsDismissed.WithLabelValues("PAYMENT_DELAY", "auto")))
	})
}

func TestScan_InstallationDelay(t *testing.T) {
	env := setupEnv(t)
	p := testutil.CreateProjectAt(t, env.db, domain.StageInstallation, daysAgo(6))

	_, err := env.alerts.Scan(context.Background())
	require.NoError(t, err)

	alerts := env.activeAlerts(t, p.ID)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertInstallationDelay, alerts[0].AlertType)
	assert.Equal(t, 1, alerts[0].DaysOverdue)
	assert.Equal(t,
		fmt.Sprintf("Installation pending for project '%s' for 6 days (threshold: 5 days). Expected Delivery: Not set", p.School),
		alerts[0].Message)
}

func TestScan_ExpectedDeliveryInMessage(t *testing.T) {
	env := setupEnv(t)
	p := testutil.CreateProjectAt(t, env.db, domain.StageInstallation, daysAgo(9))
	delivery := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.db.Model(&domain.Project{}).Where("id = ?", p.ID).
		Update("expected_delivery_date", delivery).Error)

	_, err := env.alerts.Scan(context.Background())
	require.NoError(t, err)

	alerts := env.activeAlerts(t, p.ID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "Expected Delivery: 2026-03-15")
	assert.Equal(t, 4, alerts[0].DaysOverdue)
}

func TestScan_ConcurrentSweepsRaiseOneAlertPerProject(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	overdue := []*domain.Project{
		testutil.CreateProjectAt(t, env.db, domain.StageInReview, daysAgo(9)),
		testutil.CreateProjectAt(t, env.db, domain.StageAccounts, daysAgo(12)),
		testutil.CreateProjectAt(t, env.db, domain.StageInstallation, daysAgo(6)),
	}
	testutil.CreateProjectAt(t, env.db, domain.StageInstallation, daysAgo(1))

	const sweeps = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		failed  int
	)
	for i := 0; i < sweeps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.alerts.Scan(ctx)
			assert.NoError(t, err)
			mu.Lock()
			created += result.Created
			failed += result.Failed
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(overdue), created)
	assert.Zero(t, failed)
	for _, p := range overdue {
		assert.Len(t, env.activeAlerts(t, p.ID), 1, "project %d", p.ID)
	}
	count, err := env.alerts.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(overdue)), count)
}

func TestAlertStore_OneActiveAlertPerType(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	p := testutil.CreateProjectAt(t, env.db, domain.StageAccounts, daysAgo(12))

	first := &domain.Alert{ProjectID: p.ID, AlertType: domain.AlertPaymentDelay, Severity: domain.SeverityCritical,
		Message: "first", IsActive: true, CreatedAt: testStart}
	require.NoError(t, env.alertRepo.Create(ctx, first))

	dup := &domain.Alert{ProjectID: p.ID, AlertType: domain.AlertPaymentDelay, Severity: domain.SeverityCritical,
		Message: "second", IsActive: true, CreatedAt: testStart}
	assert.Error(t, env.alertRepo.Create(ctx, dup))

	other := &domain.Alert{ProjectID: p.ID, AlertType: domain.AlertInstallationDelay, Severity: domain.SeverityCritical,
		Message: "other type", IsActive: true, CreatedAt: testStart}
	require.NoError(t, env.alertRepo.Create(ctx, other))

	_, err := env.alerts.AutoDismiss(ctx, p.ID, domain.AlertPaymentDelay)
	require.NoError(t, err)
	again := &domain.Alert{ProjectID: p.ID, AlertType: domain.AlertPaymentDelay, Severity: domain.SeverityCritical,
		Message: "after dismissal", IsActive: true, CreatedAt: testStart}
	assert.NoError(t, env.alertRepo.Create(ctx, again))
}

func TestAlerts_LeavingReviewDismisses(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	lead := env.createLead(t)
	for _, to := range []domain.ProjectStage{domain.StageOnProgress, domain.StageQuotationSent, domain.StageInReview} {
		_, err := env.transition(lead.ID, to, execUser, domain.RoleExecutive)
		require.NoError(t, err)
	}

	env.clock.Advance(10 * 24 * time.Hour)
	_, err := env.alerts.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, env.activeAlerts(t, lead.ID), 1)
	_, err = env.alerts.Summary(ctx)
	require.NoError(t, err)
	require.True(t, env.redis.Exists(summaryKey))

	_, err = env.transition(lead.ID, domain.StageOnboarded, execUser, domain.RoleExecutive)
	require.NoError(t, err)

	assert.Empty(t, env.activeAlerts(t, lead.ID))
	all, err := env.alerts.HistoryForProject(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.SystemActor, all[0].DismissedBy)
	assert.False(t, all[0].IsActive)

	// Stage exit publishes like AutoDismiss: counted as automatic, summary dropped
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.AlertsDismissed.WithLabelValues(string(domain.AlertStageInactivity), "auto")))
	assert.False(t, env.redis.Exists(summaryKey))
}

func TestAlerts_AutoDismissPublishes(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	p := testutil.CreateProjectAt(t, env.db, domain.StageAccounts, daysAgo(15))

	_, err := env.alerts.Scan(ctx)
	require.NoError(t, err)
	_, err = env.alerts.Summary(ctx)
	require.NoError(t, err)
	require.True(t, env.redis.Exists(summaryKey))

	n, err := env.alerts.AutoDismiss(ctx, p.ID, domain.AlertPaymentDelay)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.AlertsDismissed.WithLabelValues(string(domain.AlertPaymentDelay), "auto")))
	assert.False(t, env.redis.Exists(summaryKey))
}

func TestAlerts_Dismiss(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	p := testutil.CreateProjectAt(t, env.db, domain.StageInReview, daysAgo(12))
	_, err := env.alerts.Scan(ctx)
	require.NoError(t, err)
	alerts := env.activeAlerts(t, p.ID)
	require.Len(t, alerts, 1)

	dto, err := env.alerts.Dismiss(ctx, alerts[0].ID, adminUser)
	require.NoError(t, err)
	assert.False(t, dto.IsActive)
	assert.Equal(t, adminUser, dto.DismissedBy)
	require.NotNil(t, dto.DismissedAt)

	t.Run("second dismissal is rejected", func(t *testing.T) {
		_, err := env.alerts.Dismiss(ctx, alerts[0].ID, adminUser)
		assert.ErrorIs(t, err, service.ErrAlertAlreadyDismissed)
	})

	t.Run("unknown alert", func(t *testing.T) {
		_, err := env.alerts.Dismiss(ctx, 9999, adminUser)
		assert.ErrorIs(t, err, service.ErrAlertNotFound)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("rescan raises a fresh alert", func(t *testing.T) {
		result, err := env.alerts.Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Created)
		assert.Len(t, env.activeAlerts(t, p.ID), 1)
	})
}

func TestAlerts_AutoDismiss(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	p := testutil.CreateProjectAt(t, env.db, domain.StageInstallation, daysAgo(20))

	n, err := env.alerts.AutoDismiss(ctx, p.ID, domain.AlertInstallationDelay)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = env.alerts.Scan(ctx)
	require.NoError(t, err)

	n, err = env.alerts.AutoDismiss(ctx, p.ID, domain.AlertPaymentDelay)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, env.activeAlerts(t, p.ID), 1)

	n, err = env.alerts.AutoDismiss(ctx, p.ID, domain.AlertInstallationDelay)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, env.activeAlerts(t, p.ID))
}

func TestAlerts_ListActive(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	review := testutil.CreateProjectAt(t, env.db, domain.StageInReview, daysAgo(9))
	install := testutil.CreateProjectAt(t, env.db, domain.StageInstallation, daysAgo(9))

	_, err := env.alerts.Scan(ctx)
	require.NoError(t, err)

	active, err := env.alerts.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	names := map[uint]string{}
	for _, a := range active {
		names[a.ProjectID] = a.ProjectName
		assert.True(t, a.IsActive)
	}
	assert.Equal(t, review.School, names[review.ID])
	assert.Equal(t, install.School, names[install.ID])

	forProject, err := env.alerts.ListForProject(ctx, install.ID)
	require.NoError(t, err)
	require.Len(t, forProject, 1)
	assert.Equal(t, domain.AlertInstallationDelay, forProject[0].AlertType)
}

func TestAlerts_SummaryCache(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	review := testutil.CreateProjectAt(t, env.db, domain.StageInReview, daysAgo(9))
	testutil.CreateProjectAt(t, env.db, domain.StageInstallation, daysAgo(9))
	_, err := env.alerts.Scan(ctx)
	require.NoError(t, err)

	summary, err := env.alerts.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalAlerts)
	assert.Equal(t, int64(1), summary.WarningAlerts)
	assert.Equal(t, int64(1), summary.CriticalAlerts)
	assert.Zero(t, summary.InfoAlerts)
	assert.Equal(t, int64(1), summary.ByType[domain.AlertStageInactivity])
	assert.True(t, env.redis.Exists(summaryKey))

	_, err = env.alerts.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.CacheHits.WithLabelValues("alert_summary")))
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.CacheMisses.WithLabelValues("alert_summary")))

	alerts := env.activeAlerts(t, review.ID)
	require.Len(t, alerts, 1)
	_, err = env.alerts.Dismiss(ctx, alerts[0].ID, adminUser)
	require.NoError(t, err)
	assert.False(t, env.redis.Exists(summaryKey))

	summary, err = env.alerts.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalAlerts)
	assert.Zero(t, summary.WarningAlerts)
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"5", "5.00"},
		{"999.5", "999.50"},
		{"1000", "1,000.00"},
		{"600", "600.00"},
		{"1234567.891", "1,234,567.89"},
		{"100000", "100,000.00"},
		{"-2500", "-2,500.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, service.FormatCurrency(decimal.RequireFromString(tt.in)))
		})
	}
}
