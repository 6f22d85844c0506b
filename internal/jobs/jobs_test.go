package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/incial/crm-api/internal/datawarehouse"
	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestScheduler_AddRemove(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("hourly", "0 0 * * * *", func() {}))
	require.NoError(t, s.AddJob("nightly", "0 2 * * *", func() {}))
	require.NoError(t, s.AddJob("frequent", "@every 30m", func() {}))
	assert.Equal(t, []string{"frequent", "hourly", "nightly"}, s.JobNames())

	err := s.AddJob("hourly", "@hourly", func() {})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob("broken", "not a schedule", func() {})
	assert.Error(t, err)

	require.NoError(t, s.RemoveJob("nightly"))
	assert.Equal(t, []string{"frequent", "hourly"}, s.JobNames())
	assert.Error(t, s.RemoveJob("nightly"))
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("tick", "@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	s.Start()
	defer func() { <-s.Stop().Done() }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

type fakeScanner struct {
	result service.ScanResult
	err    error
	calls  int
	hadDL  bool
}

func (f *fakeScanner) Scan(ctx context.Context) (service.ScanResult, error) {
	f.calls++
	_, f.hadDL = ctx.Deadline()
	return f.result, f.err
}

func TestAlertScanJob_Run(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	scanner := &fakeScanner{result: service.ScanResult{Evaluated: 12, Created: 3, Failed: 1}}

	NewAlertScanJob(scanner, zap.New(core), time.Minute).Run()

	assert.Equal(t, 1, scanner.calls)
	assert.True(t, scanner.hadDL)
	entries := logs.FilterMessage("scheduled alert scan completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 12, fields["evaluated"])
	assert.EqualValues(t, 3, fields["created"])
	assert.EqualValues(t, 1, fields["failed"])
}

func TestAlertScanJob_RunLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	scanner := &fakeScanner{err: errors.New("db down")}

	NewAlertScanJob(scanner, zap.New(core), 0).Run()

	assert.Equal(t, 1, logs.FilterMessage("scheduled alert scan failed").Len())
	assert.Zero(t, logs.FilterMessage("scheduled alert scan completed").Len())
}

func TestRegisterAlertScanJob(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	require.NoError(t, RegisterAlertScanJob(s, &fakeScanner{}, zap.NewNop(), "0 * * * *", time.Minute))
	assert.Equal(t, []string{AlertScanJobName}, s.JobNames())
}

type fakeSource struct {
	projects []domain.ProjectDTO
	err      error
}

func (f fakeSource) Snapshots(context.Context) ([]domain.ProjectDTO, error) {
	return f.projects, f.err
}

type fakeExporter struct {
	rows []datawarehouse.ProjectSnapshot
}

func (f *fakeExporter) ExportSnapshots(_ context.Context, rows []datawarehouse.ProjectSnapshot) (int, error) {
	f.rows = append(f.rows, rows...)
	return len(rows), nil
}

func TestWarehouseExportJob_Export(t *testing.T) {
	invoice := decimal.NewFromInt(800)
	source := fakeSource{projects: []domain.ProjectDTO{
		{ID: 1, School: "Govt HSS", CurrentStage: domain.StageLead, CurrentOwnerRole: domain.OwnerExecutive, PaymentStatus: domain.PaymentStatusPending},
		{ID: 2, School: "Model School", CurrentStage: domain.StageAccounts, CurrentOwnerRole: domain.OwnerAccounts,
			InvoiceAmount: &invoice, AmountReceived: decimal.NewFromInt(300), PendingAmount: decimal.NewFromInt(500),
			PaymentStatus: domain.PaymentStatusPartial},
	}}
	exporter := &fakeExporter{}
	fixed := time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)

	job := NewWarehouseExportJob(source, exporter, zap.NewNop(), time.Minute)
	job.now = func() time.Time { return fixed }

	n, err := job.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, exporter.rows, 2)
	assert.Equal(t, "ACCOUNTS", exporter.rows[1].Stage)
	assert.Equal(t, "500.00", exporter.rows[1].PendingAmount.StringFixed(2))
	assert.Equal(t, fixed, exporter.rows[0].ExportedAt)

	_, err = NewWarehouseExportJob(fakeSource{err: errors.New("boom")}, exporter, zap.NewNop(), 0).Export(context.Background())
	assert.Error(t, err)
}

func TestRegisterWarehouseExportJob_Disabled(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	require.NoError(t, RegisterWarehouseExportJob(s, fakeSource{}, nil, zap.NewNop(), "0 2 * * *", time.Minute))
	assert.Empty(t, s.JobNames())
}
