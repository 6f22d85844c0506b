package jobs

import (
	"context"
	"time"

	"github.com/incial/crm-api/internal/datawarehouse"
	"github.com/incial/crm-api/internal/domain"
	"go.uber.org/zap"
)

// WarehouseExportJobName is the scheduler name of the reporting export
const WarehouseExportJobName = "warehouse_export"

// SnapshotSource lists every project with its derived payment state
type SnapshotSource interface {
	Snapshots(ctx context.Context) ([]domain.ProjectDTO, error)
}

// SnapshotExporter writes reporting rows
type SnapshotExporter interface {
	ExportSnapshots(ctx context.Context, rows []datawarehouse.ProjectSnapshot) (int, error)
}

// WarehouseExportJob copies project snapshots to the reporting warehouse.
// It only reads CRM state.
type WarehouseExportJob struct {
	source   SnapshotSource
	exporter SnapshotExporter
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewWarehouseExportJob(source SnapshotSource, exporter SnapshotExporter, logger *zap.Logger, timeout time.Duration) *WarehouseExportJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &WarehouseExportJob{
		source:   source,
		exporter: exporter,
		logger:   logger,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Export runs one export and returns the number of rows written
func (j *WarehouseExportJob) Export(ctx context.Context) (int, error) {
	projects, err := j.source.Snapshots(ctx)
	if err != nil {
		return 0, err
	}

	exportedAt := j.now()
	rows := make([]datawarehouse.ProjectSnapshot, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, datawarehouse.SnapshotFromProject(p, exportedAt))
	}
	return j.exporter.ExportSnapshots(ctx, rows)
}

// Run is the scheduler entry point
func (j *WarehouseExportJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.Export(ctx)
	if err != nil {
		j.logger.Error("warehouse export failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("warehouse export completed",
		zap.Int("rows", n),
		zap.Duration("duration", time.Since(start)))
}

// RegisterWarehouseExportJob schedules the export when a warehouse client
// is configured. A nil client leaves the scheduler unchanged.
func RegisterWarehouseExportJob(scheduler *Scheduler, source SnapshotSource, client *datawarehouse.Client, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	if !client.IsEnabled() {
		logger.Info("warehouse export not scheduled: data warehouse disabled")
		return nil
	}
	job := NewWarehouseExportJob(source, client, logger, timeout)
	return scheduler.AddJob(WarehouseExportJobName, cronExpr, job.Run)
}
