// Package datawarehouse exports read-only project snapshots to the MS SQL
// Server reporting warehouse. Nothing here reads back into the CRM.
package datawarehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/domain"
	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	defaultBackoffFactor  = 2.0

	defaultHealthCheckTimeout = 5 * time.Second

	// SnapshotTable receives one row per project
	SnapshotTable = "dbo.crm_project_snapshot"
)

// ErrNotConfigured is returned by export calls on a disabled client
var ErrNotConfigured = errors.New("data warehouse client not initialized")

// Client writes project snapshots to the warehouse over a pooled connection
type Client struct {
	db           *sql.DB
	config       *config.DataWarehouseConfig
	logger       *zap.Logger
	queryTimeout time.Duration
}

// HealthStatus represents the health check result for the data warehouse connection
type HealthStatus struct {
	Status     string        `json:"status"`
	Latency    time.Duration `json:"latency_ms"`
	Error      string        `json:"error,omitempty"`
	MaxOpen    int           `json:"max_open_connections"`
	Open       int           `json:"open_connections"`
	InUse      int           `json:"in_use"`
	Idle       int           `json:"idle"`
	WaitCount  int64         `json:"wait_count"`
	WaitTimeMs int64         `json:"wait_time_ms"`
}

// ProjectSnapshot is the reporting row for one project
type ProjectSnapshot struct {
	ProjectID          uint
	School             string
	Region             string
	Stage              string
	OwnerRole          string
	ProjectValue       *decimal.Decimal
	InvoiceAmount      *decimal.Decimal
	AmountReceived     decimal.Decimal
	PendingAmount      decimal.Decimal
	PaymentStatus      string
	InstallationStatus string
	StageChangedAt     *time.Time
	ExportedAt         time.Time
}

// SnapshotFromProject flattens a project view into a reporting row
func SnapshotFromProject(p domain.ProjectDTO, exportedAt time.Time) ProjectSnapshot {
	s := ProjectSnapshot{
		ProjectID:      p.ID,
		School:         p.School,
		Region:         p.Region,
		Stage:          string(p.CurrentStage),
		OwnerRole:      string(p.CurrentOwnerRole),
		ProjectValue:   p.ProjectValue,
		InvoiceAmount:  p.InvoiceAmount,
		AmountReceived: p.AmountReceived,
		PendingAmount:  p.PendingAmount,
		PaymentStatus:  string(p.PaymentStatus),
		ExportedAt:     exportedAt.UTC(),
	}
	if p.InstallationStatus != nil {
		s.InstallationStatus = string(*p.InstallationStatus)
	}
	if p.StageChangeTimestamp != nil {
		if t, err := time.Parse(time.RFC3339, *p.StageChangeTimestamp); err == nil {
			s.StageChangedAt = &t
		}
	}
	return s
}

// NewClient connects to the warehouse. It returns nil, nil when the export
// is disabled or credentials are missing.
func NewClient(cfg *config.DataWarehouseConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Data warehouse export disabled")
		return nil, nil
	}

	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Data warehouse enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	logger.Info("Initializing data warehouse connection",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("conn_max_lifetime_seconds", cfg.ConnMaxLifetime),
		zap.Int("query_timeout_seconds", cfg.QueryTimeout),
	)

	connStr, err := buildConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	var db *sql.DB
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxRetries; attempt++ {
		db, err = sql.Open("sqlserver", connStr)
		if err != nil {
			logger.Warn("Failed to open data warehouse connection",
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			if attempt < defaultMaxRetries {
				time.Sleep(backoff)
				backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
			}
			continue
		}

		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

		ctx, cancel := context.WithTimeout(context.Background(), defaultHealthCheckTimeout)
		err = db.PingContext(ctx)
		cancel()

		if err != nil {
			logger.Warn("Data warehouse ping failed",
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			_ = db.Close()
			if attempt < defaultMaxRetries {
				time.Sleep(backoff)
				backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
			}
			continue
		}

		logger.Info("Data warehouse connection established",
			zap.Int("attempts_taken", attempt),
		)

		return &Client{
			db:           db,
			config:       cfg,
			logger:       logger,
			queryTimeout: cfg.QueryTimeoutDuration(),
		}, nil
	}

	return nil, fmt.Errorf("failed to connect to data warehouse after %d attempts: %w", defaultMaxRetries, err)
}

// buildConnectionString turns host:port/database into a sqlserver:// URL
func buildConnectionString(cfg *config.DataWarehouseConfig) (string, error) {
	hostPort, database, _ := strings.Cut(cfg.URL, "/")
	host, port, found := strings.Cut(hostPort, ":")
	if host == "" {
		return "", fmt.Errorf("missing host in %q", cfg.URL)
	}
	if !found || port == "" {
		port = "1433"
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		RawQuery: query.Encode(),
	}

	return u.String(), nil
}

// Close gracefully closes the data warehouse connection
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}

	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close data warehouse connection", zap.Error(err))
		return fmt.Errorf("failed to close data warehouse connection: %w", err)
	}

	c.logger.Info("Data warehouse connection closed")
	return nil
}

// HealthCheck pings the warehouse and reports pool statistics
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if c == nil || c.db == nil {
		return &HealthStatus{Status: "disabled"}
	}

	start := time.Now()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	stats := c.db.Stats()
	status := &HealthStatus{
		Latency:    latency,
		MaxOpen:    stats.MaxOpenConnections,
		Open:       stats.OpenConnections,
		InUse:      stats.InUse,
		Idle:       stats.Idle,
		WaitCount:  stats.WaitCount,
		WaitTimeMs: stats.WaitDuration.Milliseconds(),
	}

	if err != nil {
		c.logger.Warn("Data warehouse health check failed",
			zap.Error(err),
			zap.Duration("latency", latency),
		)
		status.Status = "unhealthy"
		status.Error = err.Error()
	} else {
		status.Status = "healthy"
	}

	return status
}

// mergeStatement upserts one snapshot row keyed by project_id
var mergeStatement = `MERGE ` + SnapshotTable + ` WITH (HOLDLOCK) AS target
USING (SELECT @p1 AS project_id) AS source
ON target.project_id = source.project_id
WHEN MATCHED THEN UPDATE SET
	school = @p2, region = @p3, stage = @p4, owner_role = @p5,
	project_value = @p6, invoice_amount = @p7, amount_received = @p8, pending_amount = @p9,
	payment_status = @p10, installation_status = @p11, stage_changed_at = @p12, exported_at = @p13
WHEN NOT MATCHED THEN INSERT
	(project_id, school, region, stage, owner_role, project_value, invoice_amount,
	 amount_received, pending_amount, payment_status, installation_status, stage_changed_at, exported_at)
	VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11, @p12, @p13);`

// mergeArgs orders a snapshot's values to match mergeStatement
func mergeArgs(s ProjectSnapshot) []interface{} {
	return []interface{}{
		int64(s.ProjectID),
		s.School,
		nullString(s.Region),
		s.Stage,
		s.OwnerRole,
		nullDecimal(s.ProjectValue),
		nullDecimal(s.InvoiceAmount),
		s.AmountReceived.StringFixed(2),
		s.PendingAmount.StringFixed(2),
		s.PaymentStatus,
		nullString(s.InstallationStatus),
		nullTime(s.StageChangedAt),
		s.ExportedAt,
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullDecimal(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.StringFixed(2), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

// ExportSnapshots upserts all rows in one transaction and returns the
// number written
func (c *Client) ExportSnapshots(ctx context.Context, rows []ProjectSnapshot) (int, error) {
	if !c.IsEnabled() {
		return 0, ErrNotConfigured
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin export: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, mergeStatement)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare snapshot merge: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, mergeArgs(row)...); err != nil {
			return 0, fmt.Errorf("failed to export project %d: %w", row.ProjectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit export: %w", err)
	}

	c.logger.Info("Exported project snapshots",
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)))

	return len(rows), nil
}

// IsEnabled returns true if the client is initialized and ready for queries.
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}
