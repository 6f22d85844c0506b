package database

import (
	"context"
	"fmt"
	"time"

	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the PostgreSQL ledger store. Slow queries and errors are
// written through the application logger.
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.ConnectionString()), &gorm.Config{
		Logger: NewGormLogger(log),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewGormLogger adapts zap for gorm: warnings for slow queries, errors
// otherwise, record-not-found ignored
func NewGormLogger(log *zap.Logger) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Silent)
	}
	return logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Models lists every table owned by the workflow core
func Models() []interface{} {
	return []interface{}{
		&domain.Project{},
		&domain.PaymentTransaction{},
		&domain.StageHistoryEntry{},
		&domain.ActivityLogEntry{},
		&domain.Alert{},
	}
}

// partialIndexes mirror the partial unique indexes of the goose migrations.
// Struct tags cannot express a WHERE clause. The syntax is shared by
// PostgreSQL and SQLite.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_projects_contact_number ON projects (contact_number) WHERE contact_number <> ''`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_project_alerts_active ON project_alerts (project_id, alert_type) WHERE is_active`,
}

// AutoMigrate creates the schema from the models. Production uses the goose
// migrations; this is for tests and local development.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create partial index: %w", err)
		}
	}
	return nil
}

// Stats is a snapshot of the connection pool
type Stats struct {
	OpenConnections int           `json:"openConnections"`
	InUse           int           `json:"inUse"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"waitCount"`
	WaitDuration    time.Duration `json:"waitDuration"`
}

// HealthCheck pings the database
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// HealthCheckWithStats pings the database and reports pool usage
func HealthCheckWithStats(ctx context.Context, db *gorm.DB) (*Stats, error) {
	if err := HealthCheck(ctx, db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	s := sqlDB.Stats()
	return &Stats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
		WaitDuration:    s.WaitDuration,
	}, nil
}
