package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/incial/crm-api/internal/database"
	"github.com/incial/crm-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a fresh SQLite database in the test's temp dir with the
// full schema. The pool has a single connection, so transactions serialize
// the way row locks do on PostgreSQL.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "crm.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// FakeClock is a settable clock for tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock starts a clock at t, normalized to UTC
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FakeIntake returns a create request with realistic intake data
func FakeIntake() *domain.CreateProjectRequest {
	return &domain.CreateProjectRequest{
		School:           gofakeit.Company() + " School",
		ContactPerson:    gofakeit.Name(),
		ContactNumber:    "9" + gofakeit.Numerify("#########"),
		Place:            gofakeit.City(),
		District:         gofakeit.City(),
		Region:           gofakeit.State(),
		ProjectName:      gofakeit.AppName(),
		ParentCompany:    gofakeit.Company(),
		ExecutiveRemarks: gofakeit.Sentence(6),
	}
}

// CreateProjectAt inserts a project directly in the given stage, bypassing
// the workflow. stageSince sets the stage change timestamp.
func CreateProjectAt(t *testing.T, db *gorm.DB, stage domain.ProjectStage, stageSince time.Time) *domain.Project {
	t.Helper()

	owner, ok := domain.OwnerRoleFor(stage)
	if !ok {
		owner = domain.OwnerInstallation
	}
	locked := false
	for _, s := range domain.AllStages {
		if s == domain.StageSales {
			locked = true
		}
		if s == stage {
			break
		}
	}
	since := stageSince.UTC()
	p := &domain.Project{
		School:               gofakeit.Company() + " School",
		ContactPerson:        gofakeit.Name(),
		ContactNumber:        "+919" + gofakeit.Numerify("#########"),
		CreatedBy:            "fixture",
		CreatedByRole:        string(domain.RoleExecutive),
		CurrentStage:         stage,
		CurrentOwnerRole:     owner,
		IsLocked:             locked,
		StageChangeTimestamp: &since,
		StageChangedBy:       "fixture",
		PaymentStatus:        domain.PaymentStatusPending,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
