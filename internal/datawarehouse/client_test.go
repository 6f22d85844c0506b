package datawarehouse

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantDB   string
	}{
		{"host port and database", "dw.example.net:1444/reporting", "dw.example.net:1444", "reporting"},
		{"default port", "dw.example.net/reporting", "dw.example.net:1433", "reporting"},
		{"no database", "dw.example.net:1433", "dw.example.net:1433", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := buildConnectionString(&config.DataWarehouseConfig{URL: tt.url, User: "crm", Password: "p@ss/word"})
			require.NoError(t, err)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "sqlserver", u.Scheme)
			assert.Equal(t, tt.wantHost, u.Host)
			assert.Equal(t, "crm", u.User.Username())
			pw, _ := u.User.Password()
			assert.Equal(t, "p@ss/word", pw)
			assert.Equal(t, tt.wantDB, u.Query().Get("database"))
			assert.Equal(t, "true", u.Query().Get("encrypt"))
		})
	}

	_, err := buildConnectionString(&config.DataWarehouseConfig{URL: ":1433/reporting"})
	assert.Error(t, err)
}

func TestNewClient_DisabledOrIncomplete(t *testing.T) {
	c, err := NewClient(&config.DataWarehouseConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewClient(&config.DataWarehouseConfig{Enabled: true, URL: "dw:1433/crm"}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)

	assert.False(t, c.IsEnabled())
	assert.Equal(t, "disabled", c.HealthCheck(context.Background()).Status)
	assert.NoError(t, c.Close())

	_, err = c.ExportSnapshots(context.Background(), []ProjectSnapshot{{ProjectID: 1}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSnapshotFromProject(t *testing.T) {
	invoice := decimal.NewFromInt(1000)
	status := domain.InstallationPending
	changed := "2026-03-02T09:30:00Z"
	exported := time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)

	s := SnapshotFromProject(domain.ProjectDTO{
		ID:                   7,
		School:               "St. Mary's School",
		Region:               "Central",
		CurrentStage:         domain.StageInstallation,
		CurrentOwnerRole:     domain.OwnerInstallation,
		InvoiceAmount:        &invoice,
		AmountReceived:       decimal.NewFromInt(1000),
		PendingAmount:        decimal.Zero,
		PaymentStatus:        domain.PaymentStatusCompleted,
		InstallationStatus:   &status,
		StageChangeTimestamp: &changed,
	}, exported)

	assert.Equal(t, uint(7), s.ProjectID)
	assert.Equal(t, "INSTALLATION", s.Stage)
	assert.Equal(t, "INSTALLATION", s.OwnerRole)
	assert.Equal(t, "PENDING", s.InstallationStatus)
	require.NotNil(t, s.StageChangedAt)
	assert.True(t, s.StageChangedAt.Equal(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, exported, s.ExportedAt)

	args := mergeArgs(s)
	require.Len(t, args, 13)
	assert.Equal(t, int64(7), args[0])
	assert.False(t, nullDecimal(s.ProjectValue).Valid)
	assert.Equal(t, "1000.00", nullDecimal(s.InvoiceAmount).String)
	assert.Equal(t, "0.00", args[8])
	assert.Contains(t, mergeStatement, SnapshotTable)
}
