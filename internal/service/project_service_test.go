package service_test

import (
	"context"
	"testing"

	"github.com/incial/crm-api/internal/auth"
	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/service"
	"github.com/incial/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestProjectService_Create(t *testing.T) {
	env := setupEnv(t)
	ctx := auth.WithClientIP(context.Background(), "10.1.2.3")

	req := testutil.FakeIntake()
	req.ContactNumber = "81234 56789"

	dto, err := env.projects.Create(ctx, req, execUser, domain.RoleExecutive)
	require.NoError(t, err)

	assert.Equal(t, req.School, dto.School)
	assert.Equal(t, "+918123456789", dto.ContactNumber)
	assert.Equal(t, domain.StageLead, dto.CurrentStage)
	assert.Equal(t, domain.OwnerExecutive, dto.CurrentOwnerRole)
	assert.False(t, dto.IsLocked)
	assert.Equal(t, execUser, dto.CreatedBy)
	assert.Equal(t, domain.PaymentStatusPending, dto.PaymentStatus)
	assert.Equal(t, domain.ExecutiveViewNonOnboarded, dto.ExecutiveViewStatus)
	assert.NotNil(t, dto.StageChangeTimestamp)
	assert.Empty(t, dto.PaymentHistory)

	activities := env.activities(t, dto.ID)
	require.Len(t, activities, 1)
	assert.Equal(t, domain.ActivityCreated, activities[0].ActionType)
	assert.Equal(t, "Project created", activities[0].Remarks)
	assert.Equal(t, "10.1.2.3", activities[0].IPAddress)

	history := env.history(t, dto.ID)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStage)
	assert.Equal(t, domain.StageLead, history[0].ToStage)
	assert.False(t, history[0].IsSystemTriggered)

	t.Run("duplicate contact number", func(t *testing.T) {
		dup := testutil.FakeIntake()
		dup.ContactNumber = "+91 81234-56789"
		_, err := env.projects.Create(ctx, dup, execUser, domain.RoleExecutive)
		assert.ErrorIs(t, err, service.ErrDuplicateContact)
	})

	t.Run("blank contact numbers do not collide", func(t *testing.T) {
		a := testutil.FakeIntake()
		a.ContactNumber = ""
		b := testutil.FakeIntake()
		b.ContactNumber = ""
		_, err := env.projects.Create(ctx, a, execUser, domain.RoleExecutive)
		require.NoError(t, err)
		_, err = env.projects.Create(ctx, b, execUser, domain.RoleExecutive)
		require.NoError(t, err)
	})

	t.Run("missing actor", func(t *testing.T) {
		_, err := env.projects.Create(ctx, testutil.FakeIntake(), "", domain.RoleExecutive)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}

func TestProjectService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("executive edits an early project", func(t *testing.T) {
		env := setupEnv(t)
		lead := env.createLead(t)

		dto, err := env.projects.Update(ctx, lead.ID, &domain.UpdateProjectRequest{
			Place: strPtr("Kochi"),
		}, "exec-2", domain.RoleExecutive)
		require.NoError(t, err)
		assert.Equal(t, "Kochi", dto.Place)
		assert.Equal(t, lead.School, dto.School)
		assert.Equal(t, "exec-2", dto.LastUpdatedBy)

		updates, err := env.activityRepo.ListByAction(ctx, lead.ID, domain.ActivityFieldUpdated)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Equal(t, "Project details updated", updates[0].Remarks)
	})

	t.Run("only the creator edits an onboarded project", func(t *testing.T) {
		env := setupEnv(t)
		lead := env.createLead(t)
		env.onboard(t, lead.ID)

		_, err := env.projects.Update(ctx, lead.ID, &domain.UpdateProjectRequest{Place: strPtr("x")}, "exec-2", domain.RoleExecutive)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)

		_, err = env.projects.Update(ctx, lead.ID, &domain.UpdateProjectRequest{Place: strPtr("Thrissur")}, execUser, domain.RoleExecutive)
		require.NoError(t, err)

		updates, err := env.activityRepo.ListByAction(ctx, lead.ID, domain.ActivityFieldUpdated)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Equal(t, "Project executive fields updated", updates[0].Remarks)
	})

	t.Run("admins bypass ownership", func(t *testing.T) {
		env := setupEnv(t)
		lead := env.createLead(t)
		env.onboard(t, lead.ID)

		_, err := env.projects.Update(ctx, lead.ID, &domain.UpdateProjectRequest{District: strPtr("Ernakulam")}, adminUser, domain.RoleAdmin)
		require.NoError(t, err)
	})

	t.Run("non-executive roles are denied", func(t *testing.T) {
		env := setupEnv(t)
		lead := env.createLead(t)

		_, err := env.projects.Update(ctx, lead.ID, &domain.UpdateProjectRequest{Place: strPtr("x")}, salesUser, domain.RoleSalesCoordinator)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("completed projects are frozen", func(t *testing.T) {
		env := setupEnv(t)
		p := testutil.CreateProjectAt(t, env.db, domain.StageCompleted, testStart)

		_, err := env.projects.Update(ctx, p.ID, &domain.UpdateProjectRequest{Place: strPtr("x")}, adminUser, domain.RoleSuperAdmin)
		assert.ErrorIs(t, err, service.ErrInvalidState)
		assert.Empty(t, env.activities(t, p.ID))
	})

	t.Run("contact number must stay unique", func(t *testing.T) {
		env := setupEnv(t)
		first := env.createLead(t)
		second := env.createLead(t)

		_, err := env.projects.Update(ctx, second.ID, &domain.UpdateProjectRequest{
			ContactNumber: strPtr(first.ContactNumber),
		}, execUser, domain.RoleExecutive)
		assert.ErrorIs(t, err, service.ErrDuplicateContact)

		_, err = env.projects.Update(ctx, first.ID, &domain.UpdateProjectRequest{
			ContactNumber: strPtr(first.ContactNumber),
		}, execUser, domain.RoleExecutive)
		assert.NoError(t, err)
	})
}

func TestProjectService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("creator deletes a lead", func(t *testing.T) {
		env := setupEnv(t)
		lead := env.createLead(t)

		require.NoError(t, env.projects.Delete(ctx, lead.ID, execUser, domain.RoleExecutive))

		_, err := env.projects.GetByID(ctx, lead.ID)
		assert.ErrorIs(t, err, service.ErrProjectNotFound)

		deleted, err := env.activityRepo.ListByAction(ctx, lead.ID, domain.ActivityDeleted)
		require.NoError(t, err)
		require.Len(t, deleted, 1)
		assert.Equal(t, "Project deleted from LEAD stage", deleted[0].Remarks)
		assert.Len(t, env.history(t, lead.ID), 1)
	})

	t.Run("other executives cannot delete", func(t *testing.T) {
		env := setupEnv(t)
		lead := env.createLead(t)
		err := env.projects.Delete(ctx, lead.ID, "exec-2", domain.RoleExecutive)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("admin deletes in review", func(t *testing.T) {
		env := setupEnv(t)
		p := testutil.CreateProjectAt(t, env.db, domain.StageInReview, testStart)
		require.NoError(t, env.projects.Delete(ctx, p.ID, adminUser, domain.RoleAdmin))
	})

	t.Run("onboarded projects cannot be deleted", func(t *testing.T) {
		for _, stage := range []domain.ProjectStage{domain.StageSales, domain.StageAccounts, domain.StageCompleted} {
			env := setupEnv(t)
			p := testutil.CreateProjectAt(t, env.db, stage, testStart)
			err := env.projects.Delete(ctx, p.ID, adminUser, domain.RoleSuperAdmin)
			assert.ErrorIs(t, err, service.ErrPermissionDenied, "stage %s", stage)
			env.reload(t, p.ID)
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		env := setupEnv(t)
		err := env.projects.Delete(ctx, 777, adminUser, domain.RoleAdmin)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestProjectService_Queries(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	lead := env.createLead(t)
	sales := env.createLead(t)
	env.onboard(t, sales.ID)
	accounts := env.createLead(t)
	env.onboard(t, accounts.ID)
	env.toAccounts(t, accounts.ID, 800)
	_, err := env.pay(accounts.ID, 300)
	require.NoError(t, err)
	completed := testutil.CreateProjectAt(t, env.db, domain.StageCompleted, testStart)

	t.Run("by stage", func(t *testing.T) {
		got, err := env.projects.ListByStage(ctx, domain.StageLead)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, lead.ID, got[0].ID)

		_, err = env.projects.ListByStage(ctx, "NOPE")
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("sales sees sales and accounts", func(t *testing.T) {
		got, err := env.projects.ListSales(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("accounts carries derived ledger", func(t *testing.T) {
		got, err := env.projects.ListAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "500.00", money(got[0].PendingAmount))
		assert.Equal(t, domain.PaymentStatusPartial, got[0].PaymentStatus)
		assert.Len(t, got[0].PaymentHistory, 1)
	})

	t.Run("by owner", func(t *testing.T) {
		got, err := env.projects.ListByOwnerRole(ctx, domain.OwnerSales)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, sales.ID, got[0].ID)
	})

	t.Run("executive view status", func(t *testing.T) {
		got, err := env.projects.ListExecutive(ctx)
		require.NoError(t, err)
		require.Len(t, got, 4)

		status := map[uint]string{}
		for _, p := range got {
			status[p.ID] = p.ExecutiveViewStatus
		}
		assert.Equal(t, domain.ExecutiveViewNonOnboarded, status[lead.ID])
		assert.Equal(t, domain.ExecutiveViewOnboardedActive, status[sales.ID])
		assert.Equal(t, domain.ExecutiveViewOnboardedActive, status[accounts.ID])
		assert.Equal(t, domain.ExecutiveViewCompleted, status[completed.ID])
	})

	t.Run("completed", func(t *testing.T) {
		got, err := env.projects.ListCompleted(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, completed.ID, got[0].ID)
	})

	t.Run("history activities and payments", func(t *testing.T) {
		history, err := env.projects.GetHistory(ctx, accounts.ID)
		require.NoError(t, err)
		assert.Len(t, history, 7)
		assert.Equal(t, domain.StageAccounts, history[0].ToStage)

		activities, err := env.projects.GetActivities(ctx, accounts.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ActivityPaymentAdded, activities[0].ActionType)

		payments, err := env.projects.GetPayments(ctx, accounts.ID)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, "300.00", money(payments[0].AmountPaid))

		_, err = env.projects.GetHistory(ctx, 5555)
		assert.ErrorIs(t, err, service.ErrProjectNotFound)
	})

	t.Run("single payment lookup", func(t *testing.T) {
		payments, err := env.projects.GetPayments(ctx, accounts.ID)
		require.NoError(t, err)

		got, err := env.projects.GetPayment(ctx, accounts.ID, payments[0].ID)
		require.NoError(t, err)
		assert.Equal(t, accounts.ID, got.ProjectID)

		_, err = env.projects.GetPayment(ctx, lead.ID, payments[0].ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}
