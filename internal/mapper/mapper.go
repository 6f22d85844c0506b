package mapper

import (
	"time"

	"github.com/incial/crm-api/internal/domain"
	"github.com/shopspring/decimal"
)

const timestampFormat = "2006-01-02T15:04:05Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func formatTimestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTimestamp(*t)
	return &s
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(domain.DateFormat)
	return &s
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// ToProjectDTO converts Project to ProjectDTO. Payment fields come from the
// derived ledger state, not from the cached columns on the project row.
func ToProjectDTO(project *domain.Project, payments []domain.PaymentTransaction, ledger domain.LedgerState) domain.ProjectDTO {
	history := make([]domain.PaymentTransactionDTO, 0, len(payments))
	for i := range payments {
		history = append(history, ToPaymentTransactionDTO(&payments[i]))
	}

	return domain.ProjectDTO{
		ID:               project.ID,
		School:           project.School,
		ContactPerson:    project.ContactPerson,
		ContactNumber:    project.ContactNumber,
		Place:            project.Place,
		District:         project.District,
		Region:           project.Region,
		ProjectName:      project.ProjectName,
		ParentCompany:    project.ParentCompany,
		ExecutiveRemarks: project.ExecutiveRemarks,
		CreatedBy:        project.CreatedBy,
		CreatedAt:        formatTimestamp(project.CreatedAt),

		CurrentStage:         project.CurrentStage,
		PreviousStage:        project.PreviousStage,
		StageChangeTimestamp: formatTimestampPtr(project.StageChangeTimestamp),
		StageChangedBy:       project.StageChangedBy,
		CurrentOwnerRole:     project.CurrentOwnerRole,
		IsLocked:             project.IsLocked,
		ExecutiveViewStatus:  domain.ExecutiveViewStatus(project.CurrentStage),

		ProjectValue:         nullDecimalPtr(project.ProjectValue),
		InvoiceAmount:        nullDecimalPtr(project.InvoiceAmount),
		PendingDelivery:      project.PendingDelivery,
		QuotationRemarks:     project.QuotationRemarks,
		ExpectedDeliveryDate: formatDatePtr(project.ExpectedDeliveryDate),
		SalesRemarks:         project.SalesRemarks,
		SalesUpdatedAt:       formatTimestampPtr(project.SalesUpdatedAt),

		PaymentStatus:  ledger.Status,
		AmountReceived: ledger.TotalReceived,
		PendingAmount:  ledger.Pending,
		PaymentHistory: history,

		InstallationStatus:  project.InstallationStatus,
		InstallationRemarks: project.InstallationRemarks,
		CompletionDate:      formatDatePtr(project.CompletionDate),

		LastUpdatedBy: project.LastUpdatedBy,
		LastUpdatedAt: formatTimestampPtr(project.LastUpdatedAt),
	}
}

// ToPaymentTransactionDTO converts PaymentTransaction to PaymentTransactionDTO
func ToPaymentTransactionDTO(p *domain.PaymentTransaction) domain.PaymentTransactionDTO {
	return domain.PaymentTransactionDTO{
		ID:              p.ID,
		ProjectID:       p.ProjectID,
		AmountPaid:      p.AmountPaid,
		PaymentDate:     p.PaymentDate.UTC().Format(domain.DateFormat),
		PaymentProofRef: p.PaymentProofRef,
		Remarks:         p.Remarks,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       formatTimestamp(p.CreatedAt),
	}
}

// ToStageHistoryDTO converts StageHistoryEntry to StageHistoryDTO
func ToStageHistoryDTO(h *domain.StageHistoryEntry) domain.StageHistoryDTO {
	return domain.StageHistoryDTO{
		ID:                h.ID,
		ProjectID:         h.ProjectID,
		FromStage:         h.FromStage,
		ToStage:           h.ToStage,
		ChangedBy:         h.ChangedBy,
		ChangedByRole:     h.ChangedByRole,
		Remarks:           h.Remarks,
		IsSystemTriggered: h.IsSystemTriggered,
		ChangedAt:         formatTimestamp(h.ChangedAt),
	}
}

// ToActivityLogDTO converts ActivityLogEntry to ActivityLogDTO
func ToActivityLogDTO(a *domain.ActivityLogEntry) domain.ActivityLogDTO {
	return domain.ActivityLogDTO{
		ID:              a.ID,
		ProjectID:       a.ProjectID,
		ActionType:      a.ActionType,
		FieldName:       a.FieldName,
		OldValue:        a.OldValue,
		NewValue:        a.NewValue,
		PerformedBy:     a.PerformedBy,
		PerformedByRole: a.PerformedByRole,
		Remarks:         a.Remarks,
		CreatedAt:       formatTimestamp(a.CreatedAt),
	}
}

// ToAlertDTO converts Alert to AlertDTO. projectName may be empty.
func ToAlertDTO(alert *domain.Alert, projectName string) domain.AlertDTO {
	return domain.AlertDTO{
		ID:          alert.ID,
		ProjectID:   alert.ProjectID,
		ProjectName: projectName,
		AlertType:   alert.AlertType,
		Severity:    alert.Severity,
		Message:     alert.Message,
		DaysOverdue: alert.DaysOverdue,
		IsActive:    alert.IsActive,
		CreatedAt:   formatTimestamp(alert.CreatedAt),
		DismissedAt: formatTimestampPtr(alert.DismissedAt),
		DismissedBy: alert.DismissedBy,
	}
}
