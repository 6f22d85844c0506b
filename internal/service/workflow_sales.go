package service

import (
	"context"
	"fmt"
	"time"

	"github.com/incial/crm-api/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SalesCommand updates the quoting fields of a project. Nil fields are left unchanged.
type SalesCommand struct {
	ProjectValue         *decimal.Decimal
	InvoiceAmount        *decimal.Decimal
	PendingDelivery      *string
	QuotationRemarks     *string
	ExpectedDeliveryDate *time.Time
	SalesRemarks         *string
	Actor                string
	ActorRole            domain.UserRoleType
}

// UpdateSalesData edits sales figures while the project is with sales or
// accounts. A changed invoice in ACCOUNTS re-derives the payment state from
// the ledger; it never triggers a stage change.
func (s *WorkflowService) UpdateSalesData(ctx context.Context, projectID uint, cmd SalesCommand) (*domain.ProjectDTO, error) {
	if cmd.ProjectValue != nil && cmd.ProjectValue.IsNegative() {
		return nil, fmt.Errorf("%w: project value cannot be negative", ErrInvalidAmount)
	}
	if cmd.InvoiceAmount != nil && cmd.InvoiceAmount.IsNegative() {
		return nil, fmt.Errorf("%w: invoice amount cannot be negative", ErrInvalidAmount)
	}
	if cmd.ProjectValue != nil && !domain.IsWholeCents(*cmd.ProjectValue) {
		return nil, fmt.Errorf("%w: project value has more than %d decimal places", ErrInvalidAmount, domain.MoneyPlaces)
	}
	if cmd.InvoiceAmount != nil && !domain.IsWholeCents(*cmd.InvoiceAmount) {
		return nil, fmt.Errorf("%w: invoice amount has more than %d decimal places", ErrInvalidAmount, domain.MoneyPlaces)
	}

	project, err := s.withProjectLock(ctx, projectID, func(w *workflowTx, p *domain.Project) error {
		if p.CurrentStage != domain.StageSales && p.CurrentStage != domain.StageAccounts {
			return fmt.Errorf("%w: sales data can only be updated in %s or %s, project is in %s",
				ErrInvalidState, domain.StageSales, domain.StageAccounts, p.CurrentStage)
		}

		oldInvoice := p.InvoiceAmount
		if cmd.ProjectValue != nil {
			p.ProjectValue = decimal.NewNullDecimal(*cmd.ProjectValue)
		}
		if cmd.InvoiceAmount != nil {
			p.InvoiceAmount = decimal.NewNullDecimal(*cmd.InvoiceAmount)
		}
		if cmd.PendingDelivery != nil {
			p.PendingDelivery = *cmd.PendingDelivery
		}
		if cmd.QuotationRemarks != nil {
			p.QuotationRemarks = *cmd.QuotationRemarks
		}
		if cmd.ExpectedDeliveryDate != nil {
			d := dateOf(*cmd.ExpectedDeliveryDate)
			p.ExpectedDeliveryDate = &d
		}
		if cmd.SalesRemarks != nil {
			p.SalesRemarks = *cmd.SalesRemarks
		}

		now := s.clock.Now()
		p.SalesUpdatedAt = &now
		p.LastUpdatedBy = cmd.Actor
		p.LastUpdatedAt = &now

		invoiceChanged := !nullDecimalEqual(oldInvoice, p.InvoiceAmount)
		if invoiceChanged && p.CurrentStage == domain.StageAccounts {
			ledger, err := w.payments.ListByProject(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("failed to load payment ledger: %w", err)
			}
			applyLedgerState(p, domain.DeriveLedger(p.InvoiceAmount.Decimal, ledger))
		}

		if err := w.projects.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update sales data: %w", err)
		}

		entry := &domain.ActivityLogEntry{
			ProjectID:       p.ID,
			ActionType:      domain.ActivitySalesUpdated,
			PerformedBy:     cmd.Actor,
			PerformedByRole: string(cmd.ActorRole),
			Remarks:         "Sales data updated",
		}
		if invoiceChanged {
			entry.FieldName = "invoiceAmount"
			entry.OldValue = formatNullDecimal(oldInvoice)
			entry.NewValue = formatNullDecimal(p.InvoiceAmount)
		}
		return s.logActivity(ctx, w, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sales data updated",
		zap.Uint("project_id", projectID),
		zap.String("actor", cmd.Actor))

	return projectView(ctx, s.paymentRepo, project)
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
