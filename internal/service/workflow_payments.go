package service

import (
	"context"
	"fmt"
	"time"

	"github.com/incial/crm-api/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentCommand appends one payment to a project's ledger
type PaymentCommand struct {
	Amount      decimal.Decimal
	PaymentDate *time.Time
	ProofRef    string
	Remarks     string
	Actor       string
	ActorRole   domain.UserRoleType
}

// RecordPayment appends a payment, re-derives the project's payment state
// from the full ledger and moves a fully paid project on to installation.
func (s *WorkflowService) RecordPayment(ctx context.Context, projectID uint, cmd PaymentCommand) (*domain.ProjectDTO, error) {
	var state domain.LedgerState

	project, err := s.withProjectLock(ctx, projectID, func(w *workflowTx, p *domain.Project) error {
		if p.CurrentStage != domain.StageAccounts {
			return fmt.Errorf("%w: payments can only be recorded in %s, project is in %s",
				ErrInvalidState, domain.StageAccounts, p.CurrentStage)
		}
		if !cmd.Amount.IsPositive() {
			return ErrInvalidAmount
		}
		if !domain.IsWholeCents(cmd.Amount) {
			return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, cmd.Amount, domain.MoneyPlaces)
		}
		if !p.InvoiceAmount.Valid {
			return fmt.Errorf("%w: invoice amount is not set", ErrInvalidField)
		}

		now := s.clock.Now()
		paymentDate := dateOf(now)
		if cmd.PaymentDate != nil {
			paymentDate = dateOf(*cmd.PaymentDate)
		}

		payment := &domain.PaymentTransaction{
			ProjectID:       p.ID,
			AmountPaid:      cmd.Amount,
			PaymentDate:     paymentDate,
			PaymentProofRef: cmd.ProofRef,
			Remarks:         cmd.Remarks,
			CreatedBy:       cmd.Actor,
			CreatedAt:       now,
		}
		if err := w.payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		w.paymentsRecorded++

		ledger, err := w.payments.ListByProject(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to load payment ledger: %w", err)
		}
		state = domain.DeriveLedger(p.InvoiceAmount.Decimal, ledger)
		applyLedgerState(p, state)
		p.LastUpdatedBy = cmd.Actor
		p.LastUpdatedAt = &now

		if err := w.projects.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update payment state: %w", err)
		}

		if err := s.logActivity(ctx, w, &domain.ActivityLogEntry{
			ProjectID:       p.ID,
			ActionType:      domain.ActivityPaymentAdded,
			FieldName:       "amountReceived",
			NewValue:        state.TotalReceived.StringFixed(2),
			PerformedBy:     cmd.Actor,
			PerformedByRole: string(cmd.ActorRole),
			Remarks: fmt.Sprintf("Payment added: ₹%s | Total: ₹%s | Pending: ₹%s",
				cmd.Amount.StringFixed(2), state.TotalReceived.StringFixed(2), state.Pending.StringFixed(2)),
		}); err != nil {
			return err
		}

		if next, ok := paymentFollowOn(p, state); ok {
			return s.applySystemTransition(ctx, w, p, next.to, next.remarks)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		zap.Uint("project_id", projectID),
		zap.String("amount", cmd.Amount.StringFixed(2)),
		zap.String("total", state.TotalReceived.StringFixed(2)),
		zap.String("pending", state.Pending.StringFixed(2)),
		zap.String("status", string(state.Status)),
		zap.String("actor", cmd.Actor))

	return projectView(ctx, s.paymentRepo, project)
}

// MarkReadyForAccounts checks that the sales figures are in place, seeds
// the pending amount and hands the project to accounts. The hand-off is a
// user transition validated against the stage graph.
func (s *WorkflowService) MarkReadyForAccounts(ctx context.Context, projectID uint, actor string, role domain.UserRoleType) (*domain.ProjectDTO, error) {
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}

	project, err := s.withProjectLock(ctx, projectID, func(w *workflowTx, p *domain.Project) error {
		if !p.ProjectValue.Valid || !p.InvoiceAmount.Valid {
			return fmt.Errorf("%w: project value and invoice amount are required before moving to accounts", ErrInvalidField)
		}

		ledger, err := w.payments.ListByProject(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to load payment ledger: %w", err)
		}
		applyLedgerState(p, domain.DeriveLedger(p.InvoiceAmount.Decimal, ledger))

		if !domain.CanTransition(role, p.CurrentStage, domain.StageAccounts) {
			return fmt.Errorf("%w: role %s cannot move project from %s to %s",
				ErrInvalidTransition, role, p.CurrentStage, domain.StageAccounts)
		}

		return s.transitionWithCascade(ctx, w, p, TransitionCommand{
			ToStage:   domain.StageAccounts,
			Remarks:   remarksReadyForAccounts,
			Actor:     actor,
			ActorRole: role,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project ready for accounts",
		zap.Uint("project_id", projectID),
		zap.String("actor", actor))

	return projectView(ctx, s.paymentRepo, project)
}

// applyLedgerState copies derived payment state onto the project row
func applyLedgerState(p *domain.Project, state domain.LedgerState) {
	p.AmountReceived = state.TotalReceived
	p.PendingAmount = state.Pending
	p.PaymentStatus = state.Status
}
