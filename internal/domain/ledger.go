package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the scale of every stored amount (NUMERIC(15,2))
const MoneyPlaces = 2

// IsWholeCents reports whether d can be stored without rounding
func IsWholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// LedgerState is the payment state derived from a project's full ledger
type LedgerState struct {
	TotalReceived decimal.Decimal
	Pending       decimal.Decimal
	Status        PaymentStatus
}

// DeriveLedger recomputes received, pending and status from every payment.
// Pending never goes below zero; overpayment counts as COMPLETED.
func DeriveLedger(invoice decimal.Decimal, payments []PaymentTransaction) LedgerState {
	total := SumPayments(payments)

	pending := invoice.Sub(total)
	if pending.IsNegative() {
		pending = decimal.Zero
	}

	status := PaymentStatusPending
	switch {
	case pending.IsZero():
		status = PaymentStatusCompleted
	case total.IsPositive():
		status = PaymentStatusPartial
	}

	return LedgerState{TotalReceived: total, Pending: pending, Status: status}
}

// SumPayments adds up the amount of every payment
func SumPayments(payments []PaymentTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.AmountPaid)
	}
	return total
}

// ExecutiveViewStatus groups a stage for the executive dashboard
func ExecutiveViewStatus(stage ProjectStage) string {
	switch {
	case stage == StageCompleted:
		return ExecutiveViewCompleted
	case stage.IsPreOnboarding():
		return ExecutiveViewNonOnboarded
	default:
		return ExecutiveViewOnboardedActive
	}
}
