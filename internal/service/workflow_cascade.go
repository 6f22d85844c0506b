package service

import "github.com/incial/crm-api/internal/domain"

// Remarks recorded on workflow history entries
const (
	remarksAutoAssignSales  = "Auto-assigned to Sales Coordinator"
	remarksPaymentCompleted = "Payment completed, moving to installation"
	remarksWorkCompleted    = "Work completed"
	remarksReadyForAccounts = "Ready for accounts processing"
	remarksInitialStage     = "Initial stage"
)

type followOn struct {
	to      domain.ProjectStage
	remarks string
}

// cascadeFollowOn evaluates the automation rules against the state produced
// by a user-driven transition and returns at most one follow-on.
func cascadeFollowOn(p *domain.Project) (followOn, bool) {
	switch p.CurrentStage {
	case domain.StageOnboarded:
		return followOn{to: domain.StageSales, remarks: remarksAutoAssignSales}, true
	}
	return followOn{}, false
}

// paymentFollowOn moves a fully paid project on to installation
func paymentFollowOn(p *domain.Project, state domain.LedgerState) (followOn, bool) {
	if p.CurrentStage == domain.StageAccounts && state.Status == domain.PaymentStatusCompleted {
		return followOn{to: domain.StageInstallation, remarks: remarksPaymentCompleted}, true
	}
	return followOn{}, false
}

// installationFollowOn completes a project once on-site work is done
func installationFollowOn(p *domain.Project) (followOn, bool) {
	if p.CurrentStage == domain.StageInstallation &&
		p.InstallationStatus != nil && *p.InstallationStatus == domain.InstallationWorkDone {
		return followOn{to: domain.StageCompleted, remarks: remarksWorkCompleted}, true
	}
	return followOn{}, false
}
