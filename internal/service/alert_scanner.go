package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ScanResult counts the work done by one alert sweep
type ScanResult struct {
	Evaluated int
	Created   int
	Failed    int
}

// alertRule raises one alert type for projects idle in one stage
type alertRule struct {
	stage     domain.ProjectStage
	alertType domain.AlertType
	severity  domain.AlertSeverity
	threshold int
	message   func(p *domain.Project, ledger domain.LedgerState, days, threshold int) string
}

func (s *AlertService) rules() []alertRule {
	t := s.cfg.Thresholds
	return []alertRule{
		{
			stage:     domain.StageInReview,
			alertType: domain.AlertStageInactivity,
			severity:  domain.SeverityWarning,
			threshold: t.ReviewDays,
			message: func(p *domain.Project, _ domain.LedgerState, days, threshold int) string {
				return fmt.Sprintf("Project '%s' has been in Review stage for %d days (threshold: %d days)",
					p.School, days, threshold)
			},
		},
		{
			stage:     domain.StageAccounts,
			alertType: domain.AlertPaymentDelay,
			severity:  domain.SeverityCritical,
			threshold: t.PaymentDays,
			message: func(p *domain.Project, ledger domain.LedgerState, days, threshold int) string {
				invoice := decimal.Zero
				if p.InvoiceAmount.Valid {
					invoice = p.InvoiceAmount.Decimal
				}
				return fmt.Sprintf("Payment pending for project '%s' for %d days (threshold: %d days). Invoice Amount: ₹%s, Pending: ₹%s",
					p.School, days, threshold, FormatCurrency(invoice), FormatCurrency(ledger.Pending))
			},
		},
		{
			stage:     domain.StageInstallation,
			alertType: domain.AlertInstallationDelay,
			severity:  domain.SeverityCritical,
			threshold: t.InstallationDays,
			message: func(p *domain.Project, _ domain.LedgerState, days, threshold int) string {
				expected := "Not set"
				if p.ExpectedDeliveryDate != nil {
					expected = p.ExpectedDeliveryDate.UTC().Format(domain.DateFormat)
				}
				return fmt.Sprintf("Installation pending for project '%s' for %d days (threshold: %d days). Expected Delivery: %s",
					p.School, days, threshold, expected)
			},
		},
	}
}

// Scan evaluates every delay rule against the projects currently in its
// stage. A failure on one project is logged and counted; the sweep goes on.
func (s *AlertService) Scan(ctx context.Context) (ScanResult, error) {
	var result ScanResult
	start := time.Now()
	now := s.clock.Now()

	s.logger.Info("starting delay alert scan")

	for _, rule := range s.rules() {
		ids, err := s.projectRepo.ListIDsByStage(ctx, rule.stage)
		if err != nil {
			return result, fmt.Errorf("failed to list %s projects: %w", rule.stage, err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			result.Evaluated++
			created, err := s.evaluate(ctx, id, rule, now)
			if err != nil {
				result.Failed++
				s.logger.Error("alert evaluation failed",
					zap.Uint("project_id", id),
					zap.String("alert_type", string(rule.alertType)),
					zap.Error(err))
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetTag("component", "alert_scanner")
					scope.SetTag("alert_type", string(rule.alertType))
					scope.SetExtra("project_id", id)
					sentry.CaptureException(err)
				})
				continue
			}
			if created {
				result.Created++
			}
		}
	}

	s.metrics.RecordScan(time.Since(start), result.Failed)
	if result.Created > 0 {
		s.invalidateSummary(ctx)
	}

	s.logger.Info("delay alert scan completed",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("created", result.Created),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// evaluate re-checks one project under its row lock and raises the rule's
// alert if the project is still overdue and has no active alert of the type.
func (s *AlertService) evaluate(ctx context.Context, projectID uint, rule alertRule, now time.Time) (bool, error) {
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := repository.NewProjectRepository(tx)
		alerts := repository.NewAlertRepository(tx)

		p, err := projects.GetForUpdate(ctx, projectID)
		if err != nil {
			if repository.IsNotFound(err) {
				// Deleted since the candidate list was read
				return nil
			}
			return fmt.Errorf("failed to lock project: %w", err)
		}

		if p.CurrentStage != rule.stage || p.StageChangeTimestamp == nil {
			return nil
		}
		days := wholeDaysBetween(*p.StageChangeTimestamp, now)
		if days <= rule.threshold {
			return nil
		}

		exists, err := alerts.ExistsActive(ctx, p.ID, rule.alertType)
		if err != nil {
			return fmt.Errorf("failed to check existing alerts: %w", err)
		}
		if exists {
			return nil
		}

		ledger := domain.LedgerState{}
		if rule.stage == domain.StageAccounts && p.InvoiceAmount.Valid {
			payments, err := repository.NewPaymentTransactionRepository(tx).ListByProject(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("failed to load payment ledger: %w", err)
			}
			ledger = domain.DeriveLedger(p.InvoiceAmount.Decimal, payments)
		}

		alert := &domain.Alert{
			ProjectID:   p.ID,
			AlertType:   rule.alertType,
			Severity:    rule.severity,
			Message:     rule.message(p, ledger, days, rule.threshold),
			DaysOverdue: days - rule.threshold,
			IsActive:    true,
			CreatedAt:   now,
		}
		if err := alerts.Create(ctx, alert); err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if created {
		s.metrics.RecordAlertCreated(string(rule.alertType))
		s.logger.Info("delay alert created",
			zap.Uint("project_id", projectID),
			zap.String("alert_type", string(rule.alertType)))
	}
	return created, nil
}

// FormatCurrency renders an amount with thousands separators and two decimals
func FormatCurrency(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
