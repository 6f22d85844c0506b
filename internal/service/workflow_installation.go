package service

import (
	"context"
	"fmt"
	"time"

	"github.com/incial/crm-api/internal/domain"
	"go.uber.org/zap"
)

// InstallationCommand records the outcome of on-site work
type InstallationCommand struct {
	Status         domain.InstallationStatus
	Remarks        string
	CompletionDate *time.Time
	Actor          string
	ActorRole      domain.UserRoleType
}

// RecordInstallation stores installation progress. WORK_DONE completes the
// project through a system transition.
func (s *WorkflowService) RecordInstallation(ctx context.Context, projectID uint, cmd InstallationCommand) (*domain.ProjectDTO, error) {
	if !cmd.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown installation status %q", ErrInvalidInput, cmd.Status)
	}

	project, err := s.withProjectLock(ctx, projectID, func(w *workflowTx, p *domain.Project) error {
		if p.CurrentStage != domain.StageInstallation {
			return fmt.Errorf("%w: installation can only be updated in %s, project is in %s",
				ErrInvalidState, domain.StageInstallation, p.CurrentStage)
		}

		now := s.clock.Now()
		var oldStatus string
		if p.InstallationStatus != nil {
			oldStatus = string(*p.InstallationStatus)
		}

		status := cmd.Status
		p.InstallationStatus = &status
		if cmd.Remarks != "" {
			p.InstallationRemarks = cmd.Remarks
		}
		if cmd.CompletionDate != nil {
			d := dateOf(*cmd.CompletionDate)
			p.CompletionDate = &d
		}
		if status == domain.InstallationWorkDone && p.CompletionDate == nil {
			today := dateOf(now)
			p.CompletionDate = &today
		}
		p.LastUpdatedBy = cmd.Actor
		p.LastUpdatedAt = &now

		if err := w.projects.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update installation: %w", err)
		}

		if err := s.logActivity(ctx, w, &domain.ActivityLogEntry{
			ProjectID:       p.ID,
			ActionType:      domain.ActivityInstallationUpdated,
			FieldName:       "installationStatus",
			OldValue:        oldStatus,
			NewValue:        string(status),
			PerformedBy:     cmd.Actor,
			PerformedByRole: string(cmd.ActorRole),
			Remarks:         "Installation data updated",
		}); err != nil {
			return err
		}

		if next, ok := installationFollowOn(p); ok {
			return s.applySystemTransition(ctx, w, p, next.to, next.remarks)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("installation updated",
		zap.Uint("project_id", projectID),
		zap.String("status", string(cmd.Status)),
		zap.String("stage", string(project.CurrentStage)),
		zap.String("actor", cmd.Actor))

	return projectView(ctx, s.paymentRepo, project)
}
