package service

import (
	"context"
	"fmt"

	"github.com/incial/crm-api/internal/auth"
	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/metrics"
	"github.com/incial/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransitionCommand is a caller-initiated stage change
type TransitionCommand struct {
	ToStage   domain.ProjectStage
	Remarks   string
	Actor     string
	ActorRole domain.UserRoleType
}

// workflowTx groups the repositories bound to one locked unit of work and
// collects side effects that must only be published after commit.
type workflowTx struct {
	projectID uint

	projects   *repository.ProjectRepository
	history    *repository.StageHistoryRepository
	activities *repository.ActivityRepository
	payments   *repository.PaymentTransactionRepository
	alerts     *repository.AlertRepository

	transitions      []transitionRecord
	paymentsRecorded int
	alertsDismissed  map[domain.AlertType]int64
}

type transitionRecord struct {
	from   domain.ProjectStage
	to     domain.ProjectStage
	system bool
}

func newWorkflowTx(tx *gorm.DB) *workflowTx {
	return &workflowTx{
		projects:   repository.NewProjectRepository(tx),
		history:    repository.NewStageHistoryRepository(tx),
		activities: repository.NewActivityRepository(tx),
		payments:   repository.NewPaymentTransactionRepository(tx),
		alerts:     repository.NewAlertRepository(tx),
	}
}

// WorkflowService owns every write that moves a project through its stages:
// transitions, the automation cascade, the payment ledger, sales data and
// installation updates. All of them run under the project's row lock.
type WorkflowService struct {
	db          *gorm.DB
	paymentRepo *repository.PaymentTransactionRepository
	alerts      *AlertService
	metrics     *metrics.Metrics
	clock       Clock
	logger      *zap.Logger
}

func NewWorkflowService(
	db *gorm.DB,
	paymentRepo *repository.PaymentTransactionRepository,
	alerts *AlertService,
	m *metrics.Metrics,
	clock Clock,
	logger *zap.Logger,
) *WorkflowService {
	if clock == nil {
		clock = SystemClock()
	}
	return &WorkflowService{
		db:          db,
		paymentRepo: paymentRepo,
		alerts:      alerts,
		metrics:     m,
		clock:       clock,
		logger:      logger,
	}
}

// Transition moves a project to cmd.ToStage if the stage graph allows the
// actor's role to do so, then applies at most one automatic follow-on.
func (s *WorkflowService) Transition(ctx context.Context, projectID uint, cmd TransitionCommand) (*domain.ProjectDTO, error) {
	if cmd.Actor == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}

	var from domain.ProjectStage
	project, err := s.withProjectLock(ctx, projectID, func(w *workflowTx, p *domain.Project) error {
		from = p.CurrentStage
		if !domain.CanTransition(cmd.ActorRole, p.CurrentStage, cmd.ToStage) {
			if domain.HasEdge(p.CurrentStage, cmd.ToStage) {
				return fmt.Errorf("%w: role %s cannot move project from %s to %s",
					ErrInvalidTransition, cmd.ActorRole, p.CurrentStage, cmd.ToStage)
			}
			return fmt.Errorf("%w: no step from %s to %s",
				ErrInvalidTransition, p.CurrentStage, cmd.ToStage)
		}
		return s.transitionWithCascade(ctx, w, p, cmd)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project stage changed",
		zap.Uint("project_id", projectID),
		zap.String("from", string(from)),
		zap.String("to", string(project.CurrentStage)),
		zap.String("actor", cmd.Actor),
		zap.String("role", string(cmd.ActorRole)))

	return projectView(ctx, s.paymentRepo, project)
}

// withProjectLock runs fn in a transaction that holds the project's row lock.
// fn may mutate p; the caller receives the committed state.
func (s *WorkflowService) withProjectLock(ctx context.Context, projectID uint, fn func(w *workflowTx, p *domain.Project) error) (*domain.Project, error) {
	var (
		locked *domain.Project
		w      *workflowTx
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w = newWorkflowTx(tx)
		w.projectID = projectID
		p, err := w.projects.GetForUpdate(ctx, projectID)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: %d", ErrProjectNotFound, projectID)
			}
			return fmt.Errorf("failed to load project: %w", err)
		}
		if err := fn(w, p); err != nil {
			return err
		}
		locked = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, w)
	return locked, nil
}

// publish emits metrics and cache invalidations for a committed unit of work
func (s *WorkflowService) publish(ctx context.Context, w *workflowTx) {
	for _, t := range w.transitions {
		s.metrics.RecordTransition(string(t.from), string(t.to), t.system)
	}
	for i := 0; i < w.paymentsRecorded; i++ {
		s.metrics.RecordPayment()
	}
	for alertType, n := range w.alertsDismissed {
		s.alerts.autoDismissed(ctx, w.projectID, alertType, n)
	}
}

// transitionWithCascade is the two-step pipeline: apply the user-driven
// transition, then evaluate the cascade rules once against the new state.
// The follow-on is applied as a system transition and never cascades.
func (s *WorkflowService) transitionWithCascade(ctx context.Context, w *workflowTx, p *domain.Project, cmd TransitionCommand) error {
	if err := s.applyTransition(ctx, w, p, cmd.ToStage, cmd.Actor, string(cmd.ActorRole), cmd.Remarks, false); err != nil {
		return err
	}

	next, ok := cascadeFollowOn(p)
	if !ok {
		return nil
	}
	return s.applySystemTransition(ctx, w, p, next.to, next.remarks)
}

// applySystemTransition performs a transition on behalf of SYSTEM. Graph
// validation is skipped; a failure here means the rule tables are broken.
func (s *WorkflowService) applySystemTransition(ctx context.Context, w *workflowTx, p *domain.Project, to domain.ProjectStage, remarks string) error {
	from := p.CurrentStage
	if err := s.applyTransition(ctx, w, p, to, domain.SystemActor, string(domain.RoleSystem), remarks, true); err != nil {
		s.logger.Error("system-triggered transition failed",
			zap.Uint("project_id", p.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err))
		return fmt.Errorf("%w: system transition %s -> %s: %w", ErrInternalConsistency, from, to, err)
	}
	return nil
}

// applyTransition writes one stage change: project fields, history, activity
// and the retirement of alerts bound to the stage being left.
func (s *WorkflowService) applyTransition(
	ctx context.Context,
	w *workflowTx,
	p *domain.Project,
	to domain.ProjectStage,
	actor string,
	actorRole string,
	remarks string,
	system bool,
) error {
	from := p.CurrentStage
	if !to.IsValid() || from == to {
		return fmt.Errorf("%w: cannot move project from %s to %s", ErrInvalidTransition, from, to)
	}

	now := s.clock.Now()
	prev := from
	p.PreviousStage = &prev
	p.CurrentStage = to
	p.StageChangeTimestamp = &now
	p.StageChangedBy = actor
	if owner, ok := domain.OwnerRoleFor(to); ok {
		p.CurrentOwnerRole = owner
	}
	if domain.LocksProject(to) {
		p.IsLocked = true
	}
	p.LastUpdatedBy = actor
	p.LastUpdatedAt = &now

	if err := w.projects.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to update project stage: %w", err)
	}

	if err := w.history.RecordTransition(ctx, p.ID, &prev, to, actor, actorRole, remarks, system, now); err != nil {
		return fmt.Errorf("failed to record stage history: %w", err)
	}

	if err := s.logActivity(ctx, w, &domain.ActivityLogEntry{
		ProjectID:       p.ID,
		ActionType:      domain.ActivityStageChanged,
		FieldName:       "currentStage",
		OldValue:        string(from),
		NewValue:        string(to),
		PerformedBy:     actor,
		PerformedByRole: actorRole,
		Remarks:         remarks,
	}); err != nil {
		return err
	}

	if s.alerts != nil {
		alertType, dismissed, err := s.alerts.dismissForStageExit(ctx, w.alerts, p.ID, from, now)
		if err != nil {
			return err
		}
		if dismissed > 0 {
			if w.alertsDismissed == nil {
				w.alertsDismissed = make(map[domain.AlertType]int64)
			}
			w.alertsDismissed[alertType] += dismissed
		}
	}

	w.transitions = append(w.transitions, transitionRecord{from: from, to: to, system: system})
	return nil
}

// logActivity appends to the activity log, stamping time and client IP
func (s *WorkflowService) logActivity(ctx context.Context, w *workflowTx, entry *domain.ActivityLogEntry) error {
	entry.CreatedAt = s.clock.Now()
	entry.IPAddress = auth.ClientIPFromContext(ctx)
	if err := w.activities.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return nil
}
