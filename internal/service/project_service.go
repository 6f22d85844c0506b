package service

import (
	"context"
	"fmt"

	"github.com/incial/crm-api/internal/auth"
	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/mapper"
	"github.com/incial/crm-api/internal/phone"
	"github.com/incial/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectService handles project intake, executive edits, deletion and all
// read paths. Stage changes go through WorkflowService.
type ProjectService struct {
	projectRepo  *repository.ProjectRepository
	paymentRepo  *repository.PaymentTransactionRepository
	historyRepo  *repository.StageHistoryRepository
	activityRepo *repository.ActivityRepository
	phoneRegion  string
	clock        Clock
	logger       *zap.Logger
	db           *gorm.DB
}

func NewProjectService(
	projectRepo *repository.ProjectRepository,
	paymentRepo *repository.PaymentTransactionRepository,
	historyRepo *repository.StageHistoryRepository,
	activityRepo *repository.ActivityRepository,
	phoneRegion string,
	clock Clock,
	logger *zap.Logger,
	db *gorm.DB,
) *ProjectService {
	if clock == nil {
		clock = SystemClock()
	}
	if phoneRegion == "" {
		phoneRegion = phone.DefaultRegion
	}
	return &ProjectService{
		projectRepo:  projectRepo,
		paymentRepo:  paymentRepo,
		historyRepo:  historyRepo,
		activityRepo: activityRepo,
		phoneRegion:  phoneRegion,
		clock:        clock,
		logger:       logger,
		db:           db,
	}
}

// Create registers a new lead owned by the executive team
func (s *ProjectService) Create(ctx context.Context, req *domain.CreateProjectRequest, actor string, role domain.UserRoleType) (*domain.ProjectDTO, error) {
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}

	contact := phone.Normalize(req.ContactNumber, s.phoneRegion)
	now := s.clock.Now()

	project := &domain.Project{
		School:               req.School,
		ContactPerson:        req.ContactPerson,
		ContactNumber:        contact,
		Place:                req.Place,
		District:             req.District,
		Region:               req.Region,
		ProjectName:          req.ProjectName,
		ParentCompany:        req.ParentCompany,
		ExecutiveRemarks:     req.ExecutiveRemarks,
		CreatedBy:            actor,
		CreatedByRole:        string(role),
		CurrentStage:         domain.StageLead,
		CurrentOwnerRole:     domain.OwnerExecutive,
		IsLocked:             false,
		StageChangeTimestamp: &now,
		StageChangedBy:       actor,
		PaymentStatus:        domain.PaymentStatusPending,
		LastUpdatedBy:        actor,
		LastUpdatedAt:        &now,
	}
	project.CreatedAt = now
	project.UpdatedAt = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := repository.NewProjectRepository(tx)

		if contact != "" {
			exists, err := projects.ExistsByContactNumber(ctx, contact, 0)
			if err != nil {
				return fmt.Errorf("failed to check contact number: %w", err)
			}
			if exists {
				return ErrDuplicateContact
			}
		}

		if err := projects.Create(ctx, project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		if err := repository.NewStageHistoryRepository(tx).RecordTransition(ctx, project.ID, nil, domain.StageLead,
			actor, string(role), remarksInitialStage, false, now); err != nil {
			return fmt.Errorf("failed to record initial stage: %w", err)
		}

		return s.logActivity(ctx, repository.NewActivityRepository(tx), &domain.ActivityLogEntry{
			ProjectID:       project.ID,
			ActionType:      domain.ActivityCreated,
			PerformedBy:     actor,
			PerformedByRole: string(role),
			Remarks:         "Project created",
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		zap.Uint("project_id", project.ID),
		zap.String("school", project.School),
		zap.String("created_by", actor))

	return projectView(ctx, s.paymentRepo, project)
}

// Update edits intake fields. Admin tiers may edit any open project; other
// callers must be executives, and once a project is onboarded only its
// creator may edit it.
func (s *ProjectService) Update(ctx context.Context, id uint, req *domain.UpdateProjectRequest, actor string, role domain.UserRoleType) (*domain.ProjectDTO, error) {
	var project *domain.Project

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := repository.NewProjectRepository(tx)

		p, err := projects.GetForUpdate(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: %d", ErrProjectNotFound, id)
			}
			return fmt.Errorf("failed to get project: %w", err)
		}

		if p.CurrentStage == domain.StageCompleted {
			return fmt.Errorf("%w: completed projects cannot be edited", ErrInvalidState)
		}
		onboarded := p.CurrentStage.IsOnboardedOrLater()
		if !role.IsAdmin() {
			if onboarded && p.CreatedBy != actor {
				return fmt.Errorf("%w: only the project creator can edit onboarded projects", ErrPermissionDenied)
			}
			if role != domain.RoleExecutive {
				return fmt.Errorf("%w: only executives and admins can edit projects", ErrPermissionDenied)
			}
		}

		if req.ContactNumber != nil {
			contact := phone.Normalize(*req.ContactNumber, s.phoneRegion)
			if contact != "" && contact != p.ContactNumber {
				exists, err := projects.ExistsByContactNumber(ctx, contact, p.ID)
				if err != nil {
					return fmt.Errorf("failed to check contact number: %w", err)
				}
				if exists {
					return ErrDuplicateContact
				}
			}
			p.ContactNumber = contact
		}
		if req.School != nil {
			p.School = *req.School
		}
		if req.ContactPerson != nil {
			p.ContactPerson = *req.ContactPerson
		}
		if req.Place != nil {
			p.Place = *req.Place
		}
		if req.District != nil {
			p.District = *req.District
		}
		if req.Region != nil {
			p.Region = *req.Region
		}
		if req.ProjectName != nil {
			p.ProjectName = *req.ProjectName
		}
		if req.ParentCompany != nil {
			p.ParentCompany = *req.ParentCompany
		}
		if req.ExecutiveRemarks != nil {
			p.ExecutiveRemarks = *req.ExecutiveRemarks
		}

		now := s.clock.Now()
		p.LastUpdatedBy = actor
		p.LastUpdatedAt = &now

		if err := projects.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		remarks := "Project details updated"
		if onboarded {
			remarks = "Project executive fields updated"
		}
		if err := s.logActivity(ctx, repository.NewActivityRepository(tx), &domain.ActivityLogEntry{
			ProjectID:       p.ID,
			ActionType:      domain.ActivityFieldUpdated,
			PerformedBy:     actor,
			PerformedByRole: string(role),
			Remarks:         remarks,
		}); err != nil {
			return err
		}

		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return projectView(ctx, s.paymentRepo, project)
}

// Delete removes a project that has not been onboarded yet. History and
// activity rows are kept.
func (s *ProjectService) Delete(ctx context.Context, id uint, actor string, role domain.UserRoleType) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := repository.NewProjectRepository(tx)

		p, err := projects.GetForUpdate(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: %d", ErrProjectNotFound, id)
			}
			return fmt.Errorf("failed to get project: %w", err)
		}

		if p.CreatedBy != actor && !role.IsAdmin() {
			return fmt.Errorf("%w: only the project creator can delete this project", ErrPermissionDenied)
		}
		if !p.CurrentStage.IsPreOnboarding() {
			return fmt.Errorf("%w: cannot delete a project that has been onboarded", ErrPermissionDenied)
		}

		if err := s.logActivity(ctx, repository.NewActivityRepository(tx), &domain.ActivityLogEntry{
			ProjectID:       p.ID,
			ActionType:      domain.ActivityDeleted,
			PerformedBy:     actor,
			PerformedByRole: string(role),
			Remarks:         fmt.Sprintf("Project deleted from %s stage", p.CurrentStage),
		}); err != nil {
			return err
		}

		return projects.Delete(ctx, p.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("project deleted",
		zap.Uint("project_id", id),
		zap.String("deleted_by", actor))
	return nil
}

// GetByID returns a project with its payment history and derived payment state
func (s *ProjectService) GetByID(ctx context.Context, id uint) (*domain.ProjectDTO, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return projectView(ctx, s.paymentRepo, project)
}

// ListAll returns every project, optionally narrowed by stage and owner role
func (s *ProjectService) ListAll(ctx context.Context, stage *domain.ProjectStage, owner *domain.OwnerRole) ([]domain.ProjectDTO, error) {
	filter := repository.ProjectFilter{OwnerRole: owner}
	if stage != nil {
		filter.Stages = []domain.ProjectStage{*stage}
	}
	return s.list(ctx, filter)
}

// ListByStage returns projects currently in one stage
func (s *ProjectService) ListByStage(ctx context.Context, stage domain.ProjectStage) ([]domain.ProjectDTO, error) {
	if !stage.IsValid() {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, stage)
	}
	return s.list(ctx, repository.ProjectFilter{Stages: []domain.ProjectStage{stage}})
}

// ListByOwnerRole returns projects owned by one department
func (s *ProjectService) ListByOwnerRole(ctx context.Context, owner domain.OwnerRole) ([]domain.ProjectDTO, error) {
	if !owner.IsValid() {
		return nil, fmt.Errorf("%w: unknown owner role %q", ErrInvalidInput, owner)
	}
	return s.list(ctx, repository.ProjectFilter{OwnerRole: &owner})
}

// ListExecutive returns every project; each DTO carries its executive view status
func (s *ProjectService) ListExecutive(ctx context.Context) ([]domain.ProjectDTO, error) {
	return s.list(ctx, repository.ProjectFilter{})
}

// ListSales returns projects with the sales team or waiting on accounts
func (s *ProjectService) ListSales(ctx context.Context) ([]domain.ProjectDTO, error) {
	return s.list(ctx, repository.ProjectFilter{Stages: []domain.ProjectStage{domain.StageSales, domain.StageAccounts}})
}

func (s *ProjectService) ListAccounts(ctx context.Context) ([]domain.ProjectDTO, error) {
	return s.ListByStage(ctx, domain.StageAccounts)
}

func (s *ProjectService) ListInstallation(ctx context.Context) ([]domain.ProjectDTO, error) {
	return s.ListByStage(ctx, domain.StageInstallation)
}

func (s *ProjectService) ListCompleted(ctx context.Context) ([]domain.ProjectDTO, error) {
	return s.ListByStage(ctx, domain.StageCompleted)
}

// GetHistory returns the stage history of a project, newest first
func (s *ProjectService) GetHistory(ctx context.Context, id uint) ([]domain.StageHistoryDTO, error) {
	if _, err := s.getProject(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.historyRepo.ListByProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage history: %w", err)
	}
	dtos := make([]domain.StageHistoryDTO, 0, len(entries))
	for i := range entries {
		dtos = append(dtos, mapper.ToStageHistoryDTO(&entries[i]))
	}
	return dtos, nil
}

// GetActivities returns the activity log of a project, newest first
func (s *ProjectService) GetActivities(ctx context.Context, id uint) ([]domain.ActivityLogDTO, error) {
	if _, err := s.getProject(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.activityRepo.ListByProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get activities: %w", err)
	}
	dtos := make([]domain.ActivityLogDTO, 0, len(entries))
	for i := range entries {
		dtos = append(dtos, mapper.ToActivityLogDTO(&entries[i]))
	}
	return dtos, nil
}

// GetPayments returns the payment ledger of a project
func (s *ProjectService) GetPayments(ctx context.Context, id uint) ([]domain.PaymentTransactionDTO, error) {
	if _, err := s.getProject(ctx, id); err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.ListByProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	dtos := make([]domain.PaymentTransactionDTO, 0, len(payments))
	for i := range payments {
		dtos = append(dtos, mapper.ToPaymentTransactionDTO(&payments[i]))
	}
	return dtos, nil
}

// GetPayment returns one payment of a project
func (s *ProjectService) GetPayment(ctx context.Context, projectID, paymentID uint) (*domain.PaymentTransaction, error) {
	payment, err := s.paymentRepo.GetByID(ctx, projectID, paymentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: payment %d", ErrNotFound, paymentID)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// Snapshots returns every project with its derived payment state, for reporting
func (s *ProjectService) Snapshots(ctx context.Context) ([]domain.ProjectDTO, error) {
	return s.list(ctx, repository.ProjectFilter{})
}

func (s *ProjectService) getProject(ctx context.Context, id uint) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrProjectNotFound, id)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (s *ProjectService) list(ctx context.Context, filter repository.ProjectFilter) ([]domain.ProjectDTO, error) {
	projects, err := s.projectRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	ids := make([]uint, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	ledgers, err := s.paymentRepo.ListByProjects(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	dtos := make([]domain.ProjectDTO, 0, len(projects))
	for i := range projects {
		payments := ledgers[projects[i].ID]
		dtos = append(dtos, mapper.ToProjectDTO(&projects[i], payments, readLedger(&projects[i], payments)))
	}
	return dtos, nil
}

func (s *ProjectService) logActivity(ctx context.Context, repo *repository.ActivityRepository, entry *domain.ActivityLogEntry) error {
	entry.CreatedAt = s.clock.Now()
	entry.IPAddress = auth.ClientIPFromContext(ctx)
	if err := repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return nil
}

// projectView loads a project's payments and maps it with freshly derived
// payment state
func projectView(ctx context.Context, payments *repository.PaymentTransactionRepository, p *domain.Project) (*domain.ProjectDTO, error) {
	ledger, err := payments.ListByProject(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	dto := mapper.ToProjectDTO(p, ledger, readLedger(p, ledger))
	return &dto, nil
}

// readLedger derives payment state for display. Without an invoice there is
// nothing pending and the stored status is kept.
func readLedger(p *domain.Project, payments []domain.PaymentTransaction) domain.LedgerState {
	if p.InvoiceAmount.Valid {
		return domain.DeriveLedger(p.InvoiceAmount.Decimal, payments)
	}
	status := p.PaymentStatus
	if status == "" {
		status = domain.PaymentStatusPending
	}
	return domain.LedgerState{
		TotalReceived: domain.SumPayments(payments),
		Status:        status,
	}
}
