package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseModel contains common fields for all models
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// ProjectStage is one phase of the fixed project lifecycle
type ProjectStage string

const (
	StageLead          ProjectStage = "LEAD"
	StageOnProgress    ProjectStage = "ON_PROGRESS"
	StageQuotationSent ProjectStage = "QUOTATION_SENT"
	StageInReview      ProjectStage = "IN_REVIEW"
	StageOnboarded     ProjectStage = "ONBOARDED"
	StageSales         ProjectStage = "SALES"
	StageAccounts      ProjectStage = "ACCOUNTS"
	StageInstallation  ProjectStage = "INSTALLATION"
	StageCompleted     ProjectStage = "COMPLETED"
)

// AllStages lists the stages in lifecycle order
var AllStages = []ProjectStage{
	StageLead,
	StageOnProgress,
	StageQuotationSent,
	StageInReview,
	StageOnboarded,
	StageSales,
	StageAccounts,
	StageInstallation,
	StageCompleted,
}

// IsValid checks if the ProjectStage is a valid enum value
func (s ProjectStage) IsValid() bool {
	switch s {
	case StageLead, StageOnProgress, StageQuotationSent, StageInReview, StageOnboarded,
		StageSales, StageAccounts, StageInstallation, StageCompleted:
		return true
	}
	return false
}

// IsPreOnboarding reports whether the stage is still owned by the executive team
func (s ProjectStage) IsPreOnboarding() bool {
	switch s {
	case StageLead, StageOnProgress, StageQuotationSent, StageInReview:
		return true
	}
	return false
}

// IsOnboardedOrLater reports whether the stage is ONBOARDED through INSTALLATION.
// COMPLETED is handled separately by callers.
func (s ProjectStage) IsOnboardedOrLater() bool {
	switch s {
	case StageOnboarded, StageSales, StageAccounts, StageInstallation:
		return true
	}
	return false
}

// OwnerRole is the department currently responsible for a project
type OwnerRole string

const (
	OwnerExecutive    OwnerRole = "EXECUTIVE"
	OwnerSales        OwnerRole = "SALES"
	OwnerAccounts     OwnerRole = "ACCOUNTS"
	OwnerInstallation OwnerRole = "INSTALLATION"
)

// IsValid checks if the OwnerRole is a valid enum value
func (o OwnerRole) IsValid() bool {
	switch o {
	case OwnerExecutive, OwnerSales, OwnerAccounts, OwnerInstallation:
		return true
	}
	return false
}

// PaymentStatus is derived from the payment ledger
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPartial   PaymentStatus = "PARTIAL"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
)

// InstallationStatus represents the state of on-site work
type InstallationStatus string

const (
	InstallationPending  InstallationStatus = "PENDING"
	InstallationWorkDone InstallationStatus = "WORK_DONE"
	InstallationNotDone  InstallationStatus = "NOT_DONE"
)

// IsValid checks if the InstallationStatus is a valid enum value
func (s InstallationStatus) IsValid() bool {
	switch s {
	case InstallationPending, InstallationWorkDone, InstallationNotDone:
		return true
	}
	return false
}

// Project is the aggregate root tracked through the workflow
type Project struct {
	BaseModel

	// Intake
	School           string `gorm:"type:varchar(200);not null"`
	ContactPerson    string `gorm:"type:varchar(200);column:contact_person"`
	ContactNumber    string `gorm:"type:varchar(32);index;column:contact_number"`
	Place            string `gorm:"type:varchar(200)"`
	District         string `gorm:"type:varchar(100)"`
	Region           string `gorm:"type:varchar(100)"`
	ProjectName      string `gorm:"type:varchar(200);column:project_name"`
	ParentCompany    string `gorm:"type:varchar(200);column:parent_company"`
	ExecutiveRemarks string `gorm:"type:text;column:executive_remarks"`
	CreatedBy        string `gorm:"type:varchar(100);not null;column:created_by"`
	CreatedByRole    string `gorm:"type:varchar(50);column:created_by_role"`

	// Workflow
	CurrentStage         ProjectStage  `gorm:"type:varchar(30);not null;index;column:current_stage"`
	PreviousStage        *ProjectStage `gorm:"type:varchar(30);column:previous_stage"`
	StageChangeTimestamp *time.Time    `gorm:"column:stage_change_timestamp"`
	StageChangedBy       string        `gorm:"type:varchar(100);column:stage_changed_by"`
	CurrentOwnerRole     OwnerRole     `gorm:"type:varchar(30);not null;index;column:current_owner_role"`
	IsLocked             bool          `gorm:"not null;default:false;column:is_locked"`

	// Sales
	ProjectValue         decimal.NullDecimal `gorm:"type:numeric(15,2);column:project_value"`
	InvoiceAmount        decimal.NullDecimal `gorm:"type:numeric(15,2);column:invoice_amount"`
	PendingDelivery      string              `gorm:"type:text;column:pending_delivery"`
	QuotationRemarks     string              `gorm:"type:text;column:quotation_remarks"`
	ExpectedDeliveryDate *time.Time          `gorm:"type:date;column:expected_delivery_date"`
	SalesRemarks         string              `gorm:"type:text;column:sales_remarks"`
	SalesUpdatedAt       *time.Time          `gorm:"column:sales_updated_at"`

	// Accounts (derived from the payment ledger)
	PaymentStatus  PaymentStatus   `gorm:"type:varchar(20);not null;default:'PENDING';column:payment_status"`
	AmountReceived decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0;column:amount_received"`
	PendingAmount  decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0;column:pending_amount"`

	// Installation
	InstallationStatus  *InstallationStatus `gorm:"type:varchar(20);column:installation_status"`
	InstallationRemarks string              `gorm:"type:text;column:installation_remarks"`
	CompletionDate      *time.Time          `gorm:"type:date;column:completion_date"`

	LastUpdatedBy string     `gorm:"type:varchar(100);column:last_updated_by"`
	LastUpdatedAt *time.Time `gorm:"column:last_updated_at"`
}

// TableName overrides the default table name
func (Project) TableName() string {
	return "projects"
}

// PaymentTransaction is an immutable entry in a project's payment ledger
type PaymentTransaction struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"`
	ProjectID       uint            `gorm:"not null;index;column:project_id"`
	AmountPaid      decimal.Decimal `gorm:"type:numeric(15,2);not null;column:amount_paid"`
	PaymentDate     time.Time       `gorm:"type:date;not null;column:payment_date"`
	PaymentProofRef string          `gorm:"type:varchar(500);column:payment_proof_ref"`
	Remarks         string          `gorm:"type:text"`
	CreatedBy       string          `gorm:"type:varchar(100);not null;column:created_by"`
	CreatedAt       time.Time       `gorm:"not null;column:created_at"`
}

// TableName overrides the default table name
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// StageHistoryEntry records one stage transition. Entries are append-only.
type StageHistoryEntry struct {
	ID                uint          `gorm:"primaryKey;autoIncrement"`
	ProjectID         uint          `gorm:"not null;index;column:project_id"`
	FromStage         *ProjectStage `gorm:"type:varchar(30);column:from_stage"`
	ToStage           ProjectStage  `gorm:"type:varchar(30);not null;column:to_stage"`
	ChangedBy         string        `gorm:"type:varchar(100);not null;column:changed_by"`
	ChangedByRole     string        `gorm:"type:varchar(50);column:changed_by_role"`
	Remarks           string        `gorm:"type:text"`
	IsSystemTriggered bool          `gorm:"not null;default:false;column:is_system_triggered"`
	ChangedAt         time.Time     `gorm:"not null;index;column:changed_at"`
}

// TableName overrides the default table name to match the migration
func (StageHistoryEntry) TableName() string {
	return "project_stage_history"
}

// ActivityAction represents the kind of mutation recorded in the activity log
type ActivityAction string

const (
	ActivityCreated             ActivityAction = "CREATED"
	ActivityFieldUpdated        ActivityAction = "FIELD_UPDATED"
	ActivityStageChanged        ActivityAction = "STAGE_CHANGED"
	ActivitySalesUpdated        ActivityAction = "SALES_UPDATED"
	ActivityPaymentAdded        ActivityAction = "PAYMENT_ADDED"
	ActivityInstallationUpdated ActivityAction = "INSTALLATION_UPDATED"
	ActivityDeleted             ActivityAction = "DELETED"
)

// ActivityLogEntry is the append-only audit trail of project mutations
type ActivityLogEntry struct {
	ID              uint           `gorm:"primaryKey;autoIncrement"`
	ProjectID       uint           `gorm:"not null;index;column:project_id"`
	ActionType      ActivityAction `gorm:"type:varchar(30);not null;column:action_type"`
	FieldName       string         `gorm:"type:varchar(100);column:field_name"`
	OldValue        string         `gorm:"type:text;column:old_value"`
	NewValue        string         `gorm:"type:text;column:new_value"`
	PerformedBy     string         `gorm:"type:varchar(100);not null;column:performed_by"`
	PerformedByRole string         `gorm:"type:varchar(50);column:performed_by_role"`
	Remarks         string         `gorm:"type:text"`
	IPAddress       string         `gorm:"type:varchar(64);column:ip_address"`
	CreatedAt       time.Time      `gorm:"not null;index;column:created_at"`
}

// TableName overrides the default table name
func (ActivityLogEntry) TableName() string {
	return "project_activity_logs"
}

// AlertType identifies the rule that raised an alert
type AlertType string

const (
	AlertStageInactivity   AlertType = "STAGE_INACTIVITY"
	AlertPaymentDelay      AlertType = "PAYMENT_DELAY"
	AlertInstallationDelay AlertType = "INSTALLATION_DELAY"
	// DUPLICATE_LEAD and UNAUTHORIZED_EDIT have no generating rule yet
	AlertDuplicateLead    AlertType = "DUPLICATE_LEAD"
	AlertUnauthorizedEdit AlertType = "UNAUTHORIZED_EDIT"
)

// IsValid checks if the AlertType is a valid enum value
func (t AlertType) IsValid() bool {
	switch t {
	case AlertStageInactivity, AlertPaymentDelay, AlertInstallationDelay, AlertDuplicateLead, AlertUnauthorizedEdit:
		return true
	}
	return false
}

// AlertSeverity ranks how urgent an alert is
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "INFO"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// Alert is raised when a project stays in a stage past its threshold.
// An alert goes from active to dismissed once and is never reactivated.
type Alert struct {
	ID          uint          `gorm:"primaryKey;autoIncrement"`
	ProjectID   uint          `gorm:"not null;index:idx_project_alerts_project_type;column:project_id"`
	AlertType   AlertType     `gorm:"type:varchar(30);not null;index:idx_project_alerts_project_type;column:alert_type"`
	Severity    AlertSeverity `gorm:"type:varchar(20);not null"`
	Message     string        `gorm:"type:text;not null"`
	DaysOverdue int           `gorm:"not null;default:0;column:days_overdue"`
	IsActive    bool          `gorm:"not null;default:true;index;column:is_active"`
	CreatedAt   time.Time     `gorm:"not null;column:created_at"`
	DismissedAt *time.Time    `gorm:"column:dismissed_at"`
	DismissedBy string        `gorm:"type:varchar(100);column:dismissed_by"`
}

// TableName overrides the default table name
func (Alert) TableName() string {
	return "project_alerts"
}

// UserRoleType represents the single authorization role a caller acts with
type UserRoleType string

const (
	RoleExecutive        UserRoleType = "EXECUTIVE"
	RoleSalesCoordinator UserRoleType = "SALES_COORDINATOR"
	RoleAccounts         UserRoleType = "ACCOUNTS"
	RoleInstallation     UserRoleType = "INSTALLATION"
	RoleAdmin            UserRoleType = "ADMIN"
	RoleSuperAdmin       UserRoleType = "SUPER_ADMIN"
	RoleSystem           UserRoleType = "SYSTEM"
)

// SystemActor is the identity recorded for changes made by the core itself
const SystemActor = "SYSTEM"

// WorkflowRoles lists every role a human caller may hold
var WorkflowRoles = []UserRoleType{
	RoleExecutive,
	RoleSalesCoordinator,
	RoleAccounts,
	RoleInstallation,
	RoleAdmin,
	RoleSuperAdmin,
}

// IsValid checks if the UserRoleType is a valid enum value
func (r UserRoleType) IsValid() bool {
	switch r {
	case RoleExecutive, RoleSalesCoordinator, RoleAccounts, RoleInstallation, RoleAdmin, RoleSuperAdmin, RoleSystem:
		return true
	}
	return false
}

// IsAdmin reports whether the role belongs to one of the admin tiers
func (r UserRoleType) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}
