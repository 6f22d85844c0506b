package domain

import (
	"github.com/shopspring/decimal"
)

// DateFormat is the layout used for calendar-date fields in requests and responses
const DateFormat = "2006-01-02"

// ProjectDTO is the API representation of a project with its derived payment state
type ProjectDTO struct {
	ID uint `json:"id"`

	School           string `json:"school"`
	ContactPerson    string `json:"contactPerson,omitempty"`
	ContactNumber    string `json:"contactNumber,omitempty"`
	Place            string `json:"place,omitempty"`
	District         string `json:"district,omitempty"`
	Region           string `json:"region,omitempty"`
	ProjectName      string `json:"projectName,omitempty"`
	ParentCompany    string `json:"parentCompany,omitempty"`
	ExecutiveRemarks string `json:"executiveRemarks,omitempty"`
	CreatedBy        string `json:"createdBy"`
	CreatedAt        string `json:"createdAt"` // ISO 8601

	CurrentStage         ProjectStage  `json:"currentStage"`
	PreviousStage        *ProjectStage `json:"previousStage,omitempty"`
	StageChangeTimestamp *string       `json:"stageChangeTimestamp,omitempty"`
	StageChangedBy       string        `json:"stageChangedBy,omitempty"`
	CurrentOwnerRole     OwnerRole     `json:"currentOwnerRole"`
	IsLocked             bool          `json:"isLocked"`
	ExecutiveViewStatus  string        `json:"executiveViewStatus,omitempty"`

	ProjectValue         *decimal.Decimal `json:"projectValue,omitempty"`
	InvoiceAmount        *decimal.Decimal `json:"invoiceAmount,omitempty"`
	PendingDelivery      string           `json:"pendingDelivery,omitempty"`
	QuotationRemarks     string           `json:"quotationRemarks,omitempty"`
	ExpectedDeliveryDate *string          `json:"expectedDeliveryDate,omitempty"`
	SalesRemarks         string           `json:"salesRemarks,omitempty"`
	SalesUpdatedAt       *string          `json:"salesUpdatedAt,omitempty"`

	PaymentStatus  PaymentStatus           `json:"paymentStatus"`
	AmountReceived decimal.Decimal         `json:"amountReceived"`
	PendingAmount  decimal.Decimal         `json:"pendingAmount"`
	PaymentHistory []PaymentTransactionDTO `json:"paymentHistory"`

	InstallationStatus  *InstallationStatus `json:"installationStatus,omitempty"`
	InstallationRemarks string              `json:"installationRemarks,omitempty"`
	CompletionDate      *string             `json:"completionDate,omitempty"`

	LastUpdatedBy string  `json:"lastUpdatedBy,omitempty"`
	LastUpdatedAt *string `json:"lastUpdatedAt,omitempty"`
}

// Executive view statuses
const (
	ExecutiveViewNonOnboarded    = "NON_ONBOARDED"
	ExecutiveViewOnboardedActive = "ONBOARDED_ACTIVE"
	ExecutiveViewCompleted       = "COMPLETED"
)

type PaymentTransactionDTO struct {
	ID              uint            `json:"id"`
	ProjectID       uint            `json:"projectId"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	PaymentDate     string          `json:"paymentDate"`
	PaymentProofRef string          `json:"paymentProofRef,omitempty"`
	Remarks         string          `json:"remarks,omitempty"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       string          `json:"createdAt"`
}

type StageHistoryDTO struct {
	ID                uint          `json:"id"`
	ProjectID         uint          `json:"projectId"`
	FromStage         *ProjectStage `json:"fromStage"`
	ToStage           ProjectStage  `json:"toStage"`
	ChangedBy         string        `json:"changedBy"`
	ChangedByRole     string        `json:"changedByRole,omitempty"`
	Remarks           string        `json:"remarks,omitempty"`
	IsSystemTriggered bool          `json:"isSystemTriggered"`
	ChangedAt         string        `json:"changedAt"`
}

type ActivityLogDTO struct {
	ID              uint           `json:"id"`
	ProjectID       uint           `json:"projectId"`
	ActionType      ActivityAction `json:"actionType"`
	FieldName       string         `json:"fieldName,omitempty"`
	OldValue        string         `json:"oldValue,omitempty"`
	NewValue        string         `json:"newValue,omitempty"`
	PerformedBy     string         `json:"performedBy"`
	PerformedByRole string         `json:"performedByRole,omitempty"`
	Remarks         string         `json:"remarks,omitempty"`
	CreatedAt       string         `json:"createdAt"`
}

type AlertDTO struct {
	ID          uint          `json:"id"`
	ProjectID   uint          `json:"projectId"`
	ProjectName string        `json:"projectName,omitempty"`
	AlertType   AlertType     `json:"alertType"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	DaysOverdue int           `json:"daysOverdue"`
	IsActive    bool          `json:"isActive"`
	CreatedAt   string        `json:"createdAt"`
	DismissedAt *string       `json:"dismissedAt,omitempty"`
	DismissedBy string        `json:"dismissedBy,omitempty"`
}

// AlertSummaryDTO counts active alerts by severity and by type
type AlertSummaryDTO struct {
	TotalAlerts    int64               `json:"totalAlerts"`
	CriticalAlerts int64               `json:"criticalAlerts"`
	WarningAlerts  int64               `json:"warningAlerts"`
	InfoAlerts     int64               `json:"infoAlerts"`
	ByType         map[AlertType]int64 `json:"byType"`
}

// ScanResultDTO reports the outcome of one alert sweep
type ScanResultDTO struct {
	Evaluated int `json:"evaluated"`
	Created   int `json:"created"`
	Failed    int `json:"failed"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Request DTOs

type CreateProjectRequest struct {
	School           string `json:"school" validate:"required,max=200"`
	ContactPerson    string `json:"contactPerson,omitempty" validate:"max=200"`
	ContactNumber    string `json:"contactNumber,omitempty" validate:"max=32"`
	Place            string `json:"place,omitempty" validate:"max=200"`
	District         string `json:"district,omitempty" validate:"max=100"`
	Region           string `json:"region,omitempty" validate:"max=100"`
	ProjectName      string `json:"projectName,omitempty" validate:"max=200"`
	ParentCompany    string `json:"parentCompany,omitempty" validate:"max=200"`
	ExecutiveRemarks string `json:"executiveRemarks,omitempty"`
}

// UpdateProjectRequest only carries intake fields. Nil fields are left unchanged.
type UpdateProjectRequest struct {
	School           *string `json:"school,omitempty" validate:"omitempty,min=1,max=200"`
	ContactPerson    *string `json:"contactPerson,omitempty" validate:"omitempty,max=200"`
	ContactNumber    *string `json:"contactNumber,omitempty" validate:"omitempty,max=32"`
	Place            *string `json:"place,omitempty" validate:"omitempty,max=200"`
	District         *string `json:"district,omitempty" validate:"omitempty,max=100"`
	Region           *string `json:"region,omitempty" validate:"omitempty,max=100"`
	ProjectName      *string `json:"projectName,omitempty" validate:"omitempty,max=200"`
	ParentCompany    *string `json:"parentCompany,omitempty" validate:"omitempty,max=200"`
	ExecutiveRemarks *string `json:"executiveRemarks,omitempty"`
}

type TransitionRequest struct {
	ToStage ProjectStage `json:"toStage" validate:"required"`
	Remarks string       `json:"remarks,omitempty" validate:"max=1000"`
}

type UpdateSalesRequest struct {
	ProjectValue         *decimal.Decimal `json:"projectValue,omitempty"`
	InvoiceAmount        *decimal.Decimal `json:"invoiceAmount,omitempty"`
	PendingDelivery      *string          `json:"pendingDelivery,omitempty"`
	QuotationRemarks     *string          `json:"quotationRemarks,omitempty"`
	ExpectedDeliveryDate *string          `json:"expectedDeliveryDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SalesRemarks         *string          `json:"salesRemarks,omitempty"`
}

type RecordPaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     string          `json:"paymentDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentProofRef string          `json:"paymentProofRef,omitempty" validate:"max=500"`
	Remarks         string          `json:"remarks,omitempty" validate:"max=1000"`
}

type RecordInstallationRequest struct {
	Status         InstallationStatus `json:"installationStatus" validate:"required,oneof=PENDING WORK_DONE NOT_DONE"`
	Remarks        string             `json:"installationRemarks,omitempty" validate:"max=1000"`
	CompletionDate string             `json:"completionDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// StageEdgeDTO is one permitted user-driven move
type StageEdgeDTO struct {
	From  ProjectStage   `json:"from"`
	To    ProjectStage   `json:"to"`
	Roles []UserRoleType `json:"roles"`
}

// StageGraphDTO describes the workflow: stages in order, their owners and
// the edges users may take. SUPER_ADMIN may make any move.
type StageGraphDTO struct {
	Stages []ProjectStage             `json:"stages"`
	Owners map[ProjectStage]OwnerRole `json:"owners"`
	Edges  []StageEdgeDTO             `json:"edges"`
}

// PaginatedResponse wraps list results
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
}
