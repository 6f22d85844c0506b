package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/service"
	"github.com/incial/crm-api/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// proofContentTypes lists the accepted payment proof formats
var proofContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

type WorkflowHandler struct {
	workflowService *service.WorkflowService
	projectService  *service.ProjectService
	storage         storage.Storage
	maxUploadMB     int64
	logger          *zap.Logger
}

func NewWorkflowHandler(
	workflowService *service.WorkflowService,
	projectService *service.ProjectService,
	store storage.Storage,
	maxUploadMB int64,
	logger *zap.Logger,
) *WorkflowHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &WorkflowHandler{
		workflowService: workflowService,
		projectService:  projectService,
		storage:         store,
		maxUploadMB:     maxUploadMB,
		logger:          logger,
	}
}

// StageGraph godoc
// @Summary Stage graph
// @Description Stages in lifecycle order, their owning departments and the moves each role may make
// @Tags Workflow
// @Produce json
// @Success 200 {object} domain.StageGraphDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /workflow/graph [get]
func (h *WorkflowHandler) StageGraph(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.Graph())
}

// Transition godoc
// @Summary Move a project to another stage
// @Description The stage graph decides whether the caller's role may make the move. Onboarding hands the project to sales automatically.
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.TransitionRequest true "Target stage"
// @Success 200 {object} domain.ProjectDTO
// @Failure 404 {object} domain.APIError
// @Failure 422 {object} domain.APIError "Transition not permitted"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/transition [post]
func (h *WorkflowHandler) Transition(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req domain.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.workflowService.Transition(r.Context(), id, service.TransitionCommand{
		ToStage:   req.ToStage,
		Remarks:   req.Remarks,
		Actor:     user.UserID,
		ActorRole: user.Role,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to change stage")
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// UpdateSales godoc
// @Summary Update sales figures
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.UpdateSalesRequest true "Sales data"
// @Success 200 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Project is not with sales or accounts"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/sales [put]
func (h *WorkflowHandler) UpdateSales(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req domain.UpdateSalesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cmd := service.SalesCommand{
		ProjectValue:     req.ProjectValue,
		InvoiceAmount:    req.InvoiceAmount,
		PendingDelivery:  req.PendingDelivery,
		QuotationRemarks: req.QuotationRemarks,
		SalesRemarks:     req.SalesRemarks,
		Actor:            user.UserID,
		ActorRole:        user.Role,
	}
	if req.ExpectedDeliveryDate != nil {
		d, err := parseDate(*req.ExpectedDeliveryDate)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		cmd.ExpectedDeliveryDate = d
	}

	project, err := h.workflowService.UpdateSalesData(r.Context(), id, cmd)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update sales data")
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// MarkReadyForAccounts godoc
// @Summary Hand a project to accounts
// @Description Requires project value and invoice amount to be set
// @Tags Workflow
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/ready-for-accounts [post]
func (h *WorkflowHandler) MarkReadyForAccounts(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.workflowService.MarkReadyForAccounts(r.Context(), id, user.UserID, user.Role)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to hand project to accounts")
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// RecordPayment godoc
// @Summary Record a payment
// @Description Accepts JSON, or multipart/form-data with fields amount, paymentDate, remarks and an optional proof file. A fully paid project moves to installation.
// @Tags Workflow
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.RecordPaymentRequest false "Payment (JSON)"
// @Param proof formData file false "Payment proof (pdf, png, jpeg)"
// @Success 201 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Project is not in accounts"
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/payments [post]
func (h *WorkflowHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		req       domain.RecordPaymentRequest
		uploaded  string
		mediaType string
	)
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ = mime.ParseMediaType(ct)
	}

	if mediaType == "multipart/form-data" {
		limit := h.maxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(limit); err != nil {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload too large: maximum size is %dMB", h.maxUploadMB))
			return
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid amount")
			return
		}
		req = domain.RecordPaymentRequest{
			Amount:      amount,
			PaymentDate: r.FormValue("paymentDate"),
			Remarks:     r.FormValue("remarks"),
		}
		if err := validate.Struct(req); err != nil {
			respondValidationError(w, err)
			return
		}

		uploaded, err = h.uploadProof(r, id)
		if err != nil {
			if errors.Is(err, errUnsupportedProof) {
				respondWithError(w, http.StatusUnsupportedMediaType, err.Error())
				return
			}
			h.logger.Error("failed to store payment proof", zap.Uint("project_id", id), zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to store payment proof")
			return
		}
		req.PaymentProofRef = uploaded
	} else if !decodeJSON(w, r, &req) {
		return
	}

	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		h.discardProof(r.Context(), uploaded)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.workflowService.RecordPayment(r.Context(), id, service.PaymentCommand{
		Amount:      req.Amount,
		PaymentDate: paymentDate,
		ProofRef:    req.PaymentProofRef,
		Remarks:     req.Remarks,
		Actor:       user.UserID,
		ActorRole:   user.Role,
	})
	if err != nil {
		h.discardProof(r.Context(), uploaded)
		respondServiceError(w, h.logger, err, "Failed to record payment")
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

var errUnsupportedProof = errors.New("proof must be a PDF, PNG or JPEG file")

// uploadProof stores the optional "proof" file and returns its storage path,
// or "" when the form carries no file
func (h *WorkflowHandler) uploadProof(r *http.Request, projectID uint) (string, error) {
	file, header, err := r.FormFile("proof")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read proof: %w", err)
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if ct, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = ct
	}
	if !proofContentTypes[contentType] {
		return "", errUnsupportedProof
	}
	if h.storage == nil {
		return "", errors.New("proof storage is not configured")
	}

	storagePath, _, err := h.storage.Upload(r.Context(), "payments/"+uintString(projectID), header.Filename, contentType, file)
	if err != nil {
		return "", err
	}
	return storagePath, nil
}

// discardProof removes an upload whose payment was not recorded
func (h *WorkflowHandler) discardProof(ctx context.Context, storagePath string) {
	if storagePath == "" {
		return
	}
	if err := h.storage.Delete(context.WithoutCancel(ctx), storagePath); err != nil {
		h.logger.Warn("failed to remove orphaned payment proof",
			zap.String("path", storagePath),
			zap.Error(err))
	}
}

// DownloadProof godoc
// @Summary Download a payment proof
// @Tags Workflow
// @Produce octet-stream
// @Param id path int true "Project ID"
// @Param paymentId path int true "Payment ID"
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/payments/{paymentId}/proof [get]
func (h *WorkflowHandler) DownloadProof(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	paymentID, err := parseUintParam(r, "paymentId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.projectService.GetPayment(r.Context(), id, paymentID)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get payment")
		return
	}
	if payment.PaymentProofRef == "" || h.storage == nil {
		respondWithError(w, http.StatusNotFound, "Payment has no proof attached")
		return
	}

	reader, err := h.storage.Download(r.Context(), payment.PaymentProofRef)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			respondWithError(w, http.StatusNotFound, "Payment proof not found")
			return
		}
		h.logger.Error("failed to download payment proof", zap.Uint("payment_id", paymentID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to download payment proof")
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(path.Ext(payment.PaymentProofRef))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"payment-%d%s\"", paymentID, path.Ext(payment.PaymentProofRef)))

	_, _ = io.Copy(w, reader)
}

// RecordInstallation godoc
// @Summary Record installation progress
// @Description WORK_DONE completes the project
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.RecordInstallationRequest true "Installation status"
// @Success 200 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Project is not in installation"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/installation [put]
func (h *WorkflowHandler) RecordInstallation(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req domain.RecordInstallationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	completion, err := parseDate(req.CompletionDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.workflowService.RecordInstallation(r.Context(), id, service.InstallationCommand{
		Status:         req.Status,
		Remarks:        req.Remarks,
		CompletionDate: completion,
		Actor:          user.UserID,
		ActorRole:      user.Role,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to record installation")
		return
	}

	respondJSON(w, http.StatusOK, project)
}
