package handler

import (
	"context"
	"net/http"

	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/service"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	logger         *zap.Logger
}

func NewProjectHandler(projectService *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// Create godoc
// @Summary Create project
// @Description Register a new lead. The project starts in LEAD, owned by the executive team.
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body domain.CreateProjectRequest true "Intake data"
// @Success 201 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Contact number already used"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [post]
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projectService.Create(r.Context(), &req, user.UserID, user.Role)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create project")
		return
	}

	w.Header().Set("Location", "/api/v1/projects/"+uintString(project.ID))
	respondJSON(w, http.StatusCreated, project)
}

// Update godoc
// @Summary Update project intake fields
// @Description Only provided fields are changed. Onboarded projects may only be edited by their creator or an admin.
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.UpdateProjectRequest true "Fields to change"
// @Success 200 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req domain.UpdateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projectService.Update(r.Context(), id, &req, user.UserID, user.Role)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update project")
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// Delete godoc
// @Summary Delete project
// @Description Deletes a project that has not been onboarded yet
// @Tags Projects
// @Param id path int true "Project ID"
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.projectService.Delete(r.Context(), id, user.UserID, user.Role); err != nil {
		respondServiceError(w, h.logger, err, "Failed to delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetByID godoc
// @Summary Get project
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} domain.ProjectDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projectService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get project")
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// List godoc
// @Summary List projects
// @Tags Projects
// @Produce json
// @Param stage query string false "Filter by stage"
// @Param ownerRole query string false "Filter by owning department"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProjectDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [get]
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	var stage *domain.ProjectStage
	if raw := r.URL.Query().Get("stage"); raw != "" {
		s := domain.ProjectStage(raw)
		if !s.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid stage: "+raw)
			return
		}
		stage = &s
	}

	var owner *domain.OwnerRole
	if raw := r.URL.Query().Get("ownerRole"); raw != "" {
		o := domain.OwnerRole(raw)
		if !o.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid ownerRole: "+raw)
			return
		}
		owner = &o
	}

	projects, err := h.projectService.ListAll(r.Context(), stage, owner)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list projects")
		return
	}

	respondJSON(w, http.StatusOK, domain.PaginatedResponse{Data: projects, Total: int64(len(projects))})
}

// ListExecutive godoc
// @Summary Executive dashboard
// @Description Every project, each tagged with its executive view status
// @Tags Projects
// @Produce json
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProjectDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/executive [get]
func (h *ProjectHandler) ListExecutive(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, h.projectService.ListExecutive)
}

// ListSales godoc
// @Summary Sales queue
// @Tags Projects
// @Produce json
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProjectDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/sales [get]
func (h *ProjectHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, h.projectService.ListSales)
}

// ListAccounts godoc
// @Summary Accounts queue
// @Tags Projects
// @Produce json
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProjectDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/accounts [get]
func (h *ProjectHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, h.projectService.ListAccounts)
}

// ListInstallation godoc
// @Summary Installation queue
// @Tags Projects
// @Produce json
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProjectDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/installation [get]
func (h *ProjectHandler) ListInstallation(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, h.projectService.ListInstallation)
}

// ListCompleted godoc
// @Summary Completed projects
// @Tags Projects
// @Produce json
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProjectDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/completed [get]
func (h *ProjectHandler) ListCompleted(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r, h.projectService.ListCompleted)
}

func (h *ProjectHandler) listWith(w http.ResponseWriter, r *http.Request, fn func(context.Context) ([]domain.ProjectDTO, error)) {
	projects, err := fn(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list projects")
		return
	}
	respondJSON(w, http.StatusOK, domain.PaginatedResponse{Data: projects, Total: int64(len(projects))})
}

// GetHistory godoc
// @Summary Stage history
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {array} domain.StageHistoryDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/history [get]
func (h *ProjectHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.projectService.GetHistory(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get stage history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// GetActivities godoc
// @Summary Activity log
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {array} domain.ActivityLogDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/activities [get]
func (h *ProjectHandler) GetActivities(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	activities, err := h.projectService.GetActivities(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get activities")
		return
	}
	respondJSON(w, http.StatusOK, activities)
}

// GetPayments godoc
// @Summary Payment history
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {array} domain.PaymentTransactionDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id}/payments [get]
func (h *ProjectHandler) GetPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	payments, err := h.projectService.GetPayments(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get payments")
		return
	}
	respondJSON(w, http.StatusOK, payments)
}
