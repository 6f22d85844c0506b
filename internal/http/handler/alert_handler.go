package handler

import (
	"net/http"

	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/service"
	"go.uber.org/zap"
)

type AlertHandler struct {
	alertService *service.AlertService
	logger       *zap.Logger
}

func NewAlertHandler(alertService *service.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		logger:       logger,
	}
}

// ListActive godoc
// @Summary List active alerts
// @Tags Alerts
// @Produce json
// @Success 200 {array} domain.AlertDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /alerts [get]
func (h *AlertHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alertService.ListActive(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list alerts")
		return
	}
	respondJSON(w, http.StatusOK, alerts)
}

// Summary godoc
// @Summary Active alert counts
// @Tags Alerts
// @Produce json
// @Success 200 {object} domain.AlertSummaryDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /alerts/summary [get]
func (h *AlertHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.alertService.Summary(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to summarize alerts")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ListForProject godoc
// @Summary Active alerts of a project
// @Tags Alerts
// @Produce json
// @Param projectId path int true "Project ID"
// @Param includeDismissed query bool false "Include dismissed alerts"
// @Success 200 {array} domain.AlertDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /alerts/project/{projectId} [get]
func (h *AlertHandler) ListForProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseUintParam(r, "projectId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	list := h.alertService.ListForProject
	if r.URL.Query().Get("includeDismissed") == "true" {
		list = h.alertService.HistoryForProject
	}
	alerts, err := list(r.Context(), projectID)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list project alerts")
		return
	}
	respondJSON(w, http.StatusOK, alerts)
}

// Dismiss godoc
// @Summary Dismiss an alert
// @Tags Alerts
// @Produce json
// @Param alertId path int true "Alert ID"
// @Success 200 {object} domain.AlertDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Already dismissed"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /alerts/{alertId}/dismiss [post]
func (h *AlertHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	alertID, err := parseUintParam(r, "alertId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.alertService.Dismiss(r.Context(), alertID, user.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to dismiss alert")
		return
	}
	respondJSON(w, http.StatusOK, alert)
}

// Generate godoc
// @Summary Run the delay alert scan now
// @Tags Alerts
// @Produce json
// @Success 200 {object} domain.ScanResultDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /alerts/generate [post]
func (h *AlertHandler) Generate(w http.ResponseWriter, r *http.Request) {
	result, err := h.alertService.Scan(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "Alert scan failed")
		return
	}
	respondJSON(w, http.StatusOK, domain.ScanResultDTO{
		Evaluated: result.Evaluated,
		Created:   result.Created,
		Failed:    result.Failed,
	})
}
