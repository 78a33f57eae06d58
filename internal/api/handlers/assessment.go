package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/azgovernor/azgovernor/internal/api/dto"
	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/pkg/errors"
	"github.com/azgovernor/azgovernor/internal/pkg/logger"
	"github.com/azgovernor/azgovernor/internal/pkg/utils"
	"github.com/azgovernor/azgovernor/internal/pkg/validator"
)

type AssessmentHandler struct {
	service   assessment.Service
	repo      assessment.Repository
	logger    *logger.Logger
	validator *validator.Validator
}

func NewAssessmentHandler(service assessment.Service, repo assessment.Repository, log *logger.Logger, val *validator.Validator) *AssessmentHandler {
	return &AssessmentHandler{service: service, repo: repo, logger: log, validator: val}
}

// Start accepts a new assessment for asynchronous execution
func (h *AssessmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}
	if verrs := h.validator.Validate(req); len(verrs) > 0 {
		utils.WriteError(w, errors.ValidationError("Invalid assessment request", verrs))
		return
	}

	id, err := h.service.StartAssessment(r.Context(), req.ToRequest())
	if err != nil {
		writeServiceError(w, err, "Failed to start assessment")
		return
	}

	utils.WriteSuccess(w, http.StatusAccepted, dto.StartAssessmentResponse{
		ID:     id,
		Status: string(assessment.StatusPending),
	})
}

// Get returns one assessment by ID, including partial progress for runs that
// are still executing
func (h *AssessmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := h.service.GetAssessment(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get assessment")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.FromAssessment(a))
}

// Findings returns the findings of one assessment ordered by severity
func (h *AssessmentHandler) Findings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	findings, err := h.repo.GetFindingsByAssessment(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to list findings")
		return
	}

	dtos := make([]dto.FindingDTO, len(findings))
	for i, f := range findings {
		dtos[i] = dto.FromFinding(f)
	}
	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// Pending lists assessments awaiting execution
func (h *AssessmentHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.GetPendingAssessments(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list pending assessments")
		return
	}

	dtos := make([]*dto.AssessmentDTO, len(pending))
	for i, a := range pending {
		dtos[i] = dto.FromAssessment(a)
	}
	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// Cancel cancels an in-flight assessment
func (h *AssessmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.CancelAssessment(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to cancel assessment")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "assessment canceled", nil)
}

// writeServiceError maps service errors onto the API error shape.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	if appErr, ok := err.(*errors.AppError); ok {
		utils.WriteError(w, appErr)
		return
	}
	utils.WriteError(w, errors.Internal(fallback, err))
}
