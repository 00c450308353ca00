package goal

import (
	"encoding/json"
	"errors"
	"github.com/sebuszqo/SledHockey/internal/validation"
	"net/http"
)

type Handler struct {
	service      Service
	respondJSON  func(w http.ResponseWriter, status int, payload interface{})
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string)
}

func NewHandler(
	service Service,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string),
) *Handler {
	if service == nil || respondJSON == nil || respondError == nil {
		panic("Service and response functions must not be nil")
	}
	return &Handler{
		service:      service,
		respondJSON:  respondJSON,
		respondError: respondError,
	}
}

// GetProgress serves ?goal_id= for a specific campaign or ?goal_type= (default monthly).
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	var (
		progress *Progress
		err      error
	)
	if goalID := r.URL.Query().Get("goal_id"); goalID != "" {
		progress, err = h.service.GetProgress(r.Context(), goalID)
	} else {
		progress, err = h.service.GetActiveProgress(r.Context(), r.URL.Query().Get("goal_type"))
	}

	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, progress)
	case errors.Is(err, ErrInvalidGoalType), errors.Is(err, ErrInvalidGoalID):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrGoalNotFound):
		h.respondError(w, http.StatusNotFound, "No active donation goal")
	default:
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve donation progress")
	}
}

func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.service.ListGoals(r.Context(), r.URL.Query().Get("all") == "true")
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve goals")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Goals retrieved successfully.",
		"data":    goals,
	})
}

func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	g, err := h.service.CreateGoal(r.Context(), req)
	if err != nil {
		var validationErrs *validation.Errors
		if errors.As(err, &validationErrs) {
			h.respondError(w, http.StatusBadRequest, "Validation errors occurred", validationErrs.Messages())
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to create goal")
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  "success",
		"message": "Goal successfully created.",
		"data":    g,
	})
}

func (h *Handler) DeactivateGoal(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeactivateGoal(r.Context(), r.PathValue("goalID"))
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"message": "Goal deactivated.",
		})
	case errors.Is(err, ErrInvalidGoalID):
		h.respondError(w, http.StatusBadRequest, "Invalid goal id")
	case errors.Is(err, ErrGoalNotFound):
		h.respondError(w, http.StatusNotFound, "Goal not found")
	default:
		h.respondError(w, http.StatusInternalServerError, "Failed to deactivate goal")
	}
}
