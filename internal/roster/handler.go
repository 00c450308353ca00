package roster

import (
	"net/http"
	"strconv"
)

type Handler interface {
	SearchPlayers(w http.ResponseWriter, r *http.Request)
}

type handler struct {
	rosterService Service
	respondJSON   func(w http.ResponseWriter, status int, payload interface{})
	respondError  func(w http.ResponseWriter, status int, message string, errors ...[]string)
}

func NewRosterHandler(rosterService Service, respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string)) Handler {
	return &handler{
		rosterService: rosterService,
		respondJSON:   respondJSON,
		respondError:  respondError,
	}
}

func (h *handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := MaxResults
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err == nil && parsedLimit > 0 && parsedLimit <= MaxResults {
			limit = parsedLimit
		}
	}

	if len(query) > 100 {
		h.respondError(w, http.StatusBadRequest, "Query parameter 'q' is too long")
		return
	}

	players, err := h.rosterService.Search(r.Context(), query, limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Error searching players")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "List of players retrieved successfully.",
		"data":    players,
	})
}
