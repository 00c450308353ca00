package progress

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/sebuszqo/SledHockey/internal/goal"
	"github.com/sebuszqo/SledHockey/internal/logging"
)

type Source interface {
	GetActiveProgress(ctx context.Context, goalType string) (*goal.Progress, error)
	GetProgress(ctx context.Context, goalID string) (*goal.Progress, error)
}

type WidgetHandler struct {
	source Source
}

func NewWidgetHandler(source Source) *WidgetHandler {
	return &WidgetHandler{source: source}
}

// ServeHTTP renders ?goal_type= or ?goal_id= in the ?mode= display density.
func (h *WidgetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mode, err := ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var p *goal.Progress
	if goalID := r.URL.Query().Get("goal_id"); goalID != "" {
		p, err = h.source.GetProgress(r.Context(), goalID)
	} else {
		p, err = h.source.GetActiveProgress(r.Context(), r.URL.Query().Get("goal_type"))
	}
	switch {
	case errors.Is(err, goal.ErrGoalNotFound):
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, goal.ErrInvalidGoalType), errors.Is(err, goal.ErrInvalidGoalID):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		logging.Component("progress").WithError(err).Error("could not load goal progress")
		http.Error(w, "Failed to load donation progress", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := Render(&buf, *p, mode); err != nil {
		logging.Component("progress").WithError(err).Error("could not render progress widget")
		http.Error(w, "Failed to render donation progress", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write(buf.Bytes())
}
