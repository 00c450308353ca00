package progress

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sebuszqo/SledHockey/internal/goal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overFunded() goal.Progress {
	return goal.Progress{
		Name:               "March 2024 goal",
		CurrentAmount:      1500,
		TargetAmount:       1000,
		PercentageComplete: 150,
		DaysRemaining:      17,
	}
}

func TestRender_OverFundedClampsBarButNotLabel(t *testing.T) {
	for _, mode := range []Mode{ModeCompact, ModeFull, ModeFloating, ModeEmbedded} {
		t.Run(string(mode), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, overFunded(), mode))

			html := buf.String()
			assert.Contains(t, html, "width: 100.00%")
			assert.Contains(t, html, "150%")
			assert.Contains(t, html, "donation-progress--"+string(mode))
		})
	}
}

func TestRender_FullShowsAmountsAndDays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, overFunded(), ModeFull))

	html := buf.String()
	assert.Contains(t, html, "$1,500 raised")
	assert.Contains(t, html, "Goal: $1,000")
	assert.Contains(t, html, "17 days left")
	assert.Contains(t, html, "donation-progress__bar--funded")
}

func TestRender_UnknownMode(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, overFunded(), "sidebar"))
}

func TestBarWidth(t *testing.T) {
	assert.Equal(t, 0.0, BarWidth(-5))
	assert.Equal(t, 42.5, BarWidth(42.5))
	assert.Equal(t, 100.0, BarWidth(100))
	assert.Equal(t, 100.0, BarWidth(150))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$1,500", FormatCurrency(1500))
	assert.Equal(t, "$12.50", FormatCurrency(12.5))
	assert.Equal(t, "$0", FormatCurrency(0))
	assert.Equal(t, "$1,234,567.89", FormatCurrency(1234567.89))
}

func TestNewView_LabelIsUnclamped(t *testing.T) {
	view := NewView(overFunded(), ModeCompact)

	assert.Equal(t, "150%", view.PercentLabel)
	assert.Equal(t, "100.00", view.BarWidth)
	assert.True(t, view.Funded)
}

type stubSource struct {
	progress *goal.Progress
	err      error
	goalType string
}

func (s *stubSource) GetActiveProgress(_ context.Context, goalType string) (*goal.Progress, error) {
	s.goalType = goalType
	return s.progress, s.err
}

func (s *stubSource) GetProgress(_ context.Context, _ string) (*goal.Progress, error) {
	return s.progress, s.err
}

func TestWidgetHandler(t *testing.T) {
	p := overFunded()
	source := &stubSource{progress: &p}
	req := httptest.NewRequest(http.MethodGet, "/widgets/progress?goal_type=annual&mode=compact", nil)
	w := httptest.NewRecorder()

	NewWidgetHandler(source).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "annual", source.goalType)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "donation-progress--compact")
}

func TestWidgetHandler_NoGoal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/widgets/progress", nil)
	w := httptest.NewRecorder()

	NewWidgetHandler(&stubSource{err: goal.ErrGoalNotFound}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestWidgetHandler_BadMode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/widgets/progress?mode=sidebar", nil)
	w := httptest.NewRecorder()

	NewWidgetHandler(&stubSource{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
