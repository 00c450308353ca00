package goal

import (
	"errors"
	"time"
)

type GoalType string

const (
	TypeMonthly  GoalType = "monthly"
	TypeAnnual   GoalType = "annual"
	TypeCampaign GoalType = "campaign"
)

var (
	ErrGoalNotFound    = errors.New("donation goal not found")
	ErrInvalidGoalType = errors.New("goal type must be monthly, annual or campaign")
	ErrInvalidGoalID   = errors.New("goal id is not valid")
)

func IsValidGoalType(t string) bool {
	switch GoalType(t) {
	case TypeMonthly, TypeAnnual, TypeCampaign:
		return true
	}
	return false
}

type DonationGoal struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	GoalType     GoalType  `json:"goal_type"`
	TargetAmount float64   `json:"target_amount"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Progress is the server-side aggregate for one active goal. PercentageComplete
// is not clamped, so over-funded goals report more than 100.
type Progress struct {
	GoalID             string    `json:"goal_id"`
	Name               string    `json:"name"`
	GoalType           GoalType  `json:"goal_type"`
	CurrentAmount      float64   `json:"current_amount"`
	TargetAmount       float64   `json:"target_amount"`
	PercentageComplete float64   `json:"percentage_complete"`
	DaysRemaining      int       `json:"days_remaining"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
}

type CreateGoalRequest struct {
	Name         string    `json:"name"`
	GoalType     GoalType  `json:"goal_type"`
	TargetAmount float64   `json:"target_amount"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}
