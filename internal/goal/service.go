package goal

import (
	"context"
	"github.com/google/uuid"
	"github.com/sebuszqo/SledHockey/internal/logging"
	"github.com/sebuszqo/SledHockey/internal/validation"
	"strings"
	"time"
)

const maxTargetAmount = 10_000_000

type Service interface {
	GetActiveProgress(ctx context.Context, goalType string) (*Progress, error)
	GetProgress(ctx context.Context, goalID string) (*Progress, error)
	CreateGoal(ctx context.Context, req CreateGoalRequest) (*DonationGoal, error)
	ListGoals(ctx context.Context, includeInactive bool) ([]DonationGoal, error)
	DeactivateGoal(ctx context.Context, goalID string) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewGoalService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// GetActiveProgress returns the most recently started active goal of the type
// whose window contains the current time.
func (s *service) GetActiveProgress(ctx context.Context, goalType string) (*Progress, error) {
	if goalType == "" {
		goalType = string(TypeMonthly)
	}
	if !IsValidGoalType(goalType) {
		return nil, ErrInvalidGoalType
	}
	return s.repo.ActiveProgress(ctx, GoalType(goalType), s.now().UTC())
}

func (s *service) GetProgress(ctx context.Context, goalID string) (*Progress, error) {
	if _, err := uuid.Parse(goalID); err != nil {
		return nil, ErrInvalidGoalID
	}
	return s.repo.ProgressByID(ctx, goalID)
}

func (s *service) CreateGoal(ctx context.Context, req CreateGoalRequest) (*DonationGoal, error) {
	errs := &validation.Errors{}
	if !IsValidGoalType(string(req.GoalType)) {
		errs.Add(validation.NewError("goal_type", ErrInvalidGoalType.Error()))
	}
	if req.TargetAmount <= 0 || req.TargetAmount > maxTargetAmount {
		errs.Add(validation.NewError("target_amount", "target amount must be positive and reasonable"))
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		errs.Add(validation.NewError("start_date", "start and end dates are required"))
	} else if !req.EndDate.After(req.StartDate) {
		errs.Add(validation.NewError("end_date", "end date must be after start date"))
	}
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultName(req.GoalType, req.StartDate)
	}

	g := &DonationGoal{
		ID:           uuid.NewString(),
		Name:         name,
		GoalType:     req.GoalType,
		TargetAmount: req.TargetAmount,
		StartDate:    req.StartDate.UTC(),
		EndDate:      req.EndDate.UTC(),
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}
	logging.Component("goal").WithField("goal_id", g.ID).WithField("type", g.GoalType).Info("donation goal created")
	return g, nil
}

func (s *service) ListGoals(ctx context.Context, includeInactive bool) ([]DonationGoal, error) {
	return s.repo.List(ctx, includeInactive)
}

func (s *service) DeactivateGoal(ctx context.Context, goalID string) error {
	if _, err := uuid.Parse(goalID); err != nil {
		return ErrInvalidGoalID
	}
	return s.repo.Deactivate(ctx, goalID)
}

func defaultName(t GoalType, start time.Time) string {
	switch t {
	case TypeMonthly:
		return start.Format("January 2006") + " goal"
	case TypeAnnual:
		return start.Format("2006") + " goal"
	}
	return "Campaign goal"
}
