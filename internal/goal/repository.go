package goal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Repository interface {
	ActiveProgress(ctx context.Context, goalType GoalType, at time.Time) (*Progress, error)
	ProgressByID(ctx context.Context, goalID string) (*Progress, error)
	Create(ctx context.Context, g *DonationGoal) error
	List(ctx context.Context, includeInactive bool) ([]DonationGoal, error)
	Deactivate(ctx context.Context, goalID string) error
}

type repository struct {
	db *sql.DB
}

func NewGoalRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const progressColumns = `id, name, goal_type, current_amount, target_amount, percentage_complete,
	days_remaining, start_date, end_date`

func (r *repository) ActiveProgress(ctx context.Context, goalType GoalType, at time.Time) (*Progress, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM donation_goal_progress
		 WHERE goal_type = $1 AND start_date <= $2 AND end_date > $2
		 ORDER BY start_date DESC
		 LIMIT 1`, string(goalType), at)
	return scanProgress(row)
}

func (r *repository) ProgressByID(ctx context.Context, goalID string) (*Progress, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM donation_goal_progress WHERE id = $1`, goalID)
	return scanProgress(row)
}

func scanProgress(row *sql.Row) (*Progress, error) {
	var p Progress
	err := row.Scan(&p.GoalID, &p.Name, &p.GoalType, &p.CurrentAmount, &p.TargetAmount,
		&p.PercentageComplete, &p.DaysRemaining, &p.StartDate, &p.EndDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not read goal progress: %w", err)
	}
	return &p, nil
}

func (r *repository) Create(ctx context.Context, g *DonationGoal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO donation_goals (id, name, goal_type, target_amount, start_date, end_date, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.ID, g.Name, string(g.GoalType), g.TargetAmount, g.StartDate, g.EndDate, g.IsActive, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("could not insert goal: %w", err)
	}
	return nil
}

func (r *repository) List(ctx context.Context, includeInactive bool) ([]DonationGoal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, goal_type, target_amount, start_date, end_date, is_active, created_at
		 FROM donation_goals
		 WHERE is_active OR $1::boolean
		 ORDER BY start_date DESC`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("could not list goals: %w", err)
	}
	defer rows.Close()

	goals := []DonationGoal{}
	for rows.Next() {
		var g DonationGoal
		if err := rows.Scan(&g.ID, &g.Name, &g.GoalType, &g.TargetAmount, &g.StartDate, &g.EndDate,
			&g.IsActive, &g.CreatedAt); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (r *repository) Deactivate(ctx context.Context, goalID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE donation_goals SET is_active = FALSE WHERE id = $1 AND is_active`, goalID)
	if err != nil {
		return fmt.Errorf("could not deactivate goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrGoalNotFound
	}
	return nil
}
