package roster

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MaxResults is the fixed row cap of every roster read.
const MaxResults = 50

type Player struct {
	ID           string `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	JerseyNumber *int   `json:"jersey_number,omitempty"`
	Position     string `json:"position,omitempty"`
}

func (p Player) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Service interface {
	Search(ctx context.Context, query string, limit int) ([]Player, error)
}

type Repository interface {
	searchActive(ctx context.Context, pattern string, limit int) ([]Player, error)
}

type service struct {
	repo Repository
}

func NewRosterService(repo Repository) Service {
	return &service{repo: repo}
}

// Search matches active players by first, last or full name, case-insensitively.
// A blank query lists the roster.
func (s *service) Search(ctx context.Context, query string, limit int) ([]Player, error) {
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	return s.repo.searchActive(ctx, pattern, limit)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rosterRepository struct {
	db *sql.DB
}

func NewRosterRepository(db *sql.DB) Repository {
	return &rosterRepository{db: db}
}

func (r *rosterRepository) searchActive(ctx context.Context, pattern string, limit int) ([]Player, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, first_name, last_name, jersey_number, position
        FROM players
        WHERE is_active
          AND (first_name ILIKE $1 OR last_name ILIKE $1 OR (first_name || ' ' || last_name) ILIKE $1)
        ORDER BY last_name, first_name
        LIMIT $2
    `, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("could not search players: %w", err)
	}
	defer rows.Close()

	players := []Player{}
	for rows.Next() {
		var (
			p      Player
			jersey sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &jersey, &p.Position); err != nil {
			return nil, err
		}
		if jersey.Valid {
			n := int(jersey.Int64)
			p.JerseyNumber = &n
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
