package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/techclash/arena/internal/sqlutil"
)

// ErrTeamNotFound is returned when a team lookup matches no row.
var ErrTeamNotFound = errors.New("team not found")

// Team is a registered competition team.
type Team struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	LogoURL   *string   `json:"logo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

type CreateTeamRequest struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	LogoURL *string   `json:"logo_url"`
}

func (r *Repository) CreateTeam(ctx context.Context, req CreateTeamRequest) (*Team, error) {
	const query = `
		INSERT INTO teams (id, name, logo_url, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, name, logo_url, created_at`

	var (
		team    Team
		logoURL sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, req.ID, req.Name, sqlutil.ToSqlString(req.LogoURL)).
		Scan(&team.ID, &team.Name, &logoURL, &team.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	team.LogoURL = sqlutil.FromSqlStringPtr(logoURL)

	return &team, nil
}

func (r *Repository) GetTeam(ctx context.Context, id uuid.UUID) (*Team, error) {
	const query = `
		SELECT id, name, logo_url, created_at
		FROM teams
		WHERE id = $1`

	var (
		team    Team
		logoURL sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&team.ID, &team.Name, &logoURL, &team.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", id, ErrTeamNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	team.LogoURL = sqlutil.FromSqlStringPtr(logoURL)

	return &team, nil
}

// AssignTeamToGame enrolls a team in a game type's competition. Assignment is
// idempotent: re-assigning an enrolled team is a no-op.
func (r *Repository) AssignTeamToGame(ctx context.Context, teamID uuid.UUID, gameID string) error {
	const query = `
		INSERT INTO game_teams (game_id, team_id, assigned_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (game_id, team_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, gameID, teamID); err != nil {
		return fmt.Errorf("failed to assign team to game: %w", err)
	}
	return nil
}

// TeamsForGame returns the teams enrolled in a game type, in enrollment order.
func (r *Repository) TeamsForGame(ctx context.Context, gameID string) ([]Team, error) {
	const query = `
		SELECT t.id, t.name, t.logo_url, t.created_at
		FROM teams t
		JOIN game_teams gt ON gt.team_id = t.id
		WHERE gt.game_id = $1
		ORDER BY gt.assigned_at`

	rows, err := r.db.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for game: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var (
			team    Team
			logoURL sql.NullString
		)
		if err := rows.Scan(&team.ID, &team.Name, &logoURL, &team.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		team.LogoURL = sqlutil.FromSqlStringPtr(logoURL)
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate team rows: %w", err)
	}

	return teams, nil
}
