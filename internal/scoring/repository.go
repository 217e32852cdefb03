package scoring

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/techclash/arena/internal/sqlutil"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// RecordTimeAllocationRequest captures the countdown budget given to a
// question when its round starts.
type RecordTimeAllocationRequest struct {
	GameID           string    `json:"game_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	AllocatedSeconds int       `json:"allocated_seconds"`
	StartedAt        time.Time `json:"started_at"`
}

func (r *Repository) RecordTimeAllocation(ctx context.Context, req RecordTimeAllocationRequest) error {
	const query = `
		INSERT INTO question_allocations (game_id, question_id, allocated_seconds, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, question_id) DO UPDATE
		SET allocated_seconds = EXCLUDED.allocated_seconds,
		    started_at = EXCLUDED.started_at`

	_, err := r.db.ExecContext(ctx, query, req.GameID, req.QuestionID, req.AllocatedSeconds, req.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record time allocation: %w", err)
	}
	return nil
}

// RecordAttemptRequest is one team's buzz outcome within a question window.
type RecordAttemptRequest struct {
	GameID         string    `json:"game_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	TeamID         uuid.UUID `json:"team_id"`
	Rank           int       `json:"rank"`
	Verdict        string    `json:"verdict"`
	ReceivedAt     time.Time `json:"received_at"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
}

func (r *Repository) RecordAttempt(ctx context.Context, req RecordAttemptRequest) error {
	const query = `
		INSERT INTO question_attempts (game_id, question_id, team_id, rank, verdict, received_at, elapsed_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (game_id, question_id, team_id) DO UPDATE
		SET verdict = EXCLUDED.verdict`

	_, err := r.db.ExecContext(ctx, query,
		req.GameID, req.QuestionID, req.TeamID, req.Rank, req.Verdict, req.ReceivedAt, req.ElapsedSeconds)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// RecordOutcomeRequest finalizes a question window. WinningTeamID is nil when
// the window locked without a correct answer.
type RecordOutcomeRequest struct {
	GameID        string     `json:"game_id"`
	QuestionID    uuid.UUID  `json:"question_id"`
	WinningTeamID *uuid.UUID `json:"winning_team_id"`
	ResolvedAt    time.Time  `json:"resolved_at"`
}

func (r *Repository) RecordOutcome(ctx context.Context, req RecordOutcomeRequest) error {
	const query = `
		INSERT INTO question_outcomes (game_id, question_id, winning_team_id, resolved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, question_id) DO UPDATE
		SET winning_team_id = EXCLUDED.winning_team_id,
		    resolved_at = EXCLUDED.resolved_at`

	_, err := r.db.ExecContext(ctx, query,
		req.GameID, req.QuestionID, sqlutil.ToNullUUID(req.WinningTeamID), req.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// TeamStanding aggregates a team's wins within one game type.
type TeamStanding struct {
	TeamID           uuid.UUID `json:"team_id"`
	TeamName         string    `json:"team_name"`
	QuestionsWon     int       `json:"questions_won"`
	TotalElapsedSecs float64   `json:"total_elapsed_seconds"`
}

// StandingsForGame ranks teams by questions won, fastest cumulative winning
// time breaking ties.
func (r *Repository) StandingsForGame(ctx context.Context, gameID string) ([]TeamStanding, error) {
	const query = `
		SELECT t.id, t.name,
		       COUNT(o.question_id) AS questions_won,
		       COALESCE(SUM(a.elapsed_seconds), 0) AS total_elapsed
		FROM teams t
		JOIN game_teams gt ON gt.team_id = t.id
		LEFT JOIN question_outcomes o ON o.game_id = gt.game_id AND o.winning_team_id = t.id
		LEFT JOIN question_attempts a ON a.game_id = o.game_id
		     AND a.question_id = o.question_id AND a.team_id = t.id
		WHERE gt.game_id = $1
		GROUP BY t.id, t.name
		ORDER BY questions_won DESC, total_elapsed ASC`

	rows, err := r.db.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}
	defer rows.Close()

	var standings []TeamStanding
	for rows.Next() {
		var s TeamStanding
		if err := rows.Scan(&s.TeamID, &s.TeamName, &s.QuestionsWon, &s.TotalElapsedSecs); err != nil {
			return nil, fmt.Errorf("failed to scan standing row: %w", err)
		}
		standings = append(standings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate standing rows: %w", err)
	}

	return standings, nil
}
