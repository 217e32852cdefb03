package round

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/techclash/arena/internal/arbiter"
	"github.com/techclash/arena/internal/clock"
	"github.com/techclash/arena/internal/engine"
	"github.com/techclash/arena/internal/roster"
)

// Handler exposes the operator HTTP API over a controller.
type Handler struct {
	controller *Controller
}

func NewHandler(controller *Controller) *Handler {
	return &Handler{controller: controller}
}

// Routes mounts the operator API on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/games", h.handleListGames)
	r.Route("/api/games/{gameID}", func(r chi.Router) {
		r.Get("/snapshot", h.handleSnapshot)
		r.Get("/standings", h.handleStandings)
		r.Post("/rounds/start", h.handleStartRound)
		r.Post("/rounds/pause", h.handlePause)
		r.Post("/rounds/resume", h.handleResume)
		r.Post("/rounds/stop", h.handleStop)
		r.Post("/questions/next", h.handleNextQuestion)
		r.Post("/questions/{questionID}/resolve", h.handleResolve)
	})
}

type startRoundRequest struct {
	QuestionID       string `json:"question_id"`
	AllocatedSeconds int    `json:"allocated_seconds"`
}

func (req *startRoundRequest) validate() (uuid.UUID, time.Duration, string) {
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return uuid.Nil, 0, "invalid question_id"
	}
	if req.AllocatedSeconds <= 0 {
		return uuid.Nil, 0, "allocated_seconds must be positive"
	}
	return questionID, time.Duration(req.AllocatedSeconds) * time.Second, ""
}

func (h *Handler) handleListGames(w http.ResponseWriter, r *http.Request) {
	active, err := h.controller.ActiveGames(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"games":  h.controller.Catalog(),
		"active": active,
	})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.controller.Snapshot(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.controller.Standings(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"standings": standings})
}

func (h *Handler) handleStartRound(w http.ResponseWriter, r *http.Request) {
	var req startRoundRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	questionID, allocated, msg := req.validate()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	gameID := chi.URLParam(r, "gameID")
	if err := h.controller.StartRound(r.Context(), gameID, questionID, allocated); err != nil {
		writeDomainError(w, err)
		return
	}

	snap, err := h.controller.Snapshot(r.Context(), gameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	var req startRoundRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	questionID, allocated, msg := req.validate()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	gameID := chi.URLParam(r, "gameID")
	if err := h.controller.NextQuestion(r.Context(), gameID, questionID, allocated); err != nil {
		writeDomainError(w, err)
		return
	}

	snap, err := h.controller.Snapshot(r.Context(), gameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.clockOp(w, r, h.controller.Pause)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.clockOp(w, r, h.controller.Resume)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.clockOp(w, r, h.controller.Stop)
}

func (h *Handler) clockOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, gameID string) error) {
	gameID := chi.URLParam(r, "gameID")
	if err := op(r.Context(), gameID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resolveRequest struct {
	TeamID  string `json:"team_id"`
	Verdict string `json:"verdict"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	teamID, err := uuid.Parse(req.TeamID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid team_id")
		return
	}
	questionID, err := uuid.Parse(chi.URLParam(r, "questionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}
	verdict := arbiter.Verdict(req.Verdict)
	if verdict != arbiter.VerdictCorrect && verdict != arbiter.VerdictIncorrect {
		writeError(w, http.StatusBadRequest, "verdict must be CORRECT or INCORRECT")
		return
	}

	outcome, err := h.controller.Resolve(r.Context(), chi.URLParam(r, "gameID"), questionID, teamID, verdict)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse(outcome))
}

type resolveResponse struct {
	QuestionID    string  `json:"question_id"`
	WindowState   string  `json:"window_state"`
	Final         bool    `json:"final"`
	WinningTeamID *string `json:"winning_team_id,omitempty"`
}

func outcomeResponse(outcome *engine.Outcome) resolveResponse {
	resp := resolveResponse{
		QuestionID:  outcome.QuestionID.String(),
		WindowState: string(outcome.WindowState),
		Final:       outcome.Final,
	}
	if outcome.WinningTeamID != nil {
		id := outcome.WinningTeamID.String()
		resp.WinningTeamID = &id
	}
	return resp
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownGame),
		errors.Is(err, engine.ErrNotActive),
		errors.Is(err, roster.ErrTeamNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrAlreadyActive),
		errors.Is(err, clock.ErrInvalidTransition),
		errors.Is(err, engine.ErrRoundNotRunning),
		errors.Is(err, arbiter.ErrWindowClosed),
		errors.Is(err, arbiter.ErrDuplicateAttempt),
		errors.Is(err, arbiter.ErrNotPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, arbiter.ErrUnknownTeam),
		errors.Is(err, arbiter.ErrNoWindow),
		errors.Is(err, ErrNoTeams):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("unhandled domain error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
