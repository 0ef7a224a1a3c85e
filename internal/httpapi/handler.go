// Package httpapi exposes the puzzle service over HTTP: session lifecycle,
// the move pipeline, statistics lookups, and a per-session websocket event
// stream.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MindFlowInteractive/quest-api-sub002/engine"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/game"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/stats"
)

const defaultDifficulty = 5

// Handler wires the orchestrator and the statistics service into a chi
// router.
type Handler struct {
	manager *game.Manager
	stats   *stats.Service // nil disables the statistics routes
	hub     *eventHub
	log     *logrus.Logger
}

// NewHandler builds the HTTP layer over an assembled manager.
func NewHandler(manager *game.Manager, statsSvc *stats.Service, log *logrus.Logger) *Handler {
	return &Handler{
		manager: manager,
		stats:   statsSvc,
		hub:     newEventHub(),
		log:     log,
	}
}

// Router returns the full route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/puzzles", h.createSession)
		r.Get("/puzzles", h.listSessions)
		r.Route("/puzzles/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.removeSession)
			r.Post("/moves", h.applyMove)
			r.Post("/hints", h.hint)
			r.Post("/undo", h.undo)
			r.Post("/redo", h.redo)
			r.Post("/pause", h.pause)
			r.Post("/resume", h.resume)
			r.Post("/check", h.checkSolution)
			r.Post("/abandon", h.abandon)
			r.Get("/events", h.streamEvents)
		})
		r.Get("/players/{playerID}/statistics", h.userStatistics)
		r.Get("/statistics/population", h.populationStatistics)
	})
	return r
}

// sessionResponse is the wire view of a session.
type sessionResponse struct {
	SessionID uuid.UUID           `json:"sessionId"`
	PlayerID  uuid.UUID           `json:"playerId,omitempty"`
	Kind      string              `json:"kind"`
	Status    game.SessionStatus  `json:"status"`
	CanUndo   bool                `json:"canUndo"`
	CanRedo   bool                `json:"canRedo"`
	Paused    bool                `json:"paused"`
	ElapsedMs int64               `json:"elapsedMs"`
	State     *engine.PuzzleState `json:"state"`
}

func sessionView(s *game.PuzzleSession) sessionResponse {
	return sessionResponse{
		SessionID: s.ID,
		PlayerID:  s.PlayerID,
		Kind:      s.Kind.String(),
		Status:    s.CurrentStatus(),
		CanUndo:   s.CanUndo(),
		CanRedo:   s.CanRedo(),
		Paused:    s.Paused(),
		ElapsedMs: s.Elapsed().Milliseconds(),
		State:     s.State(),
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePuzzleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}
	if req.Difficulty == 0 {
		req.Difficulty = defaultDifficulty
	}
	playerID := uuid.Nil
	if req.PlayerID != nil {
		playerID = *req.PlayerID
	}

	session, err := h.manager.CreateSession(r.Context(), req.Kind, req.Difficulty, playerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	session.Mu.Lock()
	session.BroadcastFn = h.hub.broadcaster(session.ID)
	session.Mu.Unlock()

	writeJSON(w, http.StatusCreated, sessionView(session))
}

func (h *Handler) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]uuid.UUID{"sessions": h.manager.ListSessions()})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (h *Handler) removeSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.manager.RemoveSession(id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) applyMove(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req models.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}
	payload, err := DecodeMovePayload(session.Kind, req.Payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	mv := engine.Move{
		ID:        uuid.NewString(),
		ActorID:   req.ActorID.String(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
	state, err := session.ApplyMove(mv)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":   state,
		"canUndo": session.CanUndo(),
		"canRedo": session.CanRedo(),
	})
}

func (h *Handler) hint(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req models.HintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}
	hint, err := session.Hint(req.Level)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"level":    hint.Level,
		"content":  hint.Content,
		"category": hint.Category,
	})
}

func (h *Handler) undo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*game.PuzzleSession).Undo)
}

func (h *Handler) redo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*game.PuzzleSession).Redo)
}

// step shares the undo/redo response shape.
func (h *Handler) step(w http.ResponseWriter, r *http.Request, op func(*game.PuzzleSession) (*engine.PuzzleState, error)) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	state, err := op(session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":   state,
		"canUndo": session.CanUndo(),
		"canRedo": session.CanRedo(),
	})
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	session.Pause()
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	session.Resume()
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (h *Handler) checkSolution(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req models.SolutionCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}
	check, err := h.manager.CheckSolution(r.Context(), id, req.Metadata)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"solved":   check.Result.Solved,
		"result":   check.Result,
		"analysis": check.Analysis,
	})
}

func (h *Handler) abandon(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.manager.Abandon(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userStatistics(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeError(w, apperr.Configuration("statistics service not configured"))
		return
	}
	playerID, err := uuid.Parse(chi.URLParam(r, "playerID"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid player id"))
		return
	}
	userStats, err := h.stats.GetUserStatistics(r.Context(), playerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if userStats == nil {
		h.writeError(w, apperr.NotFound("no completions for player %s", playerID))
		return
	}
	writeJSON(w, http.StatusOK, userStats)
}

func (h *Handler) populationStatistics(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeError(w, apperr.Configuration("statistics service not configured"))
		return
	}
	pop, err := h.stats.GetPopulationStatistics(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pop)
}

// session resolves the {sessionID} route parameter.
func (h *Handler) session(r *http.Request) (*game.PuzzleSession, error) {
	id, err := sessionID(r)
	if err != nil {
		return nil, err
	}
	return h.manager.GetSession(id)
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid session id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindData:
		status = http.StatusServiceUnavailable
	case apperr.KindConfiguration:
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
