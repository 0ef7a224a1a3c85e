// Package game orchestrates puzzle sessions: generation, the move pipeline,
// hints, undo/redo, pause/resume, and solution checks gated through the
// statistical analyzer.
package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MindFlowInteractive/quest-api-sub002/engine"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/difficulty"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/stats"
)

// Recorder is the slice of the persistence layer the orchestrator writes.
type Recorder interface {
	AppendCompletedAttempt(ctx context.Context, rec models.CompletionRecord) error
}

// DifficultyResolver adjusts a requested difficulty for a known player and
// absorbs completion reports.
type DifficultyResolver interface {
	OptimalDifficulty(ctx context.Context, playerID uuid.UUID, base int) int
	ReportCompletion(ctx context.Context, playerID uuid.UUID, rep difficulty.Report)
}

// Analyzer scores a solution attempt against statistical baselines.
type Analyzer interface {
	Analyze(ctx context.Context, userID uuid.UUID, sample stats.PerformanceSample) (*stats.AnalysisResult, error)
}

// SolutionCheck is the outcome of CheckSolution: the scored result plus, for
// solved attempts by known players, the anti-cheat analysis.
type SolutionCheck struct {
	Result   engine.Result
	Analysis *stats.AnalysisResult
}

// Options tunes a Manager.
type Options struct {
	HistoryCapacity int
	TargetSolveTime time.Duration
	// Seed fixes generation randomness; zero seeds from the wall clock.
	Seed int64
}

// Manager owns the session map. Sessions are independent units of state;
// the manager's lock only guards the map itself.
type Manager struct {
	registry  *engine.Registry
	validator *engine.TransitionValidator
	adjuster  DifficultyResolver
	analyzer  Analyzer
	recorder  Recorder
	log       *logrus.Logger

	opts Options

	mu       sync.RWMutex
	sessions map[uuid.UUID]*PuzzleSession
	rng      *rand.Rand
	rngMu    sync.Mutex
}

// NewManager assembles the orchestrator. adjuster, analyzer, and recorder
// may be nil; the corresponding steps are skipped.
func NewManager(registry *engine.Registry, adjuster DifficultyResolver, analyzer Analyzer, recorder Recorder, log *logrus.Logger, opts Options) *Manager {
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = engine.HistoryCapacity
	}
	if opts.TargetSolveTime <= 0 {
		opts.TargetSolveTime = 10 * time.Minute
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		registry:  registry,
		validator: engine.NewTransitionValidator(),
		adjuster:  adjuster,
		analyzer:  analyzer,
		recorder:  recorder,
		log:       log,
		opts:      opts,
		sessions:  make(map[uuid.UUID]*PuzzleSession),
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// CreateSession generates a puzzle and registers a new active session. A
// known player's requested difficulty is resolved through the adjuster
// first.
func (m *Manager) CreateSession(ctx context.Context, kindName string, difficulty int, playerID uuid.UUID) (*PuzzleSession, error) {
	kind, err := engine.ParseKind(kindName)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "create session")
	}
	solver, err := m.registry.Lookup(kind)
	if err != nil {
		// An unregistered kind that parsed is a misassembled service.
		return nil, apperr.Wrap(apperr.KindConfiguration, err, "create session")
	}

	if m.adjuster != nil && playerID != uuid.Nil {
		adjusted := m.adjuster.OptimalDifficulty(ctx, playerID, difficulty)
		if adjusted != difficulty {
			m.log.WithFields(logrus.Fields{
				"player":    playerID,
				"requested": difficulty,
				"adjusted":  adjusted,
			}).Info("difficulty adjusted")
			difficulty = adjusted
		}
	}

	m.rngMu.Lock()
	seed := m.rng.Int63()
	m.rngMu.Unlock()
	state, err := solver.Generate(rand.New(rand.NewSource(seed)), difficulty)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, err, "generate %s", kind)
	}

	now := time.Now()
	sessionID := uuid.New()
	state.ID = sessionID.String()
	session := &PuzzleSession{
		ID:        sessionID,
		PlayerID:  playerID,
		Kind:      kind,
		Status:    StatusActive,
		state:     state,
		solver:    solver,
		rules:     engine.DefaultRules(kind),
		validator: m.validator,
		history:   engine.NewHistory(m.opts.HistoryCapacity),
		clock:     engine.NewSessionClock(now),
		createdAt: now,
		log:       m.log.WithField("session", sessionID),
	}
	session.history.AddState(state)

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	session.Mu.Lock()
	session.fireEvent(SessionEvent{Type: EventSessionCreated, State: state.Clone()})
	session.Mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"session":    session.ID,
		"kind":       kind.String(),
		"difficulty": difficulty,
	}).Info("session created")
	return session, nil
}

// GetSession resolves a session id.
func (m *Manager) GetSession(id uuid.UUID) (*PuzzleSession, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("session %s", id)
	}
	return session, nil
}

// ListSessions returns the live session ids.
func (m *Manager) ListSessions() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// CheckSolution scores the session's current state. A solved attempt is run
// through the statistical analyzer before the solved status is committed;
// the analysis is attached for moderation but never blocks the result.
func (m *Manager) CheckSolution(ctx context.Context, id uuid.UUID, meta *models.SolutionMetadata) (*SolutionCheck, error) {
	session, err := m.GetSession(id)
	if err != nil {
		return nil, err
	}

	session.Mu.Lock()
	defer session.Mu.Unlock()

	if session.Status == StatusAbandoned {
		return nil, apperr.Validation("session %s is abandoned", id)
	}

	session.attempts++
	solved := session.solver.IsSolved(session.state)
	elapsed := session.clock.Elapsed(time.Now())
	result := session.score(solved, elapsed, m.opts.TargetSolveTime)

	check := &SolutionCheck{Result: result}
	if solved && m.analyzer != nil && session.PlayerID != uuid.Nil {
		sample := stats.PerformanceSample{
			Score:    float64(result.TotalScore),
			TimeMs:   float64(elapsed.Milliseconds()),
			Accuracy: 1.0,
		}
		analysis, err := m.analyzer.Analyze(ctx, session.PlayerID, sample)
		if err != nil {
			// The analyzer degrades internally; a hard failure here means a
			// non-data error, which still must not lose the solve.
			m.log.WithError(err).WithField("session", id).Warn("solution analysis failed")
		} else {
			check.Analysis = analysis
			if analysis.Severity == stats.RiskHigh {
				m.log.WithFields(logrus.Fields{
					"session": id,
					"player":  session.PlayerID,
					"anomaly": analysis.AnomalyScore,
				}).Warn("high-risk solution attempt flagged")
			}
		}
	}

	if solved && session.Status == StatusActive {
		session.Status = StatusSolved
		session.state.Solved = true
		session.fireEvent(SessionEvent{Type: EventSessionSolved, Result: &result, Analysis: check.Analysis})
		m.finishSession(ctx, session, result, elapsed, true)
	}
	return check, nil
}

// Abandon terminates an active session and records the failed attempt.
func (m *Manager) Abandon(ctx context.Context, id uuid.UUID) error {
	session, err := m.GetSession(id)
	if err != nil {
		return err
	}

	session.Mu.Lock()
	defer session.Mu.Unlock()

	if session.Status != StatusActive {
		return apperr.Validation("session %s is already %s", id, session.Status)
	}
	session.Status = StatusAbandoned
	elapsed := session.clock.Elapsed(time.Now())
	result := session.score(false, elapsed, m.opts.TargetSolveTime)
	session.fireEvent(SessionEvent{Type: EventSessionAbandoned, Result: &result})
	m.finishSession(ctx, session, result, elapsed, false)
	return nil
}

// RemoveSession drops a finished session from the map. Active sessions are
// kept.
func (m *Manager) RemoveSession(id uuid.UUID) error {
	session, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if session.CurrentStatus() == StatusActive {
		return apperr.Validation("session %s is still active", id)
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// finishSession persists the attempt and updates the player's difficulty
// metrics. Caller holds the session lock.
func (m *Manager) finishSession(ctx context.Context, session *PuzzleSession, result engine.Result, elapsed time.Duration, solved bool) {
	if m.adjuster != nil && session.PlayerID != uuid.Nil {
		m.adjuster.ReportCompletion(ctx, session.PlayerID, difficulty.Report{
			SolveTimeMs: elapsed.Milliseconds(),
			Moves:       session.state.Meta.MoveCount,
			Solved:      solved,
			HintsUsed:   session.state.Meta.HintsUsed,
		})
	}
	if m.recorder == nil {
		return
	}
	rec := models.CompletionRecord{
		ID:               uuid.New(),
		PuzzleID:         session.ID,
		UserID:           session.PlayerID,
		Kind:             session.Kind.String(),
		CompletionTimeMs: elapsed.Milliseconds(),
		AttemptsCount:    session.attempts,
		IsCompleted:      solved,
		DifficultyRating: session.state.Meta.Difficulty,
		HintsUsed:        session.state.Meta.HintsUsed,
		Score:            result.TotalScore,
		CreatedAt:        time.Now(),
	}
	if err := m.recorder.AppendCompletedAttempt(ctx, rec); err != nil {
		m.log.WithError(err).WithField("session", session.ID).Warn("persist completion failed")
	}
}
