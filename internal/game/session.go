package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MindFlowInteractive/quest-api-sub002/engine"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
)

// SessionStatus is the lifecycle state of a puzzle session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusSolved    SessionStatus = "solved"
	StatusAbandoned SessionStatus = "abandoned"
)

// PuzzleSession is one in-progress puzzle. All mutable state is guarded by
// Mu; no lock is shared across sessions.
type PuzzleSession struct {
	ID       uuid.UUID
	PlayerID uuid.UUID // uuid.Nil for anonymous sessions
	Kind     engine.Kind
	Status   SessionStatus

	state     *engine.PuzzleState
	solver    engine.Solver
	rules     *engine.RuleSet
	validator *engine.TransitionValidator
	history   *engine.History
	clock     *engine.SessionClock

	attempts  int // solution checks so far
	createdAt time.Time

	Mu sync.Mutex

	// BroadcastFn pushes session events to subscribers. Nil drops events.
	BroadcastFn BroadcastFunc

	log *logrus.Entry
}

// fireEvent delivers ev through the broadcast callback. Caller holds Mu.
func (s *PuzzleSession) fireEvent(ev SessionEvent) {
	ev.SessionID = s.ID
	ev.PlayerID = s.PlayerID
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}

// State returns a defensive copy of the current puzzle state.
func (s *PuzzleSession) State() *engine.PuzzleState {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.state.Clone()
}

// CurrentStatus returns the lifecycle state.
func (s *PuzzleSession) CurrentStatus() SessionStatus {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.Status
}

// ApplyMove runs the full move pipeline: solver validation, pure execution,
// post-move cause-effect rules, transition invariants, then history. A
// failure at any stage leaves the session exactly as it was.
func (s *PuzzleSession) ApplyMove(mv engine.Move) (*engine.PuzzleState, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Status != StatusActive {
		return nil, apperr.Validation("session %s is %s, no further moves", s.ID, s.Status)
	}

	if err := s.solver.ValidateMove(s.state, mv); err != nil {
		s.fireEvent(SessionEvent{Type: EventMoveRejected, Reason: err.Error()})
		return nil, apperr.Wrap(apperr.KindValidation, err, "move rejected")
	}

	next, err := s.solver.ExecuteMove(s.state, mv)
	if err != nil {
		s.fireEvent(SessionEvent{Type: EventMoveRejected, Reason: err.Error()})
		return nil, apperr.Wrap(apperr.KindValidation, err, "move rejected")
	}

	afterEffects := s.rules.Apply(next)
	effectsFired := afterEffects != next

	if err := s.validator.Validate(s.state, afterEffects); err != nil {
		s.log.WithError(err).Warn("transition invariant rejected an executed move")
		s.fireEvent(SessionEvent{Type: EventMoveRejected, Reason: err.Error()})
		return nil, apperr.Wrap(apperr.KindValidation, err, "transition rejected")
	}

	afterEffects.Meta.TimeSpentMs = s.clock.Elapsed(time.Now()).Milliseconds()
	s.history.AddState(afterEffects)
	s.state = afterEffects

	s.fireEvent(SessionEvent{Type: EventMoveAccepted, MoveCount: afterEffects.Meta.MoveCount, State: afterEffects.Clone()})
	if effectsFired {
		s.fireEvent(SessionEvent{Type: EventEffectsApplied, MoveCount: afterEffects.Meta.MoveCount})
	}
	return afterEffects.Clone(), nil
}

// Undo steps the session back one state.
func (s *PuzzleSession) Undo() (*engine.PuzzleState, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Status != StatusActive {
		return nil, apperr.Validation("session %s is %s", s.ID, s.Status)
	}
	prev, ok := s.history.Undo()
	if !ok {
		return nil, apperr.Validation("nothing to undo")
	}
	s.state = prev
	s.fireEvent(SessionEvent{Type: EventUndoApplied, MoveCount: prev.Meta.MoveCount, State: prev.Clone()})
	return prev.Clone(), nil
}

// Redo steps the session forward one state.
func (s *PuzzleSession) Redo() (*engine.PuzzleState, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Status != StatusActive {
		return nil, apperr.Validation("session %s is %s", s.ID, s.Status)
	}
	next, ok := s.history.Redo()
	if !ok {
		return nil, apperr.Validation("nothing to redo")
	}
	s.state = next
	s.fireEvent(SessionEvent{Type: EventRedoApplied, MoveCount: next.Meta.MoveCount, State: next.Clone()})
	return next.Clone(), nil
}

// Hint issues a hint at the requested level and counts it against the
// session score.
func (s *PuzzleSession) Hint(level int) (engine.Hint, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Status != StatusActive {
		return engine.Hint{}, apperr.Validation("session %s is %s", s.ID, s.Status)
	}
	hint, err := s.solver.Hint(s.state, level)
	if err != nil {
		return engine.Hint{}, apperr.Wrap(apperr.KindValidation, err, "hint unavailable")
	}
	s.state.Meta.HintsUsed++
	s.fireEvent(SessionEvent{Type: EventHintIssued, Hint: &hint})
	return hint, nil
}

// Pause freezes the session clock. Pausing twice is a no-op.
func (s *PuzzleSession) Pause() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.clock.Paused() {
		return
	}
	s.clock.Pause(time.Now())
	s.fireEvent(SessionEvent{Type: EventSessionPaused})
}

// Resume restarts the session clock. Resuming a running session is a no-op.
func (s *PuzzleSession) Resume() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if !s.clock.Paused() {
		return
	}
	s.clock.Resume(time.Now())
	s.fireEvent(SessionEvent{Type: EventSessionResumed})
}

// Paused reports whether the session clock is frozen.
func (s *PuzzleSession) Paused() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.clock.Paused()
}

// Elapsed returns active play time.
func (s *PuzzleSession) Elapsed() time.Duration {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.clock.Elapsed(time.Now())
}

// CanUndo reports whether an undo would succeed.
func (s *PuzzleSession) CanUndo() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether a redo would succeed.
func (s *PuzzleSession) CanRedo() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.history.CanRedo()
}

// score composes the session result for the current state. Caller holds Mu.
func (s *PuzzleSession) score(solved bool, elapsed time.Duration, target time.Duration) engine.Result {
	res := engine.Result{
		Solved:    solved,
		HintsUsed: s.state.Meta.HintsUsed,
	}
	res.BaseScore = s.solver.Score(s.state, res)
	if solved {
		res.TimeBonus = engine.TimeBonus(elapsed, target, engine.DefaultTimeBonusCap)
	}
	res.MovesPenalty = s.state.Meta.MoveCount * engine.DefaultMovePenalty
	res.TotalScore = engine.FinalScore(res.BaseScore, res.TimeBonus, res.MovesPenalty, res.HintsUsed, engine.DefaultHintPenalty)
	return res
}
