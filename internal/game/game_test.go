package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MindFlowInteractive/quest-api-sub002/engine"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/difficulty"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/models"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/stats"
)

// mockBroadcaster records every event fired on a session.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (m *mockBroadcaster) fn() BroadcastFunc {
	return func(ev SessionEvent) {
		m.mu.Lock()
		m.events = append(m.events, ev)
		m.mu.Unlock()
	}
}

func (m *mockBroadcaster) types() []SessionEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionEventType, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}

func (m *mockBroadcaster) has(t SessionEventType) bool {
	for _, got := range m.types() {
		if got == t {
			return true
		}
	}
	return false
}

// stubAdjuster returns a fixed difficulty and records reports.
type stubAdjuster struct {
	mu       sync.Mutex
	resolved int
	reports  []difficulty.Report
}

func (s *stubAdjuster) OptimalDifficulty(_ context.Context, _ uuid.UUID, base int) int {
	if s.resolved != 0 {
		return s.resolved
	}
	return base
}

func (s *stubAdjuster) ReportCompletion(_ context.Context, _ uuid.UUID, rep difficulty.Report) {
	s.mu.Lock()
	s.reports = append(s.reports, rep)
	s.mu.Unlock()
}

// stubAnalyzer returns a canned analysis.
type stubAnalyzer struct {
	mu      sync.Mutex
	calls   int
	verdict *stats.AnalysisResult
}

func (s *stubAnalyzer) Analyze(_ context.Context, userID uuid.UUID, sample stats.PerformanceSample) (*stats.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.verdict != nil {
		return s.verdict, nil
	}
	return &stats.AnalysisResult{UserID: userID, Sample: sample, Severity: stats.RiskLow}, nil
}

// stubRecorder collects persisted attempts.
type stubRecorder struct {
	mu      sync.Mutex
	records []models.CompletionRecord
}

func (s *stubRecorder) AppendCompletedAttempt(_ context.Context, rec models.CompletionRecord) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

type managerFixture struct {
	manager  *Manager
	adjuster *stubAdjuster
	analyzer *stubAnalyzer
	recorder *stubRecorder
}

func newFixture(t *testing.T) *managerFixture {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	f := &managerFixture{
		adjuster: &stubAdjuster{},
		analyzer: &stubAnalyzer{},
		recorder: &stubRecorder{},
	}
	f.manager = NewManager(engine.DefaultRegistry(), f.adjuster, f.analyzer, f.recorder, log, Options{Seed: 7})
	return f
}

func TestCreateSessionUnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.CreateSession(context.Background(), "chess", 5, uuid.Nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateSessionUnregisteredSolverIsConfigurationError(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	m := NewManager(engine.NewRegistry(), nil, nil, nil, log, Options{Seed: 7})
	_, err := m.CreateSession(context.Background(), "sudoku", 5, uuid.Nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func TestCreateSessionResolvesDifficultyForPlayer(t *testing.T) {
	f := newFixture(t)
	f.adjuster.resolved = 7

	session, err := f.manager.CreateSession(context.Background(), "sliding", 5, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 7, session.State().Meta.Difficulty)

	// Anonymous sessions skip the adjuster.
	anon, err := f.manager.CreateSession(context.Background(), "sliding", 5, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 5, anon.State().Meta.Difficulty)
}

func TestGetSessionNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.GetSession(uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestApplyMoveAcceptedAndBroadcast(t *testing.T) {
	f := newFixture(t)
	session, err := f.manager.CreateSession(context.Background(), "sliding", 5, uuid.Nil)
	require.NoError(t, err)
	bc := &mockBroadcaster{}
	session.BroadcastFn = bc.fn()

	state := session.State()
	moves := engine.NewSlidingSolver().EnumerateMoves(state)
	require.NotEmpty(t, moves)

	next, err := session.ApplyMove(moves[0])
	require.NoError(t, err)
	assert.Equal(t, 1, next.Meta.MoveCount)
	assert.True(t, bc.has(EventMoveAccepted))
	assert.True(t, session.CanUndo())
}

func TestApplyMoveRejectedLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	session, err := f.manager.CreateSession(context.Background(), "sudoku", 5, uuid.Nil)
	require.NoError(t, err)
	bc := &mockBroadcaster{}
	session.BroadcastFn = bc.fn()
	before := session.State()

	_, err = session.ApplyMove(engine.Move{Payload: engine.SudokuMove{Row: -1, Col: 0, Value: 1}})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.True(t, bc.has(EventMoveRejected))

	after := session.State()
	assert.Equal(t, before.Meta.MoveCount, after.Meta.MoveCount)
	assert.False(t, session.CanUndo())
}

func TestUndoRedoRoundTrip(t *testing.T) {
	f := newFixture(t)
	session, err := f.manager.CreateSession(context.Background(), "sliding", 3, uuid.Nil)
	require.NoError(t, err)
	solver := engine.NewSlidingSolver()

	for i := 0; i < 3; i++ {
		moves := solver.EnumerateMoves(session.State())
		_, err := session.ApplyMove(moves[0])
		require.NoError(t, err)
	}
	require.Equal(t, 3, session.State().Meta.MoveCount)

	undone, err := session.Undo()
	require.NoError(t, err)
	assert.Equal(t, 2, undone.Meta.MoveCount)

	redone, err := session.Redo()
	require.NoError(t, err)
	assert.Equal(t, 3, redone.Meta.MoveCount)

	// A new move after undo discards the redo branch.
	_, err = session.Undo()
	require.NoError(t, err)
	moves := solver.EnumerateMoves(session.State())
	_, err = session.ApplyMove(moves[0])
	require.NoError(t, err)
	assert.False(t, session.CanRedo())
}

func TestHintCountsAgainstSession(t *testing.T) {
	f := newFixture(t)
	session, err := f.manager.CreateSession(context.Background(), "sudoku", 4, uuid.Nil)
	require.NoError(t, err)

	hint, err := session.Hint(engine.HintLevelExact)
	require.NoError(t, err)
	assert.Equal(t, "exact", hint.Category)
	assert.Equal(t, 1, session.State().Meta.HintsUsed)

	_, err = session.Hint(9)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestPauseResumeIdempotent(t *testing.T) {
	f := newFixture(t)
	session, err := f.manager.CreateSession(context.Background(), "sliding", 5, uuid.Nil)
	require.NoError(t, err)
	bc := &mockBroadcaster{}
	session.BroadcastFn = bc.fn()

	session.Pause()
	session.Pause()
	assert.True(t, session.Paused())
	frozen := session.Elapsed()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, frozen, session.Elapsed())

	session.Resume()
	session.Resume()
	assert.False(t, session.Paused())

	// Each state change broadcast exactly once.
	count := 0
	for _, typ := range bc.types() {
		if typ == EventSessionPaused || typ == EventSessionResumed {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

// TestSolveThroughScenario drives a difficulty-5 sudoku to completion via
// ApplyMove and checks the full finish pipeline.
func TestSolveThroughScenario(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()
	session, err := f.manager.CreateSession(context.Background(), "sudoku", 5, player)
	require.NoError(t, err)
	bc := &mockBroadcaster{}
	session.BroadcastFn = bc.fn()
	solver := engine.NewSudokuSolver()

	for guard := 0; guard < 100; guard++ {
		state := session.State()
		if solver.IsSolved(state) {
			break
		}
		board := state.Payload.(*engine.SudokuBoard)
		applied := false
		for r := 0; r < engine.SudokuSize && !applied; r++ {
			for c := 0; c < engine.SudokuSize && !applied; c++ {
				if board.Cells[r][c] == 0 {
					_, err := session.ApplyMove(engine.Move{Payload: engine.SudokuMove{
						Row: r, Col: c, Value: board.Solution[r][c],
					}})
					require.NoError(t, err)
					applied = true
				}
			}
		}
		require.True(t, applied, "no empty cell found on an unsolved board")
	}
	require.True(t, solver.IsSolved(session.State()))

	check, err := f.manager.CheckSolution(context.Background(), session.ID, nil)
	require.NoError(t, err)
	assert.True(t, check.Result.Solved)
	assert.Greater(t, check.Result.TotalScore, 0)
	require.NotNil(t, check.Analysis)
	assert.Equal(t, StatusSolved, session.CurrentStatus())
	assert.True(t, bc.has(EventSessionSolved))

	// Finish pipeline: analyzer ran, attempt persisted, metrics reported.
	assert.Equal(t, 1, f.analyzer.calls)
	require.Len(t, f.recorder.records, 1)
	rec := f.recorder.records[0]
	assert.True(t, rec.IsCompleted)
	assert.Equal(t, player, rec.UserID)
	assert.Equal(t, 5, rec.DifficultyRating)
	require.Len(t, f.adjuster.reports, 1)
	assert.True(t, f.adjuster.reports[0].Solved)

	// Solved is final: no further moves.
	moves := solver.EnumerateMoves(session.State())
	if len(moves) > 0 {
		_, err = session.ApplyMove(moves[0])
		require.Error(t, err)
	}
}

func TestCheckSolutionUnsolvedKeepsSessionActive(t *testing.T) {
	f := newFixture(t)
	session, err := f.manager.CreateSession(context.Background(), "sudoku", 5, uuid.New())
	require.NoError(t, err)

	check, err := f.manager.CheckSolution(context.Background(), session.ID, nil)
	require.NoError(t, err)
	assert.False(t, check.Result.Solved)
	assert.Nil(t, check.Analysis)
	assert.Equal(t, StatusActive, session.CurrentStatus())
	assert.Empty(t, f.recorder.records)
}

func TestAbandonSession(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()
	session, err := f.manager.CreateSession(context.Background(), "sliding", 5, player)
	require.NoError(t, err)
	bc := &mockBroadcaster{}
	session.BroadcastFn = bc.fn()

	require.NoError(t, f.manager.Abandon(context.Background(), session.ID))
	assert.Equal(t, StatusAbandoned, session.CurrentStatus())
	assert.True(t, bc.has(EventSessionAbandoned))

	// Abandoning twice is a validation error.
	err = f.manager.Abandon(context.Background(), session.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// The failed attempt is still recorded and reported.
	require.Len(t, f.recorder.records, 1)
	assert.False(t, f.recorder.records[0].IsCompleted)
	require.Len(t, f.adjuster.reports, 1)
	assert.False(t, f.adjuster.reports[0].Solved)

	// Abandoned sessions reject moves and solution checks.
	moves := engine.NewSlidingSolver().EnumerateMoves(session.State())
	_, err = session.ApplyMove(moves[0])
	require.Error(t, err)
	_, err = f.manager.CheckSolution(context.Background(), session.ID, nil)
	require.Error(t, err)
}

func TestRemoveSessionOnlyWhenFinished(t *testing.T) {
	f := newFixture(t)
	session, err := f.manager.CreateSession(context.Background(), "sliding", 5, uuid.Nil)
	require.NoError(t, err)

	err = f.manager.RemoveSession(session.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, f.manager.Abandon(context.Background(), session.ID))
	require.NoError(t, f.manager.RemoveSession(session.ID))
	_, err = f.manager.GetSession(session.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Empty(t, f.manager.ListSessions())
}
