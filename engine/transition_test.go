package engine

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
)

// legalStep applies one legal solution move via the solver for use as a valid
// baseline transition.
func legalStep(t *testing.T, state *PuzzleState) *PuzzleState {
	t.Helper()
	solver, err := DefaultRegistry().Lookup(state.Kind)
	if err != nil {
		t.Fatal(err)
	}
	moves := solver.EnumerateMoves(state)
	if len(moves) == 0 {
		t.Fatal("no legal moves available")
	}
	next, err := solver.ExecuteMove(state, moves[0])
	if err != nil {
		t.Fatal(err)
	}
	return next
}

// TestTransitionAcceptsLegalMoves verifies a solver-produced transition
// passes every registered predicate for each kind.
func TestTransitionAcceptsLegalMoves(t *testing.T) {
	v := NewTransitionValidator()
	for _, gen := range []func() *PuzzleState{
		func() *PuzzleState { return genSudoku(t, 41, 5) },
		func() *PuzzleState { return genSliding(t, 41, 5) },
		func() *PuzzleState { return genCrossword(t, 41, 5) },
	} {
		from := gen()
		to := legalStep(t, from)
		if err := v.Validate(from, to); err != nil {
			t.Errorf("%s: legal transition rejected: %v", from.Kind, err)
		}
	}
}

// TestTransitionRejectsIdentityChange verifies a transition may not change
// the session identity or the kind.
func TestTransitionRejectsIdentityChange(t *testing.T) {
	v := NewTransitionValidator()
	from := genSliding(t, 43, 5)
	to := legalStep(t, from)
	to.ID = "someone-else"
	if err := v.Validate(from, to); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// TestTransitionRejectsStaleMoveCount verifies the move counter must advance.
func TestTransitionRejectsStaleMoveCount(t *testing.T) {
	v := NewTransitionValidator()
	from := genSliding(t, 47, 5)
	to := legalStep(t, from)
	to.Meta.MoveCount = from.Meta.MoveCount
	if err := v.Validate(from, to); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// TestTransitionRejectsMoveAfterSolved verifies a solved state is terminal.
func TestTransitionRejectsMoveAfterSolved(t *testing.T) {
	v := NewTransitionValidator()
	from := genSliding(t, 53, 5)
	to := legalStep(t, from)
	from.Solved = true
	err := v.Validate(from, to)
	if !errors.Is(err, ErrInvalidTransition) || !strings.Contains(err.Error(), "solved-is-final") {
		t.Errorf("expected solved-is-final failure, got %v", err)
	}
}

// TestTransitionRejectsGivenOverwrite verifies a sudoku transition touching a
// given cell fails even when the caller bumped the move counter.
func TestTransitionRejectsGivenOverwrite(t *testing.T) {
	v := NewTransitionValidator()
	from := genSudoku(t, 59, 5)
	to := from.Clone()
	to.Meta.MoveCount++

	board := to.Payload.(*SudokuBoard)
	for r := 0; r < SudokuSize; r++ {
		for c := 0; c < SudokuSize; c++ {
			if board.Given[r][c] {
				board.Cells[r][c] = board.Cells[r][c]%9 + 1
				err := v.Validate(from, to)
				if !errors.Is(err, ErrInvalidTransition) || !strings.Contains(err.Error(), "givens-immutable") {
					t.Errorf("expected givens-immutable failure, got %v", err)
				}
				return
			}
		}
	}
	t.Fatal("no given cells")
}

// TestTransitionRejectsSudokuDuplicate verifies the structural check catches
// a duplicate smuggled past move validation.
func TestTransitionRejectsSudokuDuplicate(t *testing.T) {
	v := NewTransitionValidator()
	from := genSudoku(t, 61, 5)
	to := from.Clone()
	to.Meta.MoveCount++

	board := to.Payload.(*SudokuBoard)
	for r := 0; r < SudokuSize; r++ {
		var present uint8
		hole := -1
		for c := 0; c < SudokuSize; c++ {
			if board.Cells[r][c] != 0 && present == 0 {
				present = board.Cells[r][c]
			}
			if board.Cells[r][c] == 0 && !board.Given[r][c] && hole < 0 {
				hole = c
			}
		}
		if present != 0 && hole >= 0 {
			board.Cells[r][hole] = present
			err := v.Validate(from, to)
			if !errors.Is(err, ErrInvalidTransition) || !strings.Contains(err.Error(), "no-duplicates") {
				t.Errorf("expected no-duplicates failure, got %v", err)
			}
			return
		}
	}
	t.Skip("no row with both a value and a hole")
}

// TestTransitionRejectsTileTeleport verifies a sliding transition that
// duplicates a tile fails the multiset check.
func TestTransitionRejectsTileTeleport(t *testing.T) {
	v := NewTransitionValidator()
	from := genSliding(t, 67, 5)
	to := from.Clone()
	to.Meta.MoveCount++

	board := to.Payload.(*SlidingBoard)
	board.Tiles[board.blankIndex()] = board.Tiles[0]
	err := v.Validate(from, to)
	if !errors.Is(err, ErrInvalidTransition) || !strings.Contains(err.Error(), "tiles-preserved") {
		t.Errorf("expected tiles-preserved failure, got %v", err)
	}
}

// TestTransitionRejectsCrosswordLayoutChange verifies blocks cannot move.
func TestTransitionRejectsCrosswordLayoutChange(t *testing.T) {
	v := NewTransitionValidator()
	from := genCrossword(t, 71, 5)
	to := from.Clone()
	to.Meta.MoveCount++

	board := to.Payload.(*CrosswordBoard)
	board.Blocks[0][0] = !board.Blocks[0][0]
	err := v.Validate(from, to)
	if !errors.Is(err, ErrInvalidTransition) || !strings.Contains(err.Error(), "layout-immutable") {
		t.Errorf("expected layout-immutable failure, got %v", err)
	}
}

// TestTransitionCustomPredicate verifies service code can register extra
// invariants per kind.
func TestTransitionCustomPredicate(t *testing.T) {
	v := NewTransitionValidator()
	v.Register(KindSliding, TransitionPredicate{
		Name:  "hints-never-decrease",
		Check: func(from, to *PuzzleState) bool { return to.Meta.HintsUsed >= from.Meta.HintsUsed },
	})
	from := genSliding(t, 73, 5)
	from.Meta.HintsUsed = 2
	to := legalStep(t, from)
	to.Meta.HintsUsed = 1
	if err := v.Validate(from, to); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected custom predicate failure, got %v", err)
	}
}

// TestTransitionMismatchedPayload verifies per-kind checks fail closed when a
// payload carries the wrong concrete type.
func TestTransitionMismatchedPayload(t *testing.T) {
	v := NewTransitionValidator()
	from := genSudoku(t, 79, 5)
	to := from.Clone()
	to.Meta.MoveCount++
	rng := rand.New(rand.NewSource(79))
	other, err := NewSlidingSolver().Generate(rng, 5)
	if err != nil {
		t.Fatal(err)
	}
	to.Payload = other.Payload
	if err := v.Validate(from, to); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for mismatched payload, got %v", err)
	}
}
