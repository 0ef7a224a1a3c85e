package engine

import "fmt"

// TransitionPredicate is one invariant that must hold across any accepted
// move, independent of the move's own legality.
type TransitionPredicate struct {
	Name  string
	Check func(from, to *PuzzleState) bool
}

// TransitionValidator holds per-kind predicate lists plus predicates common
// to all kinds. Validate is the logical AND of every applicable predicate; a
// failure is fatal for the move (the caller must leave session state
// unchanged).
type TransitionValidator struct {
	common []TransitionPredicate
	byKind map[Kind][]TransitionPredicate
}

// NewTransitionValidator returns a validator with the built-in invariants
// registered.
func NewTransitionValidator() *TransitionValidator {
	v := &TransitionValidator{byKind: make(map[Kind][]TransitionPredicate)}

	v.RegisterCommon(TransitionPredicate{
		Name: "identity-stable",
		Check: func(from, to *PuzzleState) bool {
			return from.ID == to.ID && from.Kind == to.Kind
		},
	})
	v.RegisterCommon(TransitionPredicate{
		Name: "move-count-increases",
		Check: func(from, to *PuzzleState) bool {
			return to.Meta.MoveCount > from.Meta.MoveCount
		},
	})
	v.RegisterCommon(TransitionPredicate{
		Name: "solved-is-final",
		Check: func(from, to *PuzzleState) bool {
			return !from.Solved
		},
	})

	v.Register(KindSudoku, TransitionPredicate{Name: "sudoku-givens-immutable", Check: sudokuGivensPreserved})
	v.Register(KindSudoku, TransitionPredicate{Name: "sudoku-no-duplicates", Check: sudokuStructurallyValid})
	v.Register(KindSliding, TransitionPredicate{Name: "sliding-tiles-preserved", Check: slidingTilesPreserved})
	v.Register(KindCrossword, TransitionPredicate{Name: "crossword-layout-immutable", Check: crosswordLayoutPreserved})
	return v
}

// RegisterCommon adds a predicate applied to every kind.
func (v *TransitionValidator) RegisterCommon(p TransitionPredicate) {
	v.common = append(v.common, p)
}

// Register adds a predicate applied only to the given kind.
func (v *TransitionValidator) Register(k Kind, p TransitionPredicate) {
	v.byKind[k] = append(v.byKind[k], p)
}

// Validate checks every applicable predicate and returns an
// ErrInvalidTransition naming the first failure.
func (v *TransitionValidator) Validate(from, to *PuzzleState) error {
	for _, p := range v.common {
		if !p.Check(from, to) {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, p.Name)
		}
	}
	for _, p := range v.byKind[from.Kind] {
		if !p.Check(from, to) {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, p.Name)
		}
	}
	return nil
}

// sudokuGivensPreserved verifies the given mask and every given value are
// byte-identical across the transition.
func sudokuGivensPreserved(from, to *PuzzleState) bool {
	fb, ok1 := from.Payload.(*SudokuBoard)
	tb, ok2 := to.Payload.(*SudokuBoard)
	if !ok1 || !ok2 {
		return false
	}
	for r := 0; r < SudokuSize; r++ {
		for c := 0; c < SudokuSize; c++ {
			if fb.Given[r][c] != tb.Given[r][c] {
				return false
			}
			if fb.Given[r][c] && fb.Cells[r][c] != tb.Cells[r][c] {
				return false
			}
		}
	}
	return true
}

// sudokuStructurallyValid verifies no row, column, or box of the new state
// contains two equal non-zero values. This holds after every transition, not
// just at generation.
func sudokuStructurallyValid(from, to *PuzzleState) bool {
	tb, ok := to.Payload.(*SudokuBoard)
	if !ok {
		return false
	}
	for r := 0; r < SudokuSize; r++ {
		for c := 0; c < SudokuSize; c++ {
			if v := tb.Cells[r][c]; v != 0 && sudokuConflicts(&tb.Cells, r, c, v) {
				return false
			}
		}
	}
	return true
}

// slidingTilesPreserved verifies the board dimensions and the tile multiset
// are unchanged.
func slidingTilesPreserved(from, to *PuzzleState) bool {
	fb, ok1 := from.Payload.(*SlidingBoard)
	tb, ok2 := to.Payload.(*SlidingBoard)
	if !ok1 || !ok2 || fb.Size != tb.Size || len(fb.Tiles) != len(tb.Tiles) {
		return false
	}
	var fromSet, toSet [256]int
	for i := range fb.Tiles {
		fromSet[fb.Tiles[i]]++
		toSet[tb.Tiles[i]]++
	}
	return fromSet == toSet
}

// crosswordLayoutPreserved verifies dimensions, blocks, and given letters
// are unchanged.
func crosswordLayoutPreserved(from, to *PuzzleState) bool {
	fb, ok1 := from.Payload.(*CrosswordBoard)
	tb, ok2 := to.Payload.(*CrosswordBoard)
	if !ok1 || !ok2 || fb.Rows != tb.Rows || fb.Cols != tb.Cols {
		return false
	}
	for r := 0; r < fb.Rows; r++ {
		for c := 0; c < fb.Cols; c++ {
			if fb.Blocks[r][c] != tb.Blocks[r][c] || fb.Given[r][c] != tb.Given[r][c] {
				return false
			}
			if fb.Given[r][c] && fb.Cells[r][c] != tb.Cells[r][c] {
				return false
			}
		}
	}
	return true
}
