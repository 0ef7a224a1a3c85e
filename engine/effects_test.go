package engine

import (
	"math/rand"
	"testing"
)

// TestRuleSetOrdering verifies rules apply in descending priority order with
// each effect's output feeding the next condition.
func TestRuleSetOrdering(t *testing.T) {
	var order []string
	mk := func(name string, prio int) Rule {
		return Rule{
			Name:     name,
			Priority: prio,
			Condition: func(s *PuzzleState) bool {
				return true
			},
			Effect: func(s *PuzzleState) *PuzzleState {
				order = append(order, name)
				next := s.Clone()
				next.Meta.MoveCount++
				return next
			},
		}
	}
	rs := NewRuleSet()
	rs.Add(mk("low", 1))
	rs.Add(mk("high", 10))
	rs.Add(mk("mid", 5))

	out := rs.Apply(&PuzzleState{Kind: KindSliding})
	if len(order) != 3 || order[0] != "high" || order[1] != "mid" || order[2] != "low" {
		t.Errorf("unexpected application order: %v", order)
	}
	if out.Meta.MoveCount != 3 {
		t.Errorf("effects did not chain: move count %d", out.Meta.MoveCount)
	}
}

// TestRuleSetSinglePass verifies Apply is one sequential fold, not a
// fixpoint loop: a rule whose condition still holds after its own effect
// fires exactly once per move.
func TestRuleSetSinglePass(t *testing.T) {
	fired := 0
	rs := NewRuleSet()
	rs.Add(Rule{
		Name:      "always",
		Priority:  1,
		Condition: func(s *PuzzleState) bool { return true },
		Effect: func(s *PuzzleState) *PuzzleState {
			fired++
			return s
		},
	})
	rs.Apply(&PuzzleState{Kind: KindSliding})
	if fired != 1 {
		t.Errorf("rule fired %d times in one pass", fired)
	}
}

// TestRuleSetConditionGates verifies an effect never runs when its condition
// is false.
func TestRuleSetConditionGates(t *testing.T) {
	rs := NewRuleSet()
	rs.Add(Rule{
		Name:      "never",
		Priority:  1,
		Condition: func(s *PuzzleState) bool { return false },
		Effect: func(s *PuzzleState) *PuzzleState {
			t.Error("effect ran with false condition")
			return s
		},
	})
	rs.Apply(&PuzzleState{Kind: KindSliding})
}

// TestDefaultRulesSudokuForcedRow verifies the forced-cell rule fills the
// single missing value of a row.
func TestDefaultRulesSudokuForcedRow(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	state, err := NewSudokuSolver().Generate(rng, 1)
	if err != nil {
		t.Fatal(err)
	}
	board := state.Payload.(*SudokuBoard)

	// Fill row 0 from the solution except one cell.
	var hole int = -1
	for c := 0; c < SudokuSize; c++ {
		if !board.Given[0][c] {
			if hole < 0 {
				hole = c
				continue
			}
			board.Cells[0][c] = board.Solution[0][c]
		}
	}
	if hole < 0 {
		t.Skip("row 0 fully given")
	}

	out := DefaultRules(KindSudoku).Apply(state)
	ob := out.Payload.(*SudokuBoard)
	if ob.Cells[0][hole] != board.Solution[0][hole] {
		t.Errorf("forced cell (0,%d) not auto-filled: got %d want %d",
			hole, ob.Cells[0][hole], board.Solution[0][hole])
	}
}

// TestDefaultRulesOtherKindsEmpty verifies sliding and crossword carry no
// default post-move rules.
func TestDefaultRulesOtherKindsEmpty(t *testing.T) {
	if n := DefaultRules(KindSliding).Len(); n != 0 {
		t.Errorf("sliding: expected 0 rules, got %d", n)
	}
	if n := DefaultRules(KindCrossword).Len(); n != 0 {
		t.Errorf("crossword: expected 0 rules, got %d", n)
	}
}
