package engine

import "sort"

// Rule is one (condition, effect) pair. Effect must be pure: it returns a
// new state and leaves its input untouched.
type Rule struct {
	Name      string
	Priority  int
	Condition func(*PuzzleState) bool
	Effect    func(*PuzzleState) *PuzzleState
}

// RuleSet holds the ordered post-move rules for one puzzle kind.
//
// Apply is a single sequential fold in descending priority order: each
// effect's output feeds the next rule's condition. It is NOT a fixpoint
// loop; a rule fires at most once per move.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet returns an empty rule set.
func NewRuleSet() *RuleSet { return &RuleSet{} }

// Add inserts a rule, keeping the set sorted by descending priority. Equal
// priorities keep insertion order.
func (rs *RuleSet) Add(r Rule) {
	rs.rules = append(rs.rules, r)
	sort.SliceStable(rs.rules, func(i, j int) bool {
		return rs.rules[i].Priority > rs.rules[j].Priority
	})
}

// Len returns the number of registered rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Apply runs one ordered pass over the rules against the post-move state and
// returns the resulting state.
func (rs *RuleSet) Apply(state *PuzzleState) *PuzzleState {
	current := state
	for _, r := range rs.rules {
		if r.Condition(current) {
			current = r.Effect(current)
		}
	}
	return current
}

// DefaultRules returns the built-in post-move rules for a kind. Sliding and
// crossword puzzles have no chained consequences; sudoku auto-fills forced
// cells (a row, column, or box with exactly one empty cell), with row fills
// feeding the column rule and column fills feeding the box rule within the
// same pass.
func DefaultRules(kind Kind) *RuleSet {
	rs := NewRuleSet()
	if kind != KindSudoku {
		return rs
	}
	rs.Add(Rule{
		Name:      "sudoku.forced-row",
		Priority:  30,
		Condition: hasForcedCell(forcedInRows),
		Effect:    fillForcedCells(forcedInRows),
	})
	rs.Add(Rule{
		Name:      "sudoku.forced-col",
		Priority:  20,
		Condition: hasForcedCell(forcedInCols),
		Effect:    fillForcedCells(forcedInCols),
	})
	rs.Add(Rule{
		Name:      "sudoku.forced-box",
		Priority:  10,
		Condition: hasForcedCell(forcedInBoxes),
		Effect:    fillForcedCells(forcedInBoxes),
	})
	return rs
}

// forcedCell is a cell whose value is forced by its unit.
type forcedCell struct {
	row, col int
	value    uint8
}

// forcedFinder scans a board for forced cells in one unit family.
type forcedFinder func(*SudokuBoard) []forcedCell

// hasForcedCell builds a rule condition from a finder.
func hasForcedCell(find forcedFinder) func(*PuzzleState) bool {
	return func(s *PuzzleState) bool {
		board, ok := s.Payload.(*SudokuBoard)
		return ok && len(find(board)) > 0
	}
}

// fillForcedCells builds a rule effect from a finder. Fills are skipped when
// the forced value would conflict with another unit (possible when the
// player has entered a wrong value elsewhere).
func fillForcedCells(find forcedFinder) func(*PuzzleState) *PuzzleState {
	return func(s *PuzzleState) *PuzzleState {
		board := s.Payload.(*SudokuBoard)
		cells := find(board)
		if len(cells) == 0 {
			return s
		}
		next := s.Clone()
		nb := next.Payload.(*SudokuBoard)
		for _, fc := range cells {
			if nb.Cells[fc.row][fc.col] == 0 && !sudokuConflicts(&nb.Cells, fc.row, fc.col, fc.value) {
				nb.Cells[fc.row][fc.col] = fc.value
			}
		}
		next.Meta.LastModifiedAt = nowMs()
		return next
	}
}

// missingValue returns the single absent value of a 9-cell unit, or 0 when
// the unit does not have exactly one empty cell.
func missingValue(values []uint8) uint8 {
	var seen [SudokuSize + 1]bool
	empties := 0
	for _, v := range values {
		if v == 0 {
			empties++
		} else {
			seen[v] = true
		}
	}
	if empties != 1 {
		return 0
	}
	for v := uint8(1); v <= SudokuSize; v++ {
		if !seen[v] {
			return v
		}
	}
	return 0
}

func forcedInRows(b *SudokuBoard) []forcedCell {
	var out []forcedCell
	for r := 0; r < SudokuSize; r++ {
		if v := missingValue(b.Cells[r][:]); v != 0 {
			for c := 0; c < SudokuSize; c++ {
				if b.Cells[r][c] == 0 {
					out = append(out, forcedCell{r, c, v})
				}
			}
		}
	}
	return out
}

func forcedInCols(b *SudokuBoard) []forcedCell {
	var out []forcedCell
	for c := 0; c < SudokuSize; c++ {
		col := make([]uint8, SudokuSize)
		for r := 0; r < SudokuSize; r++ {
			col[r] = b.Cells[r][c]
		}
		if v := missingValue(col); v != 0 {
			for r := 0; r < SudokuSize; r++ {
				if b.Cells[r][c] == 0 {
					out = append(out, forcedCell{r, c, v})
				}
			}
		}
	}
	return out
}

func forcedInBoxes(b *SudokuBoard) []forcedCell {
	var out []forcedCell
	for br := 0; br < SudokuSize; br += SudokuBox {
		for bc := 0; bc < SudokuSize; bc += SudokuBox {
			box := make([]uint8, 0, SudokuSize)
			for r := br; r < br+SudokuBox; r++ {
				for c := bc; c < bc+SudokuBox; c++ {
					box = append(box, b.Cells[r][c])
				}
			}
			if v := missingValue(box); v != 0 {
				for r := br; r < br+SudokuBox; r++ {
					for c := bc; c < bc+SudokuBox; c++ {
						if b.Cells[r][c] == 0 {
							out = append(out, forcedCell{r, c, v})
						}
					}
				}
			}
		}
	}
	return out
}
