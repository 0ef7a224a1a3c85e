package engine

import (
	"fmt"
	"math/rand"
)

const (
	// SudokuSize is the side length of the grid.
	SudokuSize = 9
	// SudokuBox is the side length of one box.
	SudokuBox = 3
	// sudokuRemovalCap bounds the total number of carve attempts per
	// generation so harder difficulties cannot search without bound.
	sudokuRemovalCap = 1000
)

// SudokuBoard is the payload for KindSudoku. Cells holds the current grid
// (0 = empty), Given marks the clue cells fixed at generation time, and
// Solution is the unique completion the board was carved from.
type SudokuBoard struct {
	Cells    [SudokuSize][SudokuSize]uint8
	Given    [SudokuSize][SudokuSize]bool
	Solution [SudokuSize][SudokuSize]uint8
}

// Kind implements Payload.
func (b *SudokuBoard) Kind() Kind { return KindSudoku }

// Clone implements Payload. Arrays copy by value, so a struct copy suffices.
func (b *SudokuBoard) Clone() Payload {
	cp := *b
	return &cp
}

// EmptyCells returns the number of unfilled cells.
func (b *SudokuBoard) EmptyCells() int {
	n := 0
	for r := 0; r < SudokuSize; r++ {
		for c := 0; c < SudokuSize; c++ {
			if b.Cells[r][c] == 0 {
				n++
			}
		}
	}
	return n
}

// SudokuMove writes Value into (Row, Col). Value 0 erases a previous entry.
type SudokuMove struct {
	Row   int
	Col   int
	Value uint8
}

// Kind implements MovePayload.
func (SudokuMove) Kind() Kind { return KindSudoku }

// SudokuSolver implements the Solver capability set for classic 9x9 sudoku.
type SudokuSolver struct{}

// NewSudokuSolver returns the sudoku solver.
func NewSudokuSolver() *SudokuSolver { return &SudokuSolver{} }

// Kind implements Solver.
func (*SudokuSolver) Kind() Kind { return KindSudoku }

// targetRemovals maps difficulty (1-10) to the number of cells to carve out.
// Monotonic: difficulty 1 leaves an easy 49-given board, difficulty 5 removes
// ~48 cells, and the hardest settings bottom out at 23 givens.
func targetRemovals(difficulty int) int {
	n := 28 + 4*clampDifficulty(difficulty)
	if n > 58 {
		n = 58
	}
	return n
}

// Generate produces a sudoku with a unique solution.
//
// A full valid grid is filled by randomized constraint-respecting
// backtracking, then clues are removed one at a time. A removal is kept only
// if the bounded solution counter still finds exactly one completion; the
// total number of removal attempts is capped so generation always
// terminates.
func (s *SudokuSolver) Generate(rng *rand.Rand, difficulty int) (*PuzzleState, error) {
	difficulty = clampDifficulty(difficulty)

	var full [SudokuSize][SudokuSize]uint8
	if !fillGrid(rng, &full) {
		// Cannot happen on an empty 9x9 grid, but keep the failure explicit.
		return nil, fmt.Errorf("sudoku generate: backtracking fill failed")
	}

	board := &SudokuBoard{Cells: full, Solution: full}
	for r := 0; r < SudokuSize; r++ {
		for c := 0; c < SudokuSize; c++ {
			board.Given[r][c] = true
		}
	}

	target := targetRemovals(difficulty)
	removed := 0
	attempts := 0

	// Carve in shuffled passes. A pass that removes nothing means every
	// remaining clue is load-bearing, so further passes cannot help.
	for removed < target && attempts < sudokuRemovalCap {
		progress := false
		for _, pos := range rng.Perm(SudokuSize * SudokuSize) {
			if removed >= target || attempts >= sudokuRemovalCap {
				break
			}
			r, c := pos/SudokuSize, pos%SudokuSize
			if board.Cells[r][c] == 0 {
				continue
			}
			attempts++
			old := board.Cells[r][c]
			board.Cells[r][c] = 0
			board.Given[r][c] = false
			if countSolutions(board.Cells, 2) == 1 {
				removed++
				progress = true
			} else {
				board.Cells[r][c] = old
				board.Given[r][c] = true
			}
		}
		if !progress {
			break
		}
	}

	now := nowMs()
	return &PuzzleState{
		Kind:    KindSudoku,
		Payload: board,
		Meta: Metadata{
			Difficulty:     difficulty,
			CreatedAt:      now,
			LastModifiedAt: now,
		},
	}, nil
}

// ValidateMove implements Solver. Rejected moves: wrong payload type,
// out-of-range coordinates or values, writes to given cells, and placements
// that would duplicate a value in the cell's row, column, or box.
func (s *SudokuSolver) ValidateMove(state *PuzzleState, mv Move) error {
	board, m, err := sudokuParts(state, mv)
	if err != nil {
		return err
	}
	if m.Row < 0 || m.Row >= SudokuSize || m.Col < 0 || m.Col >= SudokuSize {
		return fmt.Errorf("%w: cell (%d,%d) out of range", ErrInvalidMove, m.Row, m.Col)
	}
	if m.Value > SudokuSize {
		return fmt.Errorf("%w: value %d out of range", ErrInvalidMove, m.Value)
	}
	if board.Given[m.Row][m.Col] {
		return fmt.Errorf("%w: cell (%d,%d) is a given", ErrInvalidMove, m.Row, m.Col)
	}
	if m.Value != 0 && board.Cells[m.Row][m.Col] != m.Value && sudokuConflicts(&board.Cells, m.Row, m.Col, m.Value) {
		return fmt.Errorf("%w: value %d conflicts at (%d,%d)", ErrInvalidMove, m.Value, m.Row, m.Col)
	}
	return nil
}

// ExecuteMove implements Solver. Pure: returns a new state.
func (s *SudokuSolver) ExecuteMove(state *PuzzleState, mv Move) (*PuzzleState, error) {
	if err := s.ValidateMove(state, mv); err != nil {
		return nil, err
	}
	m := mv.Payload.(SudokuMove)
	next := state.Clone()
	board := next.Payload.(*SudokuBoard)
	board.Cells[m.Row][m.Col] = m.Value
	next.Meta.MoveCount++
	next.Meta.LastModifiedAt = nowMs()
	return next, nil
}

// IsSolved implements Solver: every cell filled and every row, column, and
// box a permutation of 1..9.
func (s *SudokuSolver) IsSolved(state *PuzzleState) bool {
	board, ok := state.Payload.(*SudokuBoard)
	if !ok {
		return false
	}
	return sudokuComplete(&board.Cells)
}

// Hint implements Solver. Hints are deterministic: the targeted cell is the
// first empty cell in row-major order.
func (s *SudokuSolver) Hint(state *PuzzleState, level int) (Hint, error) {
	board, ok := state.Payload.(*SudokuBoard)
	if !ok {
		return Hint{}, fmt.Errorf("%w: payload is not a sudoku board", ErrInvalidMove)
	}
	if level < HintLevelDirectional || level > HintLevelExact {
		return Hint{}, ErrHintLevel
	}
	row, col, found := firstEmpty(&board.Cells)
	if !found {
		return Hint{Level: level, Content: "the grid is full; check for conflicts", Category: "review"}, nil
	}
	switch level {
	case HintLevelDirectional:
		return Hint{
			Level:    level,
			Content:  fmt.Sprintf("look at row %d; it still has open cells", row+1),
			Category: "directional",
		}, nil
	case HintLevelCandidates:
		cands := sudokuCandidates(&board.Cells, row, col)
		return Hint{
			Level:    level,
			Content:  fmt.Sprintf("cell (%d,%d) can only be one of %v", row+1, col+1, cands),
			Category: "candidates",
		}, nil
	default:
		return Hint{
			Level:    level,
			Content:  fmt.Sprintf("place %d at cell (%d,%d)", board.Solution[row][col], row+1, col+1),
			Category: "exact",
		}, nil
	}
}

// Score implements Solver. Monotonic in difficulty and independent of wall
// clock; time effects are added by the session clock.
func (s *SudokuSolver) Score(state *PuzzleState, res Result) int {
	base := state.Meta.Difficulty * 100
	if res.Solved {
		base += 50
	}
	return base
}

// EnumerateMoves implements Solver: every legal placement into an empty,
// non-given cell.
func (s *SudokuSolver) EnumerateMoves(state *PuzzleState) []Move {
	board, ok := state.Payload.(*SudokuBoard)
	if !ok {
		return nil
	}
	var moves []Move
	for r := 0; r < SudokuSize; r++ {
		for c := 0; c < SudokuSize; c++ {
			if board.Cells[r][c] != 0 || board.Given[r][c] {
				continue
			}
			for _, v := range sudokuCandidates(&board.Cells, r, c) {
				moves = append(moves, Move{Payload: SudokuMove{Row: r, Col: c, Value: v}})
			}
		}
	}
	return moves
}

// sudokuParts unwraps the typed payloads shared by Validate/Execute.
func sudokuParts(state *PuzzleState, mv Move) (*SudokuBoard, SudokuMove, error) {
	board, ok := state.Payload.(*SudokuBoard)
	if !ok {
		return nil, SudokuMove{}, fmt.Errorf("%w: payload is not a sudoku board", ErrInvalidMove)
	}
	m, ok := mv.Payload.(SudokuMove)
	if !ok {
		return nil, SudokuMove{}, fmt.Errorf("%w: move is not a sudoku move", ErrInvalidMove)
	}
	return board, m, nil
}

// sudokuConflicts reports whether placing v at (row, col) duplicates v in the
// cell's row, column, or box. The cell itself is ignored.
func sudokuConflicts(cells *[SudokuSize][SudokuSize]uint8, row, col int, v uint8) bool {
	for i := 0; i < SudokuSize; i++ {
		if i != col && cells[row][i] == v {
			return true
		}
		if i != row && cells[i][col] == v {
			return true
		}
	}
	br, bc := (row/SudokuBox)*SudokuBox, (col/SudokuBox)*SudokuBox
	for r := br; r < br+SudokuBox; r++ {
		for c := bc; c < bc+SudokuBox; c++ {
			if (r != row || c != col) && cells[r][c] == v {
				return true
			}
		}
	}
	return false
}

// sudokuCandidates returns the values placeable at (row, col) in ascending
// order.
func sudokuCandidates(cells *[SudokuSize][SudokuSize]uint8, row, col int) []uint8 {
	var out []uint8
	for v := uint8(1); v <= SudokuSize; v++ {
		if !sudokuConflicts(cells, row, col, v) {
			out = append(out, v)
		}
	}
	return out
}

// firstEmpty returns the first empty cell in row-major order.
func firstEmpty(cells *[SudokuSize][SudokuSize]uint8) (row, col int, found bool) {
	for r := 0; r < SudokuSize; r++ {
		for c := 0; c < SudokuSize; c++ {
			if cells[r][c] == 0 {
				return r, c, true
			}
		}
	}
	return 0, 0, false
}

// sudokuComplete reports whether the grid is full with every unit a
// permutation of 1..9.
func sudokuComplete(cells *[SudokuSize][SudokuSize]uint8) bool {
	for r := 0; r < SudokuSize; r++ {
		for c := 0; c < SudokuSize; c++ {
			v := cells[r][c]
			if v == 0 || sudokuConflicts(cells, r, c, v) {
				return false
			}
		}
	}
	return true
}

// fillGrid solves the empty grid into a full valid solution, trying values
// in random order at each cell.
func fillGrid(rng *rand.Rand, grid *[SudokuSize][SudokuSize]uint8) bool {
	row, col, found := firstEmpty(grid)
	if !found {
		return true
	}
	order := rng.Perm(SudokuSize)
	for _, i := range order {
		v := uint8(i + 1)
		if !sudokuConflicts(grid, row, col, v) {
			grid[row][col] = v
			if fillGrid(rng, grid) {
				return true
			}
			grid[row][col] = 0
		}
	}
	return false
}

// countSolutions counts completions of the grid by backtracking, stopping as
// soon as limit solutions are found.
func countSolutions(grid [SudokuSize][SudokuSize]uint8, limit int) int {
	count := 0
	var dfs func() bool
	dfs = func() bool {
		row, col, found := firstEmpty(&grid)
		if !found {
			count++
			return count >= limit
		}
		for v := uint8(1); v <= SudokuSize; v++ {
			if !sudokuConflicts(&grid, row, col, v) {
				grid[row][col] = v
				if dfs() {
					return true
				}
				grid[row][col] = 0
			}
		}
		return false
	}
	dfs()
	return count
}
