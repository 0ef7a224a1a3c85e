package engine

import (
	"fmt"
	"math/rand"
)

// Sliding puzzle board sizes by difficulty band.
const (
	slidingSizeSmall  = 3 // 8-puzzle, difficulty 1-4
	slidingSizeMedium = 4 // 15-puzzle, difficulty 5-8
	slidingSizeLarge  = 5 // 24-puzzle, difficulty 9-10
)

// SlidingBoard is the payload for KindSliding. Tiles is the row-major board
// with 0 as the blank. The target ordering is 1..n*n-1 followed by the blank.
type SlidingBoard struct {
	Size  int
	Tiles []uint8
}

// Kind implements Payload.
func (b *SlidingBoard) Kind() Kind { return KindSliding }

// Clone implements Payload.
func (b *SlidingBoard) Clone() Payload {
	cp := &SlidingBoard{Size: b.Size, Tiles: make([]uint8, len(b.Tiles))}
	copy(cp.Tiles, b.Tiles)
	return cp
}

// blankIndex returns the position of the blank.
func (b *SlidingBoard) blankIndex() int {
	for i, t := range b.Tiles {
		if t == 0 {
			return i
		}
	}
	return -1
}

// tileIndex returns the position of tile t, or -1.
func (b *SlidingBoard) tileIndex(t uint8) int {
	for i, v := range b.Tiles {
		if v == t {
			return i
		}
	}
	return -1
}

// SlidingMove slides the named tile into the adjacent blank.
type SlidingMove struct {
	Tile uint8
}

// Kind implements MovePayload.
func (SlidingMove) Kind() Kind { return KindSliding }

// SlidingSolver implements the Solver capability set for N*N tile puzzles.
type SlidingSolver struct{}

// NewSlidingSolver returns the sliding puzzle solver.
func NewSlidingSolver() *SlidingSolver { return &SlidingSolver{} }

// Kind implements Solver.
func (*SlidingSolver) Kind() Kind { return KindSliding }

// slidingSize maps difficulty to board size.
func slidingSize(difficulty int) int {
	switch d := clampDifficulty(difficulty); {
	case d <= 4:
		return slidingSizeSmall
	case d <= 8:
		return slidingSizeMedium
	default:
		return slidingSizeLarge
	}
}

// Generate produces a solvable board by walking backwards from the solved
// position with random legal slides. Difficulty scales both the board size
// and the scramble length, and the scramble never undoes its previous slide
// so shuffles do not collapse.
func (s *SlidingSolver) Generate(rng *rand.Rand, difficulty int) (*PuzzleState, error) {
	difficulty = clampDifficulty(difficulty)
	size := slidingSize(difficulty)
	board := &SlidingBoard{Size: size, Tiles: make([]uint8, size*size)}
	for i := 0; i < size*size-1; i++ {
		board.Tiles[i] = uint8(i + 1)
	}

	scramble := 20 + difficulty*15
	prevBlank := -1
	blank := board.blankIndex()
	for i := 0; i < scramble; i++ {
		neighbors := adjacentIndices(size, blank)
		// Drop the slide that would undo the previous one.
		cands := neighbors[:0:0]
		for _, n := range neighbors {
			if n != prevBlank {
				cands = append(cands, n)
			}
		}
		pick := cands[rng.Intn(len(cands))]
		board.Tiles[blank], board.Tiles[pick] = board.Tiles[pick], board.Tiles[blank]
		prevBlank = blank
		blank = pick
	}

	now := nowMs()
	return &PuzzleState{
		Kind:    KindSliding,
		Payload: board,
		Meta: Metadata{
			Difficulty:     difficulty,
			CreatedAt:      now,
			LastModifiedAt: now,
		},
	}, nil
}

// ValidateMove implements Solver: the named tile must exist and sit adjacent
// to the blank.
func (s *SlidingSolver) ValidateMove(state *PuzzleState, mv Move) error {
	board, m, err := slidingParts(state, mv)
	if err != nil {
		return err
	}
	if m.Tile == 0 || int(m.Tile) >= board.Size*board.Size {
		return fmt.Errorf("%w: tile %d out of range", ErrInvalidMove, m.Tile)
	}
	ti := board.tileIndex(m.Tile)
	blank := board.blankIndex()
	if ti < 0 || blank < 0 {
		return fmt.Errorf("%w: malformed board", ErrInvalidMove)
	}
	for _, n := range adjacentIndices(board.Size, blank) {
		if n == ti {
			return nil
		}
	}
	return fmt.Errorf("%w: tile %d is not adjacent to the blank", ErrInvalidMove, m.Tile)
}

// ExecuteMove implements Solver.
func (s *SlidingSolver) ExecuteMove(state *PuzzleState, mv Move) (*PuzzleState, error) {
	if err := s.ValidateMove(state, mv); err != nil {
		return nil, err
	}
	m := mv.Payload.(SlidingMove)
	next := state.Clone()
	board := next.Payload.(*SlidingBoard)
	ti := board.tileIndex(m.Tile)
	blank := board.blankIndex()
	board.Tiles[ti], board.Tiles[blank] = board.Tiles[blank], board.Tiles[ti]
	next.Meta.MoveCount++
	next.Meta.LastModifiedAt = nowMs()
	return next, nil
}

// IsSolved implements Solver: the payload equals the target ordering.
func (s *SlidingSolver) IsSolved(state *PuzzleState) bool {
	board, ok := state.Payload.(*SlidingBoard)
	if !ok {
		return false
	}
	n := board.Size * board.Size
	for i := 0; i < n-1; i++ {
		if board.Tiles[i] != uint8(i+1) {
			return false
		}
	}
	return board.Tiles[n-1] == 0
}

// Hint implements Solver. The targeted tile is the lowest-numbered tile out
// of place; level 3 names a concrete slide that reduces total Manhattan
// distance if one is legal this turn.
func (s *SlidingSolver) Hint(state *PuzzleState, level int) (Hint, error) {
	board, ok := state.Payload.(*SlidingBoard)
	if !ok {
		return Hint{}, fmt.Errorf("%w: payload is not a sliding board", ErrInvalidMove)
	}
	if level < HintLevelDirectional || level > HintLevelExact {
		return Hint{}, ErrHintLevel
	}
	misplaced := lowestMisplaced(board)
	if misplaced == 0 {
		return Hint{Level: level, Content: "the board is already solved", Category: "review"}, nil
	}
	switch level {
	case HintLevelDirectional:
		return Hint{
			Level:    level,
			Content:  fmt.Sprintf("work on placing the low tiles first; tile %d is out of place", misplaced),
			Category: "directional",
		}, nil
	case HintLevelCandidates:
		idx := board.tileIndex(misplaced)
		r, c := idx/board.Size, idx%board.Size
		tr, tc := int(misplaced-1)/board.Size, int(misplaced-1)%board.Size
		return Hint{
			Level:    level,
			Content:  fmt.Sprintf("tile %d at (%d,%d) belongs at (%d,%d)", misplaced, r+1, c+1, tr+1, tc+1),
			Category: "candidates",
		}, nil
	default:
		if best := bestSlide(board); best != 0 {
			return Hint{
				Level:    level,
				Content:  fmt.Sprintf("slide tile %d into the blank", best),
				Category: "exact",
			}, nil
		}
		return Hint{
			Level:    level,
			Content:  fmt.Sprintf("free up space around tile %d first", misplaced),
			Category: "exact",
		}, nil
	}
}

// Score implements Solver. Larger boards at higher difficulty score more.
func (s *SlidingSolver) Score(state *PuzzleState, res Result) int {
	board, ok := state.Payload.(*SlidingBoard)
	if !ok {
		return 0
	}
	base := state.Meta.Difficulty*80 + board.Size*board.Size
	if res.Solved {
		base += 40
	}
	return base
}

// EnumerateMoves implements Solver: the 2-4 tiles adjacent to the blank.
func (s *SlidingSolver) EnumerateMoves(state *PuzzleState) []Move {
	board, ok := state.Payload.(*SlidingBoard)
	if !ok {
		return nil
	}
	blank := board.blankIndex()
	var moves []Move
	for _, n := range adjacentIndices(board.Size, blank) {
		moves = append(moves, Move{Payload: SlidingMove{Tile: board.Tiles[n]}})
	}
	return moves
}

// slidingParts unwraps the typed payloads shared by Validate/Execute.
func slidingParts(state *PuzzleState, mv Move) (*SlidingBoard, SlidingMove, error) {
	board, ok := state.Payload.(*SlidingBoard)
	if !ok {
		return nil, SlidingMove{}, fmt.Errorf("%w: payload is not a sliding board", ErrInvalidMove)
	}
	m, ok := mv.Payload.(SlidingMove)
	if !ok {
		return nil, SlidingMove{}, fmt.Errorf("%w: move is not a sliding move", ErrInvalidMove)
	}
	return board, m, nil
}

// adjacentIndices returns the board indices orthogonally adjacent to idx.
func adjacentIndices(size, idx int) []int {
	r, c := idx/size, idx%size
	out := make([]int, 0, 4)
	if r > 0 {
		out = append(out, idx-size)
	}
	if r < size-1 {
		out = append(out, idx+size)
	}
	if c > 0 {
		out = append(out, idx-1)
	}
	if c < size-1 {
		out = append(out, idx+1)
	}
	return out
}

// lowestMisplaced returns the lowest-numbered tile not on its target square,
// or 0 when solved.
func lowestMisplaced(b *SlidingBoard) uint8 {
	n := b.Size * b.Size
	best := uint8(0)
	for i := 0; i < n; i++ {
		t := b.Tiles[i]
		if t != 0 && int(t) != i+1 {
			if best == 0 || t < best {
				best = t
			}
		}
	}
	return best
}

// manhattanSum is the total Manhattan distance of all tiles to their targets.
func manhattanSum(b *SlidingBoard) int {
	sum := 0
	for i, t := range b.Tiles {
		if t == 0 {
			continue
		}
		r, c := i/b.Size, i%b.Size
		tr, tc := int(t-1)/b.Size, int(t-1)%b.Size
		sum += abs(r-tr) + abs(c-tc)
	}
	return sum
}

// bestSlide returns a legal tile whose slide strictly reduces the total
// Manhattan distance, or 0 when none does. Deterministic: lowest qualifying
// tile wins. Works on a copy so callers can pass shared state.
func bestSlide(orig *SlidingBoard) uint8 {
	b := orig.Clone().(*SlidingBoard)
	blank := b.blankIndex()
	current := manhattanSum(b)
	best := uint8(0)
	for _, n := range adjacentIndices(b.Size, blank) {
		tile := b.Tiles[n]
		b.Tiles[blank], b.Tiles[n] = b.Tiles[n], b.Tiles[blank]
		after := manhattanSum(b)
		b.Tiles[blank], b.Tiles[n] = b.Tiles[n], b.Tiles[blank]
		if after < current && (best == 0 || tile < best) {
			best = tile
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
