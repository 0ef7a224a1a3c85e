package engine

import (
	"fmt"
	"math/rand"
	"strings"
)

// CrosswordSlot is one placed word: a horizontal or vertical run of open
// cells.
type CrosswordSlot struct {
	Row    int
	Col    int
	Length int
	Across bool
}

// CrosswordBoard is the payload for KindCrossword. Blocks marks cells no
// word passes through, Cells holds the current letters (0 = empty), Solution
// the generated fill, and Given the letters revealed at generation time.
type CrosswordBoard struct {
	Rows     int
	Cols     int
	Blocks   [][]bool
	Cells    [][]byte
	Solution [][]byte
	Given    [][]bool
	Slots    []CrosswordSlot
}

// Kind implements Payload.
func (b *CrosswordBoard) Kind() Kind { return KindCrossword }

// Clone implements Payload.
func (b *CrosswordBoard) Clone() Payload {
	cp := &CrosswordBoard{
		Rows:     b.Rows,
		Cols:     b.Cols,
		Blocks:   make([][]bool, b.Rows),
		Cells:    make([][]byte, b.Rows),
		Solution: make([][]byte, b.Rows),
		Given:    make([][]bool, b.Rows),
		Slots:    make([]CrosswordSlot, len(b.Slots)),
	}
	for r := 0; r < b.Rows; r++ {
		cp.Blocks[r] = append([]bool(nil), b.Blocks[r]...)
		cp.Cells[r] = append([]byte(nil), b.Cells[r]...)
		cp.Solution[r] = append([]byte(nil), b.Solution[r]...)
		cp.Given[r] = append([]bool(nil), b.Given[r]...)
	}
	copy(cp.Slots, b.Slots)
	return cp
}

// CrosswordMove writes Letter ('A'-'Z') into (Row, Col). Letter 0 erases.
type CrosswordMove struct {
	Row    int
	Col    int
	Letter byte
}

// Kind implements MovePayload.
func (CrosswordMove) Kind() Kind { return KindCrossword }

// wordList is the built-in dictionary, grouped by length. Uppercase only.
var wordList = map[int][]string{
	3: {"ACE", "AGE", "AIR", "ARC", "ARM", "ART", "BAR", "BAT", "BED", "BIG", "BOX", "CAR", "CAT", "COW", "CUP",
		"DAY", "DOG", "EAR", "EGG", "END", "EYE", "FAR", "FOX", "GEM", "HAT", "ICE", "INK", "JAR", "KEY", "LOG",
		"MAP", "NET", "OAK", "OIL", "OWL", "PAN", "PEN", "PIG", "RAT", "RED", "RUN", "SEA", "SKY", "SUN", "TEA",
		"TIN", "TOP", "VAN", "WEB", "ZOO"},
	4: {"ACID", "AREA", "ATOM", "BAND", "BARN", "BEAR", "BELL", "BIRD", "BLUE", "BOAT", "BONE", "BOOK", "CAGE",
		"CAKE", "CALM", "CARD", "CAVE", "CITY", "CLAY", "COLD", "CORN", "DARK", "DEER", "DESK", "DOOR", "DRUM",
		"DUST", "EAST", "ECHO", "FACE", "FARM", "FIRE", "FISH", "FLAG", "FROG", "GATE", "GOLD", "GRID", "HAND",
		"HERO", "HILL", "IRON", "KING", "LAKE", "LAMP", "LEAF", "LION", "MAZE", "MOON", "NEST", "NOTE", "OPEN",
		"PARK", "PATH", "RAIN", "RING", "ROAD", "ROCK", "ROOF", "ROSE", "SALT", "SAND", "SEED", "SHIP", "SNOW",
		"SONG", "STAR", "TENT", "TIDE", "TIME", "TREE", "WAVE", "WEST", "WIND", "WOLF", "WOOD", "YARN", "ZERO"},
	5: {"APPLE", "ARGUE", "BEACH", "BERRY", "BRAVE", "BRICK", "BROOK", "CABIN", "CHESS", "CLOUD", "CORAL",
		"CRANE", "DREAM", "EAGLE", "EARTH", "EJECT", "EVENT", "FIELD", "FLAME", "FROST", "GRAPE", "GREEN",
		"HEART", "HONEY", "HOUSE", "LIGHT", "MAPLE", "MOUSE", "NORTH", "OCEAN", "PEARL", "PIANO", "PLANT",
		"RIVER", "ROBIN", "SHARE", "SHAVE", "SLATE", "SOLAR", "SOUTH", "SPACE", "STAGE", "STEAM", "STONE",
		"STORM", "TIGER", "TRAIL", "WATER", "WHALE", "WHEAT"},
	6: {"ANCHOR", "BREEZE", "BRIDGE", "CAMERA", "CANDLE", "CASTLE", "CIRCLE", "COPPER", "FOREST", "GARDEN",
		"INSECT", "ISLAND", "JUNGLE", "LEGEND", "MARBLE", "MEADOW", "MIRROR", "ORCHID", "PEBBLE", "PUZZLE",
		"RIDDLE", "SADDLE", "SHADOW", "SILVER", "SPRUCE", "STREAM", "TEMPLE", "TIMBER", "TUNNEL", "VALLEY",
		"WINTER", "ZEPHYR"},
	7: {"BALANCE", "BLANKET", "CABINET", "CAPTAIN", "CHIMNEY", "COMPASS", "CRYSTAL", "DOLPHIN", "EVENING",
		"FORTUNE", "GLACIER", "HARVEST", "JOURNEY", "LANTERN", "MACHINE", "MORNING", "ORGANIC", "PASTURE",
		"PYRAMID", "RAINBOW", "THUNDER", "VILLAGE", "VOLCANO", "WEATHER"},
}

// CrosswordSolver implements the Solver capability set for generated
// crosswords over the built-in dictionary.
type CrosswordSolver struct{}

// NewCrosswordSolver returns the crossword solver.
func NewCrosswordSolver() *CrosswordSolver { return &CrosswordSolver{} }

// Kind implements Solver.
func (*CrosswordSolver) Kind() Kind { return KindCrossword }

// crosswordGridSize maps difficulty to the square grid side.
func crosswordGridSize(difficulty int) int {
	switch d := clampDifficulty(difficulty); {
	case d <= 4:
		return 9
	case d <= 8:
		return 11
	default:
		return 13
	}
}

// Generate builds a crossword by placement: a seed word goes through the
// grid center, then further dictionary words are attached at crossing
// letters until the difficulty-scaled word count is reached or placements
// run out. Every cell no word passes through becomes a block. Finally a
// difficulty-scaled fraction of the letters is revealed as givens.
func (s *CrosswordSolver) Generate(rng *rand.Rand, difficulty int) (*PuzzleState, error) {
	difficulty = clampDifficulty(difficulty)
	size := crosswordGridSize(difficulty)
	board := &CrosswordBoard{Rows: size, Cols: size}
	board.Blocks = make([][]bool, size)
	board.Cells = make([][]byte, size)
	board.Solution = make([][]byte, size)
	board.Given = make([][]bool, size)
	for r := 0; r < size; r++ {
		board.Blocks[r] = make([]bool, size)
		board.Cells[r] = make([]byte, size)
		board.Solution[r] = make([]byte, size)
		board.Given[r] = make([]bool, size)
	}

	// Seed word: longest length that fits, through the middle row.
	seedLen := 7
	if seedLen > size-2 {
		seedLen = size - 2
	}
	seeds := wordList[seedLen]
	seed := seeds[rng.Intn(len(seeds))]
	placeWord(board, seed, size/2, (size-len(seed))/2, true)

	targetWords := 4 + difficulty
	attempts := 0
	for len(board.Slots) < targetWords && attempts < 400 {
		attempts++
		length := 3 + rng.Intn(5) // 3..7
		words := wordList[length]
		if len(words) == 0 {
			continue
		}
		word := words[rng.Intn(len(words))]
		if r, c, across, ok := findPlacement(board, word, rng); ok {
			placeWord(board, word, r, c, across)
		}
	}

	// Everything without a letter is a block.
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			board.Blocks[r][c] = board.Solution[r][c] == 0
		}
	}

	// Reveal letters: easier boards show more of the fill.
	revealFrac := 0.55 - 0.035*float64(difficulty)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			if board.Blocks[r][c] {
				continue
			}
			if rng.Float64() < revealFrac {
				board.Given[r][c] = true
				board.Cells[r][c] = board.Solution[r][c]
			}
		}
	}

	now := nowMs()
	return &PuzzleState{
		Kind:    KindCrossword,
		Payload: board,
		Meta: Metadata{
			Difficulty:     difficulty,
			CreatedAt:      now,
			LastModifiedAt: now,
		},
	}, nil
}

// ValidateMove implements Solver. Rejected: out-of-range coordinates,
// blocked or given cells, and non-letter values.
func (s *CrosswordSolver) ValidateMove(state *PuzzleState, mv Move) error {
	board, m, err := crosswordParts(state, mv)
	if err != nil {
		return err
	}
	if m.Row < 0 || m.Row >= board.Rows || m.Col < 0 || m.Col >= board.Cols {
		return fmt.Errorf("%w: cell (%d,%d) out of range", ErrInvalidMove, m.Row, m.Col)
	}
	if board.Blocks[m.Row][m.Col] {
		return fmt.Errorf("%w: cell (%d,%d) is blocked", ErrInvalidMove, m.Row, m.Col)
	}
	if board.Given[m.Row][m.Col] {
		return fmt.Errorf("%w: cell (%d,%d) is a given", ErrInvalidMove, m.Row, m.Col)
	}
	if m.Letter != 0 && (m.Letter < 'A' || m.Letter > 'Z') {
		return fmt.Errorf("%w: %q is not a letter", ErrInvalidMove, m.Letter)
	}
	return nil
}

// ExecuteMove implements Solver. Pure: returns a new state.
func (s *CrosswordSolver) ExecuteMove(state *PuzzleState, mv Move) (*PuzzleState, error) {
	if err := s.ValidateMove(state, mv); err != nil {
		return nil, err
	}
	m := mv.Payload.(CrosswordMove)
	next := state.Clone()
	board := next.Payload.(*CrosswordBoard)
	board.Cells[m.Row][m.Col] = m.Letter
	next.Meta.MoveCount++
	next.Meta.LastModifiedAt = nowMs()
	return next, nil
}

// IsSolved implements Solver: every open cell matches the generated fill.
func (s *CrosswordSolver) IsSolved(state *PuzzleState) bool {
	board, ok := state.Payload.(*CrosswordBoard)
	if !ok {
		return false
	}
	for r := 0; r < board.Rows; r++ {
		for c := 0; c < board.Cols; c++ {
			if board.Blocks[r][c] {
				continue
			}
			if board.Cells[r][c] != board.Solution[r][c] {
				return false
			}
		}
	}
	return true
}

// Hint implements Solver. The targeted slot is the first incomplete slot in
// placement order, so hints are deterministic for a given state.
func (s *CrosswordSolver) Hint(state *PuzzleState, level int) (Hint, error) {
	board, ok := state.Payload.(*CrosswordBoard)
	if !ok {
		return Hint{}, fmt.Errorf("%w: payload is not a crossword board", ErrInvalidMove)
	}
	if level < HintLevelDirectional || level > HintLevelExact {
		return Hint{}, ErrHintLevel
	}
	slot, found := firstIncompleteSlot(board)
	if !found {
		return Hint{Level: level, Content: "all slots are filled; check your letters", Category: "review"}, nil
	}
	dir := "across"
	if !slot.Across {
		dir = "down"
	}
	switch level {
	case HintLevelDirectional:
		return Hint{
			Level:    level,
			Content:  fmt.Sprintf("try the %d-letter %s word starting at (%d,%d)", slot.Length, dir, slot.Row+1, slot.Col+1),
			Category: "directional",
		}, nil
	case HintLevelCandidates:
		pattern := slotPattern(board, slot)
		cands := matchingWords(slot.Length, pattern, 5)
		return Hint{
			Level:    level,
			Content:  fmt.Sprintf("the %s word at (%d,%d) matches %q; candidates include %v", dir, slot.Row+1, slot.Col+1, pattern, cands),
			Category: "candidates",
		}, nil
	default:
		r, c := firstWrongCell(board, slot)
		return Hint{
			Level:    level,
			Content:  fmt.Sprintf("place %q at cell (%d,%d)", string(board.Solution[r][c]), r+1, c+1),
			Category: "exact",
		}, nil
	}
}

// Score implements Solver.
func (s *CrosswordSolver) Score(state *PuzzleState, res Result) int {
	board, ok := state.Payload.(*CrosswordBoard)
	if !ok {
		return 0
	}
	base := state.Meta.Difficulty*90 + len(board.Slots)*5
	if res.Solved {
		base += 45
	}
	return base
}

// EnumerateMoves implements Solver: for each empty open cell, the letters
// that appear at that position in some dictionary word matching the
// containing slot's current pattern.
func (s *CrosswordSolver) EnumerateMoves(state *PuzzleState) []Move {
	board, ok := state.Payload.(*CrosswordBoard)
	if !ok {
		return nil
	}
	seen := make(map[[3]int]bool)
	var moves []Move
	for _, slot := range board.Slots {
		pattern := slotPattern(board, slot)
		if !strings.ContainsRune(pattern, '.') {
			continue
		}
		for _, w := range matchingWords(slot.Length, pattern, 0) {
			for i := 0; i < slot.Length; i++ {
				if pattern[i] != '.' {
					continue
				}
				r, c := slotCell(slot, i)
				if board.Given[r][c] {
					continue
				}
				key := [3]int{r, c, int(w[i])}
				if seen[key] {
					continue
				}
				seen[key] = true
				moves = append(moves, Move{Payload: CrosswordMove{Row: r, Col: c, Letter: w[i]}})
			}
		}
	}
	return moves
}

// crosswordParts unwraps the typed payloads shared by Validate/Execute.
func crosswordParts(state *PuzzleState, mv Move) (*CrosswordBoard, CrosswordMove, error) {
	board, ok := state.Payload.(*CrosswordBoard)
	if !ok {
		return nil, CrosswordMove{}, fmt.Errorf("%w: payload is not a crossword board", ErrInvalidMove)
	}
	m, ok := mv.Payload.(CrosswordMove)
	if !ok {
		return nil, CrosswordMove{}, fmt.Errorf("%w: move is not a crossword move", ErrInvalidMove)
	}
	return board, m, nil
}

// placeWord writes the word into the solution grid and records the slot.
func placeWord(b *CrosswordBoard, word string, row, col int, across bool) {
	for i := 0; i < len(word); i++ {
		if across {
			b.Solution[row][col+i] = word[i]
		} else {
			b.Solution[row+i][col] = word[i]
		}
	}
	b.Slots = append(b.Slots, CrosswordSlot{Row: row, Col: col, Length: len(word), Across: across})
}

// findPlacement looks for a legal crossing placement of word: some letter of
// the word sits on an equal letter already in the grid, the word runs
// perpendicular to the cell it crosses, and no other cell of the word
// touches existing letters. Crossing candidates are scanned in a random
// order.
func findPlacement(b *CrosswordBoard, word string, rng *rand.Rand) (row, col int, across bool, ok bool) {
	type anchor struct{ r, c, i int }
	var anchors []anchor
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			if b.Solution[r][c] == 0 {
				continue
			}
			for i := 0; i < len(word); i++ {
				if word[i] == b.Solution[r][c] {
					anchors = append(anchors, anchor{r, c, i})
				}
			}
		}
	}
	rng.Shuffle(len(anchors), func(i, j int) { anchors[i], anchors[j] = anchors[j], anchors[i] })

	for _, a := range anchors {
		// Try vertical through a horizontal letter and vice versa.
		for _, vertical := range []bool{true, false} {
			var r0, c0 int
			if vertical {
				r0, c0 = a.r-a.i, a.c
			} else {
				r0, c0 = a.r, a.c-a.i
			}
			if canPlace(b, word, r0, c0, !vertical, a.i) {
				return r0, c0, !vertical, true
			}
		}
	}
	return 0, 0, false, false
}

// canPlace checks bounds, end caps, and per-cell compatibility: the crossing
// cell must hold the same letter; every other cell must be unused with no
// parallel neighbors, so placed words never merge into unintended runs.
func canPlace(b *CrosswordBoard, word string, row, col int, across bool, crossIdx int) bool {
	dr, dc := 0, 1
	if !across {
		dr, dc = 1, 0
	}
	endR, endC := row+dr*(len(word)-1), col+dc*(len(word)-1)
	if row < 0 || col < 0 || endR >= b.Rows || endC >= b.Cols {
		return false
	}
	// The cells immediately before and after the word must be free.
	if pr, pc := row-dr, col-dc; pr >= 0 && pc >= 0 && b.Solution[pr][pc] != 0 {
		return false
	}
	if nr, nc := endR+dr, endC+dc; nr < b.Rows && nc < b.Cols && b.Solution[nr][nc] != 0 {
		return false
	}
	for i := 0; i < len(word); i++ {
		r, c := row+dr*i, col+dc*i
		existing := b.Solution[r][c]
		if i == crossIdx {
			if existing != word[i] {
				return false
			}
			continue
		}
		if existing != 0 {
			return false
		}
		// Perpendicular neighbors must be free to avoid accidental runs.
		for _, d := range [][2]int{{dc, dr}, {-dc, -dr}} {
			nr, nc := r+d[0], c+d[1]
			if nr >= 0 && nr < b.Rows && nc >= 0 && nc < b.Cols && b.Solution[nr][nc] != 0 {
				return false
			}
		}
	}
	return true
}

// slotCell returns the board coordinates of the i-th cell of a slot.
func slotCell(slot CrosswordSlot, i int) (int, int) {
	if slot.Across {
		return slot.Row, slot.Col + i
	}
	return slot.Row + i, slot.Col
}

// slotPattern renders a slot's current letters as a pattern string with '.'
// for empties.
func slotPattern(b *CrosswordBoard, slot CrosswordSlot) string {
	out := make([]byte, slot.Length)
	for i := 0; i < slot.Length; i++ {
		r, c := slotCell(slot, i)
		if b.Cells[r][c] == 0 {
			out[i] = '.'
		} else {
			out[i] = b.Cells[r][c]
		}
	}
	return string(out)
}

// matchingWords returns dictionary words of the given length compatible with
// pattern ('.' matches anything). limit 0 means unlimited.
func matchingWords(length int, pattern string, limit int) []string {
	var out []string
	for _, w := range wordList[length] {
		ok := true
		for i := 0; i < length; i++ {
			if pattern[i] != '.' && pattern[i] != w[i] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, w)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// firstIncompleteSlot returns the first slot whose working letters differ
// from the solution.
func firstIncompleteSlot(b *CrosswordBoard) (CrosswordSlot, bool) {
	for _, slot := range b.Slots {
		for i := 0; i < slot.Length; i++ {
			r, c := slotCell(slot, i)
			if b.Cells[r][c] != b.Solution[r][c] {
				return slot, true
			}
		}
	}
	return CrosswordSlot{}, false
}

// firstWrongCell returns the first cell of the slot that is empty or wrong.
func firstWrongCell(b *CrosswordBoard, slot CrosswordSlot) (int, int) {
	for i := 0; i < slot.Length; i++ {
		r, c := slotCell(slot, i)
		if b.Cells[r][c] != b.Solution[r][c] {
			return r, c
		}
	}
	return slot.Row, slot.Col
}
