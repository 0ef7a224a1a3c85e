// Package engine implements the puzzle generation, solving, and validation
// core.
//
// The package is a pure algorithm layer: it has no I/O, no logging, and no
// third-party imports, so it can be embedded in the service layer or driven
// directly from tests and tooling. Session management, persistence, and the
// anti-cheat analyzer live in the service packages.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Kind identifies a puzzle variant. Each kind has exactly one registered
// Solver implementation.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSudoku
	KindSliding
	KindCrossword
)

// String returns the lowercase wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSudoku:
		return "sudoku"
	case KindSliding:
		return "sliding"
	case KindCrossword:
		return "crossword"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire name to a Kind. Unrecognized names return
// ErrUnknownKind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sudoku":
		return KindSudoku, nil
	case "sliding":
		return KindSliding, nil
	case "crossword":
		return KindCrossword, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Sentinel errors surfaced by the engine. The service layer maps these onto
// its own error taxonomy.
var (
	// ErrUnknownKind indicates a puzzle kind with no registered solver.
	ErrUnknownKind = errors.New("unknown puzzle kind")
	// ErrInvalidMove indicates a move rejected by solver-level legality checks.
	ErrInvalidMove = errors.New("invalid move")
	// ErrInvalidTransition indicates a state transition that violates a
	// registered invariant.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrHintLevel indicates an out-of-range hint level.
	ErrHintLevel = errors.New("hint level must be between 1 and 3")
)

// Metadata carries the bookkeeping attached to every puzzle state.
type Metadata struct {
	MoveCount      int
	TimeSpentMs    int64
	Difficulty     int
	HintsUsed      int
	CreatedAt      int64 // unix milliseconds
	LastModifiedAt int64 // unix milliseconds
}

// Payload is the kind-specific board data of a puzzle state. Implementations
// are value-ish: Clone must return a deep copy that shares no mutable memory
// with the receiver.
type Payload interface {
	Kind() Kind
	Clone() Payload
}

// PuzzleState is one immutable point in a puzzle session. States are created
// by generation and by ExecuteMove; they are never mutated in place once
// handed to a caller.
type PuzzleState struct {
	ID      string
	Kind    Kind
	Payload Payload
	Solved  bool
	Meta    Metadata
}

// Clone returns a deep copy of the state.
func (s *PuzzleState) Clone() *PuzzleState {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Payload != nil {
		cp.Payload = s.Payload.Clone()
	}
	return &cp
}

// MovePayload is the kind-specific content of a move.
type MovePayload interface {
	Kind() Kind
}

// Move is a single player action against a puzzle state. Moves are ephemeral
// and never mutated after creation.
type Move struct {
	ID        string
	ActorID   string
	Timestamp int64 // unix milliseconds
	Payload   MovePayload
}

// Hint levels. Specificity strictly increases with the level.
const (
	HintLevelDirectional = 1 // points at a region of the board
	HintLevelCandidates  = 2 // names a cell with a reduced candidate set
	HintLevelExact       = 3 // names the concrete next move
)

// Hint is a derived suggestion; it is never part of engine state.
type Hint struct {
	Level    int
	Content  string
	Category string
}

// Result is the scored outcome of a solution check. Computed on demand.
type Result struct {
	Solved       bool
	BaseScore    int
	TimeBonus    int
	MovesPenalty int
	HintsUsed    int
	TotalScore   int
}

// Solver is the capability set every puzzle kind implements.
//
// ExecuteMove is a pure function: it returns a new state and never mutates
// its input. ValidateMove rejects illegal input (out-of-range coordinates,
// writes to given cells) rather than correcting it. Hint is deterministic
// for a given state and level.
type Solver interface {
	Kind() Kind
	Generate(rng *rand.Rand, difficulty int) (*PuzzleState, error)
	ValidateMove(state *PuzzleState, mv Move) error
	ExecuteMove(state *PuzzleState, mv Move) (*PuzzleState, error)
	IsSolved(state *PuzzleState) bool
	Hint(state *PuzzleState, level int) (Hint, error)
	Score(state *PuzzleState, res Result) int
	EnumerateMoves(state *PuzzleState) []Move
}

// Registry maps puzzle kinds to their solver implementations. Adding a kind
// means registering a new solver, not touching the engine.
type Registry struct {
	solvers map[Kind]Solver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{solvers: make(map[Kind]Solver)}
}

// Register installs a solver, replacing any previous solver for the kind.
func (r *Registry) Register(s Solver) {
	r.solvers[s.Kind()] = s
}

// Lookup resolves the solver for a kind. A missing kind is a configuration
// error and returns ErrUnknownKind.
func (r *Registry) Lookup(k Kind) (Solver, error) {
	s, ok := r.solvers[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	return s, nil
}

// Kinds returns the registered kinds in no particular order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.solvers))
	for k := range r.solvers {
		out = append(out, k)
	}
	return out
}

// DefaultRegistry returns a registry with all built-in solvers installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewSudokuSolver())
	r.Register(NewSlidingSolver())
	r.Register(NewCrosswordSolver())
	return r
}

// nowMs is the single clock used for state timestamps.
func nowMs() int64 { return time.Now().UnixMilli() }

// clampDifficulty restricts difficulty to the supported 1–10 range.
func clampDifficulty(d int) int {
	if d < 1 {
		return 1
	}
	if d > 10 {
		return 10
	}
	return d
}
