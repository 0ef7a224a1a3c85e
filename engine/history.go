package engine

// HistoryCapacity is the default bound on retained states per session.
const HistoryCapacity = 50

// History is a bounded undo/redo stack of puzzle states with a cursor
// pointing at the current state. Adding a state discards any stale redo
// branch; exceeding capacity evicts the oldest state and shifts the cursor.
//
// History is not safe for concurrent use; the session owning it must
// serialize access.
type History struct {
	states   []*PuzzleState
	cursor   int
	capacity int
}

// NewHistory returns a history bounded to capacity states. Non-positive
// capacities fall back to HistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{cursor: -1, capacity: capacity}
}

// AddState truncates any states after the cursor, appends a copy of the new
// state, and advances the cursor, evicting the oldest state when the bound
// is exceeded.
func (h *History) AddState(s *PuzzleState) {
	h.states = append(h.states[:h.cursor+1], s.Clone())
	h.cursor = len(h.states) - 1
	if len(h.states) > h.capacity {
		h.states = h.states[1:]
		h.cursor--
	}
}

// CanUndo reports whether a state precedes the cursor. O(1).
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether a state follows the cursor. O(1).
func (h *History) CanRedo() bool { return h.cursor >= 0 && h.cursor < len(h.states)-1 }

// Undo moves the cursor back one state and returns a defensive copy of it.
// At the bottom of the stack it is a no-op returning (nil, false).
func (h *History) Undo() (*PuzzleState, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.cursor--
	return h.states[h.cursor].Clone(), true
}

// Redo moves the cursor forward one state and returns a defensive copy of
// it. At the top of the stack it is a no-op returning (nil, false).
func (h *History) Redo() (*PuzzleState, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.cursor++
	return h.states[h.cursor].Clone(), true
}

// Current returns a defensive copy of the state under the cursor, or nil
// when the history is empty.
func (h *History) Current() *PuzzleState {
	if h.cursor < 0 {
		return nil
	}
	return h.states[h.cursor].Clone()
}

// Len returns the number of retained states.
func (h *History) Len() int { return len(h.states) }

// Cursor returns the current cursor index, -1 when empty.
func (h *History) Cursor() int { return h.cursor }
