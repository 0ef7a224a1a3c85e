package engine

import (
	"fmt"
	"testing"
)

// numberedState builds a distinguishable state for history tests.
func numberedState(n int) *PuzzleState {
	return &PuzzleState{
		ID:   fmt.Sprintf("s-%d", n),
		Kind: KindSliding,
		Meta: Metadata{MoveCount: n},
	}
}

// TestHistoryRoundTrip verifies undoing k states then redoing k states
// reproduces the exact state sequence.
func TestHistoryRoundTrip(t *testing.T) {
	const k = 10
	h := NewHistory(0)
	for i := 0; i <= k; i++ {
		h.AddState(numberedState(i))
	}

	var undone []int
	for i := 0; i < k; i++ {
		s, ok := h.Undo()
		if !ok {
			t.Fatalf("undo %d failed", i)
		}
		undone = append(undone, s.Meta.MoveCount)
	}
	for i := 0; i < k; i++ {
		s, ok := h.Redo()
		if !ok {
			t.Fatalf("redo %d failed", i)
		}
		// Redo must walk forward through the same sequence the undos
		// walked backward.
		if want := undone[k-1-i] + 1; s.Meta.MoveCount != want {
			t.Errorf("redo %d: expected state %d, got %d", i, want, s.Meta.MoveCount)
		}
	}
}

// TestHistoryBoundaries verifies CanUndo is false exactly at cursor 0 and
// CanRedo false exactly at the last index.
func TestHistoryBoundaries(t *testing.T) {
	h := NewHistory(0)
	if h.CanUndo() || h.CanRedo() {
		t.Error("empty history reports undo/redo available")
	}
	h.AddState(numberedState(0))
	if h.CanUndo() {
		t.Error("single state: CanUndo should be false at cursor 0")
	}
	if h.CanRedo() {
		t.Error("single state: CanRedo should be false at last index")
	}
	h.AddState(numberedState(1))
	if !h.CanUndo() || h.CanRedo() {
		t.Error("two states at top: expected CanUndo=true, CanRedo=false")
	}
	if _, ok := h.Undo(); !ok {
		t.Fatal("undo failed")
	}
	if h.CanUndo() || !h.CanRedo() {
		t.Error("two states at bottom: expected CanUndo=false, CanRedo=true")
	}
	if _, ok := h.Undo(); ok {
		t.Error("undo past the bottom succeeded")
	}
}

// TestHistoryTruncatesRedoBranch verifies adding a state after undos
// discards the stale redo branch.
func TestHistoryTruncatesRedoBranch(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 5; i++ {
		h.AddState(numberedState(i))
	}
	h.Undo()
	h.Undo()
	h.AddState(numberedState(99))

	if h.CanRedo() {
		t.Error("redo branch survived AddState")
	}
	if got := h.Current().Meta.MoveCount; got != 99 {
		t.Errorf("expected current state 99, got %d", got)
	}
	if h.Len() != 4 {
		t.Errorf("expected 4 retained states, got %d", h.Len())
	}
}

// TestHistoryEviction verifies the oldest state is evicted past capacity
// and the cursor shifts accordingly.
func TestHistoryEviction(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.AddState(numberedState(i))
	}
	if h.Len() != 3 {
		t.Fatalf("expected 3 retained states, got %d", h.Len())
	}
	// Oldest retained should be state 2.
	for h.CanUndo() {
		h.Undo()
	}
	if got := h.Current().Meta.MoveCount; got != 2 {
		t.Errorf("expected oldest retained state 2, got %d", got)
	}
}

// TestHistoryDefensiveCopies verifies mutating a returned state does not
// affect the stored sequence.
func TestHistoryDefensiveCopies(t *testing.T) {
	h := NewHistory(0)
	h.AddState(numberedState(0))
	h.AddState(numberedState(1))

	s, _ := h.Undo()
	s.Meta.MoveCount = 777

	r, _ := h.Redo()
	if r.Meta.MoveCount == 777 {
		t.Error("stored state shares memory with returned copy")
	}
	u, _ := h.Undo()
	if u.Meta.MoveCount != 0 {
		t.Errorf("expected state 0 after re-undo, got %d", u.Meta.MoveCount)
	}
}
