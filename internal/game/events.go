package game

import (
	"github.com/google/uuid"

	"github.com/MindFlowInteractive/quest-api-sub002/engine"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/stats"
)

// SessionEventType identifies a session event pushed to subscribers.
type SessionEventType string

const (
	EventSessionCreated   SessionEventType = "session_created"
	EventMoveAccepted     SessionEventType = "move_accepted"
	EventMoveRejected     SessionEventType = "move_rejected"
	EventEffectsApplied   SessionEventType = "effects_applied" // post-move rules changed the board
	EventHintIssued       SessionEventType = "hint_issued"
	EventUndoApplied      SessionEventType = "undo_applied"
	EventRedoApplied      SessionEventType = "redo_applied"
	EventSessionPaused    SessionEventType = "session_paused"
	EventSessionResumed   SessionEventType = "session_resumed"
	EventSessionSolved    SessionEventType = "session_solved"
	EventSessionAbandoned SessionEventType = "session_abandoned"
)

// SessionEvent is the structure broadcast on every session change. State is
// a defensive copy when present.
type SessionEvent struct {
	Type      SessionEventType      `json:"type"`
	SessionID uuid.UUID             `json:"sessionId"`
	PlayerID  uuid.UUID             `json:"playerId,omitempty"`
	MoveCount int                   `json:"moveCount,omitempty"`
	Reason    string                `json:"reason,omitempty"`
	Hint      *engine.Hint          `json:"hint,omitempty"`
	Result    *engine.Result        `json:"result,omitempty"`
	Analysis  *stats.AnalysisResult `json:"analysis,omitempty"`
	State     *engine.PuzzleState   `json:"state,omitempty"`
}

// BroadcastFunc delivers one event to every subscriber of a session.
type BroadcastFunc func(ev SessionEvent)
