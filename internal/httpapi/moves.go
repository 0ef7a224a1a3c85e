package httpapi

import (
	"github.com/MindFlowInteractive/quest-api-sub002/engine"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/apperr"
)

// DecodeMovePayload maps the wire payload of a move request onto the
// kind-specific engine payload. Unknown or mistyped fields are validation
// errors; the engine does its own legality checks afterwards.
func DecodeMovePayload(kind engine.Kind, raw map[string]interface{}) (engine.MovePayload, error) {
	switch kind {
	case engine.KindSudoku:
		row, err := intField(raw, "row")
		if err != nil {
			return nil, err
		}
		col, err := intField(raw, "col")
		if err != nil {
			return nil, err
		}
		value, err := intField(raw, "value")
		if err != nil {
			return nil, err
		}
		if value < 0 || value > 255 {
			return nil, apperr.Validation("move field %q out of range", "value")
		}
		return engine.SudokuMove{Row: row, Col: col, Value: uint8(value)}, nil

	case engine.KindSliding:
		tile, err := intField(raw, "tile")
		if err != nil {
			return nil, err
		}
		if tile < 0 || tile > 255 {
			return nil, apperr.Validation("move field %q out of range", "tile")
		}
		return engine.SlidingMove{Tile: uint8(tile)}, nil

	case engine.KindCrossword:
		row, err := intField(raw, "row")
		if err != nil {
			return nil, err
		}
		col, err := intField(raw, "col")
		if err != nil {
			return nil, err
		}
		letter, err := letterField(raw, "letter")
		if err != nil {
			return nil, err
		}
		return engine.CrosswordMove{Row: row, Col: col, Letter: letter}, nil

	default:
		return nil, apperr.Validation("no move payload for kind %s", kind)
	}
}

// intField reads a whole number out of a decoded JSON object. encoding/json
// delivers numbers as float64.
func intField(raw map[string]interface{}, key string) (int, error) {
	v, ok := raw[key]
	if !ok {
		return 0, apperr.Validation("move payload missing field %q", key)
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, apperr.Validation("move field %q must be an integer", key)
	}
	return int(f), nil
}

// letterField reads a single uppercase letter; the empty string erases.
func letterField(raw map[string]interface{}, key string) (byte, error) {
	v, ok := raw[key]
	if !ok {
		return 0, apperr.Validation("move payload missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return 0, apperr.Validation("move field %q must be a string", key)
	}
	if s == "" {
		return 0, nil
	}
	if len(s) != 1 || s[0] < 'A' || s[0] > 'Z' {
		return 0, apperr.Validation("move field %q must be a single letter A-Z", key)
	}
	return s[0], nil
}
