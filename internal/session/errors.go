package session

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalMove    = errors.New("illegal move")
	ErrBusy           = errors.New("automated move in progress")
	ErrReplayActive   = errors.New("session is in replay")
	ErrNotInReplay    = errors.New("session is not in replay")
	ErrGameOver       = errors.New("game is over")
	ErrNothingToUndo  = errors.New("no moves to undo")
	ErrAutomatedTurn  = errors.New("side to move is automated")
	ErrHumanTurn      = errors.New("side to move is not automated")
	ErrStaleTicket    = errors.New("automated move ticket is no longer current")
	ErrDesync         = errors.New("engine state does not match recorded history")
	ErrUnknownMode    = errors.New("unknown play mode")
	ErrInvalidSide    = errors.New("invalid side")
	ErrNoLegalMoves   = errors.New("no legal moves in position")
	ErrInvalidDialect = errors.New("unknown kifu dialect")
)

// ImportError reports the kifu move that stopped an import. Moves before
// Index stay applied.
type ImportError struct {
	Index int
	Text  string
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("kifu move %d (%q): %v", e.Index+1, e.Text, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }
