// Package engine defines the move engine capability set the session layer
// consumes. Board rules, legality and search live behind this interface.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/chaturanga-session/internal/domain"
)

var (
	ErrSearchFailed = errors.New("engine found no move")
	ErrUnavailable  = errors.New("engine unavailable")
)

// LegalMove is one entry of the legal-move enumeration.
type LegalMove struct {
	From     int
	To       int
	Drop     bool
	DropType domain.PieceType
}

// Outcome is the terminal status of the position on the board.
type Outcome struct {
	Checkmate bool
	Stalemate bool
	Draw      bool
}

// Over reports whether the game has ended.
func (o Outcome) Over() bool { return o.Checkmate || o.Stalemate || o.Draw }

// Engine is the live, single-timeline game state. Implementations need not be
// safe for concurrent use; the session serializes every call.
type Engine interface {
	SideToMove() (domain.Side, error)
	Ply() (int, error)
	PieceAt(sq int) (domain.Piece, error)
	HandCount(side domain.Side, pt domain.PieceType) (int, error)
	InCheck() (bool, error)
	Outcome() (Outcome, error)
	LegalMoves() ([]LegalMove, error)
	CanMove(from, to int) (bool, error)

	Reset() error
	// ApplyLegal plays entry index of the most recent LegalMoves enumeration.
	ApplyLegal(index int) (bool, error)
	ApplyFromTo(from, to int) (bool, error)
	Undo() (bool, error)
	// Search picks a move at the given strength and plays it. It returns
	// ErrSearchFailed when no move exists.
	Search(ctx context.Context, strength Strength) (LegalMove, error)
}

// Capture reads the full position out of the engine.
func Capture(e Engine) (domain.BoardSnapshot, error) {
	var snap domain.BoardSnapshot
	for sq := 0; sq < domain.NumSquares; sq++ {
		p, err := e.PieceAt(sq)
		if err != nil {
			return domain.BoardSnapshot{}, fmt.Errorf("read square %d: %w", sq, err)
		}
		snap.Board[sq] = p
	}
	for _, side := range []domain.Side{domain.First, domain.Second} {
		for i, pt := range domain.HandTypes {
			n, err := e.HandCount(side, pt)
			if err != nil {
				return domain.BoardSnapshot{}, fmt.Errorf("read hand %s/%d: %w", side, pt, err)
			}
			snap.Hands[side][i] = n
		}
	}
	side, err := e.SideToMove()
	if err != nil {
		return domain.BoardSnapshot{}, err
	}
	ply, err := e.Ply()
	if err != nil {
		return domain.BoardSnapshot{}, err
	}
	snap.SideToMove = side
	snap.Ply = ply
	return snap, nil
}
