// Package memengine is an in-process engine.Engine used when no engine binary
// is configured and throughout the tests. Its rules are a compact 7x7 drop
// variant: captured pieces go to hand, promotable pieces promote on reaching
// the far rank, and search is an iteratively deepened alpha-beta over
// material.
package memengine

import (
	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
)

const defaultMaxPly = 300

var backRank = [domain.BoardSize]domain.PieceType{
	domain.Rook, domain.Knight, domain.Bishop, domain.King, domain.Queen, domain.Gold, domain.Rook,
}

type position struct {
	board [domain.NumSquares]domain.Piece
	hands [2][domain.NumHandTypes]int
	side  domain.Side
	ply   int
}

// Engine keeps the live position and an undo stack.
type Engine struct {
	start  position
	pos    position
	stack  []position
	last   []engine.LegalMove
	maxPly int
}

type Option func(*Engine)

// WithMaxPly sets the ply count at which the game is drawn.
func WithMaxPly(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPly = n
		}
	}
}

// New returns an engine at the standard starting position.
func New(opts ...Option) *Engine {
	return newEngine(startPosition(), opts)
}

// NewFromSnapshot returns an engine whose starting position is snap.
func NewFromSnapshot(snap domain.BoardSnapshot, opts ...Option) *Engine {
	return newEngine(position{board: snap.Board, hands: snap.Hands, side: snap.SideToMove, ply: snap.Ply}, opts)
}

func newEngine(start position, opts []Option) *Engine {
	e := &Engine{start: start, pos: start, maxPly: defaultMaxPly}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func startPosition() position {
	var p position
	for file, pt := range backRank {
		p.board[file] = domain.NewPiece(domain.Second, pt, false)
		p.board[domain.BoardSize+file] = domain.NewPiece(domain.Second, domain.Pawn, false)
		p.board[5*domain.BoardSize+file] = domain.NewPiece(domain.First, domain.Pawn, false)
		p.board[6*domain.BoardSize+file] = domain.NewPiece(domain.First, pt, false)
	}
	return p
}

func (e *Engine) SideToMove() (domain.Side, error) { return e.pos.side, nil }
func (e *Engine) Ply() (int, error)                { return e.pos.ply, nil }

func (e *Engine) PieceAt(sq int) (domain.Piece, error) {
	if sq < 0 || sq >= domain.NumSquares {
		return domain.NoPiece, nil
	}
	return e.pos.board[sq], nil
}

func (e *Engine) HandCount(side domain.Side, pt domain.PieceType) (int, error) {
	idx := pt.HandIndex()
	if idx < 0 || side > domain.Second {
		return 0, nil
	}
	return e.pos.hands[side][idx], nil
}

func (e *Engine) InCheck() (bool, error) { return e.pos.inCheck(e.pos.side), nil }

func (e *Engine) Outcome() (engine.Outcome, error) {
	if e.pos.ply >= e.maxPly {
		return engine.Outcome{Draw: true}, nil
	}
	if len(e.pos.legalMoves()) > 0 {
		return engine.Outcome{}, nil
	}
	if e.pos.inCheck(e.pos.side) {
		return engine.Outcome{Checkmate: true}, nil
	}
	return engine.Outcome{Stalemate: true}, nil
}

func (e *Engine) LegalMoves() ([]engine.LegalMove, error) {
	e.last = e.pos.legalMoves()
	return append([]engine.LegalMove(nil), e.last...), nil
}

func (e *Engine) CanMove(from, to int) (bool, error) {
	_, ok := e.findBoardMove(from, to)
	return ok, nil
}

func (e *Engine) Reset() error {
	e.pos = e.start
	e.stack = e.stack[:0]
	e.last = nil
	return nil
}

func (e *Engine) ApplyLegal(index int) (bool, error) {
	if index < 0 || index >= len(e.last) {
		return false, nil
	}
	e.play(e.last[index])
	return true, nil
}

func (e *Engine) ApplyFromTo(from, to int) (bool, error) {
	m, ok := e.findBoardMove(from, to)
	if !ok {
		return false, nil
	}
	e.play(m)
	return true, nil
}

func (e *Engine) Undo() (bool, error) {
	if len(e.stack) == 0 {
		return false, nil
	}
	e.pos = e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	e.last = nil
	return true, nil
}

func (e *Engine) play(m engine.LegalMove) {
	e.stack = append(e.stack, e.pos)
	e.pos = e.pos.play(m)
	e.last = nil
}

func (e *Engine) findBoardMove(from, to int) (engine.LegalMove, bool) {
	for _, m := range e.pos.legalMoves() {
		if !m.Drop && m.From == from && m.To == to {
			return m, true
		}
	}
	return engine.LegalMove{}, false
}
