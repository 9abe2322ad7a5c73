package memengine

import (
	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
)

const (
	infinity  = 1 << 20
	mateScore = 1 << 16
)

type delta struct{ dr, dc int }

var (
	orthogonal = []delta{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	diagonal   = []delta{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	allSteps   = append(append([]delta(nil), orthogonal...), diagonal...)
	knightJump = []delta{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
)

var pieceValue = [...]int{
	domain.NoPieceType: 0,
	domain.Pawn:        100,
	domain.Knight:      300,
	domain.Bishop:      320,
	domain.Rook:        500,
	domain.Queen:       900,
	domain.Gold:        400,
	domain.King:        0,
}

// forward is the row delta of a side's advance. First starts on the bottom ranks.
func forward(side domain.Side) int {
	if side == domain.First {
		return -1
	}
	return 1
}

func lastRow(side domain.Side) int {
	if side == domain.First {
		return 0
	}
	return domain.BoardSize - 1
}

func offset(sq int, d delta) (int, bool) {
	r := sq/domain.BoardSize + d.dr
	c := sq%domain.BoardSize + d.dc
	if r < 0 || r >= domain.BoardSize || c < 0 || c >= domain.BoardSize {
		return 0, false
	}
	return r*domain.BoardSize + c, true
}

func goldSteps(side domain.Side) []delta {
	f := forward(side)
	return []delta{{f, -1}, {f, 0}, {f, 1}, {0, -1}, {0, 1}, {-f, 0}}
}

// pseudoMoves lists moves for side ignoring whether its own king is left attacked.
func (p *position) pseudoMoves(side domain.Side, withDrops bool) []engine.LegalMove {
	var out []engine.LegalMove
	add := func(from, to int) {
		target := p.board[to]
		if target.Empty() || target.Side() != side {
			out = append(out, engine.LegalMove{From: from, To: to})
		}
	}
	steps := func(from int, ds []delta) {
		for _, d := range ds {
			if to, ok := offset(from, d); ok {
				add(from, to)
			}
		}
	}
	slides := func(from int, ds []delta) {
		for _, d := range ds {
			cur := from
			for {
				to, ok := offset(cur, d)
				if !ok {
					break
				}
				add(from, to)
				if !p.board[to].Empty() {
					break
				}
				cur = to
			}
		}
	}

	for sq, pc := range p.board {
		if pc.Empty() || pc.Side() != side {
			continue
		}
		pt := pc.Type()
		switch {
		case pt == domain.King:
			steps(sq, allSteps)
		case pt == domain.Gold, pc.Promoted() && (pt == domain.Pawn || pt == domain.Knight):
			steps(sq, goldSteps(side))
		case pt == domain.Pawn:
			f := forward(side)
			if to, ok := offset(sq, delta{f, 0}); ok && p.board[to].Empty() {
				out = append(out, engine.LegalMove{From: sq, To: to})
			}
			for _, dc := range []int{-1, 1} {
				if to, ok := offset(sq, delta{f, dc}); ok && !p.board[to].Empty() && p.board[to].Side() != side {
					out = append(out, engine.LegalMove{From: sq, To: to})
				}
			}
		case pt == domain.Knight:
			steps(sq, knightJump)
		default:
			switch pt {
			case domain.Bishop:
				slides(sq, diagonal)
			case domain.Rook:
				slides(sq, orthogonal)
			case domain.Queen:
				slides(sq, allSteps)
			}
			if pc.Promoted() {
				steps(sq, allSteps)
			}
		}
	}

	if !withDrops {
		return out
	}
	for i, pt := range domain.HandTypes {
		if p.hands[side][i] == 0 {
			continue
		}
		for to := range p.board {
			if !p.board[to].Empty() {
				continue
			}
			if pt == domain.Pawn && to/domain.BoardSize == lastRow(side) {
				continue
			}
			out = append(out, engine.LegalMove{From: -1, To: to, Drop: true, DropType: pt})
		}
	}
	return out
}

func (p *position) kingSquare(side domain.Side) int {
	king := domain.NewPiece(side, domain.King, false)
	for sq, pc := range p.board {
		if pc == king {
			return sq
		}
	}
	return -1
}

func (p *position) attacked(sq int, by domain.Side) bool {
	for _, m := range p.pseudoMoves(by, false) {
		if m.To == sq {
			return true
		}
	}
	return false
}

func (p *position) inCheck(side domain.Side) bool {
	k := p.kingSquare(side)
	return k >= 0 && p.attacked(k, side.Opponent())
}

func (p *position) legalMoves() []engine.LegalMove {
	side := p.side
	pseudo := p.pseudoMoves(side, true)
	out := pseudo[:0]
	for _, m := range pseudo {
		next := p.play(m)
		if !next.inCheck(side) {
			out = append(out, m)
		}
	}
	return out
}

// play returns the position after m. m is not validated.
func (p position) play(m engine.LegalMove) position {
	side := p.side
	if m.Drop {
		p.board[m.To] = domain.NewPiece(side, m.DropType, false)
		if idx := m.DropType.HandIndex(); idx >= 0 && p.hands[side][idx] > 0 {
			p.hands[side][idx]--
		}
	} else {
		pc := p.board[m.From]
		if captured := p.board[m.To]; !captured.Empty() {
			if idx := captured.Type().HandIndex(); idx >= 0 {
				p.hands[side][idx]++
			}
		}
		p.board[m.From] = domain.NoPiece
		if pc.Type().Promotable() && !pc.Promoted() && m.To/domain.BoardSize == lastRow(side) {
			pc = pc.Promote()
		}
		p.board[m.To] = pc
	}
	p.side = side.Opponent()
	p.ply++
	return p
}

// evaluate scores material from the side to move's perspective.
func (p *position) evaluate() int {
	score := 0
	for _, pc := range p.board {
		if pc.Empty() {
			continue
		}
		v := pieceValue[pc.Type()]
		if pc.Promoted() {
			v += 150
		}
		if pc.Side() == p.side {
			score += v
		} else {
			score -= v
		}
	}
	for i, pt := range domain.HandTypes {
		score += p.hands[p.side][i] * pieceValue[pt]
		score -= p.hands[p.side.Opponent()][i] * pieceValue[pt]
	}
	return score
}
