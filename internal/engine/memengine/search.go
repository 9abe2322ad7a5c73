package memengine

import (
	"context"
	"time"

	"github.com/park285/chaturanga-session/internal/engine"
)

// nodes between deadline checks
const checkEvery = 1024

// Search deepens one ply at a time up to the strength's depth and plays the
// best move of the deepest completed iteration. The context deadline and
// MoveTimeMillis end the search early, but depth 1 always completes so a move
// is played whenever one exists. Ties go to the first move generated.
func (e *Engine) Search(ctx context.Context, strength engine.Strength) (engine.LegalMove, error) {
	moves := e.pos.legalMoves()
	if len(moves) == 0 {
		return engine.LegalMove{}, engine.ErrSearchFailed
	}
	if strength.MoveTimeMillis > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(strength.MoveTimeMillis)*time.Millisecond)
		defer cancel()
	}
	maxDepth := strength.Level()
	if strength.Depth <= 0 && strength.MoveTimeMillis > 0 {
		maxDepth = engine.MaxLevel
	}

	s := &searcher{ctx: ctx}
	best := moves[0]
	for depth := 1; depth <= maxDepth; depth++ {
		if depth > 1 && ctx.Err() != nil {
			break
		}
		m, ok := s.root(&e.pos, moves, depth)
		if !ok {
			break
		}
		best = m
	}
	e.play(best)
	return best, nil
}

type searcher struct {
	ctx       context.Context
	nodes     int
	abortable bool
	stopped   bool
}

func (s *searcher) stop() bool {
	if s.stopped || !s.abortable {
		return s.stopped
	}
	s.nodes++
	if s.nodes%checkEvery == 0 && s.ctx.Err() != nil {
		s.stopped = true
	}
	return s.stopped
}

// root returns false when the iteration was cut short.
func (s *searcher) root(p *position, moves []engine.LegalMove, depth int) (engine.LegalMove, bool) {
	s.abortable = depth > 1
	best := moves[0]
	alpha := -infinity
	for _, m := range moves {
		next := p.play(m)
		score := -s.negamax(&next, depth-1, -infinity, -alpha, 1)
		if s.stopped {
			return engine.LegalMove{}, false
		}
		if score > alpha {
			alpha = score
			best = m
		}
	}
	return best, true
}

func (s *searcher) negamax(p *position, depth, alpha, beta, height int) int {
	if s.stop() {
		return 0
	}
	moves := p.legalMoves()
	if len(moves) == 0 {
		if p.inCheck(p.side) {
			return -mateScore + height
		}
		return 0
	}
	if depth <= 0 {
		return p.evaluate()
	}
	for _, m := range moves {
		next := p.play(m)
		score := -s.negamax(&next, depth-1, -beta, -alpha, height+1)
		if s.stopped {
			return 0
		}
		if score >= beta {
			return score
		}
		if score > alpha {
			alpha = score
		}
	}
	return alpha
}
