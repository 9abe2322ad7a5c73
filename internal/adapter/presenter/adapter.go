package presenter

import (
	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/notation"
	"github.com/park285/chaturanga-session/internal/session"
	"github.com/park285/chaturanga-session/pkg/sessiondto"
)

// ToDTOState converts a session view for the wire.
func ToDTOState(v session.View, d notation.Dialect, selfPlay bool) *sessiondto.SessionState {
	st := &sessiondto.SessionState{
		SessionID:  v.SessionID,
		Mode:       v.Mode.String(),
		PlayMode:   string(v.PlayMode),
		Board:      make([]string, domain.NumSquares),
		SideToMove: v.Position.SideToMove.String(),
		Ply:        v.Position.Ply,
		Cursor:     v.Cursor,
		Length:     v.Len,
		Highlight:  v.Highlight,
		Moves:      make([]sessiondto.MoveRecord, 0, len(v.Moves)),
		CanBack:    v.CanBack,
		CanForward: v.CanForward,
		Outcome:    toDTOOutcome(v.Outcome, v.Position),
		SelfPlay:   selfPlay,
	}
	for sq, p := range v.Position.Board {
		st.Board[sq] = PieceToken(p)
	}
	for _, side := range []domain.Side{domain.First, domain.Second} {
		st.Hands[side] = toDTOHand(v.Position, side)
		st.Strengths[side] = v.Strengths[side].Level()
	}
	for _, rec := range v.Moves {
		st.Moves = append(st.Moves, ToDTOMove(rec, d))
	}
	if v.Mode == session.AiThinking {
		st.Thinking = v.Thinking.String()
	}
	return st
}

func ToDTOMove(rec domain.MoveRecord, d notation.Dialect) sessiondto.MoveRecord {
	return sessiondto.MoveRecord{
		Ply:      rec.Ply,
		Side:     rec.Side.String(),
		Label:    notation.SideLabel(d, rec.Side),
		Notation: rec.Notation,
	}
}

// Winner returns the side that delivered mate in pos.
func Winner(pos domain.BoardSnapshot) domain.Side {
	return pos.SideToMove.Opponent()
}

func toDTOOutcome(o engine.Outcome, pos domain.BoardSnapshot) sessiondto.Outcome {
	out := sessiondto.Outcome{
		Over:      o.Over(),
		Checkmate: o.Checkmate,
		Stalemate: o.Stalemate,
		Draw:      o.Draw,
	}
	switch {
	case o.Checkmate:
		out.Result = "checkmate"
		out.Winner = Winner(pos).String()
	case o.Stalemate:
		out.Result = "stalemate"
	case o.Draw:
		out.Result = "draw"
	}
	return out
}

func toDTOHand(pos domain.BoardSnapshot, side domain.Side) sessiondto.Hand {
	h := sessiondto.Hand{}
	for _, pt := range domain.HandTypes {
		if n := pos.HandCount(side, pt); n > 0 {
			letter, _ := notation.PieceLetter(pt)
			h[string(letter)] = n
		}
	}
	return h
}

// PieceToken renders a piece as used in sessiondto.SessionState.Board.
func PieceToken(p domain.Piece) string {
	if p.Empty() {
		return ""
	}
	letter, ok := notation.PieceLetter(p.Type())
	if !ok {
		return "?"
	}
	if p.Side() == domain.Second {
		letter += 'a' - 'A'
	}
	if p.Promoted() {
		return "+" + string(letter)
	}
	return string(letter)
}
