package domain

// BoardSize is the edge length of the board.
const BoardSize = 7

// NumSquares is the number of squares on the board.
const NumSquares = BoardSize * BoardSize

// Side identifies a player.
type Side uint8

const (
	First Side = iota
	Second
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == First {
		return Second
	}
	return First
}

func (s Side) String() string {
	if s == First {
		return "first"
	}
	return "second"
}

// PieceType is the kind of a piece without side or promotion.
type PieceType uint8

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	Gold
	King
)

// HandTypes lists the piece types that can be held in hand, in hand-count order.
var HandTypes = [...]PieceType{Pawn, Knight, Bishop, Rook, Queen, Gold}

// NumHandTypes is the number of droppable piece types.
const NumHandTypes = len(HandTypes)

// Droppable reports whether pieces of this type may be held in hand.
func (pt PieceType) Droppable() bool {
	return pt >= Pawn && pt <= Gold
}

// Promotable reports whether the type has a promoted form.
func (pt PieceType) Promotable() bool {
	return pt >= Pawn && pt <= Queen
}

// HandIndex returns the position of a droppable type in hand-count arrays.
func (pt PieceType) HandIndex() int {
	if !pt.Droppable() {
		return -1
	}
	return int(pt) - int(Pawn)
}

// Piece packs side, promotion and type into one byte: side<<4 | promoted<<3 | type.
// The zero value is an empty square.
type Piece uint8

const (
	NoPiece      Piece = 0
	promotedFlag Piece = 8
	secondFlag   Piece = 16
	typeMask     Piece = 7
)

// NewPiece builds a piece value.
func NewPiece(side Side, pt PieceType, promoted bool) Piece {
	p := Piece(pt) & typeMask
	if promoted && pt.Promotable() {
		p |= promotedFlag
	}
	if side == Second {
		p |= secondFlag
	}
	return p
}

func (p Piece) Empty() bool     { return p == NoPiece }
func (p Piece) Type() PieceType { return PieceType(p & typeMask) }
func (p Piece) Promoted() bool  { return p&promotedFlag != 0 }
func (p Piece) Demoted() Piece  { return p &^ promotedFlag }
func (p Piece) Promote() Piece  { return p | promotedFlag }

func (p Piece) Side() Side {
	if p&secondFlag != 0 {
		return Second
	}
	return First
}

// MoveRecord is one entry of the move log.
type MoveRecord struct {
	Ply      int    `json:"ply"`
	Side     Side   `json:"side"`
	Notation string `json:"notation"`
}

// BoardSnapshot is a fully materialized position. It is a comparable value.
type BoardSnapshot struct {
	Board      [NumSquares]Piece    `json:"board"`
	Hands      [2][NumHandTypes]int `json:"hands"`
	SideToMove Side                 `json:"side_to_move"`
	Ply        int                  `json:"ply"`
}

// HandCount returns how many pieces of pt the side holds in this snapshot.
func (b BoardSnapshot) HandCount(side Side, pt PieceType) int {
	idx := pt.HandIndex()
	if idx < 0 || side > Second {
		return 0
	}
	return b.Hands[side][idx]
}
