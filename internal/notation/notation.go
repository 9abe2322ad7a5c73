// Package notation converts between board squares, move descriptions and the
// textual move and kifu-line formats.
package notation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/park285/chaturanga-session/internal/domain"
)

var (
	ErrParse      = errors.New("malformed move text")
	ErrOutOfRange = errors.New("square out of range")
)

// Kind distinguishes board moves from drops.
type Kind uint8

const (
	Normal Kind = iota
	Drop
)

// Move is a tagged move description. From is meaningful for Normal moves,
// Piece for drops.
type Move struct {
	Kind  Kind
	From  int
	To    int
	Piece domain.PieceType
}

// NormalMove describes a board move.
func NormalMove(from, to int) Move {
	return Move{Kind: Normal, From: from, To: to}
}

// DropMove describes placing a piece from hand.
func DropMove(pt domain.PieceType, to int) Move {
	return Move{Kind: Drop, Piece: pt, To: to}
}

func (m Move) String() string {
	s, err := FormatMove(m)
	if err != nil {
		return "?"
	}
	return s
}

const pieceLetters = " PNBRQGK"

// PieceLetter returns the upper-case letter of a piece type.
func PieceLetter(pt domain.PieceType) (byte, bool) {
	if pt == domain.NoPieceType || int(pt) >= len(pieceLetters) {
		return 0, false
	}
	return pieceLetters[pt], true
}

// PieceFromLetter resolves a piece letter, case-insensitively.
func PieceFromLetter(c byte) (domain.PieceType, bool) {
	idx := strings.IndexByte(pieceLetters, upper(c))
	if idx <= 0 {
		return domain.NoPieceType, false
	}
	return domain.PieceType(idx), true
}

// SquareToCoordinate renders a square index as "<file><rank>", e.g. 0 -> "a7".
func SquareToCoordinate(sq int) (string, error) {
	if sq < 0 || sq >= domain.NumSquares {
		return "", fmt.Errorf("%w: %d", ErrOutOfRange, sq)
	}
	file := byte('a' + sq%domain.BoardSize)
	rank := byte('0' + domain.BoardSize - sq/domain.BoardSize)
	return string([]byte{file, rank}), nil
}

// CoordinateToSquare is the inverse of SquareToCoordinate. The file letter is
// accepted in either case.
func CoordinateToSquare(coord string) (int, error) {
	if len(coord) != 2 {
		return 0, fmt.Errorf("%w: coordinate %q", ErrParse, coord)
	}
	file := int(lower(coord[0])) - 'a'
	rank := int(coord[1]) - '0'
	if file < 0 || file >= domain.BoardSize || rank < 1 || rank > domain.BoardSize {
		return 0, fmt.Errorf("%w: coordinate %q", ErrParse, coord)
	}
	return (domain.BoardSize-rank)*domain.BoardSize + file, nil
}

// FormatMove renders "<Piece>*<to>" for drops and "<from><to>" otherwise.
// Promotion is never encoded.
func FormatMove(m Move) (string, error) {
	to, err := SquareToCoordinate(m.To)
	if err != nil {
		return "", err
	}
	if m.Kind == Drop {
		if !m.Piece.Droppable() {
			return "", fmt.Errorf("%w: piece type %d cannot be dropped", ErrParse, m.Piece)
		}
		letter, _ := PieceLetter(m.Piece)
		return string(letter) + "*" + to, nil
	}
	from, err := SquareToCoordinate(m.From)
	if err != nil {
		return "", err
	}
	return from + to, nil
}

var (
	dropPattern   = regexp.MustCompile(`(?i)^([PNBRQG])\*([a-g][1-7])$`)
	normalPattern = regexp.MustCompile(`(?i)^([a-g][1-7])([a-g][1-7])\+?$`)
)

// ParseMove accepts "B*d4" drops and "f2f3" board moves (with an optional
// trailing "+", which is ignored).
func ParseMove(text string) (Move, error) {
	text = strings.TrimSpace(text)
	if m := dropPattern.FindStringSubmatch(text); m != nil {
		pt, _ := PieceFromLetter(m[1][0])
		to, err := CoordinateToSquare(m[2])
		if err != nil {
			return Move{}, err
		}
		return DropMove(pt, to), nil
	}
	if m := normalPattern.FindStringSubmatch(text); m != nil {
		from, err := CoordinateToSquare(m[1])
		if err != nil {
			return Move{}, err
		}
		to, err := CoordinateToSquare(m[2])
		if err != nil {
			return Move{}, err
		}
		return NormalMove(from, to), nil
	}
	return Move{}, fmt.Errorf("%w: %q", ErrParse, text)
}

// Dialect selects the side labels used in kifu move lines.
type Dialect string

const (
	DialectJapanese Dialect = "ja"
	DialectEnglish  Dialect = "en"
)

var sideLabels = map[Dialect][2]string{
	DialectJapanese: {"先手", "後手"},
	DialectEnglish:  {"White", "Black"},
}

// ParseDialect maps a config token to a dialect.
func ParseDialect(s string) (Dialect, bool) {
	d := Dialect(strings.ToLower(strings.TrimSpace(s)))
	_, ok := sideLabels[d]
	return d, ok
}

// SideLabel returns the label of a side in the given dialect. Unknown dialects
// fall back to Japanese.
func SideLabel(d Dialect, side domain.Side) string {
	labels, ok := sideLabels[d]
	if !ok {
		labels = sideLabels[DialectJapanese]
	}
	return labels[side&1]
}

var (
	japaneseLine = regexp.MustCompile(`^(\d+)\.(先手|後手)\s+(\S+)$`)
	englishLine  = regexp.MustCompile(`(?i)^(\d+)\.(white|black)\s+(\S+)$`)
)

// FormatKifuLine renders "<ply>.<label> <notation>".
func FormatKifuLine(d Dialect, rec domain.MoveRecord) string {
	return strconv.Itoa(rec.Ply) + "." + SideLabel(d, rec.Side) + " " + rec.Notation
}

// ParseKifuLine recognizes a move line in either dialect. Headers, blank lines
// and anything else report false.
func ParseKifuLine(line string) (domain.MoveRecord, bool) {
	line = strings.TrimSpace(line)
	if m := japaneseLine.FindStringSubmatch(line); m != nil {
		return buildRecord(m[1], m[2] == "後手", m[3])
	}
	if m := englishLine.FindStringSubmatch(line); m != nil {
		return buildRecord(m[1], strings.EqualFold(m[2], "black"), m[3])
	}
	return domain.MoveRecord{}, false
}

func buildRecord(plyText string, second bool, move string) (domain.MoveRecord, bool) {
	ply, err := strconv.Atoi(plyText)
	if err != nil {
		return domain.MoveRecord{}, false
	}
	side := domain.First
	if second {
		side = domain.Second
	}
	return domain.MoveRecord{Ply: ply, Side: side, Notation: move}, true
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
