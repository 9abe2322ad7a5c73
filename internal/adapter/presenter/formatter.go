package presenter

import (
	"fmt"
	"strings"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/msgcat"
	"github.com/park285/chaturanga-session/internal/notation"
	"github.com/park285/chaturanga-session/internal/session"
)

const files = "abcdefg"

// Formatter renders session views as plain text.
type Formatter struct {
	catalog *msgcat.Catalog
	dialect notation.Dialect
}

func NewFormatter(catalog *msgcat.Catalog, d notation.Dialect) *Formatter {
	if catalog == nil {
		catalog = msgcat.MustDefault()
	}
	if _, ok := notation.ParseDialect(string(d)); !ok {
		d = notation.DialectJapanese
	}
	return &Formatter{catalog: catalog, dialect: d}
}

// Board draws the position with ranks 7 to 1 top down, second side in lower
// case and promoted pieces marked with "+".
func (f *Formatter) Board(pos domain.BoardSnapshot) string {
	var sb strings.Builder
	for row := 0; row < domain.BoardSize; row++ {
		fmt.Fprintf(&sb, "%d ", domain.BoardSize-row)
		for col := 0; col < domain.BoardSize; col++ {
			tok := PieceToken(pos.Board[row*domain.BoardSize+col])
			switch len(tok) {
			case 0:
				sb.WriteString(" .")
			case 1:
				sb.WriteString(" " + tok)
			default:
				sb.WriteString(tok)
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("  ")
	for i := 0; i < len(files); i++ {
		sb.WriteString(" " + files[i:i+1])
	}
	sb.WriteString("\n")
	return sb.String()
}

// View renders the board, hands, turn and status lines for v.
func (f *Formatter) View(v session.View) string {
	var sb strings.Builder
	sb.WriteString(f.Board(v.Position))
	for _, side := range []domain.Side{domain.First, domain.Second} {
		sb.WriteString(f.render("board", "hand", map[string]any{
			"Side":   notation.SideLabel(f.dialect, side),
			"Pieces": handText(v.Position, side),
		}))
		sb.WriteString("\n")
	}
	if v.Mode == session.Replay {
		sb.WriteString(f.render("board", "replay", map[string]any{"Cursor": v.Cursor, "Len": v.Len}))
		sb.WriteString("\n")
	}
	switch {
	case v.Outcome.Over():
		sb.WriteString(f.Status(v))
	case v.Mode == session.AiThinking:
		sb.WriteString(f.render("board", "thinking", map[string]any{"Side": notation.SideLabel(f.dialect, v.Thinking)}))
	default:
		sb.WriteString(f.render("board", "to_move", map[string]any{"Side": notation.SideLabel(f.dialect, v.Position.SideToMove)}))
	}
	sb.WriteString("\n")
	return sb.String()
}

// Status is the game-over line, empty while the game goes on.
func (f *Formatter) Status(v session.View) string {
	switch {
	case v.Outcome.Checkmate:
		return f.render("kifu", "checkmate", map[string]any{"Winner": notation.SideLabel(f.dialect, Winner(v.Position))})
	case v.Outcome.Stalemate:
		return f.render("kifu", "stalemate", nil)
	case v.Outcome.Draw:
		return f.render("kifu", "draw", nil)
	}
	return ""
}

// Moves lists the log one move per line, marking the highlighted move.
func (f *Formatter) Moves(v session.View) string {
	var sb strings.Builder
	for i, rec := range v.Moves {
		if i == v.Highlight {
			sb.WriteString("> ")
		} else {
			sb.WriteString("  ")
		}
		sb.WriteString(notation.FormatKifuLine(f.dialect, rec))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *Formatter) render(section, name string, data any) string {
	s, err := f.catalog.Render(section+"."+string(f.dialect)+"."+name, data)
	if err != nil {
		return name
	}
	return s
}

func handText(pos domain.BoardSnapshot, side domain.Side) string {
	var parts []string
	for _, pt := range domain.HandTypes {
		n := pos.HandCount(side, pt)
		if n == 0 {
			continue
		}
		letter, _ := notation.PieceLetter(pt)
		if n == 1 {
			parts = append(parts, string(letter))
		} else {
			parts = append(parts, fmt.Sprintf("%cx%d", letter, n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
