// Package kifu reads and writes the plain-text game record. A record is a
// header, a "---" separator, one "<ply>.<side> <move>" line per move and,
// for finished games, a second separator followed by the result line.
package kifu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/msgcat"
	"github.com/park285/chaturanga-session/internal/notation"
)

const (
	Separator  = "---"
	DateLayout = "2006/01/02 15:04:05"
)

var (
	ErrNoMovesFound = errors.New("no moves found in kifu")
	ErrEncoding     = errors.New("kifu text is neither UTF-8 nor Shift_JIS")
)

// Record is everything written to an exported kifu.
type Record struct {
	Dialect notation.Dialect
	Date    time.Time
	Mode    string
	// Levels holds the search level of each automated side; zero means human.
	Levels  [2]int
	Moves   []domain.MoveRecord
	Outcome engine.Outcome
	// Winner is meaningful only when Outcome.Checkmate is set.
	Winner domain.Side
}

// Encode writes rec using the catalog's templates for rec.Dialect.
func Encode(w io.Writer, cat *msgcat.Catalog, rec Record) error {
	text, err := EncodeString(cat, rec)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

func EncodeString(cat *msgcat.Catalog, rec Record) (string, error) {
	d := rec.Dialect
	if _, ok := notation.ParseDialect(string(d)); !ok {
		d = notation.DialectJapanese
	}
	key := func(name string) string { return "kifu." + string(d) + "." + name }

	var b strings.Builder
	line := func(name string, data any) error {
		s, err := cat.Render(key(name), data)
		if err != nil {
			return err
		}
		b.WriteString(s)
		b.WriteByte('\n')
		return nil
	}

	if err := line("title", nil); err != nil {
		return "", err
	}
	if err := line("date", map[string]any{"Date": rec.Date.Format(DateLayout)}); err != nil {
		return "", err
	}
	if err := line("mode", map[string]any{"Mode": rec.Mode}); err != nil {
		return "", err
	}
	for _, side := range []domain.Side{domain.First, domain.Second} {
		if rec.Levels[side] <= 0 {
			continue
		}
		data := map[string]any{"Side": notation.SideLabel(d, side), "Level": rec.Levels[side]}
		if err := line("strength", data); err != nil {
			return "", err
		}
	}
	b.WriteString(Separator + "\n")

	for _, m := range rec.Moves {
		b.WriteString(notation.FormatKifuLine(d, m))
		b.WriteByte('\n')
	}

	if rec.Outcome.Over() {
		b.WriteString(Separator + "\n")
		var err error
		switch {
		case rec.Outcome.Checkmate:
			err = line("checkmate", map[string]any{"Winner": notation.SideLabel(d, rec.Winner)})
		case rec.Outcome.Stalemate:
			err = line("stalemate", nil)
		default:
			err = line("draw", nil)
		}
		if err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// Decode extracts the move lines of a kifu in order. Other lines are skipped.
// It returns ErrNoMovesFound when nothing matches.
func Decode(data []byte) ([]domain.MoveRecord, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	var moves []domain.MoveRecord
	for _, raw := range strings.Split(text, "\n") {
		line := width.Narrow.String(strings.TrimRight(raw, "\r"))
		if rec, ok := notation.ParseKifuLine(line); ok {
			moves = append(moves, rec)
		}
	}
	if len(moves) == 0 {
		return nil, ErrNoMovesFound
	}
	return moves, nil
}

// DecodeText strips a UTF-8 BOM and falls back to Shift_JIS for non-UTF-8 input.
func DecodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if !utf8.Valid(decoded) {
		return "", ErrEncoding
	}
	return string(decoded), nil
}
