package presenter

import (
	"strings"
	"testing"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/engine/memengine"
	"github.com/park285/chaturanga-session/internal/notation"
	"github.com/park285/chaturanga-session/internal/session"
)

func TestBoardStartPosition(t *testing.T) {
	snap, err := engine.Capture(memengine.New())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(NewFormatter(nil, notation.DialectEnglish).Board(snap), "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("lines = %d", len(lines))
	}
	want := map[int]string{
		0: "7  r n b k q g r",
		1: "6  p p p p p p p",
		3: "4  . . . . . . .",
		6: "1  R N B K Q G R",
		7: "   a b c d e f g",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Fatalf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestPieceToken(t *testing.T) {
	cases := []struct {
		p    domain.Piece
		want string
	}{
		{domain.NoPiece, ""},
		{domain.NewPiece(domain.First, domain.Gold, false), "G"},
		{domain.NewPiece(domain.Second, domain.Knight, false), "n"},
		{domain.NewPiece(domain.First, domain.Pawn, true), "+P"},
		{domain.NewPiece(domain.Second, domain.Rook, true), "+r"},
	}
	for _, tc := range cases {
		if got := PieceToken(tc.p); got != tc.want {
			t.Fatalf("PieceToken(%v) = %q, want %q", tc.p, got, tc.want)
		}
	}
}

func TestViewAndDTO(t *testing.T) {
	sess, err := session.New(memengine.New(), session.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range []string{"f2f3", "e6e5"} {
		if _, err := sess.PlayMove(m); err != nil {
			t.Fatal(err)
		}
	}
	v, err := sess.GoToMove(1)
	if err != nil {
		t.Fatal(err)
	}

	f := NewFormatter(nil, notation.DialectJapanese)
	text := f.View(v)
	if !strings.Contains(text, "再生中: 1/2手目") || !strings.Contains(text, "手番: 後手") {
		t.Fatalf("view text:\n%s", text)
	}
	if !strings.Contains(text, "先手の持ち駒: -") {
		t.Fatalf("hand line missing:\n%s", text)
	}
	if got := f.Moves(v); got != "> 1.先手 f2f3\n  2.後手 e6e5\n" {
		t.Fatalf("moves = %q", got)
	}

	st := ToDTOState(v, notation.DialectEnglish, false)
	if st.Mode != "replay" || st.Cursor != 1 || st.Length != 2 || !st.CanForward {
		t.Fatalf("dto = %+v", st)
	}
	if st.Moves[1].Label != "Black" || st.Moves[1].Side != "second" {
		t.Fatalf("move dto = %+v", st.Moves[1])
	}
	if st.Board[33] != "P" || st.Board[40] != "" {
		t.Fatalf("board f3=%q f2=%q", st.Board[33], st.Board[40])
	}
	if st.Strengths[0] != engine.DefaultLevel {
		t.Fatalf("strengths = %v", st.Strengths)
	}
}

func TestStatusCheckmate(t *testing.T) {
	var snap domain.BoardSnapshot
	snap.SideToMove = domain.Second
	v := session.View{Position: snap, Outcome: engine.Outcome{Checkmate: true}}
	if got := NewFormatter(nil, notation.DialectEnglish).Status(v); got != "Checkmate! White wins!" {
		t.Fatalf("status = %q", got)
	}
	st := ToDTOState(v, notation.DialectEnglish, false)
	if st.Outcome.Result != "checkmate" || st.Outcome.Winner != "first" {
		t.Fatalf("outcome = %+v", st.Outcome)
	}
}
