package kifu

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/japanese"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/msgcat"
	"github.com/park285/chaturanga-session/internal/notation"
)

var sampleMoves = []domain.MoveRecord{
	{Ply: 1, Side: domain.First, Notation: "f2f3"},
	{Ply: 2, Side: domain.Second, Notation: "B*d4"},
}

func TestEncodeJapanese(t *testing.T) {
	rec := Record{
		Dialect: notation.DialectJapanese,
		Date:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Mode:    "ai-black",
		Levels:  [2]int{0, 4},
		Moves:   sampleMoves,
		Outcome: engine.Outcome{Checkmate: true},
		Winner:  domain.Second,
	}
	got, err := EncodeString(msgcat.MustDefault(), rec)
	if err != nil {
		t.Fatalf("EncodeString: %v", err)
	}
	want := strings.Join([]string{
		"7x7チャトランガ 棋譜",
		"日時: 2026/03/01 09:30:00",
		"モード: ai-black",
		"後手AI: レベル4",
		"---",
		"1.先手 f2f3",
		"2.後手 B*d4",
		"---",
		"チェックメイト！ 後手の勝ち！",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected kifu:\n%s\nwant:\n%s", got, want)
	}
}

func TestEncodeEnglishOngoing(t *testing.T) {
	rec := Record{Dialect: notation.DialectEnglish, Mode: "pvp", Moves: sampleMoves}
	got, err := EncodeString(msgcat.MustDefault(), rec)
	if err != nil {
		t.Fatalf("EncodeString: %v", err)
	}
	if !strings.Contains(got, "1.White f2f3\n2.Black B*d4\n") {
		t.Fatalf("missing english move lines:\n%s", got)
	}
	if strings.Count(got, Separator) != 1 {
		t.Fatalf("ongoing game should have one separator:\n%s", got)
	}
	if strings.Contains(got, "AI") {
		t.Fatalf("pvp game should not list AI levels:\n%s", got)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	rec := Record{Mode: "ai-vs-ai", Levels: [2]int{2, 3}, Moves: sampleMoves, Outcome: engine.Outcome{Draw: true}}
	text, err := EncodeString(msgcat.MustDefault(), rec)
	if err != nil {
		t.Fatalf("EncodeString: %v", err)
	}
	moves, err := Decode([]byte(text))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(moves) != 2 || moves[0] != sampleMoves[0] || moves[1] != sampleMoves[1] {
		t.Fatalf("got %+v", moves)
	}
}

func TestDecodeTolerance(t *testing.T) {
	cases := map[string][]byte{
		"bom crlf":   []byte("\xEF\xBB\xBF1.White f2f3\r\n2.black B*d4\r\n"),
		"full width": []byte("１．先手 f2f3\n２．後手　Ｂ＊ｄ４\n"),
		"header":     []byte("7x7チャトランガ 棋譜\nモード: pvp\n---\n1.先手 f2f3\n2.後手 B*d4\n"),
	}
	sjis, err := japanese.ShiftJIS.NewEncoder().String("1.先手 f2f3\n2.後手 B*d4\n")
	if err != nil {
		t.Fatalf("encode shift_jis: %v", err)
	}
	cases["shift_jis"] = []byte(sjis)

	for name, data := range cases {
		moves, err := Decode(data)
		if err != nil {
			t.Fatalf("%s: Decode: %v", name, err)
		}
		if len(moves) != 2 || moves[0].Notation != "f2f3" || moves[1].Notation != "B*d4" || moves[1].Side != domain.Second {
			t.Fatalf("%s: got %+v", name, moves)
		}
	}
}

func TestDecodeNoMoves(t *testing.T) {
	for _, in := range []string{"", "hello\nworld\n", "7x7チャトランガ 棋譜\n---\n"} {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrNoMovesFound) {
			t.Fatalf("Decode(%q) = %v, want ErrNoMovesFound", in, err)
		}
	}
}
