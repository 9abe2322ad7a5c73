package session

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/engine/memengine"
	"github.com/park285/chaturanga-session/internal/history"
	"github.com/park285/chaturanga-session/internal/kifu"
	"github.com/park285/chaturanga-session/internal/notation"
)

// countingEngine records calls that change the engine position.
type countingEngine struct {
	engine.Engine
	mutations int
}

func (c *countingEngine) Reset() error {
	c.mutations++
	return c.Engine.Reset()
}

func (c *countingEngine) ApplyLegal(i int) (bool, error) {
	c.mutations++
	return c.Engine.ApplyLegal(i)
}

func (c *countingEngine) ApplyFromTo(from, to int) (bool, error) {
	c.mutations++
	return c.Engine.ApplyFromTo(from, to)
}

func (c *countingEngine) Undo() (bool, error) {
	c.mutations++
	return c.Engine.Undo()
}

func (c *countingEngine) Search(ctx context.Context, st engine.Strength) (engine.LegalMove, error) {
	c.mutations++
	return c.Engine.Search(ctx, st)
}

func newSession(t *testing.T, eng engine.Engine, mode PlayMode) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PlayMode = mode
	cfg.Strengths = [2]engine.Strength{{Name: "level1", Depth: 1}, {Name: "level1", Depth: 1}}
	s, err := New(eng, cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func play(t *testing.T, s *Session, moves ...string) {
	t.Helper()
	for _, m := range moves {
		if _, err := s.PlayMove(m); err != nil {
			t.Fatalf("PlayMove(%q): %v", m, err)
		}
	}
}

func checkLengths(t *testing.T, s *Session, moves int) {
	t.Helper()
	if s.hist.Len() != moves || s.hist.SnapshotCount() != moves+1 {
		t.Fatalf("moves=%d snapshots=%d, want %d/%d", s.hist.Len(), s.hist.SnapshotCount(), moves, moves+1)
	}
}

func sq(t *testing.T, coord string) int {
	t.Helper()
	n, err := notation.CoordinateToSquare(coord)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestPlayMoveNormal(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	res, err := s.PlayMove("f2f3")
	if err != nil {
		t.Fatalf("PlayMove: %v", err)
	}
	want := domain.MoveRecord{Ply: 1, Side: domain.First, Notation: "f2f3"}
	if res.Record != want {
		t.Fatalf("record = %+v, want %+v", res.Record, want)
	}
	checkLengths(t, s, 1)
	if got := s.View().Position.SideToMove; got != domain.Second {
		t.Fatalf("side to move = %v", got)
	}
}

func TestPlayMoveNormalizesNotation(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	res, err := s.PlayMove("F2F3+")
	if err != nil {
		t.Fatalf("PlayMove: %v", err)
	}
	if res.Record.Notation != "f2f3" {
		t.Fatalf("notation = %q", res.Record.Notation)
	}
}

func TestPlayMoveDrop(t *testing.T) {
	start, _ := engine.Capture(memengine.New())
	start.Hands[domain.First][domain.Bishop.HandIndex()] = 1
	s := newSession(t, memengine.NewFromSnapshot(start), HumanVsHuman)

	res, err := s.PlayMove("B*d4")
	if err != nil {
		t.Fatalf("PlayMove drop: %v", err)
	}
	if res.Move.Kind != notation.Drop || res.Move.To != sq(t, "d4") || res.Move.Piece != domain.Bishop {
		t.Fatalf("resolved move = %+v", res.Move)
	}
	pos := s.View().Position
	if pos.Board[sq(t, "d4")] != domain.NewPiece(domain.First, domain.Bishop, false) {
		t.Fatalf("bishop not on d4")
	}
	if pos.HandCount(domain.First, domain.Bishop) != 0 {
		t.Fatalf("bishop still in hand")
	}

	// Second has nothing in hand.
	if _, err := s.PlayMove("B*c4"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	checkLengths(t, s, 1)
}

func TestPlayMoveRejections(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	if _, err := s.PlayMove("zz"); !errors.Is(err, notation.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if _, err := s.PlayMove("a1a5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := s.PlayMove("B*d4"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove for empty hand, got %v", err)
	}
	checkLengths(t, s, 0)

	ai := newSession(t, memengine.New(), AutoFirst)
	if _, err := ai.PlayMove("f2f3"); !errors.Is(err, ErrAutomatedTurn) {
		t.Fatalf("expected ErrAutomatedTurn, got %v", err)
	}
}

func TestImportTwoLines(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	n, err := s.ImportKifu([]byte("1.White f2f3\n2.Black e6e5"))
	if err != nil {
		t.Fatalf("ImportKifu: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d moves", n)
	}
	checkLengths(t, s, 2)
	snap, _ := s.Snapshot(2)
	if snap.SideToMove != domain.First {
		t.Fatalf("snapshot 2 side = %v", snap.SideToMove)
	}
	recs := s.Records()
	if recs[1].Side != domain.Second || recs[1].Ply != 2 {
		t.Fatalf("second record = %+v", recs[1])
	}

	// only the two dialect label pairs are move lines
	if _, err := s.ImportKifu([]byte("1.First f2f3\n2.Second e6e5")); !errors.Is(err, kifu.ErrNoMovesFound) {
		t.Fatalf("generic labels: expected ErrNoMovesFound, got %v", err)
	}
	checkLengths(t, s, 2)
}

func TestImportNoMovesKeepsState(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	play(t, s, "f2f3")
	before := s.View()

	if _, err := s.ImportKifu([]byte("7x7チャトランガ 棋譜\n---\n")); !errors.Is(err, kifu.ErrNoMovesFound) {
		t.Fatalf("expected ErrNoMovesFound, got %v", err)
	}
	if !reflect.DeepEqual(before, s.View()) {
		t.Fatalf("state changed after failed import")
	}
}

func TestImportAbortKeepsPrefix(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	_, err := s.ImportKifu([]byte("1.先手 f2f3\n2.後手 e6e5\n3.先手 a1a5\n4.後手 a6a5\n"))
	var ie *ImportError
	if !errors.As(err, &ie) {
		t.Fatalf("expected ImportError, got %v", err)
	}
	if ie.Index != 2 || ie.Text != "a1a5" || !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("import error = %+v", ie)
	}
	checkLengths(t, s, 2)
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	play(t, s, "f2f3", "e6e5", "a2a3")
	text, err := s.ExportKifu(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("ExportKifu: %v", err)
	}
	if !strings.HasPrefix(text, "7x7チャトランガ 棋譜\n日時: 2026/01/02 03:04:05\nモード: pvp\n---\n1.先手 f2f3\n") {
		t.Fatalf("unexpected export:\n%s", text)
	}

	other := newSession(t, memengine.New(), HumanVsHuman)
	if _, err := other.ImportKifu([]byte(text)); err != nil {
		t.Fatalf("ImportKifu: %v", err)
	}
	if !reflect.DeepEqual(other.Records(), s.Records()) {
		t.Fatalf("records differ after round trip")
	}
	if other.View().Position != s.View().Position {
		t.Fatalf("position differs after round trip")
	}
}

func TestGoToMoveIsReadOnly(t *testing.T) {
	eng := &countingEngine{Engine: memengine.New()}
	s := newSession(t, eng, HumanVsHuman)
	play(t, s, "f2f3", "e6e5", "a2a3", "g6g5")
	before := eng.mutations

	for i := 0; i <= 4; i++ {
		v, err := s.GoToMove(i)
		if err != nil {
			t.Fatalf("GoToMove(%d): %v", i, err)
		}
		want, _ := s.Snapshot(i)
		if v.Position != want {
			t.Fatalf("GoToMove(%d) shows a different position", i)
		}
		again, _ := s.GoToMove(i)
		if !reflect.DeepEqual(v, again) {
			t.Fatalf("GoToMove(%d) not idempotent", i)
		}
		if v.CanBack != (i > 0) || v.CanForward != (i < 4) || v.Highlight != i-1 {
			t.Fatalf("navigation flags at %d: %+v", i, v)
		}
	}
	if eng.mutations != before {
		t.Fatalf("replay navigation mutated the engine")
	}
	if v := s.View(); v.Mode != Replay || v.Cursor != 4 {
		t.Fatalf("cursor at end should stay in replay: %+v", v)
	}
	if _, err := s.GoToMove(5); !errors.Is(err, history.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := s.GoToMove(-1); !errors.Is(err, history.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestReplayGuards(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	play(t, s, "f2f3")
	if _, err := s.GoToMove(0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PlayMove("e6e5"); !errors.Is(err, ErrReplayActive) {
		t.Fatalf("expected ErrReplayActive, got %v", err)
	}
	if _, err := s.Undo(); !errors.Is(err, ErrReplayActive) {
		t.Fatalf("expected ErrReplayActive on undo, got %v", err)
	}
	if _, err := s.BeginAutomated(true); !errors.Is(err, ErrReplayActive) {
		t.Fatalf("expected ErrReplayActive on automated move, got %v", err)
	}
	v, err := s.ExitReplay()
	if err != nil || v.Mode != Live || v.Cursor != 1 {
		t.Fatalf("ExitReplay: %+v %v", v, err)
	}
	if _, err := s.ExitReplay(); !errors.Is(err, ErrNotInReplay) {
		t.Fatalf("expected ErrNotInReplay, got %v", err)
	}
	checkLengths(t, s, 1)
}

func TestStepClampsCursor(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	play(t, s, "f2f3", "e6e5")
	v, _ := s.Step(-1)
	if v.Cursor != 1 {
		t.Fatalf("cursor = %d", v.Cursor)
	}
	v, _ = s.Step(-5)
	if v.Cursor != 0 || v.CanBack {
		t.Fatalf("cursor = %d", v.Cursor)
	}
	v, _ = s.Step(9)
	if v.Cursor != 2 || v.CanForward {
		t.Fatalf("cursor = %d", v.Cursor)
	}
}

func TestResumeFromHere(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	play(t, s, "f2f3", "e6e5", "a2a3", "g6g5")
	if _, err := s.ResumeFromHere(); !errors.Is(err, ErrNotInReplay) {
		t.Fatalf("expected ErrNotInReplay, got %v", err)
	}
	if _, err := s.GoToMove(1); err != nil {
		t.Fatal(err)
	}
	v, err := s.ResumeFromHere()
	if err != nil {
		t.Fatalf("ResumeFromHere: %v", err)
	}
	if v.Mode != Live {
		t.Fatalf("mode = %v", v.Mode)
	}
	checkLengths(t, s, 1)

	res, err := s.PlayMove("g6g5")
	if err != nil {
		t.Fatalf("PlayMove after resume: %v", err)
	}
	if res.Record.Ply != 2 || res.Record.Side != domain.Second {
		t.Fatalf("record after resume = %+v", res.Record)
	}
	checkLengths(t, s, 2)
}

func TestUndo(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	if _, err := s.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
	play(t, s, "f2f3", "e6e5")
	n, err := s.Undo()
	if err != nil || n != 1 {
		t.Fatalf("Undo = %d, %v", n, err)
	}
	checkLengths(t, s, 1)
	if side := s.View().Position.SideToMove; side != domain.Second {
		t.Fatalf("side after undo = %v", side)
	}
}

func TestUndoAgainstEngineRemovesReply(t *testing.T) {
	s := newSession(t, memengine.New(), AutoSecond)
	play(t, s, "f2f3")
	ticket, err := s.BeginAutomated(false)
	if err != nil {
		t.Fatalf("BeginAutomated: %v", err)
	}
	if _, err := s.CompleteAutomated(context.Background(), ticket); err != nil {
		t.Fatalf("CompleteAutomated: %v", err)
	}
	checkLengths(t, s, 2)

	n, err := s.Undo()
	if err != nil || n != 2 {
		t.Fatalf("Undo = %d, %v", n, err)
	}
	checkLengths(t, s, 0)
	if side := s.View().Position.SideToMove; side != domain.First {
		t.Fatalf("human should be to move, got %v", side)
	}
}

func TestAutomatedGuards(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	if _, err := s.BeginAutomated(false); !errors.Is(err, ErrHumanTurn) {
		t.Fatalf("expected ErrHumanTurn, got %v", err)
	}
	ticket, err := s.BeginAutomated(true)
	if err != nil {
		t.Fatalf("BeginAutomated(force): %v", err)
	}
	if s.Mode() != AiThinking || s.View().Thinking != domain.First {
		t.Fatalf("expected AiThinking for first side")
	}
	if _, err := s.BeginAutomated(true); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := s.PlayMove("f2f3"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy on human move, got %v", err)
	}
	if _, err := s.Undo(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy on undo, got %v", err)
	}
	if _, err := s.GoToMove(0); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy on navigation, got %v", err)
	}

	res, err := s.CompleteAutomated(context.Background(), ticket)
	if err != nil {
		t.Fatalf("CompleteAutomated: %v", err)
	}
	if res.Record.Side != domain.First || res.Record.Ply != 1 {
		t.Fatalf("automated record = %+v", res.Record)
	}
	if s.Mode() != Live {
		t.Fatalf("mode after automated move = %v", s.Mode())
	}
	if _, err := s.CompleteAutomated(context.Background(), ticket); !errors.Is(err, ErrStaleTicket) {
		t.Fatalf("expected ErrStaleTicket, got %v", err)
	}

	t2, _ := s.BeginAutomated(true)
	s.AbortAutomated(t2)
	if s.Mode() != Live {
		t.Fatalf("abort should return to Live")
	}
	checkLengths(t, s, 1)
}

func mateInOne(t *testing.T) *memengine.Engine {
	t.Helper()
	var snap domain.BoardSnapshot
	snap.Board[sq(t, "a7")] = domain.NewPiece(domain.Second, domain.King, false)
	snap.Board[sq(t, "c5")] = domain.NewPiece(domain.First, domain.King, false)
	snap.Board[sq(t, "b4")] = domain.NewPiece(domain.First, domain.Queen, false)
	return memengine.NewFromSnapshot(snap)
}

func TestGameOverAndReplay(t *testing.T) {
	s := newSession(t, mateInOne(t), HumanVsHuman)
	res, err := s.PlayMove("b4b6")
	if err != nil {
		t.Fatalf("PlayMove: %v", err)
	}
	if !res.Outcome.Checkmate || s.Mode() != GameOver {
		t.Fatalf("expected checkmate, got %+v mode %v", res.Outcome, s.Mode())
	}
	if _, err := s.PlayMove("a7a6"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}

	text, err := s.ExportKifu(time.Now())
	if err != nil {
		t.Fatalf("ExportKifu: %v", err)
	}
	if !strings.HasSuffix(text, "1.先手 b4b6\n---\nチェックメイト！ 先手の勝ち！\n") {
		t.Fatalf("unexpected export:\n%s", text)
	}

	v, _ := s.GoToMove(0)
	if v.Outcome.Over() {
		t.Fatalf("outcome should be hidden before the final position")
	}
	v, _ = s.GoToMove(1)
	if !v.Outcome.Checkmate {
		t.Fatalf("outcome should show at the final position")
	}
	v, _ = s.ExitReplay()
	if v.Mode != GameOver {
		t.Fatalf("exit replay mode = %v", v.Mode)
	}

	if n, err := s.Undo(); err != nil || n != 1 {
		t.Fatalf("Undo = %d, %v", n, err)
	}
	if s.Mode() != Live || s.View().Outcome.Over() {
		t.Fatalf("undo should return to Live")
	}
}

// flakyUndoEngine fails its nth Undo call.
type flakyUndoEngine struct {
	engine.Engine
	undos  int
	failAt int
}

func (f *flakyUndoEngine) Undo() (bool, error) {
	f.undos++
	if f.undos == f.failAt {
		return false, errors.New("engine call timed out")
	}
	return f.Engine.Undo()
}

func TestUndoPartialFailureReturnsToLive(t *testing.T) {
	var snap domain.BoardSnapshot
	snap.Board[sq(t, "a7")] = domain.NewPiece(domain.Second, domain.King, false)
	snap.Board[sq(t, "g6")] = domain.NewPiece(domain.Second, domain.Pawn, false)
	snap.Board[sq(t, "c5")] = domain.NewPiece(domain.First, domain.King, false)
	snap.Board[sq(t, "b4")] = domain.NewPiece(domain.First, domain.Queen, false)
	snap.SideToMove = domain.Second
	eng := &flakyUndoEngine{Engine: memengine.NewFromSnapshot(snap), failAt: 2}
	s := newSession(t, eng, AutoFirst)

	play(t, s, "g6g5")
	ticket, err := s.BeginAutomated(false)
	if err != nil {
		t.Fatalf("BeginAutomated: %v", err)
	}
	res, err := s.CompleteAutomated(context.Background(), ticket)
	if err != nil || !res.Outcome.Checkmate {
		t.Fatalf("expected automated mate, got %+v %v", res, err)
	}
	if s.Mode() != GameOver {
		t.Fatalf("mode = %v, want GameOver", s.Mode())
	}

	n, err := s.Undo()
	if err == nil || n != 1 {
		t.Fatalf("Undo = %d, %v; want 1 and the engine error", n, err)
	}
	checkLengths(t, s, 1)
	v := s.View()
	if v.Mode != Live || v.Outcome.Over() || v.Cursor != 1 {
		t.Fatalf("after partial undo: mode=%v outcome=%+v cursor=%d", v.Mode, v.Outcome, v.Cursor)
	}
}

func TestResumeAtFinalPositionKeepsGameOver(t *testing.T) {
	s := newSession(t, mateInOne(t), HumanVsHuman)
	play(t, s, "b4b6")
	if _, err := s.GoToMove(1); err != nil {
		t.Fatal(err)
	}
	v, err := s.ResumeFromHere()
	if err != nil {
		t.Fatalf("ResumeFromHere: %v", err)
	}
	if v.Mode != GameOver {
		t.Fatalf("mode = %v", v.Mode)
	}
	if _, err := s.GoToMove(0); err != nil {
		t.Fatal(err)
	}
	v, err = s.ResumeFromHere()
	if err != nil || v.Mode != Live || v.Len != 0 {
		t.Fatalf("resume at start: %+v %v", v, err)
	}
}

func TestExportListsAutomatedLevels(t *testing.T) {
	s := newSession(t, memengine.New(), AutoSecond)
	if err := s.SetStrength(domain.Second, engine.Strength{Name: "level4", Depth: 4}); err != nil {
		t.Fatal(err)
	}
	text, err := s.ExportKifu(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "後手AI: レベル4\n") || strings.Contains(text, "先手AI") {
		t.Fatalf("unexpected header:\n%s", text)
	}
	if err := s.SetDialect(notation.DialectEnglish); err != nil {
		t.Fatal(err)
	}
	text, _ = s.ExportKifu(time.Now())
	if !strings.Contains(text, "Black AI: level 4") {
		t.Fatalf("unexpected english header:\n%s", text)
	}
}

func TestSetPlayModeValidates(t *testing.T) {
	s := newSession(t, memengine.New(), HumanVsHuman)
	if err := s.SetPlayMode("chaos"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if err := s.SetPlayMode(AutoBoth); err != nil || s.PlayMode() != AutoBoth {
		t.Fatalf("SetPlayMode: %v", err)
	}
	if !s.SideToMoveAutomated() {
		t.Fatalf("first side should be automated")
	}
}
