// Package history keeps the move log and the snapshot store of a session in
// lockstep. Snapshot i is the position before move i+1; the last snapshot is
// the current position.
package history

import (
	"errors"
	"fmt"

	"github.com/park285/chaturanga-session/internal/domain"
)

var (
	ErrOutOfRange    = errors.New("history index out of range")
	ErrInvalidLength = errors.New("invalid truncation length")
)

// SnapshotStore is an append-only list of positions with random reads.
type SnapshotStore struct {
	items []domain.BoardSnapshot
}

func (s *SnapshotStore) Append(snap domain.BoardSnapshot) {
	s.items = append(s.items, snap)
}

// TruncateTo drops every entry at index length and beyond.
func (s *SnapshotStore) TruncateTo(length int) error {
	if length < 0 || length > len(s.items) {
		return fmt.Errorf("%w: %d (size %d)", ErrInvalidLength, length, len(s.items))
	}
	s.items = s.items[:length:length]
	return nil
}

func (s *SnapshotStore) Get(index int) (domain.BoardSnapshot, error) {
	if index < 0 || index >= len(s.items) {
		return domain.BoardSnapshot{}, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, index, len(s.items))
	}
	return s.items[index], nil
}

func (s *SnapshotStore) Len() int { return len(s.items) }

// MoveLog is the parallel list of move records.
type MoveLog struct {
	items []domain.MoveRecord
}

func (l *MoveLog) Append(rec domain.MoveRecord) {
	l.items = append(l.items, rec)
}

func (l *MoveLog) TruncateTo(length int) error {
	if length < 0 || length > len(l.items) {
		return fmt.Errorf("%w: %d (size %d)", ErrInvalidLength, length, len(l.items))
	}
	l.items = l.items[:length:length]
	return nil
}

func (l *MoveLog) Get(index int) (domain.MoveRecord, error) {
	if index < 0 || index >= len(l.items) {
		return domain.MoveRecord{}, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, index, len(l.items))
	}
	return l.items[index], nil
}

func (l *MoveLog) Len() int { return len(l.items) }

// History pairs a MoveLog with a SnapshotStore. Its mutators are the only way
// to change either list, so Snapshots().Len() == Moves().Len()+1 always holds.
type History struct {
	moves MoveLog
	snaps SnapshotStore
}

// New starts a history at the given initial position.
func New(initial domain.BoardSnapshot) *History {
	h := &History{}
	h.snaps.Append(initial)
	return h
}

// Append records one completed move and the position it produced.
func (h *History) Append(rec domain.MoveRecord, after domain.BoardSnapshot) {
	h.moves.Append(rec)
	h.snaps.Append(after)
}

// Truncate keeps the first n moves and the n+1 positions they span.
func (h *History) Truncate(n int) error {
	if n < 0 || n > h.moves.Len() {
		return fmt.Errorf("%w: %d moves (have %d)", ErrInvalidLength, n, h.moves.Len())
	}
	if err := h.moves.TruncateTo(n); err != nil {
		return err
	}
	return h.snaps.TruncateTo(n + 1)
}

// Reset discards everything and starts over from initial.
func (h *History) Reset(initial domain.BoardSnapshot) {
	h.moves = MoveLog{}
	h.snaps = SnapshotStore{}
	h.snaps.Append(initial)
}

// Len is the number of moves played.
func (h *History) Len() int { return h.moves.Len() }

// Snapshot returns position i, 0 <= i <= Len().
func (h *History) Snapshot(i int) (domain.BoardSnapshot, error) { return h.snaps.Get(i) }

// Move returns move record i, 0 <= i < Len().
func (h *History) Move(i int) (domain.MoveRecord, error) { return h.moves.Get(i) }

// Last returns the current position.
func (h *History) Last() domain.BoardSnapshot {
	return h.snaps.items[len(h.snaps.items)-1]
}

// Records returns a copy of the move log.
func (h *History) Records() []domain.MoveRecord {
	return append([]domain.MoveRecord(nil), h.moves.items...)
}

// SnapshotCount is Len()+1.
func (h *History) SnapshotCount() int { return h.snaps.Len() }
