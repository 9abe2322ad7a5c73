package httpapi

import (
	"errors"

	"github.com/valyala/fasthttp"

	"github.com/park285/chaturanga-session/internal/archive"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/history"
	"github.com/park285/chaturanga-session/internal/kifu"
	"github.com/park285/chaturanga-session/internal/notation"
	"github.com/park285/chaturanga-session/internal/scheduler"
	"github.com/park285/chaturanga-session/internal/session"
	"github.com/park285/chaturanga-session/pkg/sessiondto"
)

var (
	errBadRequest     = errors.New("malformed request body")
	errSharingOff     = errors.New("kifu sharing is not configured")
	errUnknownRoute   = errors.New("no such endpoint")
	errMethodMismatch = errors.New("method not allowed")
)

type errorMapping struct {
	err       error
	status    int
	code      string
	retryable bool
}

// Checked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	{errBadRequest, fasthttp.StatusBadRequest, "bad_request", false},
	{errUnknownRoute, fasthttp.StatusNotFound, "not_found", false},
	{errMethodMismatch, fasthttp.StatusMethodNotAllowed, "method_not_allowed", false},
	{errSharingOff, fasthttp.StatusServiceUnavailable, "sharing_disabled", false},

	{notation.ErrParse, fasthttp.StatusUnprocessableEntity, "invalid_notation", false},
	{notation.ErrOutOfRange, fasthttp.StatusUnprocessableEntity, "invalid_notation", false},
	{session.ErrIllegalMove, fasthttp.StatusUnprocessableEntity, "illegal_move", false},
	{kifu.ErrNoMovesFound, fasthttp.StatusUnprocessableEntity, "no_moves_found", false},
	{kifu.ErrEncoding, fasthttp.StatusUnprocessableEntity, "bad_encoding", false},

	{session.ErrBusy, fasthttp.StatusConflict, "busy", true},
	{session.ErrReplayActive, fasthttp.StatusConflict, "replay_active", false},
	{session.ErrNotInReplay, fasthttp.StatusConflict, "not_in_replay", false},
	{session.ErrGameOver, fasthttp.StatusConflict, "game_over", false},
	{session.ErrNothingToUndo, fasthttp.StatusConflict, "nothing_to_undo", false},
	{session.ErrAutomatedTurn, fasthttp.StatusConflict, "automated_turn", false},
	{session.ErrHumanTurn, fasthttp.StatusConflict, "human_turn", false},
	{session.ErrNoLegalMoves, fasthttp.StatusConflict, "no_legal_moves", false},
	{scheduler.ErrSelfPlayRunning, fasthttp.StatusConflict, "self_play_running", false},
	{scheduler.ErrNotSelfPlayMode, fasthttp.StatusConflict, "not_self_play_mode", false},

	{history.ErrOutOfRange, fasthttp.StatusBadRequest, "out_of_range", false},
	{session.ErrUnknownMode, fasthttp.StatusBadRequest, "invalid_play_mode", false},
	{session.ErrInvalidDialect, fasthttp.StatusBadRequest, "invalid_dialect", false},
	{session.ErrInvalidSide, fasthttp.StatusBadRequest, "invalid_side", false},
	{errInvalidStrength, fasthttp.StatusBadRequest, "invalid_strength", false},

	{archive.ErrInvalidCode, fasthttp.StatusBadRequest, "invalid_share_code", false},
	{archive.ErrNotFound, fasthttp.StatusNotFound, "share_not_found", false},
	{archive.ErrEmptyKifu, fasthttp.StatusConflict, "empty_kifu", false},

	{engine.ErrUnavailable, fasthttp.StatusServiceUnavailable, "engine_unavailable", true},
	{engine.ErrSearchFailed, fasthttp.StatusBadGateway, "search_failed", true},
	{scheduler.ErrSchedulerStopped, fasthttp.StatusServiceUnavailable, "shutting_down", true},
}

// toDomainError maps err to an HTTP status and its wire form.
func toDomainError(err error) (int, sessiondto.DomainError) {
	var ie *session.ImportError
	if errors.As(err, &ie) {
		return fasthttp.StatusUnprocessableEntity, sessiondto.DomainError{Code: "kifu_import_aborted", Message: err.Error()}
	}
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, sessiondto.DomainError{Code: m.code, Message: err.Error(), Retryable: m.retryable}
		}
	}
	return fasthttp.StatusInternalServerError, sessiondto.DomainError{Code: "internal", Message: err.Error()}
}
