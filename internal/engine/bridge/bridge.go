// Package bridge drives an external engine process over a line protocol.
// Every capability of engine.Engine is one request line; the engine answers
// with a single "ok ..." or "err ..." line. Search replies with "bestmove"
// or "nomove" and may emit "info" lines first.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chaturanga-session/internal/domain"
	"github.com/park285/chaturanga-session/internal/engine"
)

const (
	defaultCallTimeout  = 4 * time.Second
	defaultReadyTimeout = 4 * time.Second
)

// ErrProtocol marks a reply the bridge could not interpret.
var ErrProtocol = errors.New("engine protocol error")

type Option func(*Bridge)

func WithCallTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.callTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// Bridge implements engine.Engine against a running engine process.
type Bridge struct {
	cmd    *exec.Cmd
	stdin  io.Writer
	stdout *bufio.Reader
	closer io.Closer

	mu          sync.Mutex
	callTimeout time.Duration
	broken      bool
	logger      *zap.Logger
}

var _ engine.Engine = (*Bridge)(nil)

// New wraps an already connected stream pair. It does not handshake.
func New(r io.Reader, w io.Writer, opts ...Option) *Bridge {
	b := &Bridge{
		stdin:       w,
		stdout:      bufio.NewReader(r),
		callTimeout: defaultCallTimeout,
		logger:      zap.NewNop(),
	}
	if c, ok := w.(io.Closer); ok {
		b.closer = c
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the engine binary and waits for it to report ready.
func Start(ctx context.Context, binaryPath string, args []string, opts ...Option) (*Bridge, error) {
	cmd := exec.CommandContext(ctx, binaryPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	b := New(stdoutPipe, stdin, opts...)
	b.cmd = cmd
	if err := b.EnsureReady(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bridge) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	for {
		line, err := b.readLine(readyCtx)
		if err != nil {
			return fmt.Errorf("wait readyok: %w", err)
		}
		if strings.Contains(line, "readyok") {
			return nil
		}
	}
}

func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.broken = true
	if b.closer != nil {
		b.closer.Close()
	}
	if b.cmd != nil && b.cmd.Process != nil {
		_ = b.cmd.Process.Kill()
	}
	if b.cmd != nil {
		return b.cmd.Wait()
	}
	return nil
}

func (b *Bridge) SideToMove() (domain.Side, error) {
	fields, err := b.call("sidetomove")
	if err != nil {
		return domain.First, err
	}
	switch firstField(fields) {
	case "first":
		return domain.First, nil
	case "second":
		return domain.Second, nil
	}
	return domain.First, fmt.Errorf("%w: side %q", ErrProtocol, strings.Join(fields, " "))
}

func (b *Bridge) Ply() (int, error) {
	return b.callInt("ply")
}

func (b *Bridge) PieceAt(sq int) (domain.Piece, error) {
	n, err := b.callInt("piece " + strconv.Itoa(sq))
	if err != nil {
		return domain.NoPiece, err
	}
	if n < 0 || n > 0xff {
		return domain.NoPiece, fmt.Errorf("%w: piece code %d", ErrProtocol, n)
	}
	return domain.Piece(n), nil
}

func (b *Bridge) HandCount(side domain.Side, pt domain.PieceType) (int, error) {
	return b.callInt(fmt.Sprintf("hand %d %d", side, pt))
}

func (b *Bridge) InCheck() (bool, error) {
	return b.callBool("incheck")
}

func (b *Bridge) Outcome() (engine.Outcome, error) {
	fields, err := b.call("outcome")
	if err != nil {
		return engine.Outcome{}, err
	}
	switch firstField(fields) {
	case "none":
		return engine.Outcome{}, nil
	case "checkmate":
		return engine.Outcome{Checkmate: true}, nil
	case "stalemate":
		return engine.Outcome{Stalemate: true}, nil
	case "draw":
		return engine.Outcome{Draw: true}, nil
	}
	return engine.Outcome{}, fmt.Errorf("%w: outcome %q", ErrProtocol, strings.Join(fields, " "))
}

func (b *Bridge) LegalMoves() ([]engine.LegalMove, error) {
	fields, err := b.call("moves")
	if err != nil {
		return nil, err
	}
	moves := make([]engine.LegalMove, 0, len(fields))
	for _, f := range fields {
		m, err := parseMoveField(f)
		if err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, nil
}

func (b *Bridge) CanMove(from, to int) (bool, error) {
	return b.callBool(fmt.Sprintf("canmove %d %d", from, to))
}

func (b *Bridge) Reset() error {
	_, err := b.call("reset")
	return err
}

func (b *Bridge) ApplyLegal(index int) (bool, error) {
	return b.callBool("apply " + strconv.Itoa(index))
}

func (b *Bridge) ApplyFromTo(from, to int) (bool, error) {
	return b.callBool(fmt.Sprintf("applyft %d %d", from, to))
}

func (b *Bridge) Undo() (bool, error) {
	return b.callBool("undo")
}

func (b *Bridge) Search(ctx context.Context, strength engine.Strength) (engine.LegalMove, error) {
	line, err := engine.FormatSearchCommand(strength)
	if err != nil {
		return engine.LegalMove{}, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(strength))
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken {
		return engine.LegalMove{}, engine.ErrUnavailable
	}
	if err := b.send(line); err != nil {
		return engine.LegalMove{}, b.fail(fmt.Errorf("send search: %w", err))
	}
	for {
		reply, err := b.readLine(searchCtx)
		if err != nil {
			b.logger.Warn("engine_search_read_failed", zap.String("command", line), zap.Error(err))
			return engine.LegalMove{}, b.fail(fmt.Errorf("read search reply: %w", err))
		}
		switch {
		case reply == "", strings.HasPrefix(reply, "info "):
			continue
		case reply == "nomove":
			return engine.LegalMove{}, engine.ErrSearchFailed
		case strings.HasPrefix(reply, "bestmove "):
			return parseMoveField(strings.TrimSpace(strings.TrimPrefix(reply, "bestmove ")))
		case strings.HasPrefix(reply, "err"):
			return engine.LegalMove{}, fmt.Errorf("%w: %s", engine.ErrSearchFailed, strings.TrimSpace(strings.TrimPrefix(reply, "err")))
		default:
			return engine.LegalMove{}, fmt.Errorf("%w: unexpected search reply %q", ErrProtocol, reply)
		}
	}
}

func (b *Bridge) call(command string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.callTimeout)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken {
		return nil, engine.ErrUnavailable
	}
	if err := b.send(command); err != nil {
		return nil, b.fail(fmt.Errorf("send %s: %w", command, err))
	}
	reply, err := b.readLine(ctx)
	if err != nil {
		return nil, b.fail(fmt.Errorf("read %s reply: %w", command, err))
	}
	fields := strings.Fields(reply)
	switch {
	case len(fields) > 0 && fields[0] == "ok":
		return fields[1:], nil
	case len(fields) > 0 && fields[0] == "err":
		return nil, fmt.Errorf("engine rejected %q: %s", command, strings.Join(fields[1:], " "))
	}
	return nil, fmt.Errorf("%w: reply %q to %q", ErrProtocol, reply, command)
}

func (b *Bridge) callInt(command string) (int, error) {
	fields, err := b.call(command)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(firstField(fields))
	if err != nil {
		return 0, fmt.Errorf("%w: %s reply %v", ErrProtocol, command, fields)
	}
	return n, nil
}

func (b *Bridge) callBool(command string) (bool, error) {
	n, err := b.callInt(command)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// fail marks the stream unusable; a pending read may still own the reader.
func (b *Bridge) fail(err error) error {
	b.broken = true
	b.logger.Error("engine_bridge_broken", zap.Error(err))
	return fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
}

func (b *Bridge) send(line string) error {
	_, err := io.WriteString(b.stdin, line+"\n")
	return err
}

func (b *Bridge) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := b.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && res.line != "" {
			return res.line, nil
		}
		return res.line, res.err
	}
}

// parseMoveField decodes "from,to,drop,type", e.g. "40,33,0,0" or "-1,24,1,3".
func parseMoveField(f string) (engine.LegalMove, error) {
	parts := strings.Split(f, ",")
	if len(parts) != 4 {
		return engine.LegalMove{}, fmt.Errorf("%w: move field %q", ErrProtocol, f)
	}
	var nums [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return engine.LegalMove{}, fmt.Errorf("%w: move field %q", ErrProtocol, f)
		}
		nums[i] = n
	}
	return engine.LegalMove{
		From:     nums[0],
		To:       nums[1],
		Drop:     nums[2] != 0,
		DropType: domain.PieceType(nums[3]),
	}, nil
}

func computeSearchTimeout(s engine.Strength) time.Duration {
	if s.MoveTimeMillis > 0 {
		return time.Duration(s.MoveTimeMillis+2000) * time.Millisecond * 3
	}
	base := time.Duration(s.Depth) * 300 * time.Millisecond
	if base < 6*time.Second {
		base = 6 * time.Second
	}
	if base > 20*time.Second {
		base = 20 * time.Second
	}
	return base
}

func firstField(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
