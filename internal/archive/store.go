// Package archive shares exported kifu text through redis under short codes.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 24 * time.Hour
	codePrefix = "KF-"
)

var (
	ErrNotFound    = errors.New("shared kifu not found")
	ErrInvalidCode = errors.New("invalid share code")
	ErrEmptyKifu   = errors.New("kifu text is empty")
)

// Entry is stored as JSON under kifu:<code>.
type Entry struct {
	Code      string    `json:"code"`
	SessionID string    `json:"session_id,omitempty"`
	Moves     int       `json:"moves"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

// Dial connects to REDIS_URL and checks the connection.
func Dial(ctx context.Context, raw string) (*redis.Client, error) {
	opts, err := parseRedisURL(raw)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// TTL is how long a shared kifu stays loadable.
func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) key(code string) string      { return "kifu:" + code }
func (s *Store) keySession(id string) string { return "kifu:session:" + id }

// Save stores text and returns its share code.
func (s *Store) Save(ctx context.Context, sessionID string, moves int, text string) (Entry, error) {
	if strings.TrimSpace(text) == "" {
		return Entry{}, ErrEmptyKifu
	}
	e := Entry{
		Code:      newCode(),
		SessionID: sessionID,
		Moves:     moves,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return Entry{}, err
	}
	ok, err := s.rdb.SetNX(ctx, s.key(e.Code), raw, s.ttl).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("save kifu: %w", err)
	}
	if !ok {
		return Entry{}, fmt.Errorf("save kifu: code %s already taken", e.Code)
	}
	if sessionID != "" {
		// index by session → codes
		if err := s.rdb.SAdd(ctx, s.keySession(sessionID), e.Code).Err(); err != nil {
			return Entry{}, err
		}
		_ = s.rdb.Expire(ctx, s.keySession(sessionID), s.ttl).Err()
	}
	return e, nil
}

// Load returns the entry stored under code. Codes are case-insensitive.
func (s *Store) Load(ctx context.Context, code string) (Entry, error) {
	c, err := NormalizeCode(code)
	if err != nil {
		return Entry{}, err
	}
	raw, err := s.rdb.Get(ctx, s.key(c)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load kifu: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("decode kifu entry: %w", err)
	}
	return e, nil
}

// CodesBySession lists codes shared from one session that have not expired.
func (s *Store) CodesBySession(ctx context.Context, sessionID string) ([]string, error) {
	codes, err := s.rdb.SMembers(ctx, s.keySession(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	live := codes[:0]
	for _, c := range codes {
		n, err := s.rdb.Exists(ctx, s.key(c)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = s.rdb.SRem(ctx, s.keySession(sessionID), c).Err()
			continue
		}
		live = append(live, c)
	}
	return live, nil
}

// NormalizeCode trims and upper-cases code and checks its shape.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !strings.HasPrefix(c, codePrefix) || len(c) != len(codePrefix)+8 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	for _, r := range c[len(codePrefix):] {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
		}
	}
	return c, nil
}

// newCode returns `KF-` + 8 upper hex digits.
func newCode() string {
	id := uuid.New()
	return codePrefix + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}
