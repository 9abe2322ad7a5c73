package engine

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinLevel     = 1
	MaxLevel     = 8
	DefaultLevel = 3
)

// Strength bounds one automated search.
type Strength struct {
	Name           string
	Depth          int
	MoveTimeMillis int
}

// StrengthForLevel maps a level to its preset. Level n searches n plies.
func StrengthForLevel(level int) (Strength, error) {
	if level < MinLevel || level > MaxLevel {
		return Strength{}, fmt.Errorf("strength level %d out of range %d-%d", level, MinLevel, MaxLevel)
	}
	return Strength{Name: "level" + strconv.Itoa(level), Depth: level}, nil
}

// ParseStrength accepts "3" or "level3".
func ParseStrength(s string) (Strength, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "level")
	n, err := strconv.Atoi(v)
	if err != nil {
		return Strength{}, fmt.Errorf("invalid strength %q", s)
	}
	return StrengthForLevel(n)
}

// Level returns the depth, clamped into the valid level range.
func (s Strength) Level() int {
	switch {
	case s.Depth < MinLevel:
		return MinLevel
	case s.Depth > MaxLevel:
		return MaxLevel
	default:
		return s.Depth
	}
}

func ValidateStrength(s Strength) error {
	if s.Depth <= 0 && s.MoveTimeMillis <= 0 {
		return fmt.Errorf("strength %s does not define search limits", s.Name)
	}
	if s.Depth > MaxLevel {
		return fmt.Errorf("strength %s depth %d exceeds %d", s.Name, s.Depth, MaxLevel)
	}
	return nil
}

// BuildSearchCommand renders the search request line understood by engine
// processes, e.g. "search depth 3 movetime 500".
func BuildSearchCommand(s Strength) ([]string, error) {
	if err := ValidateStrength(s); err != nil {
		return nil, err
	}
	args := []string{"search"}
	if s.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(s.Depth))
	}
	if s.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(s.MoveTimeMillis))
	}
	return args, nil
}

func FormatSearchCommand(s Strength) (string, error) {
	args, err := BuildSearchCommand(s)
	if err != nil {
		return "", err
	}
	return strings.Join(args, " "), nil
}
