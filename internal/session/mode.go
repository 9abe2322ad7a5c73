package session

import (
	"fmt"
	"strings"

	"github.com/park285/chaturanga-session/internal/domain"
)

// Mode is the state of the session state machine.
type Mode uint8

const (
	Live Mode = iota
	Replay
	AiThinking
	GameOver
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case Replay:
		return "replay"
	case AiThinking:
		return "ai_thinking"
	case GameOver:
		return "game_over"
	}
	return "unknown"
}

// PlayMode says which sides are played by the engine.
type PlayMode string

const (
	HumanVsHuman PlayMode = "pvp"
	AutoFirst    PlayMode = "ai-white"
	AutoSecond   PlayMode = "ai-black"
	AutoBoth     PlayMode = "ai-vs-ai"
)

func ParsePlayMode(s string) (PlayMode, error) {
	switch pm := PlayMode(strings.ToLower(strings.TrimSpace(s))); pm {
	case HumanVsHuman, AutoFirst, AutoSecond, AutoBoth:
		return pm, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Automated reports whether side is played by the engine under pm.
func (pm PlayMode) Automated(side domain.Side) bool {
	switch pm {
	case AutoBoth:
		return true
	case AutoFirst:
		return side == domain.First
	case AutoSecond:
		return side == domain.Second
	}
	return false
}

// SingleAutomated is true when exactly one side is automated.
func (pm PlayMode) SingleAutomated() bool {
	return pm == AutoFirst || pm == AutoSecond
}
