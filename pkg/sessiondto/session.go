package sessiondto

// Hand lists how many pieces of each droppable type a side holds, keyed by
// piece letter.
type Hand map[string]int

type MoveRecord struct {
	Ply      int    `json:"ply"`
	Side     string `json:"side"`
	Label    string `json:"label"`
	Notation string `json:"notation"`
}

type Outcome struct {
	Over      bool   `json:"over"`
	Result    string `json:"result,omitempty"`
	Winner    string `json:"winner,omitempty"`
	Checkmate bool   `json:"checkmate"`
	Stalemate bool   `json:"stalemate"`
	Draw      bool   `json:"draw"`
}

type SessionState struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	PlayMode  string `json:"play_mode"`
	// Board holds one token per square from a7 to g1: "" for empty, upper case
	// for the first side, lower case for the second, "+" prefix when promoted.
	Board      []string     `json:"board"`
	Hands      [2]Hand      `json:"hands"`
	SideToMove string       `json:"side_to_move"`
	Ply        int          `json:"ply"`
	Cursor     int          `json:"cursor"`
	Length     int          `json:"length"`
	Highlight  int          `json:"highlight"`
	Moves      []MoveRecord `json:"moves"`
	CanBack    bool         `json:"can_back"`
	CanForward bool         `json:"can_forward"`
	Outcome    Outcome      `json:"outcome"`
	Thinking   string       `json:"thinking,omitempty"`
	Strengths  [2]int       `json:"strengths"`
	SelfPlay   bool         `json:"self_play"`
}

type MoveSummary struct {
	Move  MoveRecord    `json:"move"`
	State *SessionState `json:"state"`
}
