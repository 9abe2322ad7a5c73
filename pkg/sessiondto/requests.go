package sessiondto

type MoveRequest struct {
	Move string `json:"move"`
}

// GoToRequest either jumps to Index or steps by Delta when Delta is set.
type GoToRequest struct {
	Index int  `json:"index"`
	Delta *int `json:"delta,omitempty"`
}

type ModeRequest struct {
	PlayMode       string `json:"play_mode"`
	StrengthFirst  int    `json:"strength_first,omitempty"`
	StrengthSecond int    `json:"strength_second,omitempty"`
	Dialect        string `json:"dialect,omitempty"`
}

type UndoResponse struct {
	Removed int           `json:"removed"`
	State   *SessionState `json:"state"`
}

type ImportResponse struct {
	Applied int           `json:"applied"`
	State   *SessionState `json:"state"`
}

type ShareResponse struct {
	Code      string `json:"code"`
	Moves     int    `json:"moves"`
	ExpiresIn int    `json:"expires_in_sec"`
}

type LoadRequest struct {
	Code string `json:"code"`
}
