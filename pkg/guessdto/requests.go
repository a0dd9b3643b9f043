package guessdto

// RequestMeta identifies the caller. Sender keys the player's records;
// DisplayName, when set, is what rankings show instead of Sender.
type RequestMeta struct {
	SessionID   string
	Room        string
	Sender      string
	DisplayName string
}

func (m RequestMeta) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Sender
}

type ImportRequest struct {
	PGN string `json:"pgn"`
}

type SelectRequest struct {
	Ply int `json:"ply"`
}

type GuessRequest struct {
	Elo int `json:"elo"`
}
