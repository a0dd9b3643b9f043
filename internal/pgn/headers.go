package pgn

import (
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

const (
	TagWhite       = "White"
	TagBlack       = "Black"
	TagWhiteElo    = "WhiteElo"
	TagBlackElo    = "BlackElo"
	TagLink        = "Link"
	TagDate        = "Date"
	TagStartTime   = "StartTime"
	TagTimeControl = "TimeControl"
	TagResult      = "Result"
	TagTermination = "Termination"
	TagECO         = "ECO"
)

var knownTags = []string{
	TagWhite, TagBlack, TagWhiteElo, TagBlackElo, TagLink, TagDate,
	TagStartTime, TagTimeControl, TagResult, TagTermination, TagECO,
}

// Headers holds PGN tag pairs keyed by tag name.
type Headers map[string]string

func (h Headers) Get(key string) string {
	if h == nil {
		return ""
	}
	return strings.TrimSpace(h[key])
}

func (h Headers) GetDefault(key, def string) string {
	if v := h.Get(key); v != "" {
		return v
	}
	return def
}

// Rating parses a rating tag. Missing, "?" or non-positive values report false.
func (h Headers) Rating(key string) (int, bool) {
	v := h.Get(key)
	if v == "" || v == "?" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ReadHeaders lexes the tag pair section of raw and stops at the first
// movetext token, so it works even when the moves do not replay.
func ReadHeaders(raw string) Headers {
	h := Headers{}
	lx := nchess.NewLexer(raw)
	key := ""
	for {
		tok := lx.NextToken()
		switch tok.Type {
		case nchess.TagStart, nchess.TagEnd:
		case nchess.TagKey:
			key = tok.Value
		case nchess.TagValue:
			if key != "" {
				h[key] = tok.Value
				key = ""
			}
		default:
			return h
		}
	}
}

func headersOf(game *nchess.Game) Headers {
	h := Headers{}
	for _, k := range knownTags {
		if v := game.GetTagPair(k); v != "" {
			h[k] = v
		}
	}
	return h
}
