package pgn

import (
	"math"
	"strings"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
)

// Parsed is a PGN decoded into tags, clocks and its mainline replay.
type Parsed struct {
	Headers       Headers
	RawMovetext   string
	CleanMovetext string
	ClockTimes    []string
	Replay        *Replay
}

func (p *Parsed) Plies() int {
	if p == nil {
		return 0
	}
	return p.Replay.Plies()
}

// Parse normalizes clock annotations in raw and loads it through the rules
// reader. The error wraps ErrEmptyMovetext or ErrIllegalMove.
func Parse(raw string) (*Parsed, error) {
	n := normalize(raw)
	game, err := decode(n.text())
	if err != nil {
		return nil, err
	}
	replay, err := replayOf(game)
	if err != nil {
		return nil, err
	}
	return &Parsed{
		Headers:       headersOf(game),
		RawMovetext:   strings.TrimSpace(raw),
		CleanMovetext: n.clean(),
		ClockTimes:    mainlineClocks(game.Moves()),
		Replay:        replay,
	}, nil
}

// Game builds a domain game from the tags. Missing names fall back to
// "White"/"Black"; missing ratings stay 0.
func (p *Parsed) Game() *domain.Game {
	if p == nil {
		return nil
	}
	h := p.Headers
	whiteElo, _ := h.Rating(TagWhiteElo)
	blackElo, _ := h.Rating(TagBlackElo)
	eco, openingName := "", ""
	if p.Replay != nil {
		eco, openingName = p.Replay.ECO, p.Replay.Opening
	}
	if eco == "" {
		eco = h.Get(TagECO)
	}
	g := &domain.Game{
		RawMovetext:   p.RawMovetext,
		CleanMovetext: p.CleanMovetext,
		AverageElo:    AverageElo(whiteElo, blackElo),
		TrackedSide:   domain.SideWhite,
		White:         domain.Player{Username: h.GetDefault(TagWhite, "White"), Rating: whiteElo},
		Black:         domain.Player{Username: h.GetDefault(TagBlack, "Black"), Rating: blackElo},
		Link:          h.Get(TagLink),
		Result:        h.Get(TagResult),
		ClockTimes:    append([]string(nil), p.ClockTimes...),
		Date:          h.Get(TagDate),
		StartTime:     h.Get(TagStartTime),
		TimeControl:   NormalizeTimeControl(h.Get(TagTimeControl)),
		Termination:   h.Get(TagTermination),
		ECO:           eco,
		OpeningName:   openingName,
	}
	if p.Replay != nil {
		g.SAN = append([]string(nil), p.Replay.SAN...)
		g.FENs = append([]string(nil), p.Replay.FENs...)
	}
	g.RepresentativeElo = g.AverageElo
	return g
}

// AverageElo is round((white+black)/2), rounding halves away from zero.
func AverageElo(white, black int) int {
	return int(math.Round(float64(white+black) / 2))
}
