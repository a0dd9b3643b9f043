package pgn

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ErrEmptyMovetext = errors.New("movetext has no moves")
	ErrIllegalMove   = errors.New("illegal move in movetext")
)

// Replay is the mainline of a decoded game.
type Replay struct {
	SAN     []string
	FENs    []string
	ECO     string
	Opening string
	Outcome string
}

func (r *Replay) Plies() int {
	if r == nil {
		return 0
	}
	return len(r.SAN)
}

// decode loads normalized PGN text through the library reader, which
// validates every move against the rules.
func decode(text string) (*nchess.Game, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "[") {
		// 태그 없는 movetext는 스캐너가 주석 안의 '['를 게임 시작으로 오인한다.
		text = `[Event "?"] ` + text
	}
	opt, err := nchess.PGN(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return nchess.NewGame(opt), nil
}

func replayOf(game *nchess.Game) (*Replay, error) {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil, ErrEmptyMovetext
	}
	notation := nchess.AlgebraicNotation{}
	r := &Replay{
		SAN:  make([]string, 0, len(moves)),
		FENs: make([]string, 0, len(moves)),
	}
	for _, mv := range moves {
		before := nchess.StartingPosition()
		if parent := mv.Parent(); parent != nil && parent.Position() != nil {
			before = parent.Position()
		}
		r.SAN = append(r.SAN, notation.Encode(before, mv))
		r.FENs = append(r.FENs, mv.Position().String())
	}

	r.ECO, r.Opening = lookupOpening(moves)
	if outcome := game.Outcome(); outcome != nchess.NoOutcome {
		r.Outcome = outcome.String()
	}
	return r, nil
}

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func lookupOpening(moves []*nchess.Move) (string, string) {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if ecoBook == nil || len(moves) == 0 {
		return "", ""
	}
	if eco := ecoBook.Find(moves); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}
