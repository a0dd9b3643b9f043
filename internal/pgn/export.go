package pgn

import (
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
)

// Export renders g as PGN through the library writer. Clock annotations are
// written back as clk commands so the output imports to the same clocks.
func Export(g *domain.Game) (string, error) {
	if g == nil {
		return "", ErrEmptyMovetext
	}
	game := nchess.NewGame()
	notation := nchess.AlgebraicNotation{}
	for i, mv := range g.SAN {
		if err := game.PushNotationMove(mv, notation, nil); err != nil {
			return "", fmt.Errorf("%w: ply %d %q: %v", ErrIllegalMove, i+1, mv, err)
		}
		if i < len(g.ClockTimes) && g.ClockTimes[i] != "" {
			moves := game.Moves()
			moves[len(moves)-1].SetCommand(clockCommand, g.ClockTimes[i])
		}
	}

	result := strings.TrimSpace(g.Result)
	switch result {
	case "1-0":
		game.Resign(nchess.Black)
	case "0-1":
		game.Resign(nchess.White)
	case "1/2-1/2":
		_ = game.Draw(nchess.DrawOffer)
	default:
		result = "*"
	}

	tags := []struct{ key, value string }{
		{"Event", "Guess the Elo"},
		{"Site", g.Link},
		{TagDate, g.Date},
		{TagWhite, g.White.Username},
		{TagBlack, g.Black.Username},
		{TagResult, result},
		{TagWhiteElo, ratingTag(g.White.Rating)},
		{TagBlackElo, ratingTag(g.Black.Rating)},
		{TagTimeControl, g.TimeControl},
		{TagECO, g.ECO},
		{TagTermination, g.Termination},
		{TagStartTime, g.StartTime},
		{TagLink, g.Link},
	}
	for _, t := range tags {
		if v := strings.TrimSpace(t.value); v != "" {
			// 라이브러리 writer는 태그 값을 escape하지 않는다.
			game.AddTagPair(t.key, strings.ReplaceAll(v, `"`, "'"))
		}
	}
	return game.String() + "\n", nil
}

// ExportFileName is "<white>-<black>-chessgame.pgn" with unsafe characters replaced.
func ExportFileName(g *domain.Game) string {
	white, black := "white", "black"
	if g != nil {
		white = fileSafe(g.White.Username, white)
		black = fileSafe(g.Black.Username, black)
	}
	return white + "-" + black + "-chessgame.pgn"
}

func fileSafe(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	var sb strings.Builder
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

func ratingTag(r int) string {
	if r <= 0 {
		return ""
	}
	return strconv.Itoa(r)
}
