package archive

import (
	"context"
	"errors"
	"fmt"
)

// Archive lists a player's monthly game batches and fetches one batch.
type Archive interface {
	ListArchives(ctx context.Context, username string) ([]string, error)
	FetchGames(ctx context.Context, archiveURL string) ([]GameRecord, error)
}

type PlayerRecord struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result,omitempty"`
}

type GameRecord struct {
	URL       string       `json:"url"`
	PGN       string       `json:"pgn"`
	Rules     string       `json:"rules"`
	TimeClass string       `json:"time_class"`
	Rated     bool         `json:"rated"`
	EndTime   int64        `json:"end_time,omitempty"`
	Result    string       `json:"result,omitempty"`
	White     PlayerRecord `json:"white"`
	Black     PlayerRecord `json:"black"`
}

type archivesResponse struct {
	Archives []string `json:"archives"`
}

type gamesResponse struct {
	Games []GameRecord `json:"games"`
}

var ErrNotFound = errors.New("archive resource not found")

// StatusError is a non-2xx answer from the archive API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("archive api error: status=%d body=%s", e.Status, e.Body)
}
