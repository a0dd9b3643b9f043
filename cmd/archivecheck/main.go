package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/archive"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/gamesource"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/obslog"
)

// archivecheck probes the game archive for one player and optionally runs a
// full random fetch through the game source filters.
func main() {
	var (
		baseURL = flag.String("base", os.Getenv("ARCHIVE_BASE_URL"), "archive API base URL")
		player  = flag.String("player", "dq_555", "username to list archives for")
		fetch   = flag.Bool("fetch", false, "also run one random game fetch")
		timeout = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	client := archive.NewClient(*baseURL, archive.WithLogger(logger))
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	archives, err := client.ListArchives(ctx, *player)
	if err != nil {
		log.Fatalf("list archives error: %v", err)
	}
	fmt.Printf("archives for %s: %d\n", *player, len(archives))
	if len(archives) == 0 {
		return
	}
	latest := archives[len(archives)-1]
	games, err := client.FetchGames(ctx, latest)
	if err != nil {
		log.Fatalf("fetch games error: %v", err)
	}
	rapid := 0
	for _, g := range games {
		if g.Rules == "chess" && g.TimeClass == "rapid" {
			rapid++
		}
	}
	fmt.Printf("latest batch %s: %d games, %d rapid\n", latest, len(games), rapid)

	if !*fetch {
		return
	}
	src, err := gamesource.New(client, gamesource.Config{TrackedPlayers: []string{*player}}, logger)
	if err != nil {
		log.Fatalf("game source error: %v", err)
	}
	game, err := src.FetchRandomGame(ctx)
	if err != nil {
		log.Fatalf("random fetch error: %v", err)
	}
	fmt.Printf("picked %s (%d plies, avg %d, %s)\n", game.Link, game.TotalPlies(), game.AverageElo, strings.TrimSpace(game.TimeControl))
}
