package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appcfg "github.com/park285/EloGuess-KakaoTalk-bot/internal/config"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/guessbuilder"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/httpapi"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/obslog"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.LoadAPI()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}
	// 웹 세션은 방 개념이 없다.
	cfg.AllowedRooms = nil

	deps, err := guessbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("guess_init_error", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go deps.Service.RunJanitor(ctx, time.Minute)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps.Service, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("guess_api_listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("guess_api_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("guess_api_shutdown_error", zap.Error(err))
	}
	logger.Info("guess_api_stopped")
}
