package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/adapter/guesspresenter"
	appcfg "github.com/park285/EloGuess-KakaoTalk-bot/internal/config"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/guessbuilder"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/irisfast"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/msgcat"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/obslog"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message_catalog_error", zap.Error(err))
	}

	deps, err := guessbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("guess_init_error", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.XUserID != "" {
			h["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			h["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			h["X-Session-Id"] = cfg.XSessionID
		}
		return h
	}

	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second, logger)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", string(state)))
	})
	egress := irisfast.NewEgress(cfg.IrisEgress, client, ws, logger)

	b := &bot{
		prefix: cfg.BotPrefix,
		svc:    deps.Service,
		presenter: guesspresenter.NewPresenter(func(room, message string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return egress.SendText(ctx, room, message)
		}),
		formatter: guesspresenter.NewFormatter(prefixProvider{prefix: cfg.BotPrefix}, catalog),
		logger:    logger,
	}

	// WS 수신 루프를 막지 않도록 메시지마다 고루틴.
	ws.OnMessage(func(msg *irisfast.Message) {
		go b.handle(msg)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go deps.Service.RunJanitor(ctx, time.Minute)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if irisCfg, err := client.GetConfig(cctx); err != nil {
		logger.Warn("iris_config_unavailable", zap.Error(err))
	} else {
		logger.Info("iris_config", zap.String("bot_name", irisCfg.BotName), zap.Int("port", irisCfg.Port))
	}
	if err := ws.Connect(cctx); err != nil {
		cancel()
		logger.Fatal("ws_connect_error", zap.Error(err))
	}
	cancel()
	logger.Info("guess_bot_started", zap.String("prefix", cfg.BotPrefix), zap.String("egress", cfg.IrisEgress))

	<-ctx.Done()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	_ = ws.Close(closeCtx)
	logger.Info("guess_bot_stopped")
}

type prefixProvider struct{ prefix string }

func (p prefixProvider) Prefix() string { return p.prefix }
