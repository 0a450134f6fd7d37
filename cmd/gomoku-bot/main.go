package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/gomoku-kakao-bot/internal/adapter/gomokupresenter"
	"github.com/park285/gomoku-kakao-bot/internal/builder"
	appcfg "github.com/park285/gomoku-kakao-bot/internal/config"
	"github.com/park285/gomoku-kakao-bot/internal/irisfast"
	"github.com/park285/gomoku-kakao-bot/internal/obslog"
	"github.com/park285/gomoku-kakao-bot/internal/util"
)

type prefixProvider struct{ prefix string }

func (p prefixProvider) Prefix() string { return p.prefix }

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := builder.New(rootCtx, cfg)
	if err != nil {
		logger.Fatal("gomoku init error", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(cfg.Headers))
	probeCtx, cancelProbe := context.WithTimeout(rootCtx, 5*time.Second)
	if iris, err := client.GetConfig(probeCtx); err != nil {
		logger.Warn("iris_config_error", zap.Error(err))
	} else {
		logger.Info("iris_config", zap.Int("port", iris.Port), zap.Int("message_rate", iris.MessageRate))
	}
	cancelProbe()

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, cfg.WSReconnectMax, time.Second)
	ws.SetHeaderProvider(cfg.Headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("iris_ws_state", zap.String("state", string(state)))
	})

	egress := irisfast.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, logger)
	h := &handler{
		prefix: cfg.BotPrefix,
		svc:    deps.Service,
		presenter: gomokupresenter.NewPresenter(
			func(room, message string) error { return egress.SendText(rootCtx, room, message) },
			func(room, imageBase64 string) error { return egress.SendImage(rootCtx, room, imageBase64) },
		),
		names: util.NewNameBook(),
	}
	h.formatter = gomokupresenter.NewFormatter(prefixProvider{prefix: cfg.BotPrefix}, h.names)

	// Handle off the read loop so a slow reply never stalls the stream.
	ws.OnMessage(func(msg *irisfast.Message) {
		go h.Handle(rootCtx, msg)
	})

	cctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	err = ws.Connect(cctx)
	cancel()
	if err != nil {
		logger.Fatal("iris ws connect error", zap.Error(err))
	}
	logger.Info("gomoku_bot_ready", zap.String("prefix", cfg.BotPrefix), zap.Int("rules", len(deps.Service.ListRules())))

	<-rootCtx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = ws.Close(shutdownCtx)
}
