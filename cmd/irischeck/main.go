// Command irischeck probes the Iris REST API and websocket the gomoku bot
// depends on, printing the config and any chat events seen for a short window.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/gomoku-kakao-bot/internal/adapter/gomokupresenter"
	"github.com/park285/gomoku-kakao-bot/internal/irisfast"
	"github.com/park285/gomoku-kakao-bot/internal/util"
)

func main() {
	window := flag.Duration("window", 10*time.Second, "how long to observe websocket events")
	flag.Parse()

	baseURL := strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	wsURL := strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	prefix := strings.TrimSpace(os.Getenv("BOT_PREFIX"))
	if baseURL == "" {
		log.Fatal("IRIS_BASE_URL is required")
	}
	headers := func() map[string]string {
		return map[string]string{
			"X-User-Id":    os.Getenv("X_USER_ID"),
			"X-User-Email": os.Getenv("X_USER_EMAIL"),
			"X-Session-Id": os.Getenv("X_SESSION_ID"),
		}
	}

	client := irisfast.NewClient(baseURL, irisfast.WithHeaderProvider(headers), irisfast.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	cfg, err := client.GetConfig(ctx)
	cancel()
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: port=%d polling=%d rate=%d endpoint=%s", cfg.Port, cfg.PollingSpeed, cfg.MessageRate, cfg.WebserverEndpoint)
	}

	if wsURL == "" {
		log.Println("IRIS_WS_URL not set; skipping WS check")
		return
	}
	ws := irisfast.NewWebSocket(wsURL, 0, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) { log.Printf("WS state: %s", state) })
	ws.OnMessage(func(msg *irisfast.Message) {
		line := fmt.Sprintf("WS msg room=%s user=%d text=%q", msg.Room, util.UserNumber(msg.UserID()), msg.Msg)
		// show how the bot would read omok commands
		if prefix != "" && strings.HasPrefix(msg.Msg, prefix) {
			fields := strings.Fields(strings.TrimPrefix(msg.Msg, prefix))
			if len(fields) > 0 {
				cmd, err := gomokupresenter.Parse(fields[1:])
				line += fmt.Sprintf(" parsed=%+v err=%v", cmd, err)
			}
		}
		fmt.Println(line)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	time.Sleep(*window)
	_ = ws.Close(context.Background())
}
