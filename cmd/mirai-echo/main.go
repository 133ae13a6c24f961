// mirai-echo is a minimal bot: it logs in, subscribes to the event stream
// and echoes friend messages back to their sender.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mirai-sdk/go-mirai/pkg/config"
	"github.com/mirai-sdk/go-mirai/pkg/dispatch"
	"github.com/mirai-sdk/go-mirai/pkg/event"
	"github.com/mirai-sdk/go-mirai/pkg/logger"
	"github.com/mirai-sdk/go-mirai/pkg/mirai"
	"github.com/mirai-sdk/go-mirai/pkg/transport"
)

func main() {
	configPath := flag.String("config", "mirai.yaml", "path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	tr := transport.NewHTTPClient(cfg.Host, cfg.Port, cfg.Secure, cfg.Timeout.Std())
	bot := mirai.New(tr, cfg.AuthKey, cfg.QQ, mirai.WithLogger(log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Login(ctx); err != nil {
		return err
	}

	d := dispatch.New()
	d.Register("FriendMessage", func(ctx context.Context, ev event.Event) {
		msg := ev.(*event.FriendMessageEvent)
		if _, err := msg.Sender().SendMessage(ctx, msg.Chain().String(), 0); err != nil {
			log.Warn("echo failed", zap.Int64("friend", msg.Sender().ID()), zap.Error(err))
		}
	})
	d.Register(dispatch.Any, func(_ context.Context, ev event.Event) {
		log.Debug("event", zap.String("type", ev.EventType()))
	})

	errc, err := bot.SubscribeEvents(ctx, func(ev event.Event, _ []byte) {
		d.Dispatch(ctx, ev)
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err, ok := <-errc:
		if ok && err != nil {
			log.Error("event stream failed", zap.Error(err))
		}
	}
	return bot.ShutDown(context.Background())
}
