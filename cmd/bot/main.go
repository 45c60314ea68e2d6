package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/app"
	"github.com/Domenick1991/coursebot/internal/logger"
	"github.com/Domenick1991/coursebot/internal/pricing"
	"github.com/Domenick1991/coursebot/internal/service/reminder"
	"github.com/Domenick1991/coursebot/internal/service/session"
	"github.com/Domenick1991/coursebot/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const (
	sessionSweepInterval = time.Hour
	updatesTimeout       = 60
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init")
	}
	defer a.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("connect telegram")
	}
	bot.Debug = cfg.Bot.Debug
	if cfg.Bot.Username == "" {
		cfg.Bot.Username = bot.Self.UserName
	}
	if cfg.Bot.TargetChatID == 0 {
		log.Warn("TARGET_CHAT_ID is not set, payment proofs will not reach admins")
	}
	if _, err := bot.Request(tgbotapi.NewSetMyCommands(telegram.BotCommands...)); err != nil {
		log.WithError(err).Warn("register bot commands")
	}

	messenger := telegram.NewMessenger(bot, log)
	sessions := a.SessionService()
	router := telegram.NewRouter(telegram.Deps{
		Bot:       bot,
		Bookings:  a.BookingService(messenger),
		Referrals: a.Referrals,
		Lessons:   a.Lessons,
		Sessions:  sessions,
		Stats:     a.ReportingService(messenger),
		Catalog:   a.Catalog,
		Prices:    pricing.NewConverter(cfg.Payment),
		Events:    a.Recorder,
	}, cfg.Bot, cfg.Payment, log)

	opts := []reminder.Option{reminder.WithEvents(a.Recorder)}
	if a.Redis != nil {
		opts = append(opts, reminder.WithLocker(a.Redis))
	}
	scheduler := reminder.NewScheduler(a.Registrations, a.Catalog, messenger, cfg.Reminder, log, opts...)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx); err != nil {
			log.WithError(err).Error("reminder scheduler stopped")
		}
	}()
	go func() {
		defer wg.Done()
		sweepSessions(ctx, sessions, log)
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updatesTimeout
	updates := bot.GetUpdatesChan(u)
	log.WithField("bot", bot.Self.UserName).Info("bot started")

	router.Run(ctx, updates)
	bot.StopReceivingUpdates()
	wg.Wait()
	log.Info("bot stopped")
}

func sweepSessions(ctx context.Context, sessions *session.Service, log logrus.FieldLogger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.Sweep(ctx)
			if err != nil {
				log.WithError(err).Warn("session sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("deleted", n).Info("expired sessions removed")
			}
		}
	}
}
