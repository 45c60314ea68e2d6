package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/coursebot/api"
	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/app"
	"github.com/Domenick1991/coursebot/internal/bootstrap"
	"github.com/Domenick1991/coursebot/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
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
	if err := cfg.ValidateAdmin(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}
	log := logger.New(cfg.Log)
	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init")
	}
	defer a.Close()

	reports := a.ReportingService(nil)
	issuer := api.NewTokenIssuer(cfg.Admin.JWTSecret, time.Duration(cfg.Admin.TokenTTLMinutes)*time.Minute)
	handler := api.NewRouter(issuer, log,
		api.NewBookingHandler(a.BookingService(nil), reports, log),
		api.NewDashboardHandler(reports, a.Referrals, a.Lessons),
	)

	if err := bootstrap.Run(ctx, cfg, handler, log); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
