// Package app builds the dependencies shared by the binaries: the database
// pool, repositories, optional Redis and Kafka, the catalog and the services
// that do not need a chat connection.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/cache"
	"github.com/Domenick1991/coursebot/internal/catalog"
	"github.com/Domenick1991/coursebot/internal/events"
	"github.com/Domenick1991/coursebot/internal/kafka"
	"github.com/Domenick1991/coursebot/internal/repository"
	"github.com/Domenick1991/coursebot/internal/service/booking"
	"github.com/Domenick1991/coursebot/internal/service/lessons"
	"github.com/Domenick1991/coursebot/internal/service/referral"
	"github.com/Domenick1991/coursebot/internal/service/reporting"
	"github.com/Domenick1991/coursebot/internal/service/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config  *config.Config
	Log     *logrus.Logger
	Pool    *pgxpool.Pool
	Catalog *catalog.Catalog
	// Redis and Producer are nil when not configured.
	Redis    *cache.RedisCache
	Producer *kafka.Producer

	Bookings      repository.BookingRepository
	Coupons       repository.CouponRepository
	Registrations repository.RegistrationRepository
	Events        repository.EventRepository
	Sessions      repository.SessionRepository
	Maintenance   repository.MaintenanceRepository

	Recorder  *events.Recorder
	Referrals *referral.ReferralService
	Lessons   *lessons.Service
}

// New connects to Postgres, applies the schema and loads the catalog. Redis
// and Kafka are optional; an unreachable Redis is logged and skipped.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	cat, err := catalog.Load(cfg.Catalog.CoursesPath, cfg.Catalog.LessonsPath, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	a := &App{
		Config:        cfg,
		Log:           log,
		Pool:          pool,
		Catalog:       cat,
		Bookings:      repository.NewBookingRepository(pool),
		Coupons:       repository.NewCouponRepository(pool),
		Registrations: repository.NewRegistrationRepository(pool),
		Events:        repository.NewEventRepository(pool),
		Sessions:      repository.NewSessionRepository(pool),
		Maintenance:   repository.NewMaintenanceRepository(pool),
	}

	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Admin.StatsCacheTTL)*time.Second)
		if err := rc.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, running without cache")
			_ = rc.Close()
		} else {
			a.Redis = rc
		}
	}

	var publisher events.Publisher = events.NewStorePublisher(a.Events)
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err := producer.CheckConnection(ctx); err != nil {
			log.WithError(err).Warn("kafka unavailable, writing events to postgres")
			_ = producer.Close()
		} else {
			a.Producer = producer
			publisher = events.NewKafkaPublisher(producer, cfg.Kafka.BookingEventsTopic)
		}
	}
	a.Recorder = events.NewRecorder(publisher, log)

	a.Referrals = referral.NewReferralService(a.Coupons, cfg.Referral, log)
	a.Lessons = lessons.NewService(a.Registrations, cat, a.Recorder, cfg.Reminder.Grace(), log)
	return a, nil
}

func (a *App) BookingService(notifier booking.Notifier) *booking.BookingService {
	opts := []booking.BookingServiceOption{booking.WithEvents(a.Recorder)}
	if notifier != nil {
		opts = append(opts, booking.WithNotifier(notifier))
	}
	return booking.NewBookingService(a.Bookings, a.Catalog, a.Log, opts...)
}

func (a *App) SessionService() *session.Service {
	if a.Redis != nil {
		return session.NewService(a.Sessions, a.Redis, a.Config.Session.TTL(), a.Log)
	}
	return session.NewService(a.Sessions, nil, a.Config.Session.TTL(), a.Log)
}

// ReportingService sends broadcasts through m; a nil m allows dry runs only.
func (a *App) ReportingService(m reporting.Messenger) *reporting.Service {
	var opts []reporting.Option
	if a.Redis != nil {
		opts = append(opts, reporting.WithStatsCache(a.Redis))
	}
	if m != nil {
		opts = append(opts, reporting.WithMessenger(m))
	}
	return reporting.NewService(a.Bookings, a.Events, a.Maintenance, a.Catalog, a.Log, opts...)
}

func (a *App) Close() {
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.Log.WithError(err).Warn("close kafka producer")
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Pool.Close()
}
