// Package telegram is the chat front end: it classifies updates, threads the
// per-user session through the handlers and renders replies.
package telegram

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/pricing"
	"github.com/Domenick1991/coursebot/internal/service/booking"
	"github.com/Domenick1991/coursebot/internal/service/lessons"
	"github.com/Domenick1991/coursebot/internal/service/referral"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultShards = 8

type Catalog interface {
	ActiveCourses() []domain.Course
	ActiveLessons() []domain.Lesson
	Course(id int64) (domain.Course, error)
	Lesson(lessonType string) (domain.Lesson, error)
	LessonByID(id int64) (domain.Lesson, error)
}

type Sessions interface {
	Get(ctx context.Context, userID int64) (*domain.Session, error)
	Update(ctx context.Context, userID int64, fn func(*domain.Session)) (*domain.Session, error)
	Reset(ctx context.Context, userID int64) error
}

type Stats interface {
	Summary(ctx context.Context) (*domain.StatsSummary, error)
}

type Prices interface {
	Quote(usd decimal.Decimal) pricing.Quote
}

type EventRecorder interface {
	Record(ctx context.Context, who domain.Identity, eventType domain.EventType, details map[string]interface{})
}

// Deps groups what the router talks to.
type Deps struct {
	Bot       BotAPI
	Bookings  booking.BookingUseCase
	Referrals referral.ReferralUseCase
	Lessons   lessons.LessonUseCase
	Sessions  Sessions
	Stats     Stats
	Catalog   Catalog
	Prices    Prices
	Events    EventRecorder
}

type Router struct {
	bot       BotAPI
	bookings  booking.BookingUseCase
	referrals referral.ReferralUseCase
	lessons   lessons.LessonUseCase
	sessions  Sessions
	stats     Stats
	catalog   Catalog
	prices    Prices
	events    EventRecorder
	cfg       config.BotConfig
	payment   config.PaymentConfig
	shards    int
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewRouter(deps Deps, cfg config.BotConfig, payment config.PaymentConfig, log logrus.FieldLogger) *Router {
	return &Router{
		bot:       deps.Bot,
		bookings:  deps.Bookings,
		referrals: deps.Referrals,
		lessons:   deps.Lessons,
		sessions:  deps.Sessions,
		stats:     deps.Stats,
		catalog:   deps.Catalog,
		prices:    deps.Prices,
		events:    deps.Events,
		cfg:       cfg,
		payment:   payment,
		shards:    defaultShards,
		log:       log,
		now:       time.Now,
	}
}

// Run consumes updates until ctx is cancelled or the channel closes. Updates
// of one user are handled in order on the same shard; different users are
// handled concurrently.
func (r *Router) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	queues := make([]chan tgbotapi.Update, r.shards)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan tgbotapi.Update, 64)
		wg.Add(1)
		go func(q <-chan tgbotapi.Update) {
			defer wg.Done()
			for u := range q {
				r.HandleUpdate(ctx, u)
			}
		}(queues[i])
	}

	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			from := updateUser(&u)
			var key int64
			if from != nil {
				key = from.ID
			}
			if key < 0 {
				key = -key
			}
			select {
			case queues[key%int64(len(queues))] <- u:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleUpdate never panics and never returns an error: failures are logged
// and the user gets a generic apology.
func (r *Router) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	from := updateUser(&u)
	entry := r.log.WithField("update_id", u.UpdateID)
	if from != nil {
		entry = entry.WithField("user_id", from.ID)
	}

	defer func() {
		if rec := recover(); rec != nil {
			entry.WithField("panic", rec).WithField("stack", string(debug.Stack())).Error("handler panicked")
			r.apologize(&u)
		}
	}()

	var err error
	switch {
	case u.CallbackQuery != nil:
		err = r.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		err = r.handleMessage(ctx, u.Message)
	default:
		return
	}
	if err != nil {
		entry.WithError(err).Error("update handling failed")
		r.apologize(&u)
	}
}

func (r *Router) apologize(u *tgbotapi.Update) {
	var chatID int64
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		chatID = u.CallbackQuery.Message.Chat.ID
	case u.Message != nil && u.Message.Chat != nil:
		chatID = u.Message.Chat.ID
	default:
		return
	}
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, textApology)); err != nil {
		r.log.WithError(err).Warn("apology not delivered")
	}
}

func updateUser(u *tgbotapi.Update) *tgbotapi.User {
	switch {
	case u.Message != nil:
		return u.Message.From
	case u.CallbackQuery != nil:
		return u.CallbackQuery.From
	}
	return nil
}

func identity(u *tgbotapi.User) domain.Identity {
	if u == nil {
		return domain.Identity{}
	}
	return domain.Identity{UserID: u.ID, Username: u.UserName, FirstName: u.FirstName}
}

// isAdmin falls back to "inside the admin chat" when no admin ids are set.
func (r *Router) isAdmin(userID, chatID int64) bool {
	if len(r.cfg.AdminIDs) > 0 {
		return r.cfg.IsAdmin(userID)
	}
	return r.cfg.TargetChatID != 0 && chatID == r.cfg.TargetChatID
}

func (r *Router) record(ctx context.Context, who domain.Identity, t domain.EventType, details map[string]interface{}) {
	if r.events != nil {
		r.events.Record(ctx, who, t, details)
	}
}

func (r *Router) reply(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	_, err := r.bot.Send(msg)
	return err
}

// edit replaces the text of the message a button was pressed on.
func (r *Router) edit(m *tgbotapi.Message, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	if m == nil || m.Chat == nil {
		return fmt.Errorf("callback without message")
	}
	var cfg tgbotapi.EditMessageTextConfig
	if markup != nil {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(m.Chat.ID, m.MessageID, text, *markup)
	} else {
		cfg = tgbotapi.NewEditMessageText(m.Chat.ID, m.MessageID, text)
	}
	cfg.ParseMode = tgbotapi.ModeHTML
	cfg.DisableWebPagePreview = true
	_, err := r.bot.Send(cfg)
	return err
}

func (r *Router) botUsername() string {
	return r.cfg.Username
}
