package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Domenick1991/coursebot/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const referralStatsLimit = 20

// BotCommands is registered with Telegram on startup.
var BotCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "🚀 Выбрать курс или бесплатный урок"},
	{Command: "reset", Description: "🔄 Сбросить сессию"},
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return r.handleStart(ctx, msg)
	case "reset":
		return r.handleReset(ctx, msg)
	case "create_referral":
		return r.handleCreateReferral(ctx, msg)
	case "referral_stats":
		return r.handleReferralStats(ctx, msg)
	case "stats":
		return r.handleStats(ctx, msg)
	}
	r.log.WithField("command", msg.Command()).Debug("unknown command")
	return nil
}

func (r *Router) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	who := identity(msg.From)
	r.record(ctx, who, domain.EventStartCommand, nil)

	if code, ok := r.referrals.CodeFromStart(strings.TrimSpace(msg.CommandArguments())); ok {
		if err := r.applyReferral(ctx, msg.Chat.ID, who, code); err != nil {
			return err
		}
	}

	courses := r.catalog.ActiveCourses()
	return r.reply(msg.Chat.ID, welcomeText(len(courses) > 0), startKeyboard(r.catalog.ActiveLessons(), courses))
}

func (r *Router) applyReferral(ctx context.Context, chatID int64, who domain.Identity, code string) error {
	coupon, err := r.referrals.Validate(ctx, code, who.UserID)
	r.log.WithFields(logrus.Fields{"user_id": who.UserID, "code": code, "valid": err == nil}).Info("referral attempt")
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCouponAlreadyUsed):
		return r.reply(chatID, textReferralAlreadyUsed, nil)
	case errors.Is(err, domain.ErrCouponNotFound), errors.Is(err, domain.ErrCouponExpired):
		return r.reply(chatID, textReferralExpired, nil)
	default:
		return err
	}

	if _, err := r.sessions.Update(ctx, who.UserID, func(s *domain.Session) {
		s.PendingReferral = &domain.Redemption{CouponID: coupon.ID, Code: coupon.Code, DiscountPercent: coupon.DiscountPercent}
	}); err != nil {
		return err
	}
	r.record(ctx, who, domain.EventReferralCodeUsed, map[string]interface{}{
		"referral_code": coupon.Code,
		"discount":      coupon.DiscountPercent,
	})
	return r.reply(chatID, referralAppliedText(coupon), nil)
}

func (r *Router) handleReset(ctx context.Context, msg *tgbotapi.Message) error {
	who := identity(msg.From)
	if err := r.sessions.Reset(ctx, who.UserID); err != nil {
		return err
	}
	r.record(ctx, who, domain.EventSessionReset, nil)
	r.log.WithField("user_id", who.UserID).Info("session reset")
	return r.reply(msg.Chat.ID, textSessionCleared, nil)
}

func (r *Router) handleCreateReferral(ctx context.Context, msg *tgbotapi.Message) error {
	who := identity(msg.From)
	if !r.isAdmin(who.UserID, msg.Chat.ID) {
		return r.reply(msg.Chat.ID, textNoRights, nil)
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return r.reply(msg.Chat.ID, textReferralUsage, nil)
	}
	discount, err1 := strconv.Atoi(args[0])
	activations, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return r.reply(msg.Chat.ID, referralInvalidFormatText(r.referrals.AllowedDiscounts()), nil)
	}

	coupon, err := r.referrals.GenerateCode(ctx, discount, activations, who.UserID)
	if errors.Is(err, domain.ErrValidation) {
		return r.reply(msg.Chat.ID, referralInvalidFormatText(r.referrals.AllowedDiscounts()), nil)
	}
	if err != nil {
		r.log.WithError(err).Error("create referral code")
		return r.reply(msg.Chat.ID, textReferralCreateKO, nil)
	}

	link := r.referrals.DeepLink(r.botUsername(), coupon.Code)
	r.record(ctx, who, domain.EventReferralCreated, map[string]interface{}{
		"code":        coupon.Code,
		"discount":    discount,
		"activations": activations,
	})
	return r.reply(msg.Chat.ID, referralCreatedText(coupon, link), nil)
}

func (r *Router) handleReferralStats(ctx context.Context, msg *tgbotapi.Message) error {
	who := identity(msg.From)
	if !r.isAdmin(who.UserID, msg.Chat.ID) {
		return r.reply(msg.Chat.ID, textNoRights, nil)
	}
	r.record(ctx, who, domain.EventStatsRequested, map[string]interface{}{"report": "referrals"})

	coupons, err := r.referrals.Recent(ctx, referralStatsLimit)
	if err != nil {
		return err
	}
	if len(coupons) == 0 {
		return r.reply(msg.Chat.ID, textReferralStatsNil, nil)
	}
	return r.reply(msg.Chat.ID, referralStatsText(coupons), nil)
}

func (r *Router) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	who := identity(msg.From)
	if !r.isAdmin(who.UserID, msg.Chat.ID) {
		return r.reply(msg.Chat.ID, textNoRights, nil)
	}
	r.record(ctx, who, domain.EventStatsRequested, map[string]interface{}{"report": "summary"})

	summary, err := r.stats.Summary(ctx)
	if err != nil {
		r.log.WithError(err).Error("stats summary")
		return r.reply(msg.Chat.ID, textStatsFailed, nil)
	}
	return r.reply(msg.Chat.ID, statsText(summary, r.lessonTitle), nil)
}

func (r *Router) lessonTitle(lessonType string) string {
	if l, err := r.catalog.Lesson(lessonType); err == nil && l.Title != "" {
		return l.Title
	}
	return lessonType
}
