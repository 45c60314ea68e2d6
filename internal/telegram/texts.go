package telegram

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/pricing"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// Every template below is sent with ParseMode HTML. Values coming from users
// or config go through esc.

const (
	textWelcomeWithCourses = "👋 Привет! Выберите курс или бесплатный урок:"
	textWelcomeNoCourses   = "👋 Привет! Сейчас открытых наборов нет. Следите за новостями!"
	textSessionCleared     = "🔄 Сессия сброшена. Нажмите /start, чтобы начать заново."
	textApology            = "😔 Что-то пошло не так. Пожалуйста, попробуйте ещё раз чуть позже."

	textReferralExpired     = "❌ К сожалению, этот купон больше не активен."
	textReferralAlreadyUsed = "❌ Вы уже использовали этот купон ранее."

	textCourseUnavailable  = "Извините, этот курс больше не доступен."
	textSessionExpired     = "Произошла ошибка, сессия истекла. Пожалуйста, начните заново с /start."
	textBookingFailed      = "Не удалось создать бронирование. Пожалуйста, попробуйте снова."
	textBookingCancelled   = "Ваше бронирование отменено. Вы можете начать заново, нажав /start."
	textCancellationFailed = "Не удалось отменить бронирование. Возможно, оно уже обработано."
	textDurationNotice     = "Ваше место предварительно забронировано на 1 час. Пожалуйста, произведите оплату и отправьте фото чека в этот чат для подтверждения."
	textNoActiveBooking    = "Не могу найти активную заявку для вас. Пожалуйста, сначала выберите курс."
	textStatusUpdateFailed = "Произошла ошибка при обновлении статуса заявки."
	textStudentResponseAck = "👍 Спасибо за ответ! Ваше сообщение получено."

	textEmailRequest       = "📧 Для записи на бесплатный урок введите ваш email адрес:"
	textEmailInvalid       = "❌ Неверный формат email. Пожалуйста, введите корректный email адрес (например: example@mail.com)"
	textEmailNotText       = "Пожалуйста, отправьте ваш email адрес текстовым сообщением."
	textRegistrationFailed = "Произошла ошибка при регистрации. Пожалуйста, попробуйте снова."
	textLessonFinished     = "🕐 К сожалению, этот воркшоп уже прошел.\n\nСледите за новыми мероприятиями в нашем боте!"
	textLessonNotFound     = "Урок не найден"
	textLessonDateUnknown  = "Дата уточняется"

	textNoRights         = "⛔ Эта команда доступна только администраторам."
	textReferralUsage    = "Использование: /create_referral <процент> <активаций>\nНапример: /create_referral 20 5"
	textReferralCreateKO = "Не удалось создать купон. Попробуйте ещё раз."
	textReferralStatsNil = "Купонов пока нет."
	textStatsFailed      = "Не удалось получить статистику."

	buttonBook       = "✅ Забронировать место"
	buttonCancel     = "❌ Отменить бронь"
	buttonRegister   = "📝 Записаться"
	buttonApproveFmt = "✅ Одобрить (%d)"

	defaultFirstName = "Пользователь"
	unknownCourse    = "Неизвестный курс"
)

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

func firstNameOr(name string) string {
	if name == "" {
		return defaultFirstName
	}
	return name
}

func welcomeText(hasCourses bool) string {
	if hasCourses {
		return textWelcomeWithCourses
	}
	return textWelcomeNoCourses
}

func referralAppliedText(coupon *domain.Coupon) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 Применен купон на %d%% скидку!", coupon.DiscountPercent)
	if coupon.Name != "" {
		fmt.Fprintf(&b, "\n🏷️ Купон: %s", esc(coupon.Name))
	}
	fmt.Fprintf(&b, "\n📊 Осталось активаций: %d", coupon.Remaining())
	return b.String()
}

func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(0)
}

func priceInfo(course domain.Course, discount int) string {
	price := course.Price()
	if discount <= 0 {
		return "<b>" + usd(price) + "</b>"
	}
	return fmt.Sprintf("<s>%s</s> <b>%s</b> (скидка %d%%)", usd(price), usd(pricing.Discounted(price, discount)), discount)
}

func courseDetailsText(course domain.Course, firstName string, referral *domain.Redemption) string {
	discount := 0
	if referral != nil {
		discount = referral.DiscountPercent
	}
	return fmt.Sprintf("<b>Курс:</b> %s\n<b>Имя:</b> %s\n<b>Старт:</b> %s\n<b>Стоимость:</b> %s\n\n%s",
		esc(course.Name), esc(firstNameOr(firstName)), esc(course.StartDateText), priceInfo(course, discount), course.Description)
}

func paymentDetailsText(course domain.Course, booking *domain.Booking, quote pricing.Quote, pay config.PaymentConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Ваше место на курс '<b>%s</b>' предварительно забронировано (Заявка №<b>%d</b>).\n\n", esc(course.Name), booking.ID)
	fmt.Fprintf(&b, "⏳ <i>%s</i>\n\n", textDurationNotice)
	b.WriteString("💳 <b>Реквизиты для оплаты:</b>\n\n")
	fmt.Fprintf(&b, "🇷🇺 <b>Т-Банк (%s RUB):</b>\n  Карта: <code>%s</code>\n  Получатель: %s\n\n", quote.RUB.StringFixed(2), esc(pay.TBankCard), esc(pay.TBankHolder))
	fmt.Fprintf(&b, "🇰🇿 <b>Kaspi (%s KZT):</b>\n  Карта: <code>%s</code>\n\n", quote.KZT.StringFixed(2), esc(pay.KaspiCard))
	fmt.Fprintf(&b, "🇦🇷 <b>Аргентина (%s ARS):</b>\n  Alias: <code>%s</code>\n\n", quote.ARS.StringFixed(2), esc(pay.ARSAlias))
	fmt.Fprintf(&b, "💸 <b>USDT %s (%s USDT):</b>\n  Адрес: <code>%s</code>\n\n", esc(pay.CryptoNetwork), quote.USDT.StringFixed(2), esc(pay.USDTAddress))
	b.WriteString("🧾 После оплаты отправьте фото чека в этот чат.")
	return b.String()
}

func proofReceivedText(firstName string, booking *domain.Booking, courseName string) string {
	return fmt.Sprintf("🙏 Спасибо, %s! Ваше фото для заявки №<b>%d</b> (курс '<b>%s</b>') получено.\nОплата проверяется. Мы сообщим вам о результате.",
		esc(firstNameOr(firstName)), booking.ID, esc(courseName))
}

func altProofReceivedText(booking *domain.Booking, courseName string) string {
	return fmt.Sprintf("📨 Сообщение получено для заявки №<b>%d</b> (курс '<b>%s</b>').\nМы проверим вашу оплату и сообщим о результате.",
		booking.ID, esc(courseName))
}

type adminNoticeKind int

const (
	noticePhotoProof adminNoticeKind = iota
	noticeAlternativeProof
	noticeStudentResponse
)

func adminCaptionText(kind adminNoticeKind, who domain.Identity, booking *domain.Booking, course domain.Course, status string) string {
	var header string
	switch kind {
	case noticePhotoProof:
		header = "🧾 <b>Новый чек для проверки!</b>"
	case noticeAlternativeProof:
		header = "📩 <b>Альтернативное подтверждение оплаты!</b>"
	case noticeStudentResponse:
		header = "💬 <b>Ответ студента</b>"
	}
	name := course.Name
	if name == "" {
		name = unknownCourse
	}
	start := course.StartDateText
	if start == "" {
		start = "дата не указана"
	}

	var b strings.Builder
	b.WriteString(header)
	fmt.Fprintf(&b, "\nПользователь: %s (ID: <code>%d</code>)", esc(who.Display()), who.UserID)
	fmt.Fprintf(&b, "\nЗаявка №: <b>%d</b>", booking.ID)
	fmt.Fprintf(&b, "\nКурс: <b>%s</b>", esc(name))
	fmt.Fprintf(&b, "\nПоток: <b>старт %s</b>", esc(start))
	if status != "" {
		fmt.Fprintf(&b, "\nСтатус: %s", esc(status))
	}
	return b.String()
}

func approvalTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04") + " UTC"
}

func approvedBadgeText(t time.Time) string {
	return "✅ ОДОБРЕНО - " + approvalTimestamp(t)
}

func approvalFailedText(bookingID int64) string {
	return fmt.Sprintf("⚠️ Не удалось подтвердить заявку №%d. Возможно, она уже обработана.", bookingID)
}

func deliveryFailedText(bookingID, userID int64) string {
	return fmt.Sprintf("⚠️ Заявка №%d одобрена, но подтверждение пользователю %d не доставлено. Свяжитесь со студентом вручную.", bookingID, userID)
}

// confirmationText is plain text: it also serves as a photo caption.
func confirmationText(firstName string, c domain.CourseConfirmation) string {
	if firstName == "" {
		firstName = "Друг"
	}
	return fmt.Sprintf("Привет, %s!\n\nТы в %s (%s).\n\nЧто дальше:\n1. Первый лайв: %s\n2. Вступай в группу потока: %s\n\nПо любым вопросам пиши %s",
		firstName, c.StreamTitle, c.DatesText, c.FirstLiveCalendarLink, c.GroupInviteLink, c.SupportContact)
}

func lessonInfoText(l domain.Lesson) string {
	return fmt.Sprintf("<b>%s</b>\n\n%s", esc(l.Title), l.Description)
}

func lessonDate(l domain.Lesson) string {
	if l.DateText == "" {
		return textLessonDateUnknown
	}
	return l.DateText
}

func alreadyRegisteredText(l domain.Lesson) string {
	return fmt.Sprintf("ℹ️ Вы уже зарегистрированы на бесплатный урок.\n\n📅 Дата: %s\n🔔 Ссылка будет отправлена перед началом.", esc(lessonDate(l)))
}

func registrationSuccessText(l domain.Lesson, email string) string {
	return fmt.Sprintf("✅ Отлично! Вы записаны на бесплатный урок.\n\n📅 Дата: %s\n📧 Email: %s\n\n🔔 Ссылка на видеовстречу будет отправлена сюда за 15 минут перед началом урока.",
		esc(lessonDate(l)), esc(email))
}

func reminderText(l domain.Lesson) string {
	return fmt.Sprintf("🎯 Бесплатный урок уже скоро!\n\n📅 %s\n🔗 Ссылка: %s\n\nУвидимся на уроке! 👋", esc(lessonDate(l)), esc(l.MeetLink))
}

func referralInvalidFormatText(allowed []int) string {
	parts := make([]string, len(allowed))
	for i, d := range allowed {
		parts[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("Неверный формат. Скидка должна быть одной из: %s, количество активаций больше нуля.", strings.Join(parts, ", "))
}

func referralCreatedText(coupon *domain.Coupon, link string) string {
	return fmt.Sprintf("✅ Купон создан!\n\nКод: <code>%s</code>\nСкидка: %d%%\nАктиваций: %d\n\nСсылка: %s",
		esc(coupon.Code), coupon.DiscountPercent, coupon.MaxActivations, esc(link))
}

func referralStatsText(coupons []domain.Coupon) string {
	var b strings.Builder
	b.WriteString("📊 <b>Статистика купонов</b>\n\n")
	for _, c := range coupons {
		status := "❌ Неактивен"
		if c.Usable() {
			status = "✅ Активен"
		}
		fmt.Fprintf(&b, "%s Код: <code>%s</code>\n   Скидка: %d%%, Исп.: %d/%d\n-------------------\n",
			status, esc(c.Code), c.DiscountPercent, c.CurrentActivations, c.MaxActivations)
	}
	return b.String()
}

func statsText(s *domain.StatsSummary, lessonTitle func(string) string) string {
	var b strings.Builder
	b.WriteString("📈 <b>Статистика</b>\n\n")
	fmt.Fprintf(&b, "👤 Пользователей сегодня: %d\n", s.UsersToday)
	fmt.Fprintf(&b, "👥 Пользователей за 7 дней: %d\n", s.UsersWeek)
	fmt.Fprintf(&b, "📝 Бронирований сегодня: %d\n", s.BookingsToday)
	fmt.Fprintf(&b, "✅ Оплат подтверждено за 7 дней: %d\n", s.ApprovedWeek)
	if len(s.RegistrationsByLesson) > 0 {
		b.WriteString("\n🎓 Регистрации на бесплатные уроки:\n")
		types := make([]string, 0, len(s.RegistrationsByLesson))
		for t := range s.RegistrationsByLesson {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "  %s: %d\n", esc(lessonTitle(t)), s.RegistrationsByLesson[t])
		}
	}
	return b.String()
}
