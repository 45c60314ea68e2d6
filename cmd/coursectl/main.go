// Command coursectl is the operator tool: participant reports, test data
// cleanup, broadcasts, forced lesson reminders and admin API tokens.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Domenick1991/coursebot/api"
	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/app"
	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/logger"
	"github.com/Domenick1991/coursebot/internal/service/reminder"
	"github.com/Domenick1991/coursebot/internal/service/reporting"
	"github.com/Domenick1991/coursebot/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const usage = `usage: coursectl <command> [flags]

commands:
  confirmed                          list approved participants
  unconfirmed                        list open and cancelled bookings with age
  summary                            booking counts by status and course
  pending-ids                        user ids with a pending booking
  delete-test --username NAME [--yes]
  broadcast --message TEXT [--send]  placeholders: {first_name} {course_name}
  send-lesson-link --lesson TYPE     forced reminder pass for a lesson
  issue-token [--subject NAME]       admin API bearer token
`

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.NewWithOutput(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.WithError(err).Fatal(os.Args[1])
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "issue-token":
		return issueToken(cfg, args, out)
	case "confirmed", "unconfirmed", "summary", "pending-ids", "delete-test", "broadcast", "send-lesson-link":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "confirmed":
		participants, err := a.ReportingService(nil).Confirmed(ctx)
		if err != nil {
			return err
		}
		printParticipants(out, participants)
		return nil
	case "unconfirmed":
		participants, err := a.ReportingService(nil).Unconfirmed(ctx)
		if err != nil {
			return err
		}
		printParticipants(out, participants)
		return nil
	case "summary":
		summary, err := a.ReportingService(nil).BookingSummary(ctx)
		if err != nil {
			return err
		}
		printSummary(out, summary)
		return nil
	case "pending-ids":
		ids, err := a.ReportingService(nil).PendingUserIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	case "delete-test":
		return deleteTest(ctx, a, args, out)
	case "broadcast":
		return broadcast(ctx, a, args, out)
	case "send-lesson-link":
		return sendLessonLink(ctx, a, args, out)
	}
	return nil
}

func issueToken(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	subject := fs.String("subject", "operator", "token subject")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if cfg.Admin.JWTSecret == "" {
		return config.ErrMissingJWT
	}
	ttl := time.Duration(cfg.Admin.TokenTTLMinutes) * time.Minute
	token, err := api.NewTokenIssuer(cfg.Admin.JWTSecret, ttl).Issue(*subject)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func deleteTest(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete-test", flag.ContinueOnError)
	username := fs.String("username", "", "username of the test account")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil || *username == "" {
		return errUsage
	}

	reports := a.ReportingService(nil)
	bookings, err := reports.TestBookings(ctx, *username)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "bookings of @%s:\n", strings.TrimPrefix(*username, "@"))
	for _, b := range bookings {
		fmt.Fprintf(out, "  #%d course=%s status=%s created=%s\n",
			b.ID, a.Catalog.CourseName(b.CourseID), b.Status, b.CreatedAt.Format(time.RFC3339))
	}

	if !*yes && !confirm(out, os.Stdin, "delete all data of this user?") {
		fmt.Fprintln(out, "aborted")
		return nil
	}
	res, err := reports.DeleteTestUser(ctx, *username)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted: bookings=%d registrations=%d events=%d sessions=%d\n",
		res.Bookings, res.Registrations, res.Events, res.Sessions)
	return nil
}

func broadcast(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("broadcast", flag.ContinueOnError)
	message := fs.String("message", "", "message template")
	send := fs.Bool("send", false, "actually send; dry run otherwise")
	if err := fs.Parse(args); err != nil || *message == "" {
		return errUsage
	}

	var messenger reporting.Messenger
	if *send {
		bot, err := connectBot(a.Config)
		if err != nil {
			return err
		}
		messenger = telegram.NewMessenger(bot, a.Log)
	}
	res, err := a.ReportingService(messenger).Broadcast(ctx, *message, *send)
	if err != nil {
		return err
	}

	for _, m := range res.Messages {
		fmt.Fprintf(out, "--- %d\n%s\n", m.UserID, m.Text)
		if m.Error != "" {
			fmt.Fprintf(out, "!!! %s\n", m.Error)
		}
	}
	if res.DryRun {
		fmt.Fprintf(out, "dry run: %d messages prepared, rerun with --send to deliver\n", len(res.Messages))
		return nil
	}
	fmt.Fprintf(out, "sent=%d failed=%d\n", res.Sent, res.Failed)
	return nil
}

func sendLessonLink(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("send-lesson-link", flag.ContinueOnError)
	lessonType := fs.String("lesson", "", "lesson type from the catalog")
	if err := fs.Parse(args); err != nil || *lessonType == "" {
		return errUsage
	}

	bot, err := connectBot(a.Config)
	if err != nil {
		return err
	}
	opts := []reminder.Option{reminder.WithEvents(a.Recorder)}
	if a.Redis != nil {
		opts = append(opts, reminder.WithLocker(a.Redis))
	}
	scheduler := reminder.NewScheduler(a.Registrations, a.Catalog, telegram.NewMessenger(bot, a.Log), a.Config.Reminder, a.Log, opts...)

	res, err := scheduler.SendNow(ctx, *lessonType)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintln(out, "another reminder pass holds the lock, nothing sent")
		return nil
	}
	fmt.Fprintf(out, "lesson=%s pending=%d sent=%d failed=%d\n", res.LessonType, res.Pending, res.Sent, res.Failed)
	return nil
}

func connectBot(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	if cfg.Bot.Token == "" {
		return nil, config.ErrMissingBotToken
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	return bot, nil
}

func confirm(out io.Writer, in io.Reader, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printParticipants(out io.Writer, participants []reporting.Participant) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BOOKING\tUSER\tNAME\tCOURSE\tSTATUS\tAGE\tFLAG")
	for _, p := range participants {
		who := p.Booking.Identity()
		flagText := ""
		if p.Overdue {
			flagText = "overdue"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%dd %dh\t%s\n",
			p.Booking.ID, who.UserID, who.Display(), p.CourseName, p.Booking.Status, p.Days, p.Hours, flagText)
	}
	w.Flush()
	fmt.Fprintf(out, "total: %d\n", len(participants))
}

func printSummary(out io.Writer, s *reporting.BookingSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	for _, status := range []domain.BookingStatus{
		domain.BookingStatusPending, domain.BookingStatusProofUploaded,
		domain.BookingStatusApproved, domain.BookingStatusCancelled,
	} {
		fmt.Fprintf(w, "%s\t%d\n", status, s.ByStatus[status])
	}
	fmt.Fprintln(w, "\t")
	fmt.Fprintln(w, "COURSE\tCOUNT")
	courses := make([]string, 0, len(s.ByCourse))
	for course := range s.ByCourse {
		courses = append(courses, course)
	}
	sort.Strings(courses)
	for _, course := range courses {
		fmt.Fprintf(w, "%s\t%d\n", course, s.ByCourse[course])
	}
	w.Flush()
	fmt.Fprintf(out, "total: %d\n", s.Total)
}
