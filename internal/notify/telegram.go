package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/model"
)

// Telegram announces request activity in the teacher's chat.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
	logger *zap.Logger
}

// NewTelegram creates a notifier posting to the teacher chat.
func NewTelegram(token string, chatID int64, logger *zap.Logger, opts ...bot.Option) (*Telegram, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{
		bot:    b,
		chatID: chatID,
		logger: logger,
	}, nil
}

// RequestSubmitted announces a new pending request.
func (t *Telegram) RequestSubmitted(ctx context.Context, req *model.ScheduleRequest, target *model.TimeSlot) {
	title := "📝 <b>New booking request</b>"
	if req.RequestType == model.RequestTypeModify {
		title = "🔄 <b>Reschedule request</b>"
	}

	var sb strings.Builder
	sb.WriteString(title + "\n\n")
	fmt.Fprintf(&sb, "👤 Student: %s\n", html.EscapeString(req.StudentName))
	if target != nil {
		fmt.Fprintf(&sb, "📅 Date: %s\n", formatDate(target.StartTime))
		fmt.Fprintf(&sb, "🕐 Time: %s\n", formatTimeRange(target.StartTime, target.EndTime))
	}
	if req.CourseContent != "" {
		fmt.Fprintf(&sb, "💬 %s\n", html.EscapeString(req.CourseContent))
	}
	sb.WriteString("\nWaiting for your decision.")

	t.send(ctx, sb.String())
}

// RequestsCancelled lists requests rejected because their slot was deleted.
func (t *Telegram) RequestsCancelled(ctx context.Context, slot *model.TimeSlot, rejected []*model.ScheduleRequest) {
	var sb strings.Builder
	sb.WriteString("🚫 <b>Slot deleted</b>\n\n")
	fmt.Fprintf(&sb, "📅 %s %s\n\n", formatDate(slot.StartTime), formatTimeRange(slot.StartTime, slot.EndTime))
	fmt.Fprintf(&sb, "Rejected pending requests: %d\n", len(rejected))
	for _, req := range rejected {
		fmt.Fprintf(&sb, "• %s\n", html.EscapeString(req.StudentName))
	}

	t.send(ctx, sb.String())
}

func (t *Telegram) send(ctx context.Context, text string) {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		t.logger.Warn("Failed to send telegram notification",
			zap.Int64("chat_id", t.chatID),
			zap.Error(err),
		)
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) RequestSubmitted(context.Context, *model.ScheduleRequest, *model.TimeSlot) {}

func (Nop) RequestsCancelled(context.Context, *model.TimeSlot, []*model.ScheduleRequest) {}
