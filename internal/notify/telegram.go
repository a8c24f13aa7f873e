package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

// Sender часть API бота, нужная для оповещений
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier шлёт оповещения персоналу в один чат
type TelegramNotifier struct {
	sender Sender
	chatID int64
	loc    *time.Location
	logger *zap.Logger
}

// NewTelegramBot создаёт клиента бота без запроса getMe на старте
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

func NewTelegramNotifier(sender Sender, chatID int64, loc *time.Location, logger *zap.Logger) *TelegramNotifier {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{sender: sender, chatID: chatID, loc: loc, logger: logger}
}

// ClassesBooked оповещение о записи на занятия
func (n *TelegramNotifier) ClassesBooked(ctx context.Context, course *model.StudentCourse, assignments []*model.ClassAssignment) error {
	if course == nil || len(assignments) == 0 {
		return nil
	}
	return n.send(ctx, BookingMessage(course, assignments, n.loc))
}

// ClassChanged оповещение о переносе/отмене
func (n *TelegramNotifier) ClassChanged(ctx context.Context, outcome *model.ChangeOutcome) error {
	if outcome == nil {
		return nil
	}
	return n.send(ctx, ChangeMessage(outcome, n.loc))
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	n.logger.Debug("Staff notification sent", zap.Int64("chat_id", n.chatID))
	return nil
}
