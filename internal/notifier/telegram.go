package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot API не принимает context: отправку ограничивает только таймаут HTTP-клиента
const defaultTelegramTimeout = 10 * time.Second

// TelegramConfig передается при создании вместо глобальных настроек
type TelegramConfig struct {
	BotToken    string
	ChatID      int64
	APIEndpoint string
	Project     string
}

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier отправляет результаты в чат Telegram
type TelegramNotifier struct {
	bot     telegramSender
	chatID  int64
	project string
}

// NewTelegramNotifier подключается к Bot API (проверяет токен через getMe).
// tgbotapi.BotAPI.Send игнорирует context, поэтому клиент без таймаута
// получает defaultTelegramTimeout.
func NewTelegramNotifier(cfg TelegramConfig, client *http.Client) (*TelegramNotifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, telegramHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID, project: cfg.Project}, nil
}

// telegramHTTPClient не меняет переданный клиент: таймаут ставится на копию
func telegramHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: defaultTelegramTimeout}
	}
	if client.Timeout > 0 {
		return client
	}
	withTimeout := *client
	withTimeout.Timeout = defaultTelegramTimeout
	return &withTimeout
}

func (t *TelegramNotifier) NotifySession(ctx context.Context, snapshot SessionSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snapshot.Project == "" {
		snapshot.Project = t.project
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatSessionMessage(snapshot))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}
