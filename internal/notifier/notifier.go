// Package notifier доставляет результаты сессий во внешние каналы (Telegram, email).
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SessionSnapshot - состояние сессии после очередного ответа
type SessionSnapshot struct {
	Project   string
	SessionID uint
	UserID    uint
	UserEmail string
	Subject   string
	Score     int
	Attempts  int
	Completed bool
	StartTime time.Time
	EndTime   *time.Time
}

// Notifier отправляет снимок сессии во внешний канал
type Notifier interface {
	NotifySession(ctx context.Context, snapshot SessionSnapshot) error
}

// FormatSessionMessage формирует текст уведомления
func FormatSessionMessage(s SessionSnapshot) string {
	end := "-"
	if s.EndTime != nil {
		end = s.EndTime.UTC().Format(time.RFC3339)
	}
	var sb strings.Builder
	if s.Project != "" {
		fmt.Fprintf(&sb, "Project: %s\n", s.Project)
	}
	fmt.Fprintf(&sb, "User: %s\n", s.UserEmail)
	fmt.Fprintf(&sb, "Subject: %s\n", s.Subject)
	fmt.Fprintf(&sb, "Score: %d\n", s.Score)
	fmt.Fprintf(&sb, "Attempts: %d\n", s.Attempts)
	fmt.Fprintf(&sb, "Start time: %s\n", s.StartTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "End time: %s", end)
	return sb.String()
}

// NoopNotifier используется, когда канал отключен
type NoopNotifier struct{}

func (NoopNotifier) NotifySession(ctx context.Context, snapshot SessionSnapshot) error {
	return nil
}

// MultiNotifier рассылает снимок во все каналы и объединяет ошибки
type MultiNotifier []Notifier

func (m MultiNotifier) NotifySession(ctx context.Context, snapshot SessionSnapshot) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifySession(ctx, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncNotifier отправляет уведомления в фоне. Ошибки только логируются.
type AsyncNotifier struct {
	next    Notifier
	timeout time.Duration
	logger  *slog.Logger
	done    func()
}

// NewAsyncNotifier оборачивает notifier фоновой отправкой с таймаутом
func NewAsyncNotifier(next Notifier, timeout time.Duration, logger *slog.Logger) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncNotifier{
		next:    next,
		timeout: timeout,
		logger:  logger.With("component", "notifier"),
	}
}

// NotifySession возвращается сразу; контекст запроса не передается в фоновую отправку
func (a *AsyncNotifier) NotifySession(_ context.Context, snapshot SessionSnapshot) error {
	go func() {
		if a.done != nil {
			defer a.done()
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.NotifySession(ctx, snapshot); err != nil {
			a.logger.Warn("session notification failed",
				"session_id", snapshot.SessionID,
				"error", err,
			)
		}
	}()
	return nil
}

// NewSessionSink собирает каналы уведомлений о каждом ответе.
// Email сюда не входит: итоги на почту уходят только по запросу пользователя.
func NewSessionSink(timeout time.Duration, logger *slog.Logger, channels ...Notifier) Notifier {
	if len(channels) == 0 {
		return NoopNotifier{}
	}
	return NewAsyncNotifier(MultiNotifier(channels), timeout, logger)
}
