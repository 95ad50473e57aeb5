package notifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailConfig передается при создании вместо глобальных настроек
type EmailConfig struct {
	APIKey  string
	From    string
	Project string
	CodeTTL time.Duration
}

type resendSender interface {
	SendWithOptions(ctx context.Context, params *resend.SendEmailRequest, options *resend.SendEmailOptions) (*resend.SendEmailResponse, error)
}

// EmailNotifier отправляет письма через Resend REST API.
type EmailNotifier struct {
	from    string
	project string
	codeTTL time.Duration
	client  resendSender
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return newEmailNotifier(cfg, resend.NewClient(cfg.APIKey).Emails), nil
}

func newEmailNotifier(cfg EmailConfig, client resendSender) *EmailNotifier {
	ttl := cfg.CodeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &EmailNotifier{
		from:    cfg.From,
		project: cfg.Project,
		codeTTL: ttl,
		client:  client,
		sleep:   sleepCtx,
	}
}

// SendVerificationCode отправляет код подтверждения регистрации
func (s *EmailNotifier) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	if toEmail == "" || code == "" {
		return fmt.Errorf("toEmail and code are required")
	}
	minutes := int(s.codeTTL / time.Minute)

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Verify your email",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes),
		Html:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>", code, minutes),
	}

	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}
	return s.send(ctx, params, options)
}

// SendSessionSummary отправляет итоги сессии на указанный адрес
func (s *EmailNotifier) SendSessionSummary(ctx context.Context, toEmail string, snapshot SessionSnapshot) error {
	if toEmail == "" {
		return fmt.Errorf("toEmail is required")
	}
	if snapshot.Project == "" {
		snapshot.Project = s.project
	}
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Quiz Results",
		Text:    FormatSessionMessage(snapshot),
	}
	return s.send(ctx, params, &resend.SendEmailOptions{})
}

func (s *EmailNotifier) send(ctx context.Context, params *resend.SendEmailRequest, options *resend.SendEmailOptions) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}

// NoopMailer используется, когда отправка email отключена.
type NoopMailer struct{}

func (NoopMailer) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	log.Printf("[EmailNotifier] noop send verification code to=%s", toEmail)
	return nil
}

func (NoopMailer) SendSessionSummary(ctx context.Context, toEmail string, snapshot SessionSnapshot) error {
	log.Printf("[EmailNotifier] noop send session %d summary to=%s", snapshot.SessionID, toEmail)
	return nil
}
