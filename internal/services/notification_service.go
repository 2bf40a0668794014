package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/authgate/pkg/logger"
)

// SecurityNotifier tells account owners about security-relevant changes
type SecurityNotifier interface {
	NotifyMFADisabled(ctx context.Context, email string) error
	NotifyNewSession(ctx context.Context, email, device string) error
}

// SESClient is the subset of the SES API used for notifications
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends security notifications using AWS SES
type SESNotifier struct {
	client      SESClient
	fromAddress string
	logger      *slog.Logger
	now         func() time.Time
}

// NewSESNotifier creates a notifier from the default AWS credential chain
func NewSESNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func NewSESNotifierWithClient(client SESClient, fromAddress string, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
		now:         time.Now,
	}
}

func (n *SESNotifier) NotifyMFADisabled(ctx context.Context, email string) error {
	when := n.now().UTC().Format(time.RFC1123)
	text := fmt.Sprintf(`Two-factor authentication was disabled

Two-factor authentication was turned off for your account at %s.
Your authenticator app and backup codes no longer work.

If you did not do this, reset your password and turn two-factor authentication back on immediately.

This is an automated message. Please do not reply to this email.
`, when)
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Two-factor authentication was disabled</h2>
    <p>Two-factor authentication was turned off for your account at %s.
    Your authenticator app and backup codes no longer work.</p>
    <p><strong>If you did not do this</strong>, reset your password and turn
    two-factor authentication back on immediately.</p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, when)

	return n.send(ctx, email, "Two-factor authentication disabled", html, text)
}

func (n *SESNotifier) NotifyNewSession(ctx context.Context, email, device string) error {
	when := n.now().UTC().Format(time.RFC1123)
	text := fmt.Sprintf(`New sign-in to your account

Your account was signed in from %s at %s.

If this was not you, revoke the session from your security settings and change your password.

This is an automated message. Please do not reply to this email.
`, device, when)
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>New sign-in to your account</h2>
    <p>Your account was signed in from <strong>%s</strong> at %s.</p>
    <p>If this was not you, revoke the session from your security settings and change your password.</p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, device, when)

	return n.send(ctx, email, "New sign-in to your account", html, text)
}

func (n *SESNotifier) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to send notification via SES",
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.InfoContext(ctx, "security notification sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("subject", subject),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogNotifier records notifications in the log instead of sending them.
// It is used when email delivery is disabled.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyMFADisabled(ctx context.Context, email string) error {
	n.logger.InfoContext(ctx, "notification suppressed: mfa disabled",
		slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

func (n *LogNotifier) NotifyNewSession(ctx context.Context, email, device string) error {
	n.logger.InfoContext(ctx, "notification suppressed: new session",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("device", device))
	return nil
}
