package notify

import (
	"context"
	"log/slog"

	"skincheck-back/internal/config"
	"skincheck-back/internal/models"
)

// Notifier delivers one-time passcodes to an account holder.
type Notifier interface {
	SendOTP(ctx context.Context, user *models.User, code string) error
}

// New picks the SMTP notifier when email is configured and the log notifier otherwise.
func New(cfg config.EmailConfig, otpTTLMinutes int, logger *slog.Logger) Notifier {
	if cfg.Enabled() {
		return NewEmailNotifier(cfg, otpTTLMinutes, logger)
	}
	return NewLogNotifier(logger)
}

// LogNotifier writes codes to the log. Local development only.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendOTP(ctx context.Context, user *models.User, code string) error {
	n.logger.Info("otp issued", slog.String("email", user.Email), slog.String("code", code))
	return nil
}
