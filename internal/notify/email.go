package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"skincheck-back/internal/config"
	"skincheck-back/internal/models"

	"gopkg.in/gomail.v2"
)

// EmailNotifier sends codes over SMTP.
type EmailNotifier struct {
	cfg           config.EmailConfig
	otpTTLMinutes int
	logger        *slog.Logger
	send          func(*gomail.Message) error
}

func NewEmailNotifier(cfg config.EmailConfig, otpTTLMinutes int, logger *slog.Logger) *EmailNotifier {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	return &EmailNotifier{
		cfg:           cfg,
		otpTTLMinutes: otpTTLMinutes,
		logger:        logger,
		send:          func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

// SendOTP mails the verification code.
func (n *EmailNotifier) SendOTP(ctx context.Context, user *models.User, code string) error {
	if strings.TrimSpace(user.Email) == "" {
		return fmt.Errorf("empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "[SkinCheck] Your verification code")
	m.SetBody("text/html", n.buildBody(user, code))

	if err := n.send(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("otp email sent", slog.String("to", user.Email))
	return nil
}

func (n *EmailNotifier) buildBody(user *models.User, code string) string {
	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>SkinCheck verification</h2>
    <p>Hello %s, your code is:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>The code expires in %d minutes.</p>
  </div>
</body>
</html>`, html.EscapeString(name), code, n.otpTTLMinutes)
}
