package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"skincheck-back/internal/apperr"
	"skincheck-back/internal/models"

	"gorm.io/gorm"
)

const (
	otpLength         = 6
	cooldownKeyPrefix = "skincheck:otp:cooldown:"
)

var errInvalidOTP = apperr.Authentication("invalid or expired OTP code")

// generateCode returns otpLength decimal digits drawn from r.
func generateCode(r io.Reader) (string, error) {
	buf := make([]byte, otpLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	const digits = "0123456789"
	for i := range buf {
		// 250 is the largest multiple of 10 below 256; rejection keeps digits uniform.
		for buf[i] >= 250 {
			var one [1]byte
			if _, err := io.ReadFull(r, one[:]); err != nil {
				return "", err
			}
			buf[i] = one[0]
		}
		buf[i] = digits[buf[i]%10]
	}
	return string(buf), nil
}

// issueOTP stores a fresh code for user and voids any earlier unused ones.
func (s *Service) issueOTP(ctx context.Context, tx *gorm.DB, user *models.User) (string, error) {
	code, err := generateCode(s.codes)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	now := s.now()

	if err := tx.WithContext(ctx).Model(&models.OTPVerification{}).
		Where("user_id = ? AND is_used = ?", user.ID, false).
		Update("is_used", true).Error; err != nil {
		return "", fmt.Errorf("invalidate codes: %w", err)
	}

	otp := models.OTPVerification{
		UserID:    user.ID,
		OTPCode:   code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.otp.TTL),
	}
	if err := tx.WithContext(ctx).Create(&otp).Error; err != nil {
		return "", fmt.Errorf("save code: %w", err)
	}
	return code, nil
}

// consumeOTP flips the matching code to used. Only one concurrent caller can win.
func (s *Service) consumeOTP(ctx context.Context, tx *gorm.DB, userID uint, code string) error {
	now := s.now()

	var otp models.OTPVerification
	err := tx.WithContext(ctx).
		Where("user_id = ? AND otp_code = ? AND is_used = ? AND expires_at > ?", userID, code, false, now).
		Order("id desc").
		First(&otp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errInvalidOTP
	}
	if err != nil {
		return fmt.Errorf("find code: %w", err)
	}

	res := tx.WithContext(ctx).Model(&models.OTPVerification{}).
		Where("id = ? AND is_used = ? AND expires_at > ?", otp.ID, false, now).
		Update("is_used", true)
	if res.Error != nil {
		return fmt.Errorf("mark code used: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errInvalidOTP
	}
	return nil
}

func cooldownKey(userID uint) string {
	return cooldownKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// armCooldown starts the resend window after a code is issued.
func (s *Service) armCooldown(ctx context.Context, userID uint) {
	if s.rdb == nil || s.otp.ResendCooldown <= 0 {
		return
	}
	if err := s.rdb.Set(ctx, cooldownKey(userID), "1", s.otp.ResendCooldown).Err(); err != nil {
		s.logger.Warn("arm otp cooldown failed", "user_id", userID, "error", err.Error())
	}
}

// acquireCooldown claims the resend window or reports how long to wait.
func (s *Service) acquireCooldown(ctx context.Context, userID uint) error {
	if s.rdb == nil || s.otp.ResendCooldown <= 0 {
		return nil
	}
	key := cooldownKey(userID)
	ok, err := s.rdb.SetNX(ctx, key, "1", s.otp.ResendCooldown).Result()
	if err != nil {
		s.logger.Warn("otp cooldown check failed", "user_id", userID, "error", err.Error())
		return nil
	}
	if ok {
		return nil
	}

	remain, err := s.rdb.TTL(ctx, key).Result()
	if err != nil || remain <= 0 {
		remain = s.otp.ResendCooldown
	}
	secs := int((remain + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &apperr.TooManyRequests{RetryAfterSeconds: secs}
}

// DeleteStaleOTPs removes codes that were used or expired before cutoff.
func (s *Service) DeleteStaleOTPs(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("(is_used = ? AND created_at < ?) OR expires_at < ?", true, cutoff, cutoff).
		Delete(&models.OTPVerification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale otps: %w", res.Error)
	}
	return res.RowsAffected, nil
}
