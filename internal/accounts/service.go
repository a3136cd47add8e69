// Package accounts implements registration, OTP second factor, sessions and profiles.
package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"skincheck-back/internal/apperr"
	"skincheck-back/internal/auth"
	"skincheck-back/internal/config"
	"skincheck-back/internal/metrics"
	"skincheck-back/internal/models"
	"skincheck-back/internal/notify"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type Service struct {
	db       *gorm.DB
	rdb      *redis.Client
	issuer   *auth.Issuer
	revoker  *auth.Revoker
	notifier notify.Notifier
	otp      config.OTPConfig
	logger   *slog.Logger

	codes io.Reader
	now   func() time.Time
}

// NewService wires the account service. rdb may be nil, which disables the resend cooldown.
func NewService(db *gorm.DB, rdb *redis.Client, issuer *auth.Issuer, revoker *auth.Revoker, notifier notify.Notifier, otp config.OTPConfig, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		rdb:      rdb,
		issuer:   issuer,
		revoker:  revoker,
		notifier: notifier,
		otp:      otp,
		logger:   logger,
		codes:    rand.Reader,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Email           string
	Username        string
	FirstName       string
	LastName        string
	PhoneNumber     string
	DateOfBirth     *time.Time
	Password        string
	PasswordConfirm string
}

// Session is returned once a second factor has been verified.
type Session struct {
	Token string
	User  *models.User
}

// ProfileUpdate carries optional changes; nil fields are left untouched.
type ProfileUpdate struct {
	Username         *string
	FirstName        *string
	LastName         *string
	PhoneNumber      *string
	DateOfBirth      *time.Time
	MedicalHistory   *string
	SkinType         *string
	FamilyHistory    *string
	EmergencyContact *string
	EmergencyPhone   *string
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Register creates an unverified account with an empty profile and sends a verification code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if in.Password != in.PasswordConfirm {
		return nil, apperr.Validation("passwords don't match")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if count > 0 {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = email
	}
	user := &models.User{
		Email:       email,
		Username:    username,
		Password:    string(hash),
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		DateOfBirth: in.DateOfBirth,
	}

	var code string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Profile{UserID: user.ID}).Error; err != nil {
			return err
		}
		var err error
		code, err = s.issueOTP(ctx, tx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("email already registered")
		}
		s.logger.Error("create user failed", slog.String("email", email), slog.String("error", err.Error()))
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.notifier.SendOTP(ctx, user, code); err != nil {
		if delErr := s.db.WithContext(ctx).Delete(user).Error; delErr != nil {
			s.logger.Warn("rollback registration failed", slog.String("email", email), slog.String("error", delErr.Error()))
		}
		s.logger.Warn("send verification code failed", slog.String("email", email), slog.String("error", err.Error()))
		return nil, fmt.Errorf("send verification code: %w", err)
	}
	s.armCooldown(ctx, user.ID)

	s.logger.Info("user registered", slog.String("email", email))
	return user, nil
}

// Login checks credentials and sends a second-factor code. No session is issued here.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Authentication("invalid credentials")
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperr.Authentication("invalid credentials")
	}

	if err := s.sendCode(ctx, &user); err != nil {
		return nil, err
	}
	s.armCooldown(ctx, user.ID)

	s.logger.Info("login code sent", slog.String("email", email))
	return &user, nil
}

// VerifyOTP consumes a code, marks the account verified and starts a session.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.consumeOTP(ctx, tx, user.ID, code); err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Update("is_verified", true).Error
	})
	if err != nil {
		if errors.Is(err, apperr.ErrAuthentication) {
			metrics.OTPVerificationsTotal.WithLabelValues(metrics.OTPRejected).Inc()
			s.logger.Info("otp rejected", slog.String("email", user.Email))
			return nil, err
		}
		return nil, fmt.Errorf("verify code: %w", err)
	}
	metrics.OTPVerificationsTotal.WithLabelValues(metrics.OTPVerified).Inc()
	user.IsVerified = true

	token, _, err := s.issuer.GenerateToken(user.ID)
	if err != nil {
		s.logger.Error("sign token failed", slog.String("email", user.Email), slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.Info("otp verified", slog.String("email", user.Email))
	return &Session{Token: token, User: user}, nil
}

// ResendOTP sends a new code, subject to the per-account cooldown.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.acquireCooldown(ctx, user.ID); err != nil {
		return err
	}
	if err := s.sendCode(ctx, user); err != nil {
		return err
	}
	s.logger.Info("verification code resent", slog.String("email", user.Email))
	return nil
}

// Profile loads the account with its profile.
func (s *Service) Profile(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Profile").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user.Profile == nil {
		user.Profile = &models.Profile{UserID: user.ID}
	}
	return &user, nil
}

// UpdateProfile applies upd to the account and its profile.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, upd ProfileUpdate) (*models.User, error) {
	if upd.SkinType != nil && !models.ValidSkinType(*upd.SkinType) {
		return nil, apperr.Validation("skin_type must be one of %s", strings.Join(models.SkinTypes, ", "))
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	userFields := map[string]any{}
	setString(userFields, "username", upd.Username)
	setString(userFields, "first_name", upd.FirstName)
	setString(userFields, "last_name", upd.LastName)
	setString(userFields, "phone_number", upd.PhoneNumber)
	if upd.DateOfBirth != nil {
		userFields["date_of_birth"] = upd.DateOfBirth
	}

	profile := user.Profile
	applyString(&profile.MedicalHistory, upd.MedicalHistory)
	applyString(&profile.SkinType, upd.SkinType)
	applyString(&profile.FamilyHistory, upd.FamilyHistory)
	applyString(&profile.EmergencyContact, upd.EmergencyContact)
	applyString(&profile.EmergencyPhone, upd.EmergencyPhone)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(userFields) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(userFields).Error; err != nil {
				return err
			}
		}
		return tx.Save(profile).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Profile(ctx, userID)
}

// Logout revokes the presented token. Revocation problems never fail the request.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) {
	if claims == nil {
		return
	}
	if err := s.revoker.Revoke(ctx, claims.ID, claims.TTL(time.Now())); err != nil {
		s.logger.Warn("token revocation failed", slog.String("jti", claims.ID), slog.String("error", err.Error()))
	}
}

func (s *Service) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

func (s *Service) sendCode(ctx context.Context, user *models.User) error {
	var code string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = s.issueOTP(ctx, tx, user)
		return err
	})
	if err != nil {
		s.logger.Error("issue verification code failed", slog.String("email", user.Email), slog.String("error", err.Error()))
		return err
	}
	if err := s.notifier.SendOTP(ctx, user, code); err != nil {
		s.logger.Warn("send verification code failed", slog.String("email", user.Email), slog.String("error", err.Error()))
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

func setString(fields map[string]any, column string, v *string) {
	if v != nil {
		fields[column] = strings.TrimSpace(*v)
	}
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
