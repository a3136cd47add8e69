package accounts

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"skincheck-back/internal/apperr"
	"skincheck-back/internal/auth"
	"skincheck-back/internal/config"
	"skincheck-back/internal/database/dbtest"
	"skincheck-back/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type captureNotifier struct {
	mu    sync.Mutex
	codes map[string][]string
	err   error
}

func (n *captureNotifier) SendOTP(ctx context.Context, user *models.User, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	if n.codes == nil {
		n.codes = map[string][]string{}
	}
	n.codes[user.Email] = append(n.codes[user.Email], code)
	return nil
}

func (n *captureNotifier) last(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.codes[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

type fixture struct {
	svc      *Service
	notifier *captureNotifier
	redis    *miniredis.Miniredis
	revoker  *auth.Revoker
	issuer   *auth.Issuer
	clock    time.Time
	logs     *bytes.Buffer
}

func newFixture(t *testing.T, withRedis bool) *fixture {
	t.Helper()
	db := dbtest.New(t)

	f := &fixture{notifier: &captureNotifier{}, clock: time.Now().UTC(), logs: &bytes.Buffer{}}
	var rdb *redis.Client
	if withRedis {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() {
			_ = rdb.Close()
			mr.Close()
		})
		f.redis = mr
	}
	f.issuer = auth.NewIssuer("test-secret", time.Hour)
	f.revoker = auth.NewRevoker(rdb)
	logger := slog.New(slog.NewTextHandler(f.logs, nil))
	otpCfg := config.OTPConfig{TTL: 10 * time.Minute, ResendCooldown: 60 * time.Second}

	f.svc = NewService(db, rdb, f.issuer, f.revoker, f.notifier, otpCfg, logger)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) register(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterInput{
		Email:           email,
		FirstName:       "Jane",
		LastName:        "Doe",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
	})
	require.NoError(t, err)
	return user
}

func TestRegister_CreatesUnverifiedAccountAndSendsCode(t *testing.T) {
	f := newFixture(t, false)

	user := f.register(t, "  Jane@Example.com ")
	require.Equal(t, "jane@example.com", user.Email)
	require.Equal(t, "jane@example.com", user.Username)
	require.False(t, user.IsVerified)

	code := f.notifier.last("jane@example.com")
	require.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)

	profile, err := f.svc.Profile(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.Profile)
	require.NotZero(t, profile.Profile.ID)

	var otps []models.OTPVerification
	require.NoError(t, f.svc.db.Where("user_id = ?", user.ID).Find(&otps).Error)
	require.Len(t, otps, 1)
	require.False(t, otps[0].IsUsed)
	require.WithinDuration(t, f.clock.Add(10*time.Minute), otps[0].ExpiresAt, time.Second)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "longenough", PasswordConfirm: "different1"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Equal(t, "passwords don't match", err.Error())

	_, err = f.svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "short", PasswordConfirm: "short"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Register(ctx, RegisterInput{Email: " ", Password: "longenough", PasswordConfirm: "longenough"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	f.register(t, "dup@example.com")
	_, err = f.svc.Register(ctx, RegisterInput{Email: "DUP@example.com", Password: "longenough", PasswordConfirm: "longenough"})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegister_RollsBackWhenDeliveryFails(t *testing.T) {
	f := newFixture(t, false)
	f.notifier.err = errors.New("smtp down")

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "x@example.com", Password: "longenough", PasswordConfirm: "longenough"})
	require.Error(t, err)

	var count int64
	require.NoError(t, f.svc.db.Model(&models.User{}).Where("email = ?", "x@example.com").Count(&count).Error)
	require.Zero(t, count)
}

func TestRegister_LogsFailedRollback(t *testing.T) {
	f := newFixture(t, false)
	f.notifier.err = errors.New("smtp down")
	require.NoError(t, f.svc.db.Callback().Delete().Before("gorm:delete").Register("test:fail_delete", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("disk full"))
	}))

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "x@example.com", Password: "longenough", PasswordConfirm: "longenough"})
	require.Error(t, err)
	require.Contains(t, f.logs.String(), "rollback registration failed")
	require.Contains(t, f.logs.String(), "disk full")
}

func TestVerifyOTP_SingleUse(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.register(t, "jane@example.com")
	code := f.notifier.last("jane@example.com")

	session, err := f.svc.VerifyOTP(ctx, "jane@example.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.True(t, session.User.IsVerified)

	claims, err := f.issuer.ParseToken(session.Token)
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, session.User.ID, uid)

	var stored models.User
	require.NoError(t, f.svc.db.First(&stored, session.User.ID).Error)
	require.True(t, stored.IsVerified)

	_, err = f.svc.VerifyOTP(ctx, "jane@example.com", code)
	require.ErrorIs(t, err, apperr.ErrAuthentication)
}

func TestVerifyOTP_Rejections(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.register(t, "jane@example.com")
	code := f.notifier.last("jane@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err := f.svc.VerifyOTP(ctx, "jane@example.com", wrong)
	require.ErrorIs(t, err, apperr.ErrAuthentication)

	_, err = f.svc.VerifyOTP(ctx, "nobody@example.com", code)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// expired
	f.clock = f.clock.Add(10*time.Minute + time.Second)
	_, err = f.svc.VerifyOTP(ctx, "jane@example.com", code)
	require.ErrorIs(t, err, apperr.ErrAuthentication)
}

func TestVerifyOTP_ConcurrentAttemptsHaveOneWinner(t *testing.T) {
	f := newFixture(t, false)
	f.register(t, "jane@example.com")
	code := f.notifier.last("jane@example.com")

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.VerifyOTP(context.Background(), "jane@example.com", code); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, success)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.register(t, "jane@example.com")
	registerCode := f.notifier.last("jane@example.com")

	_, err := f.svc.Login(ctx, "jane@example.com", "wrong-password")
	require.ErrorIs(t, err, apperr.ErrAuthentication)
	_, err = f.svc.Login(ctx, "ghost@example.com", "s3cret-pass")
	require.ErrorIs(t, err, apperr.ErrAuthentication)

	user, err := f.svc.Login(ctx, "JANE@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", user.Email)
	loginCode := f.notifier.last("jane@example.com")

	// a new code voids the earlier one
	var unused int64
	require.NoError(t, f.svc.db.Model(&models.OTPVerification{}).Where("user_id = ? AND is_used = ?", user.ID, false).Count(&unused).Error)
	require.Equal(t, int64(1), unused)
	if registerCode != loginCode {
		_, err = f.svc.VerifyOTP(ctx, "jane@example.com", registerCode)
		require.ErrorIs(t, err, apperr.ErrAuthentication)
	}

	_, err = f.svc.VerifyOTP(ctx, "jane@example.com", loginCode)
	require.NoError(t, err)
}

func TestResendOTP_Cooldown(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.register(t, "jane@example.com")

	err := f.svc.ResendOTP(ctx, "jane@example.com")
	var tooMany *apperr.TooManyRequests
	require.ErrorAs(t, err, &tooMany)
	require.Greater(t, tooMany.RetryAfterSeconds, 0)
	require.LessOrEqual(t, tooMany.RetryAfterSeconds, 60)

	f.redis.FastForward(61 * time.Second)
	require.NoError(t, f.svc.ResendOTP(ctx, "jane@example.com"))
	require.Len(t, f.notifier.codes["jane@example.com"], 2)

	// the cooldown restarts after a successful resend
	err = f.svc.ResendOTP(ctx, "jane@example.com")
	require.ErrorIs(t, err, apperr.ErrTooManyRequests)

	err = f.svc.ResendOTP(ctx, "ghost@example.com")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResendOTP_NoRedisMeansNoCooldown(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.register(t, "jane@example.com")

	require.NoError(t, f.svc.ResendOTP(ctx, "jane@example.com"))
	require.NoError(t, f.svc.ResendOTP(ctx, "jane@example.com"))
	require.Len(t, f.notifier.codes["jane@example.com"], 3)

	_, err := f.svc.VerifyOTP(ctx, "jane@example.com", f.notifier.last("jane@example.com"))
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	user := f.register(t, "jane@example.com")

	bad := "type9"
	_, err := f.svc.UpdateProfile(ctx, user.ID, ProfileUpdate{SkinType: &bad})
	require.ErrorIs(t, err, apperr.ErrValidation)

	skin, first, history := "type3", "Janet", "none known"
	updated, err := f.svc.UpdateProfile(ctx, user.ID, ProfileUpdate{
		SkinType:       &skin,
		FirstName:      &first,
		MedicalHistory: &history,
	})
	require.NoError(t, err)
	require.Equal(t, "Janet", updated.FirstName)
	require.Equal(t, "Doe", updated.LastName)
	require.Equal(t, "type3", updated.Profile.SkinType)
	require.Equal(t, "none known", updated.Profile.MedicalHistory)

	_, err = f.svc.Profile(ctx, 9999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.register(t, "jane@example.com")
	session, err := f.svc.VerifyOTP(ctx, "jane@example.com", f.notifier.last("jane@example.com"))
	require.NoError(t, err)

	claims, err := f.issuer.ParseToken(session.Token)
	require.NoError(t, err)
	f.svc.Logout(ctx, claims)

	revoked, err := f.revoker.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestLogout_SwallowsRevocationFailure(t *testing.T) {
	f := newFixture(t, true)
	f.redis.Close()

	require.NotPanics(t, func() {
		f.svc.Logout(context.Background(), &auth.Claims{})
		claims, err := f.issuer.ParseToken(mustToken(t, f.issuer))
		require.NoError(t, err)
		f.svc.Logout(context.Background(), claims)
	})
}

func mustToken(t *testing.T, iss *auth.Issuer) string {
	t.Helper()
	tok, _, err := iss.GenerateToken(1)
	require.NoError(t, err)
	return tok
}

func TestDeleteStaleOTPs(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	user := f.register(t, "jane@example.com")
	now := f.clock

	rows := []models.OTPVerification{
		{UserID: user.ID, OTPCode: "111111", IsUsed: true, CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-47 * time.Hour)},
		{UserID: user.ID, OTPCode: "222222", IsUsed: false, CreatedAt: now.Add(-30 * time.Hour), ExpiresAt: now.Add(-29 * time.Hour)},
		{UserID: user.ID, OTPCode: "333333", IsUsed: true, CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(9 * time.Hour)},
	}
	require.NoError(t, f.svc.db.Create(&rows).Error)

	deleted, err := f.svc.DeleteStaleOTPs(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	var remaining int64
	require.NoError(t, f.svc.db.Model(&models.OTPVerification{}).Where("user_id = ?", user.ID).Count(&remaining).Error)
	require.Equal(t, int64(2), remaining)
}

func TestGenerateCode(t *testing.T) {
	// 255 and 250 are rejected and redrawn
	src := bytes.NewReader([]byte{0, 9, 255, 13, 99, 250, 42, 7, 1})
	code, err := generateCode(src)
	require.NoError(t, err)
	require.Equal(t, "092397", code)

	_, err = generateCode(bytes.NewReader([]byte{1, 2}))
	require.Error(t, err)
}
