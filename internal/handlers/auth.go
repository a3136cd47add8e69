// internal/handlers/auth.go
package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"skincheck-back/internal/accounts"
	"skincheck-back/internal/apperr"
	"skincheck-back/internal/middleware"
	"skincheck-back/internal/models"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	PhoneNumber     string `json:"phone_number"`
	DateOfBirth     string `json:"date_of_birth"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyOTPRequest struct {
	Email   string `json:"email" binding:"required,email"`
	OTPCode string `json:"otp_code" binding:"required"`
}

type ResendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ProfileRequest struct {
	Username         *string `json:"username"`
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	PhoneNumber      *string `json:"phone_number"`
	DateOfBirth      *string `json:"date_of_birth"`
	MedicalHistory   *string `json:"medical_history"`
	SkinType         *string `json:"skin_type"`
	FamilyHistory    *string `json:"family_history"`
	EmergencyContact *string `json:"emergency_contact"`
	EmergencyPhone   *string `json:"emergency_phone"`
}

type AuthResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

func parseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, apperr.Validation("date_of_birth must be formatted as YYYY-MM-DD")
	}
	return &t, nil
}

func Register(svc *accounts.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		dob, err := parseDate(req.DateOfBirth)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		user, err := svc.Register(c.Request.Context(), accounts.RegisterInput{
			Email:           req.Email,
			Username:        req.Username,
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			PhoneNumber:     req.PhoneNumber,
			DateOfBirth:     dob,
			Password:        req.Password,
			PasswordConfirm: req.PasswordConfirm,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":               "User registered successfully. Please verify your email with the OTP.",
			"email":                 user.Email,
			"requires_verification": true,
		})
	}
}

func Login(svc *accounts.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if _, err := svc.Login(c.Request.Context(), req.Email, req.Password); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":      "OTP sent. Please verify to complete login.",
			"requires_2fa": true,
		})
	}
}

func VerifyOTP(svc *accounts.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		session, err := svc.VerifyOTP(c.Request.Context(), req.Email, req.OTPCode)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, AuthResponse{
			Message: "OTP verified successfully.",
			Token:   session.Token,
			User:    session.User,
		})
	}
}

func ResendOTP(svc *accounts.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResendOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		if err := svc.ResendOTP(c.Request.Context(), req.Email); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "New OTP sent successfully."})
	}
}

func GetProfile(svc *accounts.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Profile(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func UpdateProfile(svc *accounts.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		upd := accounts.ProfileUpdate{
			Username:         req.Username,
			FirstName:        req.FirstName,
			LastName:         req.LastName,
			PhoneNumber:      req.PhoneNumber,
			MedicalHistory:   req.MedicalHistory,
			SkinType:         req.SkinType,
			FamilyHistory:    req.FamilyHistory,
			EmergencyContact: req.EmergencyContact,
			EmergencyPhone:   req.EmergencyPhone,
		}
		if req.DateOfBirth != nil {
			dob, err := parseDate(*req.DateOfBirth)
			if err != nil {
				respondError(c, logger, err)
				return
			}
			upd.DateOfBirth = dob
		}

		user, err := svc.UpdateProfile(c.Request.Context(), currentUser(c), upd)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// Logout always succeeds; a token that cannot be revoked simply expires.
func Logout(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc.Logout(c.Request.Context(), middleware.Claims(c))
		c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully."})
	}
}
