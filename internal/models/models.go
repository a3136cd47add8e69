// internal/models/models.go
package models

import (
	"time"

	"skincheck-back/internal/analysis"
)

// Skin type categories accepted on a profile.
var SkinTypes = []string{"type1", "type2", "type3", "type4", "type5", "type6"}

// ValidSkinType reports whether v is empty or one of SkinTypes.
func ValidSkinType(v string) bool {
	if v == "" {
		return true
	}
	for _, st := range SkinTypes {
		if st == v {
			return true
		}
	}
	return false
}

type User struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Email       string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	Username    string     `gorm:"type:varchar(150)" json:"username"`
	Password    string     `gorm:"not null" json:"-"`
	FirstName   string     `gorm:"type:varchar(30)" json:"first_name"`
	LastName    string     `gorm:"type:varchar(30)" json:"last_name"`
	PhoneNumber string     `gorm:"type:varchar(15)" json:"phone_number,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	IsVerified  bool       `gorm:"default:false" json:"is_verified"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Profile  *Profile          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	OTPs     []OTPVerification `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Uploads  []ImageUpload     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Searches []AnalysisHistory `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

type Profile struct {
	ID               uint   `gorm:"primarykey" json:"id"`
	UserID           uint   `gorm:"uniqueIndex;not null" json:"user"`
	MedicalHistory   string `gorm:"type:text" json:"medical_history"`
	SkinType         string `gorm:"type:varchar(20)" json:"skin_type"`
	FamilyHistory    string `gorm:"type:text" json:"family_history"`
	EmergencyContact string `gorm:"type:varchar(100)" json:"emergency_contact"`
	EmergencyPhone   string `gorm:"type:varchar(15)" json:"emergency_phone"`
}

func (Profile) TableName() string { return "user_profiles" }

// OTPVerification is one issued one-time passcode. IsUsed flips to true at most once.
type OTPVerification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	OTPCode   string    `gorm:"type:varchar(6);not null" json:"-"`
	IsUsed    bool      `gorm:"default:false;index" json:"is_used"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

// ImageUpload is an immutable upload record with its triage output.
type ImageUpload struct {
	ID          string `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID      uint   `gorm:"index;not null" json:"user_id"`
	ImagePath   string `gorm:"type:varchar(255);not null" json:"-"`
	ContentType string `gorm:"type:varchar(64)" json:"content_type"`
	Filename    string `gorm:"type:varchar(255);not null" json:"filename"`
	FileSize    int64  `gorm:"not null" json:"file_size"`
	ImageWidth  int    `gorm:"not null" json:"image_width"`
	ImageHeight int    `gorm:"not null" json:"image_height"`

	Result     string  `gorm:"type:varchar(20);index;not null" json:"result"`
	Confidence float64 `json:"confidence"`
	RiskScore  float64 `json:"risk_score"`

	CancerType           string  `gorm:"type:varchar(30)" json:"cancer_type"`
	CancerTypeConfidence float64 `gorm:"default:0" json:"cancer_type_confidence"`
	CancerTypeName       string  `gorm:"type:varchar(100)" json:"cancer_type_name"`
	RiskLevel            string  `gorm:"type:varchar(15);default:none" json:"risk_level"`

	ShouldConsultDoctor   bool   `gorm:"default:false" json:"should_consult_doctor"`
	UrgencyLevel          string `gorm:"type:varchar(15);default:none" json:"urgency_level"`
	RecommendationMessage string `gorm:"type:text" json:"recommendation_message"`

	AnalysisFactors analysis.Factors `gorm:"type:text;serializer:json" json:"analysis_factors"`
	CreatedAt       time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsHighRisk reports whether the upload counts toward the high-risk group.
func (u *ImageUpload) IsHighRisk() bool {
	return u.Result == analysis.ResultSuspicious || u.Result == analysis.ResultMalignant
}

// AnalysisHistory records a dashboard search. Written by the list endpoint only.
type AnalysisHistory struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	SearchQuery  string    `gorm:"type:varchar(255)" json:"search_query"`
	FilterType   string    `gorm:"type:varchar(20)" json:"filter_type"`
	ResultsCount int64     `gorm:"default:0" json:"results_count"`
	CreatedAt    time.Time `json:"created_at"`
}

func (AnalysisHistory) TableName() string { return "analysis_history" }

// All lists every model for migration.
func All() []any {
	return []any{&User{}, &Profile{}, &OTPVerification{}, &ImageUpload{}, &AnalysisHistory{}}
}
