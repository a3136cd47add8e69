package insights

import (
	"context"
	"fmt"
	"time"

	"skincheck-back/internal/models"

	"gorm.io/gorm"
)

// Service loads an account's samples and runs the aggregations over them.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) samples(ctx context.Context, userID uint) ([]Sample, error) {
	var out []Sample
	err := s.db.WithContext(ctx).Model(&models.ImageUpload{}).
		Select("id, filename, result, confidence, should_consult_doctor, urgency_level, created_at").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load uploads: %w", err)
	}
	return out, nil
}

func (s *Service) Statistics(ctx context.Context, userID uint) (UploadStatistics, error) {
	samples, err := s.samples(ctx, userID)
	if err != nil {
		return UploadStatistics{}, err
	}
	return Statistics(samples, s.now()), nil
}

func (s *Service) Dashboard(ctx context.Context, userID uint) (DashboardStats, error) {
	samples, err := s.samples(ctx, userID)
	if err != nil {
		return DashboardStats{}, err
	}
	return Dashboard(samples, s.now()), nil
}

func (s *Service) Trends(ctx context.Context, userID uint) (TrendReport, error) {
	samples, err := s.samples(ctx, userID)
	if err != nil {
		return TrendReport{}, err
	}
	return Trends(samples, s.now()), nil
}

func (s *Service) RiskAssessment(ctx context.Context, userID uint) (RiskReport, error) {
	samples, err := s.samples(ctx, userID)
	if err != nil {
		return RiskReport{}, err
	}
	return Assess(samples, s.now()), nil
}
