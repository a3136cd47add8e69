package uploads

import (
	"context"
	"fmt"
	"strings"

	"skincheck-back/internal/analysis"
	"skincheck-back/internal/apperr"
	"skincheck-back/internal/models"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	FilterAll      = "all"
	FilterHighRisk = "high-risk"
)

var orderingFields = map[string]bool{
	"created_at":             true,
	"confidence":             true,
	"risk_score":             true,
	"cancer_type_confidence": true,
}

// ListQuery mirrors the list endpoint's query string.
type ListQuery struct {
	Search     string
	FilterType string

	Result              string
	UrgencyLevel        string
	CancerType          string
	RiskLevel           string
	ShouldConsultDoctor *bool

	Ordering string
	Page     int
	PageSize int
}

type Page struct {
	Count    int64                `json:"count"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Results  []models.ImageUpload `json:"results"`
}

// List returns one page of userID's uploads. A search or filter_type is recorded in the
// account's search history together with the number of matches.
func (s *Service) List(ctx context.Context, userID uint, q ListQuery) (*Page, error) {
	order, err := orderClause(q.Ordering)
	if err != nil {
		return nil, err
	}
	page, size := normalizePage(q.Page, q.PageSize)

	base := s.applyFilters(s.db.WithContext(ctx).Model(&models.ImageUpload{}).Where("user_id = ?", userID), q)

	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count uploads: %w", err)
	}

	var results []models.ImageUpload
	if err := base.Session(&gorm.Session{}).
		Order(order).
		Order("id").
		Limit(size).
		Offset((page - 1) * size).
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	search, filter := strings.TrimSpace(q.Search), strings.TrimSpace(q.FilterType)
	if search != "" || filter != "" {
		entry := models.AnalysisHistory{
			UserID:       userID,
			SearchQuery:  search,
			FilterType:   filter,
			ResultsCount: count,
		}
		if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
			return nil, fmt.Errorf("record search: %w", err)
		}
	}

	if results == nil {
		results = []models.ImageUpload{}
	}
	return &Page{Count: count, Page: page, PageSize: size, Results: results}, nil
}

func (s *Service) applyFilters(tx *gorm.DB, q ListQuery) *gorm.DB {
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		tx = tx.Where(
			"(LOWER(filename) LIKE ? ESCAPE '!' OR LOWER(result) LIKE ? ESCAPE '!' OR LOWER(cancer_type_name) LIKE ? ESCAPE '!')",
			pattern, pattern, pattern,
		)
	}

	switch filter := strings.TrimSpace(q.FilterType); filter {
	case "", FilterAll:
	case FilterHighRisk:
		tx = tx.Where("result IN ?", []string{analysis.ResultSuspicious, analysis.ResultMalignant})
	default:
		tx = tx.Where("result = ?", filter)
	}

	if q.Result != "" {
		tx = tx.Where("result = ?", q.Result)
	}
	if q.UrgencyLevel != "" {
		tx = tx.Where("urgency_level = ?", q.UrgencyLevel)
	}
	if q.CancerType != "" {
		tx = tx.Where("cancer_type = ?", q.CancerType)
	}
	if q.RiskLevel != "" {
		tx = tx.Where("risk_level = ?", q.RiskLevel)
	}
	if q.ShouldConsultDoctor != nil {
		tx = tx.Where("should_consult_doctor = ?", *q.ShouldConsultDoctor)
	}
	return tx
}

func orderClause(ordering string) (string, error) {
	ordering = strings.TrimSpace(ordering)
	if ordering == "" {
		ordering = "-created_at"
	}
	field, dir := ordering, "asc"
	if strings.HasPrefix(field, "-") {
		field, dir = field[1:], "desc"
	}
	if !orderingFields[field] {
		return "", apperr.Validation("invalid ordering field %q", field)
	}
	return field + " " + dir, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
