// Package insights derives statistics, trends and a risk verdict from an account's uploads.
package insights

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"time"

	"skincheck-back/internal/analysis"
)

const (
	RiskUnknown = "unknown"

	trendDays    = 30
	recentWindow = 30 * 24 * time.Hour
	weekWindow   = 7 * 24 * time.Hour
	recentLimit  = 5
)

// Sample is the slice of an upload record the aggregations need.
type Sample struct {
	ID                  string    `json:"id"`
	Filename            string    `json:"filename"`
	Result              string    `json:"result"`
	Confidence          float64   `json:"confidence"`
	ShouldConsultDoctor bool      `json:"should_consult_doctor"`
	UrgencyLevel        string    `json:"urgency_level"`
	CreatedAt           time.Time `json:"created_at"`
}

func (s Sample) highRisk() bool {
	return s.Result == analysis.ResultSuspicious || s.Result == analysis.ResultMalignant
}

type counts struct {
	total, benign, suspicious, malignant int
	confidenceSum                        float64
}

func (c *counts) add(s Sample) {
	c.total++
	c.confidenceSum += s.Confidence
	switch s.Result {
	case analysis.ResultBenign:
		c.benign++
	case analysis.ResultSuspicious:
		c.suspicious++
	case analysis.ResultMalignant:
		c.malignant++
	}
}

func (c counts) highRisk() int {
	return c.suspicious + c.malignant
}

func (c counts) avgConfidence() float64 {
	if c.total == 0 {
		return 0
	}
	return round1(c.confidenceSum / float64(c.total))
}

func tally(samples []Sample) counts {
	var c counts
	for _, s := range samples {
		c.add(s)
	}
	return c
}

func countSince(samples []Sample, since time.Time, pred func(Sample) bool) int {
	n := 0
	for _, s := range samples {
		if !s.CreatedAt.Before(since) && (pred == nil || pred(s)) {
			n++
		}
	}
	return n
}

// UploadStatistics is the summary served next to the upload list.
type UploadStatistics struct {
	TotalUploads      int     `json:"total_uploads"`
	BenignCount       int     `json:"benign_count"`
	SuspiciousCount   int     `json:"suspicious_count"`
	MalignantCount    int     `json:"malignant_count"`
	AverageConfidence float64 `json:"average_confidence"`
	RecentUploads     int     `json:"recent_uploads"`
	HighRiskUploads   int     `json:"high_risk_uploads"`
}

func Statistics(samples []Sample, now time.Time) UploadStatistics {
	c := tally(samples)
	return UploadStatistics{
		TotalUploads:      c.total,
		BenignCount:       c.benign,
		SuspiciousCount:   c.suspicious,
		MalignantCount:    c.malignant,
		AverageConfidence: c.avgConfidence(),
		RecentUploads:     countSince(samples, now.Add(-recentWindow), nil),
		HighRiskUploads:   c.highRisk(),
	}
}

type ResultBreakdown struct {
	Benign     int `json:"benign"`
	Suspicious int `json:"suspicious"`
	Malignant  int `json:"malignant"`
}

type RecentActivity struct {
	Last7Days  int `json:"last_7_days"`
	Last30Days int `json:"last_30_days"`
}

type DashboardStats struct {
	TotalUploads      int             `json:"total_uploads"`
	ResultBreakdown   ResultBreakdown `json:"result_breakdown"`
	AverageConfidence float64         `json:"average_confidence"`
	HighRiskUploads   int             `json:"high_risk_uploads"`
	RiskPercentage    float64         `json:"risk_percentage"`
	RecentActivity    RecentActivity  `json:"recent_activity"`
	RecentUploads     []Sample        `json:"recent_uploads"`
}

func Dashboard(samples []Sample, now time.Time) DashboardStats {
	c := tally(samples)

	recent := make([]Sample, len(samples))
	copy(recent, samples)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	return DashboardStats{
		TotalUploads: c.total,
		ResultBreakdown: ResultBreakdown{
			Benign:     c.benign,
			Suspicious: c.suspicious,
			Malignant:  c.malignant,
		},
		AverageConfidence: c.avgConfidence(),
		HighRiskUploads:   c.highRisk(),
		RiskPercentage:    percentage(c.highRisk(), c.total),
		RecentActivity: RecentActivity{
			Last7Days:  countSince(samples, now.Add(-weekWindow), nil),
			Last30Days: countSince(samples, now.Add(-recentWindow), nil),
		},
		RecentUploads: recent,
	}
}

type DayTrend struct {
	Date          string  `json:"-"`
	Total         int     `json:"total"`
	Benign        int     `json:"benign"`
	Suspicious    int     `json:"suspicious"`
	Malignant     int     `json:"malignant"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// DailyTrends encodes as a JSON object keyed by ISO date, most recent day first.
type DailyTrends []DayTrend

func (d DailyTrends) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, day := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(day.Date)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(day)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type TrendReport struct {
	DailyTrends DailyTrends `json:"daily_trends"`
	Period      string      `json:"period"`
}

// Trends buckets the trailing 30 days by UTC calendar day, today first.
func Trends(samples []Sample, now time.Time) TrendReport {
	now = now.UTC()
	since := now.Add(-recentWindow)

	byDay := map[string]*counts{}
	for _, s := range samples {
		if s.CreatedAt.Before(since) {
			continue
		}
		key := s.CreatedAt.UTC().Format(time.DateOnly)
		c, ok := byDay[key]
		if !ok {
			c = &counts{}
			byDay[key] = c
		}
		c.add(s)
	}

	days := make(DailyTrends, 0, trendDays)
	for i := 0; i < trendDays; i++ {
		key := now.AddDate(0, 0, -i).Format(time.DateOnly)
		day := DayTrend{Date: key}
		if c, ok := byDay[key]; ok {
			day.Total = c.total
			day.Benign = c.benign
			day.Suspicious = c.suspicious
			day.Malignant = c.malignant
			day.AvgConfidence = c.avgConfidence()
		}
		days = append(days, day)
	}
	return TrendReport{DailyTrends: days, Period: "30_days"}
}

type RiskMetrics struct {
	TotalUploads      int     `json:"total_uploads"`
	HighRiskUploads   int     `json:"high_risk_uploads"`
	RecentHighRisk    int     `json:"recent_high_risk"`
	AverageConfidence float64 `json:"average_confidence"`
	RiskPercentage    float64 `json:"risk_percentage"`
}

type RiskReport struct {
	RiskLevel       string       `json:"risk_level"`
	Message         string       `json:"message"`
	Metrics         *RiskMetrics `json:"metrics,omitempty"`
	Recommendations []string     `json:"recommendations"`
}

var (
	noUploadsAdvice = []string{
		"Upload skin lesion images to get personalized risk assessment.",
		"Regular skin self-examinations are recommended.",
		"Consult a dermatologist for professional skin cancer screening.",
	}
	highRiskAdvice = []string{
		"Schedule an immediate appointment with a dermatologist.",
		"Consider more frequent skin self-examinations.",
		"Discuss family history of skin cancer with your healthcare provider.",
		"Ensure proper sun protection measures are in place.",
	}
	mediumRiskAdvice = []string{
		"Schedule a dermatologist appointment within 2-4 weeks.",
		"Increase frequency of skin self-examinations.",
		"Review sun protection habits and improve if needed.",
		"Consider annual professional skin cancer screening.",
	}
	lowRiskAdvice = []string{
		"Continue regular skin self-examinations.",
		"Maintain good sun protection habits.",
		"Consider annual professional skin cancer screening.",
		"Stay vigilant for any new or changing skin lesions.",
	}
)

// RiskLevel buckets the high-risk share: none or up to 10% is low, up to 30% medium, above high.
// Integer comparison keeps the 10% and 30% boundaries exact.
func RiskLevel(highRisk, total int) string {
	switch {
	case total == 0:
		return RiskUnknown
	case highRisk == 0:
		return analysis.RiskLow
	case highRisk*10 <= total:
		return analysis.RiskLow
	case highRisk*10 <= total*3:
		return analysis.RiskMedium
	default:
		return analysis.RiskHigh
	}
}

func Assess(samples []Sample, now time.Time) RiskReport {
	if len(samples) == 0 {
		return RiskReport{
			RiskLevel:       RiskUnknown,
			Message:         "No uploads available for risk assessment.",
			Recommendations: copyAdvice(noUploadsAdvice),
		}
	}

	c := tally(samples)
	high := c.highRisk()
	level := RiskLevel(high, c.total)

	var message string
	var advice []string
	switch {
	case high == 0:
		message, advice = "Your skin analysis shows no concerning results.", lowRiskAdvice
	case level == analysis.RiskLow:
		message, advice = "Your skin analysis shows mostly benign results with minimal concerns.", lowRiskAdvice
	case level == analysis.RiskMedium:
		message, advice = "Your skin analysis shows some concerning results that warrant attention.", mediumRiskAdvice
	default:
		message, advice = "Your skin analysis shows multiple concerning results requiring immediate attention.", highRiskAdvice
	}

	return RiskReport{
		RiskLevel: level,
		Message:   message,
		Metrics: &RiskMetrics{
			TotalUploads:      c.total,
			HighRiskUploads:   high,
			RecentHighRisk:    countSince(samples, now.Add(-recentWindow), Sample.highRisk),
			AverageConfidence: c.avgConfidence(),
			RiskPercentage:    percentage(high, c.total),
		},
		Recommendations: copyAdvice(advice),
	}
}

func copyAdvice(a []string) []string {
	out := make([]string, len(a))
	copy(out, a)
	return out
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
