package insights

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"skincheck-back/internal/analysis"
	"skincheck-back/internal/database/dbtest"
	"skincheck-back/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func sample(result string, confidence float64, age time.Duration) Sample {
	return Sample{ID: uuid.NewString(), Result: result, Confidence: confidence, CreatedAt: now.Add(-age)}
}

func repeat(n int, s func() Sample) []Sample {
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s())
	}
	return out
}

func TestRiskLevel_Boundaries(t *testing.T) {
	tests := []struct {
		high, total int
		want        string
	}{
		{0, 0, RiskUnknown},
		{0, 5, analysis.RiskLow},
		{1, 10, analysis.RiskLow},  // exactly 10%
		{2, 19, analysis.RiskMedium}, // just over 10%
		{3, 10, analysis.RiskMedium}, // exactly 30%
		{31, 100, analysis.RiskHigh}, // just over 30%
		{5, 5, analysis.RiskHigh},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, RiskLevel(tt.high, tt.total), "%d/%d", tt.high, tt.total)
	}
}

func TestAssess_NoUploads(t *testing.T) {
	r := Assess(nil, now)
	require.Equal(t, RiskUnknown, r.RiskLevel)
	require.Nil(t, r.Metrics)
	require.Len(t, r.Recommendations, 3)
}

func TestAssess_Buckets(t *testing.T) {
	benign := func() Sample { return sample(analysis.ResultBenign, 80, time.Hour) }

	tenPercent := append(repeat(9, benign), sample(analysis.ResultMalignant, 90, 40*24*time.Hour))
	r := Assess(tenPercent, now)
	require.Equal(t, analysis.RiskLow, r.RiskLevel)
	require.Equal(t, "Your skin analysis shows mostly benign results with minimal concerns.", r.Message)
	require.Equal(t, 1, r.Metrics.HighRiskUploads)
	require.Equal(t, 0, r.Metrics.RecentHighRisk)
	require.Equal(t, 10.0, r.Metrics.RiskPercentage)
	require.Equal(t, 81.0, r.Metrics.AverageConfidence)

	thirtyPercent := append(repeat(7, benign),
		sample(analysis.ResultSuspicious, 70, time.Hour),
		sample(analysis.ResultSuspicious, 70, time.Hour),
		sample(analysis.ResultMalignant, 90, time.Hour),
	)
	r = Assess(thirtyPercent, now)
	require.Equal(t, analysis.RiskMedium, r.RiskLevel)
	require.Equal(t, 3, r.Metrics.RecentHighRisk)
	require.Equal(t, "Schedule a dermatologist appointment within 2-4 weeks.", r.Recommendations[0])

	r = Assess(append(repeat(6, benign), repeat(4, func() Sample { return sample(analysis.ResultMalignant, 90, time.Hour) })...), now)
	require.Equal(t, analysis.RiskHigh, r.RiskLevel)
	require.Equal(t, 40.0, r.Metrics.RiskPercentage)

	r = Assess(repeat(3, benign), now)
	require.Equal(t, analysis.RiskLow, r.RiskLevel)
	require.Equal(t, "Your skin analysis shows no concerning results.", r.Message)
}

func TestStatistics(t *testing.T) {
	samples := []Sample{
		sample(analysis.ResultBenign, 80, time.Hour),
		sample(analysis.ResultSuspicious, 75, 10*24*time.Hour),
		sample(analysis.ResultMalignant, 91, 45*24*time.Hour),
	}
	s := Statistics(samples, now)
	require.Equal(t, UploadStatistics{
		TotalUploads:      3,
		BenignCount:       1,
		SuspiciousCount:   1,
		MalignantCount:    1,
		AverageConfidence: 82,
		RecentUploads:     2,
		HighRiskUploads:   2,
	}, s)

	require.Equal(t, UploadStatistics{}, Statistics(nil, now))
}

func TestDashboard(t *testing.T) {
	var samples []Sample
	for i := 0; i < 7; i++ {
		samples = append(samples, sample(analysis.ResultBenign, 80, time.Duration(i)*24*time.Hour+time.Minute))
	}
	samples = append(samples, sample(analysis.ResultMalignant, 95, 20*24*time.Hour))

	d := Dashboard(samples, now)
	require.Equal(t, 8, d.TotalUploads)
	require.Equal(t, ResultBreakdown{Benign: 7, Malignant: 1}, d.ResultBreakdown)
	require.Equal(t, 12.5, d.RiskPercentage)
	require.Equal(t, 7, d.RecentActivity.Last7Days)
	require.Equal(t, 8, d.RecentActivity.Last30Days)
	require.Len(t, d.RecentUploads, 5)
	require.Equal(t, samples[0].ID, d.RecentUploads[0].ID)
	require.True(t, d.RecentUploads[0].CreatedAt.After(d.RecentUploads[4].CreatedAt))

	empty := Dashboard(nil, now)
	require.NotNil(t, empty.RecentUploads)
	require.Zero(t, empty.RiskPercentage)
}

func TestTrends(t *testing.T) {
	samples := []Sample{
		sample(analysis.ResultBenign, 80, time.Hour),
		sample(analysis.ResultMalignant, 90, 2*time.Hour),
		sample(analysis.ResultSuspicious, 70, 24*time.Hour),
		sample(analysis.ResultBenign, 99, 31*24*time.Hour),
	}
	r := Trends(samples, now)
	require.Equal(t, "30_days", r.Period)
	require.Len(t, r.DailyTrends, 30)

	today := r.DailyTrends[0]
	require.Equal(t, "2026-05-20", today.Date)
	require.Equal(t, 2, today.Total)
	require.Equal(t, 1, today.Benign)
	require.Equal(t, 1, today.Malignant)
	require.Equal(t, 85.0, today.AvgConfidence)

	require.Equal(t, "2026-05-19", r.DailyTrends[1].Date)
	require.Equal(t, 1, r.DailyTrends[1].Suspicious)
	require.Equal(t, "2026-04-21", r.DailyTrends[29].Date)

	total := 0
	for _, d := range r.DailyTrends {
		total += d.Total
	}
	require.Equal(t, 3, total)
}

func TestDailyTrends_JSONKeepsOrder(t *testing.T) {
	r := Trends(nil, now)
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	s := string(raw)
	require.True(t, strings.HasPrefix(s, `{"daily_trends":{"2026-05-20":{"total":0,`), s)
	require.Less(t, strings.Index(s, "2026-05-20"), strings.Index(s, "2026-05-19"))

	var decoded struct {
		DailyTrends map[string]DayTrend `json:"daily_trends"`
		Period      string              `json:"period"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.DailyTrends, 30)
	require.Equal(t, "30_days", decoded.Period)
}

func TestService_LoadsOnlyCallerUploads(t *testing.T) {
	db := dbtest.New(t)
	alice := models.User{Email: "alice@example.com", Password: "x"}
	bob := models.User{Email: "bob@example.com", Password: "x"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	mk := func(uid uint, result string, conf float64) {
		require.NoError(t, db.Create(&models.ImageUpload{
			ID: uuid.NewString(), UserID: uid, ImagePath: "p", Filename: "f.jpg",
			Result: result, Confidence: conf, CreatedAt: now.Add(-time.Hour),
		}).Error)
	}
	mk(alice.ID, analysis.ResultBenign, 80)
	mk(alice.ID, analysis.ResultMalignant, 90)
	mk(bob.ID, analysis.ResultMalignant, 70)

	svc := NewService(db)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	stats, err := svc.Statistics(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalUploads)
	require.Equal(t, 85.0, stats.AverageConfidence)

	report, err := svc.RiskAssessment(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, analysis.RiskHigh, report.RiskLevel)

	dash, err := svc.Dashboard(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, 1, dash.TotalUploads)
	require.Len(t, dash.RecentUploads, 1)

	trends, err := svc.Trends(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, trends.DailyTrends[0].Total)

	none, err := svc.RiskAssessment(ctx, 9999)
	require.NoError(t, err)
	require.Equal(t, RiskUnknown, none.RiskLevel)
}
