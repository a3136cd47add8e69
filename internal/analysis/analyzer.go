// Package analysis produces the simulated triage output for an uploaded lesion image.
//
// The score is a heuristic over filename keywords, image metadata and random draws.
// It does not inspect pixels and is not a diagnostic model.
package analysis

import (
	"math"
	"math/rand/v2"
	"strings"
)

// RandomSource yields uniform values in [0, 1).
type RandomSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Input is the metadata the pipeline scores.
type Input struct {
	Filename string
	Width    int
	Height   int
	FileSize int64
}

// Findings holds the deltas of the simulated image checks.
type Findings struct {
	Color    float64 `json:"color"`
	Texture  float64 `json:"texture"`
	Border   float64 `json:"border"`
	Symmetry float64 `json:"symmetry"`
	Size     float64 `json:"size"`
}

func (f Findings) total() float64 {
	return f.Color + f.Texture + f.Border + f.Symmetry + f.Size
}

// Factors is the audit bag stored next to every assessment.
type Factors struct {
	ImageSize         int64    `json:"image_size"`
	Filename          string   `json:"filename"`
	FileSize          int64    `json:"file_size"`
	AspectRatio       float64  `json:"aspect_ratio"`
	ResolutionQuality string   `json:"resolution_quality"`
	FileQuality       string   `json:"file_quality"`
	QualityDelta      float64  `json:"quality_delta"`
	KeywordDelta      float64  `json:"keyword_delta"`
	Findings          Findings `json:"findings"`
}

// Assessment is the full pipeline output.
type Assessment struct {
	Result                string
	Confidence            float64
	RiskScore             float64
	CancerType            string
	CancerTypeName        string
	CancerTypeConfidence  float64
	RiskLevel             string
	ShouldConsultDoctor   bool
	UrgencyLevel          string
	RecommendationMessage string
	Factors               Factors
}

// Analyzer runs the scoring pipeline. It is safe for concurrent use when its
// RandomSource is.
type Analyzer struct {
	rnd RandomSource
}

// NewAnalyzer returns an Analyzer drawing from rnd, or from the process-wide
// generator when rnd is nil.
func NewAnalyzer(rnd RandomSource) *Analyzer {
	if rnd == nil {
		rnd = globalSource{}
	}
	return &Analyzer{rnd: rnd}
}

// Analyze scores one image.
func (a *Analyzer) Analyze(in Input) Assessment {
	factors := describe(in)
	factors, score := a.scoreRisk(factors)
	result, confidence := a.classify(score, factors.ResolutionQuality)
	ct, typeConfidence := a.detectCancerType(score, factors.Filename)
	rec := Recommend(result, confidence, ct.Key)

	return Assessment{
		Result:                result,
		Confidence:            confidence,
		RiskScore:             score,
		CancerType:            ct.Key,
		CancerTypeName:        ct.Name,
		CancerTypeConfidence:  typeConfidence,
		RiskLevel:             ct.RiskLevel,
		ShouldConsultDoctor:   rec.ShouldConsult,
		UrgencyLevel:          rec.Urgency,
		RecommendationMessage: rec.Message,
		Factors:               factors,
	}
}

func describe(in Input) Factors {
	pixels := int64(in.Width) * int64(in.Height)
	aspect := 1.0
	if in.Height > 0 {
		aspect = float64(in.Width) / float64(in.Height)
	}
	return Factors{
		ImageSize:         pixels,
		Filename:          strings.ToLower(in.Filename),
		FileSize:          in.FileSize,
		AspectRatio:       aspect,
		ResolutionQuality: resolutionQuality(pixels),
		FileQuality:       fileQuality(in.FileSize, pixels),
	}
}

func resolutionQuality(pixels int64) string {
	switch {
	case pixels < 50_000:
		return "low"
	case pixels < 200_000:
		return "medium"
	case pixels < 1_000_000:
		return "high"
	default:
		return "very_high"
	}
}

func fileQuality(fileSize, pixels int64) string {
	var bpp float64
	if pixels > 0 {
		bpp = float64(fileSize) / float64(pixels)
	}
	switch {
	case bpp < 0.5:
		return "low"
	case bpp < 1.0:
		return "medium"
	case bpp < 2.0:
		return "high"
	default:
		return "very_high"
	}
}

// scoreRisk returns f extended with the deltas it applied and the clamped score.
func (a *Analyzer) scoreRisk(f Factors) (Factors, float64) {
	switch f.ResolutionQuality {
	case "low":
		f.QualityDelta = 0.1
	case "very_high":
		f.QualityDelta = -0.05
	}
	for _, rule := range riskKeywordRules {
		if containsAny(f.Filename, rule.keywords) {
			f.KeywordDelta += rule.delta
		}
	}
	f.Findings = Findings{
		Color:    tier(a.rnd.Float64(), []threshold{{0.8, 0.2}, {0.6, 0.1}}),
		Texture:  tier(a.rnd.Float64(), []threshold{{0.85, 0.25}, {0.7, 0.15}}),
		Border:   tier(a.rnd.Float64(), []threshold{{0.8, 0.3}, {0.6, 0.15}}),
		Symmetry: tier(a.rnd.Float64(), []threshold{{0.75, 0.2}, {0.5, 0.1}}),
		Size:     tier(a.rnd.Float64(), []threshold{{0.7, 0.1}}),
	}
	score := f.QualityDelta + f.KeywordDelta + f.Findings.total()
	return f, clamp(score, 0, 1)
}

type threshold struct {
	above float64
	delta float64
}

// tier maps a draw to the delta of the first threshold it exceeds.
func tier(draw float64, tiers []threshold) float64 {
	for _, t := range tiers {
		if draw > t.above {
			return t.delta
		}
	}
	return 0
}

func (a *Analyzer) classify(score float64, resolution string) (string, float64) {
	adjusted := score + a.uniform(-0.1, 0.1)

	var result string
	var confidence float64
	switch {
	case adjusted > 0.65:
		result = ResultMalignant
		confidence = a.uniform(80, 95)
	case adjusted > 0.35:
		result = ResultSuspicious
		confidence = a.uniform(70, 89)
	default:
		result = ResultBenign
		confidence = a.uniform(75, 99)
	}

	switch resolution {
	case "low":
		confidence -= 10
	case "very_high":
		confidence += 5
	}
	return result, round1(clamp(confidence, 65, 95))
}

func (a *Analyzer) detectCancerType(score float64, filename string) (CancerType, float64) {
	key := ""
	for _, rule := range typeKeywordRules {
		if containsAny(filename, rule.keywords) {
			key = rule.typeKey
			break
		}
	}
	if key == "" {
		key = typeForScore(score)
	}

	confidence := clamp(score*100, 65, 95) + a.uniform(-5, 5)
	return cancerTypes[key], round1(clamp(confidence, 60, 95))
}

func typeForScore(score float64) string {
	switch {
	case score > 0.9:
		return TypeMerkelCellCarcinoma
	case score > 0.8:
		return TypeMelanoma
	case score > 0.6:
		return TypeSquamousCellCarcinoma
	case score > 0.4:
		return TypeBasalCellCarcinoma
	case score > 0.2:
		return TypeActinicKeratosis
	case score > 0.1:
		return TypeSeborrheicKeratosis
	default:
		return TypeBenignMole
	}
}

func (a *Analyzer) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*a.rnd.Float64()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
