package analysis

import "strings"

// Classification results.
const (
	ResultBenign     = "benign"
	ResultSuspicious = "suspicious"
	ResultMalignant  = "malignant"
)

// Qualitative risk levels attached to a cancer type.
const (
	RiskNone     = "none"
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskVeryHigh = "very_high"
)

// Urgency levels, ordered from least to most severe.
const (
	UrgencyNone      = "none"
	UrgencyLow       = "low"
	UrgencyMedium    = "medium"
	UrgencyHigh      = "high"
	UrgencyImmediate = "immediate"
)

const (
	TypeMelanoma                = "melanoma"
	TypeBasalCellCarcinoma      = "basal_cell_carcinoma"
	TypeSquamousCellCarcinoma   = "squamous_cell_carcinoma"
	TypeMerkelCellCarcinoma     = "merkel_cell_carcinoma"
	TypeSebaceousGlandCarcinoma = "sebaceous_gland_carcinoma"
	TypeActinicKeratosis        = "actinic_keratosis"
	TypeSeborrheicKeratosis     = "seborrheic_keratosis"
	TypeBenignMole              = "benign_mole"
)

// CancerType is a fixed catalogue entry.
type CancerType struct {
	Key       string
	Name      string
	RiskLevel string
}

var cancerTypes = map[string]CancerType{
	TypeMelanoma:                {Key: TypeMelanoma, Name: "Melanoma", RiskLevel: RiskHigh},
	TypeBasalCellCarcinoma:      {Key: TypeBasalCellCarcinoma, Name: "Basal Cell Carcinoma", RiskLevel: RiskLow},
	TypeSquamousCellCarcinoma:   {Key: TypeSquamousCellCarcinoma, Name: "Squamous Cell Carcinoma", RiskLevel: RiskMedium},
	TypeMerkelCellCarcinoma:     {Key: TypeMerkelCellCarcinoma, Name: "Merkel Cell Carcinoma", RiskLevel: RiskVeryHigh},
	TypeSebaceousGlandCarcinoma: {Key: TypeSebaceousGlandCarcinoma, Name: "Sebaceous Gland Carcinoma", RiskLevel: RiskHigh},
	TypeActinicKeratosis:        {Key: TypeActinicKeratosis, Name: "Actinic Keratosis", RiskLevel: RiskLow},
	TypeSeborrheicKeratosis:     {Key: TypeSeborrheicKeratosis, Name: "Seborrheic Keratosis", RiskLevel: RiskNone},
	TypeBenignMole:              {Key: TypeBenignMole, Name: "Benign Mole", RiskLevel: RiskNone},
}

// LookupCancerType returns the catalogue entry for key.
func LookupCancerType(key string) (CancerType, bool) {
	ct, ok := cancerTypes[key]
	return ct, ok
}

// IsCancerType reports whether key names a catalogued type.
func IsCancerType(key string) bool {
	_, ok := cancerTypes[key]
	return ok
}

type keywordRule struct {
	keywords []string
	typeKey  string
}

// Checked in order; the first group with a match wins.
var typeKeywordRules = []keywordRule{
	{[]string{"merkel", "nerve", "fast", "aggressive"}, TypeMerkelCellCarcinoma},
	{[]string{"sebaceous", "eyelid", "gland", "yellow", "waxy"}, TypeSebaceousGlandCarcinoma},
	{[]string{"scaly", "rough", "patch"}, TypeSquamousCellCarcinoma},
	{[]string{"bump", "pearl", "waxy"}, TypeBasalCellCarcinoma},
	{[]string{"mole", "dark", "black", "brown"}, TypeMelanoma},
	{[]string{"keratosis", "scaly", "rough"}, TypeActinicKeratosis},
	{[]string{"seborrheic", "waxy", "stuck"}, TypeSeborrheicKeratosis},
}

type riskKeywordRule struct {
	keywords []string
	delta    float64
}

var riskKeywordRules = []riskKeywordRule{
	{[]string{"mole", "lesion", "spot"}, 0.15},
	{[]string{"suspicious", "concern", "worry"}, 0.25},
	{[]string{"urgent", "emergency", "cancer"}, 0.35},
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Recommendation is the advice attached to an assessment.
type Recommendation struct {
	ShouldConsult bool   `json:"should_consult"`
	Urgency       string `json:"urgency"`
	Message       string `json:"message"`
	Color         string `json:"color,omitempty"`
}

func recommendForType(ct CancerType) (Recommendation, bool) {
	switch ct.Key {
	case TypeMelanoma, TypeMerkelCellCarcinoma, TypeSebaceousGlandCarcinoma:
		return Recommendation{
			ShouldConsult: true,
			Urgency:       UrgencyImmediate,
			Message:       "URGENT: " + ct.Name + " detected - Consult a dermatologist immediately",
		}, true
	case TypeSquamousCellCarcinoma:
		return Recommendation{
			ShouldConsult: true,
			Urgency:       UrgencyHigh,
			Message:       "URGENT: " + ct.Name + " detected - Schedule immediate dermatologist consultation",
		}, true
	case TypeBasalCellCarcinoma:
		return Recommendation{
			ShouldConsult: true,
			Urgency:       UrgencyMedium,
			Message:       "RECOMMENDED: " + ct.Name + " detected - Schedule dermatologist appointment within 1-2 weeks",
		}, true
	case TypeActinicKeratosis:
		return Recommendation{
			ShouldConsult: true,
			Urgency:       UrgencyLow,
			Message:       "SUGGESTED: " + ct.Name + " detected - Consider routine dermatologist check-up",
		}, true
	case TypeSeborrheicKeratosis, TypeBenignMole:
		return Recommendation{
			ShouldConsult: false,
			Urgency:       UrgencyNone,
			Message:       ct.Name + " - No immediate concern, but regular skin checks are recommended",
		}, true
	}
	return Recommendation{}, false
}

// ResultRecommendation derives advice from the classification alone. It backs the
// doctor_recommendation field of stored uploads and is the fallback when no type is known.
func ResultRecommendation(result string, confidence float64) Recommendation {
	switch {
	case result == ResultMalignant:
		return Recommendation{
			ShouldConsult: true,
			Urgency:       UrgencyHigh,
			Message:       "URGENT: Consult a dermatologist immediately",
			Color:         "#F44336",
		}
	case result == ResultSuspicious:
		return Recommendation{
			ShouldConsult: true,
			Urgency:       UrgencyMedium,
			Message:       "RECOMMENDED: Schedule a dermatologist appointment within 1-2 weeks",
			Color:         "#FF9800",
		}
	case result == ResultBenign && confidence < 80:
		return Recommendation{
			ShouldConsult: true,
			Urgency:       UrgencyLow,
			Message:       "SUGGESTED: Consider a routine check-up for peace of mind",
			Color:         "#2196F3",
		}
	default:
		return Recommendation{
			ShouldConsult: false,
			Urgency:       UrgencyNone,
			Message:       "No immediate concern, but regular skin checks are always recommended",
			Color:         "#4CAF50",
		}
	}
}

// Recommend picks the type-specific advice and falls back to the result tier.
func Recommend(result string, confidence float64, typeKey string) Recommendation {
	if ct, ok := LookupCancerType(typeKey); ok {
		if rec, ok := recommendForType(ct); ok {
			return rec
		}
	}
	rec := ResultRecommendation(result, confidence)
	rec.Color = ""
	return rec
}
