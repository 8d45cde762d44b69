package models

import "time"

// Source tells how a profile was obtained.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
	SourceCache    Source = "cache"
)

// Enumerated profile attributes. The interpreter never produces values outside these sets.
const (
	ToxicitySafe     = "safe"
	ToxicityMild     = "mild"
	ToxicityModerate = "moderate"
	ToxicitySevere   = "severe"

	DifficultyEasy     = "easy"
	DifficultyModerate = "moderate"
	DifficultyHard     = "hard"

	GrowthSlow     = "slow"
	GrowthModerate = "moderate"
	GrowthFast     = "fast"

	CareStatusHealthy        = "healthy"
	CareStatusNeedsAttention = "needs_attention"
	CareStatusCritical       = "critical"

	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Confidence bounds. Scores below the floor are raised to it, never surfaced.
const (
	ConfidenceFloor   = 50
	ConfidenceCeiling = 100
)

// PlantProfile is the typed result of an identification.
type PlantProfile struct {
	Name           string   `json:"name"`
	ScientificName string   `json:"scientific_name"`
	Family         string   `json:"family"`
	Confidence     int      `json:"confidence"`
	Description    string   `json:"description"`
	Toxicity       string   `json:"toxicity"`
	Difficulty     string   `json:"difficulty"`
	GrowthRate     string   `json:"growth_rate"`
	Light          string   `json:"light"`
	Water          string   `json:"water"`
	Humidity       string   `json:"humidity"`
	Temperature    string   `json:"temperature"`
	CareTips       []string `json:"care_tips"`
	Notes          string   `json:"notes,omitempty"`
}

// DiagnosisProfile is the typed result of a health diagnosis.
type DiagnosisProfile struct {
	Condition       string   `json:"condition"`
	Confidence      int      `json:"confidence"`
	CareStatus      string   `json:"care_status"`
	Severity        string   `json:"severity"`
	Urgency         string   `json:"urgency"`
	Summary         string   `json:"summary"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
	Notes           string   `json:"notes,omitempty"`
}

// ChatReply is the typed result of a free-form question about an image.
type ChatReply struct {
	Reply       string   `json:"reply"`
	Suggestions []string `json:"suggestions"`
}

// Profile is the cached payload: exactly one of Plant, Diagnosis or Chat is set,
// matching Feature.
type Profile struct {
	Feature    Feature           `json:"feature"`
	Fallback   bool              `json:"fallback"`
	Plant      *PlantProfile     `json:"plant,omitempty"`
	Diagnosis  *DiagnosisProfile `json:"diagnosis,omitempty"`
	Chat       *ChatReply        `json:"chat,omitempty"`
	ResolvedAt time.Time         `json:"resolved_at"`
}
