package interpret

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/verdant-ai/verdant/pkg/models"
)

// Enum is a closed value set with spelling aliases and a default.
type Enum struct {
	Values  []string
	Aliases map[string]string
	Default string
}

var enumCut = regexp.MustCompile(`\s*(?:[(,.;:/]|\s-\s|\s–\s).*$`)

// Normalize maps raw onto the set. Anything outside it yields the default.
func (e Enum) Normalize(raw string) string {
	s := strings.ToLower(clean(raw))
	s = strings.TrimSpace(enumCut.ReplaceAllString(s, ""))
	if s == "" {
		return e.Default
	}
	// Longest leading phrase wins, so "highly toxic to cats" is read as
	// "highly toxic" before "highly".
	words := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' || r == '_' })
	for n := len(words); n > 0; n-- {
		if v, ok := e.lookup(strings.Join(words[:n], " ")); ok {
			return v
		}
	}
	return e.Default
}

func (e Enum) lookup(s string) (string, bool) {
	key := strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for _, v := range e.Values {
		if key == v {
			return v, true
		}
	}
	if v, ok := e.Aliases[s]; ok {
		return v, true
	}
	if v, ok := e.Aliases[key]; ok {
		return v, true
	}
	return "", false
}

var (
	toxicityEnum = Enum{
		Values: []string{models.ToxicitySafe, models.ToxicityMild, models.ToxicityModerate, models.ToxicitySevere},
		Aliases: map[string]string{
			"non-toxic": models.ToxicitySafe, "nontoxic": models.ToxicitySafe, "non_toxic": models.ToxicitySafe,
			"not toxic": models.ToxicitySafe, "pet safe": models.ToxicitySafe, "pet-safe": models.ToxicitySafe,
			"none": models.ToxicitySafe,
			"mildly toxic": models.ToxicityMild, "low": models.ToxicityMild, "slightly toxic": models.ToxicityMild,
			"toxic": models.ToxicityModerate, "medium": models.ToxicityModerate, "moderately toxic": models.ToxicityModerate,
			"highly toxic": models.ToxicitySevere, "very toxic": models.ToxicitySevere, "high": models.ToxicitySevere,
			"severely toxic": models.ToxicitySevere, "poisonous": models.ToxicitySevere,
		},
		Default: models.ToxicityMild,
	}
	difficultyEnum = Enum{
		Values: []string{models.DifficultyEasy, models.DifficultyModerate, models.DifficultyHard},
		Aliases: map[string]string{
			"beginner": models.DifficultyEasy, "low": models.DifficultyEasy, "simple": models.DifficultyEasy,
			"medium": models.DifficultyModerate, "intermediate": models.DifficultyModerate,
			"difficult": models.DifficultyHard, "expert": models.DifficultyHard, "advanced": models.DifficultyHard,
			"high": models.DifficultyHard, "challenging": models.DifficultyHard,
		},
		Default: models.DifficultyModerate,
	}
	growthEnum = Enum{
		Values: []string{models.GrowthSlow, models.GrowthModerate, models.GrowthFast},
		Aliases: map[string]string{
			"medium": models.GrowthModerate, "average": models.GrowthModerate,
			"rapid": models.GrowthFast, "quick": models.GrowthFast, "vigorous": models.GrowthFast,
			"slow_growing": models.GrowthSlow, "fast_growing": models.GrowthFast,
		},
		Default: models.GrowthModerate,
	}
	careStatusEnum = Enum{
		Values: []string{models.CareStatusHealthy, models.CareStatusNeedsAttention, models.CareStatusCritical},
		Aliases: map[string]string{
			"good": models.CareStatusHealthy, "thriving": models.CareStatusHealthy, "excellent": models.CareStatusHealthy,
			"attention": models.CareStatusNeedsAttention, "fair": models.CareStatusNeedsAttention,
			"stressed": models.CareStatusNeedsAttention, "unhealthy": models.CareStatusNeedsAttention,
			"needs": models.CareStatusNeedsAttention, "warning": models.CareStatusNeedsAttention,
			"severe": models.CareStatusCritical, "dying": models.CareStatusCritical, "poor": models.CareStatusCritical,
		},
		Default: models.CareStatusNeedsAttention,
	}
	severityEnum = Enum{
		Values: []string{models.LevelLow, models.LevelMedium, models.LevelHigh},
		Aliases: map[string]string{
			"mild": models.LevelLow, "minor": models.LevelLow,
			"moderate": models.LevelMedium,
			"severe": models.LevelHigh, "serious": models.LevelHigh, "critical": models.LevelHigh,
		},
		Default: models.LevelMedium,
	}
	urgencyEnum = Enum{
		Values: []string{models.LevelLow, models.LevelMedium, models.LevelHigh},
		Aliases: map[string]string{
			"none": models.LevelLow, "routine": models.LevelLow,
			"moderate": models.LevelMedium, "soon": models.LevelMedium,
			"immediate": models.LevelHigh, "urgent": models.LevelHigh, "critical": models.LevelHigh,
		},
		Default: models.LevelMedium,
	}
)

var number = regexp.MustCompile(`\d{1,3}(?:\.\d+)?`)

// ParseConfidence reads the first number in raw as a percentage and clamps
// it. Fractions such as 0.87 are read as 87.
func ParseConfidence(raw string) int {
	m := number.FindString(raw)
	if m == "" {
		return models.ConfidenceFloor
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return models.ConfidenceFloor
	}
	if f > 0 && f <= 1 && strings.Contains(m, ".") && !strings.Contains(raw, "%") {
		f *= 100
	}
	return ClampConfidence(int(math.Round(f)))
}

// ClampConfidence raises scores below the floor and caps them at 100.
func ClampConfidence(n int) int {
	if n < models.ConfidenceFloor {
		return models.ConfidenceFloor
	}
	if n > models.ConfidenceCeiling {
		return models.ConfidenceCeiling
	}
	return n
}

// minListItem is the shortest fragment kept in a list field.
const minListItem = 4

var (
	listSplit  = regexp.MustCompile(`[;\n•|]`)
	listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
	commaSplit = regexp.MustCompile(`,\s*`)
)

// SplitList splits raw on delimiters, trims list markers and drops fragments
// that are empty or too short. A single comma-separated line is split on commas.
func SplitList(raw string) []string {
	frags := listSplit.Split(raw, -1)
	if len(frags) == 1 {
		frags = commaSplit.Split(raw, -1)
	}
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		f = clean(listMarker.ReplaceAllString(f, ""))
		f = strings.TrimSuffix(f, ".")
		if len([]rune(f)) < minListItem {
			continue
		}
		out = append(out, f)
	}
	return out
}
