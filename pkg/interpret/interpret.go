package interpret

import (
	"regexp"
	"strings"

	"github.com/verdant-ai/verdant/pkg/models"
)

// Defaults applied when no matcher captures a value.
const (
	DefaultPlantName   = "Unknown Plant"
	DefaultScientific  = "Unknown"
	DefaultFamily      = "Unknown"
	DefaultDescription = "No description available."
	DefaultLight       = "Bright, indirect light"
	DefaultWater       = "Water when the top inch of soil feels dry"
	DefaultHumidity    = "Average household humidity"
	DefaultTemperature = "18-27°C (65-80°F)"
	DefaultCondition   = "Undetermined condition"
	DefaultSummary     = "The plant's condition could not be determined from this photo."
	DefaultReply       = "I couldn't find an answer to that. Try rephrasing the question or sending a clearer photo."
	maxNameLen         = 80
)

var (
	defaultCareTips = []string{
		"Check soil moisture before watering",
		"Keep away from cold drafts",
		"Wipe leaves occasionally to remove dust",
	}
	defaultIssues = []string{
		"No specific issue could be identified",
	}
	defaultRecommendations = []string{
		"Monitor the plant over the next few days",
		"Review light and watering conditions",
	}
	defaultSuggestions = []string{
		"How often should I water it?",
		"How much light does it need?",
		"Is it safe for pets?",
	}
)

var stop = `(?:\s*\(|[.,;!\n]|\s+(?:which|with|and|that)\b|$)`

var (
	plantName = Field{Name: "name", Matchers: []Matcher{
		Label("Plant", "Plant Name", "Common Name", "Name", "Identified Plant", "Identification"),
		Phrase(`(?i)(?:this|it|the plant)\s+(?:appears|seems|looks)\s+to\s+be\s+(?:an?\s+|the\s+)?([a-z][a-z' -]{1,60}?)` + stop),
		Phrase(`(?i)identified\s+as\s+(?:an?\s+|the\s+)?([a-z][a-z' -]{1,60}?)` + stop),
	}}
	scientificName = Field{Name: "scientific_name", Matchers: []Matcher{
		Label("Scientific Name", "Botanical Name", "Latin Name", "Species"),
		Phrase(`(?i)scientifically\s+known\s+as\s+([a-z]+\s+[a-z]+)`),
		Phrase(`\(([A-Z][a-z]+\s+[a-z]+)\)`),
	}}
	family = Field{Name: "family", Matchers: []Matcher{
		Label("Family", "Plant Family"),
		Phrase(`(?i)\b(?:in|of|from)\s+the\s+([A-Z][a-z]+aceae)\b`),
		Phrase(`\b([A-Z][a-z]+aceae)\b`),
	}}
	confidenceField = Field{Name: "confidence", Matchers: []Matcher{
		Label("Confidence", "Confidence Level", "Certainty"),
		Phrase(`(?i)(\d{1,3}(?:\.\d+)?\s*%)\s*(?:confiden|certain|sure|match)`),
		Phrase(`(?i)confiden\w*\s+(?:of|is|at|level\s+of)?\s*(\d{1,3}(?:\.\d+)?\s*%?)`),
	}}
	description = Field{Name: "description", Matchers: []Matcher{
		Label("Description", "About", "Overview"),
	}}
	toxicity = Field{Name: "toxicity", Matchers: []Matcher{
		Label("Toxicity", "Toxicity Level", "Pet Safety", "Toxic"),
		Phrase(`(?i)\b(non-toxic|not toxic|mildly toxic|slightly toxic|highly toxic|very toxic|severely toxic|toxic)\b`),
	}}
	difficulty = Field{Name: "difficulty", Matchers: []Matcher{
		Label("Difficulty", "Care Difficulty", "Care Level"),
		Phrase(`(?i)\b(easy|moderate|hard|difficult)\s+to\s+(?:care\s+for|grow|maintain)\b`),
	}}
	growthRate = Field{Name: "growth_rate", Matchers: []Matcher{
		Label("Growth Rate", "Growth"),
		Phrase(`(?i)\b(slow|moderate|fast|rapid)(?:ly)?[\s-]+grow`),
	}}
	light = Field{Name: "light", Matchers: []Matcher{
		Label("Light", "Light Needs", "Light Requirements", "Sunlight"),
	}}
	water = Field{Name: "water", Matchers: []Matcher{
		Label("Water", "Watering", "Water Needs"),
	}}
	humidity = Field{Name: "humidity", Matchers: []Matcher{
		Label("Humidity"),
	}}
	temperature = Field{Name: "temperature", Matchers: []Matcher{
		Label("Temperature", "Temperature Range"),
	}}
	careTips = Field{Name: "care_tips", Matchers: []Matcher{
		Section("Care Tips", "Tips", "Care Instructions"),
	}}
	notes = Field{Name: "notes", Matchers: []Matcher{
		Label("Notes", "Note"),
	}}

	condition = Field{Name: "condition", Matchers: []Matcher{
		Label("Condition", "Diagnosis", "Problem", "Disease"),
		Phrase(`(?i)(?:suffering\s+from|signs\s+of|affected\s+by)\s+(?:an?\s+)?([a-z][a-z' -]{2,60}?)` + stop),
	}}
	careStatus = Field{Name: "care_status", Matchers: []Matcher{
		Label("Status", "Care Status", "Health Status", "Health"),
		Phrase(`(?i)\b(healthy|needs attention|critical)\b`),
	}}
	severity = Field{Name: "severity", Matchers: []Matcher{
		Label("Severity"),
		Phrase(`(?i)\b(mild|minor|moderate|severe|serious)\b`),
	}}
	urgency = Field{Name: "urgency", Matchers: []Matcher{
		Label("Urgency", "Priority"),
		Phrase(`(?i)\b(immediate(?:ly)?|urgent(?:ly)?)\b`),
	}}
	summary = Field{Name: "summary", Matchers: []Matcher{
		Label("Summary", "Assessment", "Overview"),
	}}
	issues = Field{Name: "issues", Matchers: []Matcher{
		Section("Issues", "Problems", "Symptoms"),
	}}
	recommendations = Field{Name: "recommendations", Matchers: []Matcher{
		Section("Recommendations", "Treatment", "Actions", "Next Steps"),
		Phrase(`(?im)^\s*(?:i\s+recommend|you\s+should|try\s+to)\s+(.+)$`),
	}}

	answer = Field{Name: "reply", Matchers: []Matcher{
		Phrase(`(?is)answer\s*\**\s*:\s*\**\s*(.*?)(?:\n[\s*#]*(?:suggestions?|follow[\s-]*up(?:\s+questions)?)\s*\**\s*:|$)`),
		MatcherFunc(func(text string) (string, bool) {
			loc := suggestionsLabel.FindStringIndex(text)
			if loc != nil {
				text = text[:loc[0]]
			}
			return text, strings.TrimSpace(text) != ""
		}),
	}}
	suggestions = Field{Name: "suggestions", Matchers: []Matcher{
		Section("Suggestions", "Follow-up Questions", "Follow up"),
	}}
)

var suggestionsLabel = regexp.MustCompile(`(?im)^[\s*#]*(?:suggestions?|follow[\s-]*up(?:\s+questions)?)\s*\**\s*:`)

// Parse converts raw provider text into a profile for feature. It never
// fails: every field falls back to its default, enums stay in their sets and
// confidence is clamped.
func Parse(raw string, feature models.Feature) models.Profile {
	p := models.Profile{Feature: feature}
	switch feature {
	case models.FeatureDiagnose:
		p.Diagnosis = parseDiagnosis(raw)
	case models.FeatureChat:
		p.Chat = parseChat(raw)
	default:
		p.Feature = models.FeatureIdentify
		p.Plant = parsePlant(raw)
	}
	return p
}

func parsePlant(raw string) *models.PlantProfile {
	name, sci := splitName(text(plantName, raw, DefaultPlantName))
	if v, ok := scientificName.Extract(raw); ok {
		sci = v
	}
	if sci == "" {
		sci = DefaultScientific
	}
	return &models.PlantProfile{
		Name:           name,
		ScientificName: sci,
		Family:         text(family, raw, DefaultFamily),
		Confidence:     confidence(raw),
		Description:    text(description, raw, DefaultDescription),
		Toxicity:       enum(toxicity, raw, toxicityEnum),
		Difficulty:     enum(difficulty, raw, difficultyEnum),
		GrowthRate:     enum(growthRate, raw, growthEnum),
		Light:          text(light, raw, DefaultLight),
		Water:          text(water, raw, DefaultWater),
		Humidity:       text(humidity, raw, DefaultHumidity),
		Temperature:    text(temperature, raw, DefaultTemperature),
		CareTips:       list(careTips, raw, defaultCareTips),
		Notes:          text(notes, raw, ""),
	}
}

func parseDiagnosis(raw string) *models.DiagnosisProfile {
	return &models.DiagnosisProfile{
		Condition:       text(condition, raw, DefaultCondition),
		Confidence:      confidence(raw),
		CareStatus:      enum(careStatus, raw, careStatusEnum),
		Severity:        enum(severity, raw, severityEnum),
		Urgency:         enum(urgency, raw, urgencyEnum),
		Summary:         text(summary, raw, DefaultSummary),
		Issues:          list(issues, raw, defaultIssues),
		Recommendations: list(recommendations, raw, defaultRecommendations),
		Notes:           text(notes, raw, ""),
	}
}

func parseChat(raw string) *models.ChatReply {
	return &models.ChatReply{
		Reply:       text(answer, raw, DefaultReply),
		Suggestions: list(suggestions, raw, defaultSuggestions),
	}
}

func text(f Field, raw, def string) string {
	if v, ok := f.Extract(raw); ok {
		return v
	}
	return def
}

func enum(f Field, raw string, e Enum) string {
	if v, ok := f.Extract(raw); ok {
		return e.Normalize(v)
	}
	return e.Default
}

func list(f Field, raw string, def []string) []string {
	if v, ok := f.Extract(raw); ok {
		if items := SplitList(v); len(items) > 0 {
			return items
		}
	}
	return append([]string(nil), def...)
}

func confidence(raw string) int {
	if v, ok := confidenceField.Extract(raw); ok {
		return ParseConfidence(v)
	}
	return models.ConfidenceFloor
}

var trailingBinomial = regexp.MustCompile(`^(.*?)\s*\(([^)]*)\)\s*$`)

// splitName separates "Pothos (Epipremnum aureum)" into its parts.
func splitName(v string) (name, scientific string) {
	if m := trailingBinomial.FindStringSubmatch(v); m != nil && m[1] != "" {
		name, scientific = m[1], strings.TrimSpace(m[2])
	} else {
		name = v
	}
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if r := []rune(name); len(r) > maxNameLen {
		name = strings.TrimSpace(string(r[:maxNameLen]))
	}
	if name == "" {
		name = DefaultPlantName
	}
	return name, scientific
}
