// Package fallback synthesizes placeholder provider text when every live
// endpoint has failed. Output uses the same labeled format the providers are
// prompted for, so it flows through the interpreter like a real answer.
package fallback

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/verdant-ai/verdant/pkg/models"
)

// Notice is attached to every synthesized profile.
const Notice = "Offline estimate: the identification service could not be reached, so this is a placeholder based on common houseplants. Try again later for a real result."

// Plant is one catalog entry.
type Plant struct {
	Name        string
	Scientific  string
	Family      string
	Description string
	Toxicity    string
	Difficulty  string
	Growth      string
	Light       string
	Water       string
	Humidity    string
	Temperature string
	Tips        []string
}

// Catalog is the fixed set fallback identifications are drawn from.
var Catalog = []Plant{
	{
		Name:        "Pothos",
		Scientific:  "Epipremnum aureum",
		Family:      "Araceae",
		Description: "A trailing vine with heart-shaped leaves that tolerates a wide range of conditions.",
		Toxicity:    models.ToxicityMild,
		Difficulty:  models.DifficultyEasy,
		Growth:      models.GrowthFast,
		Light:       "Low to bright indirect light",
		Water:       "Water when the top 2-3 cm of soil is dry",
		Humidity:    "Average household humidity",
		Temperature: "18-29°C (65-85°F)",
		Tips:        []string{"Trim leggy vines to encourage bushier growth", "Avoid waterlogged soil", "Propagate cuttings in water"},
	},
	{
		Name:        "Snake Plant",
		Scientific:  "Dracaena trifasciata",
		Family:      "Asparagaceae",
		Description: "An upright succulent with stiff, sword-shaped leaves that stores water in its foliage.",
		Toxicity:    models.ToxicityMild,
		Difficulty:  models.DifficultyEasy,
		Growth:      models.GrowthSlow,
		Light:       "Low to bright indirect light",
		Water:       "Water every 2-4 weeks, letting soil dry fully",
		Humidity:    "Low humidity is fine",
		Temperature: "15-29°C (60-85°F)",
		Tips:        []string{"Use a free-draining cactus mix", "Water less in winter", "Repot only when root-bound"},
	},
	{
		Name:        "Monstera",
		Scientific:  "Monstera deliciosa",
		Family:      "Araceae",
		Description: "A tropical climber known for large, split leaves.",
		Toxicity:    models.ToxicityModerate,
		Difficulty:  models.DifficultyModerate,
		Growth:      models.GrowthFast,
		Light:       "Bright, indirect light",
		Water:       "Water when the top 5 cm of soil is dry",
		Humidity:    "60% or higher",
		Temperature: "18-30°C (65-86°F)",
		Tips:        []string{"Provide a moss pole for support", "Rotate monthly for even growth", "Wipe leaves to remove dust"},
	},
	{
		Name:        "Spider Plant",
		Scientific:  "Chlorophytum comosum",
		Family:      "Asparagaceae",
		Description: "A clumping plant with arching striped leaves that produces hanging plantlets.",
		Toxicity:    models.ToxicitySafe,
		Difficulty:  models.DifficultyEasy,
		Growth:      models.GrowthFast,
		Light:       "Bright, indirect light",
		Water:       "Keep soil lightly moist",
		Humidity:    "Average household humidity",
		Temperature: "13-27°C (55-80°F)",
		Tips:        []string{"Use filtered water to avoid brown tips", "Pot up plantlets once they root", "Feed monthly in summer"},
	},
	{
		Name:        "Peace Lily",
		Scientific:  "Spathiphyllum wallisii",
		Family:      "Araceae",
		Description: "A shade-tolerant plant with glossy leaves and white spathe flowers.",
		Toxicity:    models.ToxicityModerate,
		Difficulty:  models.DifficultyEasy,
		Growth:      models.GrowthModerate,
		Light:       "Medium to low indirect light",
		Water:       "Water when leaves begin to droop slightly",
		Humidity:    "Above average humidity",
		Temperature: "18-27°C (65-80°F)",
		Tips:        []string{"Keep away from cold drafts", "Remove spent flowers at the base", "Mist leaves in dry weather"},
	},
	{
		Name:        "ZZ Plant",
		Scientific:  "Zamioculcas zamiifolia",
		Family:      "Araceae",
		Description: "A drought-tolerant plant with waxy leaflets growing from underground rhizomes.",
		Toxicity:    models.ToxicityModerate,
		Difficulty:  models.DifficultyEasy,
		Growth:      models.GrowthSlow,
		Light:       "Low to bright indirect light",
		Water:       "Water every 2-3 weeks",
		Humidity:    "Average household humidity",
		Temperature: "15-26°C (60-79°F)",
		Tips:        []string{"Let soil dry out completely between waterings", "Wear gloves when repotting", "Dust leaves occasionally"},
	},
}

// Generator produces deterministic placeholder text.
type Generator struct {
	catalog []Plant
}

// New returns a Generator over catalog, or the built-in Catalog when empty.
func New(catalog ...Plant) *Generator {
	if len(catalog) == 0 {
		catalog = Catalog
	}
	return &Generator{catalog: catalog}
}

// Pick returns the catalog entry for fingerprint. The same fingerprint always
// yields the same plant.
func (g *Generator) Pick(fingerprint string) Plant {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fingerprint))
	return g.catalog[h.Sum32()%uint32(len(g.catalog))]
}

// Text returns placeholder provider text for feature.
func (g *Generator) Text(fingerprint string, feature models.Feature) string {
	switch feature {
	case models.FeatureDiagnose:
		return diagnoseText()
	case models.FeatureChat:
		return chatText()
	default:
		return g.identifyText(g.Pick(fingerprint))
	}
}

func (g *Generator) identifyText(p Plant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plant: %s\n", p.Name)
	fmt.Fprintf(&b, "Scientific Name: %s\n", p.Scientific)
	fmt.Fprintf(&b, "Family: %s\n", p.Family)
	fmt.Fprintf(&b, "Confidence: %d%%\n", models.ConfidenceFloor)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	fmt.Fprintf(&b, "Toxicity: %s\n", p.Toxicity)
	fmt.Fprintf(&b, "Difficulty: %s\n", p.Difficulty)
	fmt.Fprintf(&b, "Growth Rate: %s\n", p.Growth)
	fmt.Fprintf(&b, "Light: %s\n", p.Light)
	fmt.Fprintf(&b, "Water: %s\n", p.Water)
	fmt.Fprintf(&b, "Humidity: %s\n", p.Humidity)
	fmt.Fprintf(&b, "Temperature: %s\n", p.Temperature)
	fmt.Fprintf(&b, "Care Tips: %s\n", strings.Join(p.Tips, "; "))
	fmt.Fprintf(&b, "Notes: %s\n", Notice)
	return b.String()
}

func diagnoseText() string {
	return "Condition: Assessment unavailable\n" +
		fmt.Sprintf("Confidence: %d%%\n", models.ConfidenceFloor) +
		"Status: needs attention\n" +
		"Severity: low\n" +
		"Urgency: low\n" +
		"Summary: The health check could not be completed. Look for common stress signs while you wait.\n" +
		"Issues: Check for yellowing or browning leaves; Check soil for persistent wetness or dryness; Inspect leaf undersides for pests\n" +
		"Recommendations: Water only when the topsoil is dry; Move the plant out of direct midday sun; Retry the diagnosis later\n" +
		"Notes: " + Notice + "\n"
}

func chatText() string {
	return "Answer: I can't reach the plant expert right now. Most houseplants do well with bright indirect light and soil that dries slightly between waterings.\n" +
		"Suggestions: How often should I water it?; Does it need more light?; Is it safe for pets?\n"
}
