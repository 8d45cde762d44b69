package interpret

import (
	"reflect"
	"strings"
	"testing"

	"github.com/verdant-ai/verdant/pkg/models"
)

func TestParseLabeledIdentify(t *testing.T) {
	raw := "Plant: Pothos\nConfidence: 87%\nToxicity: mild"
	p := Parse(raw, models.FeatureIdentify)
	if p.Plant == nil {
		t.Fatal("expected plant profile")
	}
	if p.Plant.Name != "Pothos" {
		t.Errorf("expected Pothos, got %q", p.Plant.Name)
	}
	if p.Plant.Confidence != 87 {
		t.Errorf("expected 87, got %d", p.Plant.Confidence)
	}
	if p.Plant.Toxicity != models.ToxicityMild {
		t.Errorf("expected mild, got %q", p.Plant.Toxicity)
	}
	if p.Plant.Difficulty != models.DifficultyModerate {
		t.Errorf("unlabeled difficulty should default to moderate, got %q", p.Plant.Difficulty)
	}
}

func TestParseQualifiedToxicity(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"Highly toxic to cats and dogs", models.ToxicitySevere},
		{"Moderately toxic if ingested", models.ToxicityModerate},
		{"Non toxic to pets", models.ToxicitySafe},
		{"Not toxic to cats or dogs", models.ToxicitySafe},
	}
	for _, tt := range tests {
		p := Parse("Plant: Lily\nToxicity: "+tt.value, models.FeatureIdentify)
		if p.Plant.Toxicity != tt.want {
			t.Errorf("Toxicity %q parsed as %q, want %q", tt.value, p.Plant.Toxicity, tt.want)
		}
	}
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	for _, raw := range []string{"", "   \n\t"} {
		p := Parse(raw, models.FeatureIdentify)
		got := p.Plant
		if got.Name != DefaultPlantName {
			t.Errorf("expected default name, got %q", got.Name)
		}
		if got.Confidence != models.ConfidenceFloor {
			t.Errorf("expected confidence %d, got %d", models.ConfidenceFloor, got.Confidence)
		}
		if got.Toxicity != models.ToxicityMild || got.GrowthRate != models.GrowthModerate {
			t.Errorf("unexpected enum defaults: %+v", got)
		}
		if len(got.CareTips) == 0 {
			t.Error("expected default care tips")
		}
	}
}

func TestParseFullResponse(t *testing.T) {
	raw := `**Plant:** Monstera (Monstera deliciosa)
**Family:** Araceae
**Confidence:** 92%
**Description:** A tropical climber with split leaves.
**Toxicity:** Moderate (calcium oxalate crystals)
**Difficulty:** Easy
**Growth Rate:** Fast
**Light:** Bright, indirect
**Water:** Every 1-2 weeks
**Humidity:** 60% or higher
**Temperature:** 18-30°C
**Care Tips:**
- Rotate monthly for even growth
- Provide a moss pole
- Wipe leaves`

	p := Parse(raw, models.FeatureIdentify).Plant
	if p.Name != "Monstera" || p.ScientificName != "Monstera deliciosa" {
		t.Errorf("unexpected names: %q / %q", p.Name, p.ScientificName)
	}
	if p.Family != "Araceae" {
		t.Errorf("expected Araceae, got %q", p.Family)
	}
	if p.Confidence != 92 {
		t.Errorf("expected 92, got %d", p.Confidence)
	}
	if p.Toxicity != models.ToxicityModerate || p.Difficulty != models.DifficultyEasy || p.GrowthRate != models.GrowthFast {
		t.Errorf("unexpected enums: %s %s %s", p.Toxicity, p.Difficulty, p.GrowthRate)
	}
	if p.Humidity != "60% or higher" {
		t.Errorf("unexpected humidity %q", p.Humidity)
	}
	want := []string{"Rotate monthly for even growth", "Provide a moss pole", "Wipe leaves"}
	if !reflect.DeepEqual(p.CareTips, want) {
		t.Errorf("care tips = %q, want %q", p.CareTips, want)
	}
}

func TestParsePhraseFallback(t *testing.T) {
	raw := "This appears to be a Snake Plant (Dracaena trifasciata), a member of the Asparagaceae family. " +
		"I'm about 80% confident. It is non-toxic to humans but mildly irritating to cats."
	p := Parse(raw, models.FeatureIdentify).Plant
	if p.Name != "Snake Plant" {
		t.Errorf("expected Snake Plant, got %q", p.Name)
	}
	if p.ScientificName != "Dracaena trifasciata" {
		t.Errorf("expected binomial from parentheses, got %q", p.ScientificName)
	}
	if p.Family != "Asparagaceae" {
		t.Errorf("expected family from prose, got %q", p.Family)
	}
	if p.Confidence != 80 {
		t.Errorf("expected 80, got %d", p.Confidence)
	}
	if p.Toxicity != models.ToxicitySafe {
		t.Errorf("expected safe, got %q", p.Toxicity)
	}
}

func TestConfidenceClamp(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"Confidence: 130%", 100},
		{"Confidence: 5%", 50},
		{"Confidence: 0%", 50},
		{"Confidence: 50%", 50},
		{"Confidence: 100", 100},
		{"Confidence: 0.87", 87},
		{"Confidence: 87.6%", 88},
		{"Confidence: high", 50},
	}
	for _, tt := range tests {
		if got := Parse(tt.raw, models.FeatureIdentify).Plant.Confidence; got != tt.want {
			t.Errorf("%q: got %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestEnumNeverEscapesSet(t *testing.T) {
	allowed := map[string]bool{
		models.ToxicitySafe: true, models.ToxicityMild: true,
		models.ToxicityModerate: true, models.ToxicitySevere: true,
	}
	for _, v := range []string{"Purple", "non-toxic", "Highly toxic to cats", "SEVERE", "7/10", "unknown", ""} {
		got := Parse("Toxicity: "+v, models.FeatureIdentify).Plant.Toxicity
		if !allowed[got] {
			t.Errorf("%q produced %q outside the toxicity set", v, got)
		}
	}
}

func TestEnumNormalize(t *testing.T) {
	tests := []struct {
		enum Enum
		raw  string
		want string
	}{
		{toxicityEnum, "Non-Toxic", models.ToxicitySafe},
		{toxicityEnum, "highly toxic", models.ToxicitySevere},
		{toxicityEnum, "Safe for pets", models.ToxicitySafe},
		{toxicityEnum, "glowing", models.ToxicityMild},
		{toxicityEnum, "Highly toxic to cats and dogs", models.ToxicitySevere},
		{toxicityEnum, "Moderately toxic if ingested", models.ToxicityModerate},
		{toxicityEnum, "Non toxic to pets", models.ToxicitySafe},
		{toxicityEnum, "Not toxic to cats or dogs", models.ToxicitySafe},
		{toxicityEnum, "Mildly toxic to pets", models.ToxicityMild},
		{difficultyEnum, "Beginner friendly", models.DifficultyEasy},
		{difficultyEnum, "Beginner", models.DifficultyEasy},
		{growthEnum, "Slow - a few leaves a year", models.GrowthSlow},
		{careStatusEnum, "Needs Attention", models.CareStatusNeedsAttention},
		{careStatusEnum, "needs-attention", models.CareStatusNeedsAttention},
		{severityEnum, "Severe", models.LevelHigh},
		{urgencyEnum, "Immediate", models.LevelHigh},
	}
	for _, tt := range tests {
		if got := tt.enum.Normalize(tt.raw); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"Water weekly; Mist leaves; ok", []string{"Water weekly", "Mist leaves"}},
		{"1. Repot in spring\n2) Use well-draining soil", []string{"Repot in spring", "Use well-draining soil"}},
		{"• Bright light • Low water", []string{"Bright light", "Low water"}},
		{"Prune dead leaves, rotate pot, feed monthly", []string{"Prune dead leaves", "rotate pot", "feed monthly"}},
		{"a; b", []string{}},
	}
	for _, tt := range tests {
		got := SplitList(tt.raw)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitList(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseDiagnosis(t *testing.T) {
	raw := `Condition: Root rot
Confidence: 74%
Status: Critical
Severity: high
Urgency: immediate
Summary: Overwatering has damaged the roots.
Issues: Yellowing lower leaves; Mushy stem base
Recommendations:
- Remove from pot and trim black roots
- Repot in fresh, dry soil
- Water only when the top 5cm is dry`

	d := Parse(raw, models.FeatureDiagnose).Diagnosis
	if d == nil {
		t.Fatal("expected diagnosis profile")
	}
	if d.Condition != "Root rot" || d.Confidence != 74 {
		t.Errorf("unexpected condition/confidence: %q %d", d.Condition, d.Confidence)
	}
	if d.CareStatus != models.CareStatusCritical || d.Severity != models.LevelHigh || d.Urgency != models.LevelHigh {
		t.Errorf("unexpected enums: %s %s %s", d.CareStatus, d.Severity, d.Urgency)
	}
	if len(d.Issues) != 2 {
		t.Errorf("expected 2 issues, got %q", d.Issues)
	}
	if len(d.Recommendations) != 3 {
		t.Errorf("expected 3 recommendations, got %q", d.Recommendations)
	}
}

func TestParseDiagnosisDefaults(t *testing.T) {
	d := Parse("", models.FeatureDiagnose).Diagnosis
	if d.CareStatus != models.CareStatusNeedsAttention || d.Severity != models.LevelMedium || d.Urgency != models.LevelMedium {
		t.Errorf("unexpected defaults: %+v", d)
	}
	if d.Confidence != models.ConfidenceFloor {
		t.Errorf("expected floor confidence, got %d", d.Confidence)
	}
}

func TestParseChat(t *testing.T) {
	raw := "Answer: Yellow leaves usually mean overwatering.\nLet the soil dry out between waterings.\nSuggestions: How often should I fertilize?; Should I repot?"
	c := Parse(raw, models.FeatureChat).Chat
	if !strings.HasPrefix(c.Reply, "Yellow leaves usually mean overwatering.") || strings.Contains(c.Reply, "Suggestions") {
		t.Errorf("unexpected reply %q", c.Reply)
	}
	if !strings.Contains(c.Reply, "dry out") {
		t.Errorf("multi-line answer was truncated: %q", c.Reply)
	}
	want := []string{"How often should I fertilize?", "Should I repot?"}
	if !reflect.DeepEqual(c.Suggestions, want) {
		t.Errorf("suggestions = %q, want %q", c.Suggestions, want)
	}
}

func TestParseChatUnlabeled(t *testing.T) {
	c := Parse("Water it once a week.", models.FeatureChat).Chat
	if c.Reply != "Water it once a week." {
		t.Errorf("expected raw text as reply, got %q", c.Reply)
	}
	if len(c.Suggestions) == 0 {
		t.Error("expected default suggestions")
	}
}

func TestDefaultsAreCopied(t *testing.T) {
	a := Parse("", models.FeatureIdentify).Plant
	a.CareTips[0] = "mutated"
	b := Parse("", models.FeatureIdentify).Plant
	if b.CareTips[0] == "mutated" {
		t.Error("default list shared between profiles")
	}
}
