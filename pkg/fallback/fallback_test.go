package fallback

import (
	"strings"
	"testing"

	"github.com/verdant-ai/verdant/pkg/interpret"
	"github.com/verdant-ai/verdant/pkg/models"
)

func TestPickIsDeterministic(t *testing.T) {
	g := New()
	for _, fp := range []string{"fp:0123456789abcdef", "fp:invalid", ""} {
		if g.Pick(fp).Name != g.Pick(fp).Name {
			t.Errorf("pick for %q is not stable", fp)
		}
	}
}

func TestPickSpreadsAcrossCatalog(t *testing.T) {
	g := New()
	seen := map[string]bool{}
	for _, fp := range []string{"fp:a", "fp:b", "fp:c", "fp:d", "fp:e", "fp:f", "fp:g", "fp:h", "fp:i", "fp:j"} {
		seen[g.Pick(fp).Name] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected several catalog entries, got %v", seen)
	}
}

func TestCustomCatalog(t *testing.T) {
	g := New(Plant{Name: "Fern"})
	if got := g.Pick("anything").Name; got != "Fern" {
		t.Errorf("expected Fern, got %q", got)
	}
}

func TestIdentifyTextInterprets(t *testing.T) {
	g := New()
	fp := "fp:0123456789abcdef"
	want := g.Pick(fp)

	p := interpret.Parse(g.Text(fp, models.FeatureIdentify), models.FeatureIdentify).Plant
	if p.Name != want.Name || p.ScientificName != want.Scientific {
		t.Errorf("got %q (%q), want %q (%q)", p.Name, p.ScientificName, want.Name, want.Scientific)
	}
	if p.Confidence != models.ConfidenceFloor {
		t.Errorf("placeholder confidence should sit at the floor, got %d", p.Confidence)
	}
	if p.Toxicity != want.Toxicity || p.GrowthRate != want.Growth {
		t.Errorf("unexpected enums %s/%s", p.Toxicity, p.GrowthRate)
	}
	if len(p.CareTips) != len(want.Tips) {
		t.Errorf("expected %d tips, got %q", len(want.Tips), p.CareTips)
	}
	if !strings.HasPrefix(p.Notes, "Offline estimate") {
		t.Errorf("placeholder must be labeled, notes = %q", p.Notes)
	}
}

func TestDiagnoseAndChatTextInterpret(t *testing.T) {
	g := New()

	d := interpret.Parse(g.Text("fp:x", models.FeatureDiagnose), models.FeatureDiagnose).Diagnosis
	if d.CareStatus != models.CareStatusNeedsAttention || d.Severity != models.LevelLow {
		t.Errorf("unexpected diagnosis enums: %+v", d)
	}
	if len(d.Issues) != 3 || len(d.Recommendations) != 3 {
		t.Errorf("unexpected lists: %q / %q", d.Issues, d.Recommendations)
	}
	if d.Notes == "" {
		t.Error("diagnosis placeholder must be labeled")
	}

	c := interpret.Parse(g.Text("fp:x", models.FeatureChat), models.FeatureChat).Chat
	if !strings.Contains(c.Reply, "can't reach") || len(c.Suggestions) != 3 {
		t.Errorf("unexpected chat placeholder: %+v", c)
	}
}
