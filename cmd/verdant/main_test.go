package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/orchestrator"
)

func TestPrintResolvedPlant(t *testing.T) {
	res := orchestrator.Resolved{
		Source:    models.SourceLive,
		RequestID: "req-1",
		Profile: models.Profile{
			Feature: models.FeatureIdentify,
			Plant: &models.PlantProfile{
				Name:           "Pothos",
				ScientificName: "Epipremnum aureum",
				Confidence:     87,
				CareTips:       []string{"Let the soil dry between waterings", "Wipe the leaves monthly"},
			},
		},
	}

	var out bytes.Buffer
	if err := printResolved(&out, res); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{"Pothos", "Epipremnum aureum", "87%", "Wipe the leaves monthly", "live", "req-1"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestPrintResolvedFallbackReason(t *testing.T) {
	res := orchestrator.Resolved{
		Source: models.SourceFallback,
		Reason: orchestrator.ReasonExhausted,
		Profile: models.Profile{
			Feature: models.FeatureChat,
			Chat:    &models.ChatReply{Reply: "Water less often."},
		},
	}

	var out bytes.Buffer
	if err := printResolved(&out, res); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "fallback ("+orchestrator.ReasonExhausted+")") {
		t.Errorf("expected fallback reason in output:\n%s", out.String())
	}
}

func TestUserArg(t *testing.T) {
	if got := userArg(nil, "local"); got != "local" {
		t.Errorf("expected default user, got %q", got)
	}
	if got := userArg([]string{"alice"}, "local"); got != "alice" {
		t.Errorf("expected alice, got %q", got)
	}
}

func TestOpenApp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "verdant.yaml")
	content := "db_path: " + filepath.Join(dir, "verdant.db") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := openApp(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.cache == nil || a.attempts == nil || a.client == nil {
		t.Fatalf("expected cache, attempt log and client to be wired: %+v", a)
	}

	// No providers are configured, so the answer is an offline estimate.
	res, err := a.client.Identify(context.Background(), "local", "https://img.example.com/p.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourceFallback || res.Reason != orchestrator.ReasonNoProviders {
		t.Errorf("expected no-providers fallback, got %s (%s)", res.Source, res.Reason)
	}
}
