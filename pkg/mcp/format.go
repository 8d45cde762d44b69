package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/orchestrator"
)

// formatResolved renders a resolved profile as plain text.
func formatResolved(res orchestrator.Resolved) string {
	var b strings.Builder
	p := res.Profile
	switch {
	case p.Plant != nil:
		fmt.Fprintf(&b, "%s (%s)\n", p.Plant.Name, p.Plant.ScientificName)
		fmt.Fprintf(&b, "  Family:      %s\n", p.Plant.Family)
		fmt.Fprintf(&b, "  Confidence:  %d%%\n", p.Plant.Confidence)
		fmt.Fprintf(&b, "  Toxicity:    %s\n", p.Plant.Toxicity)
		fmt.Fprintf(&b, "  Difficulty:  %s\n", p.Plant.Difficulty)
		fmt.Fprintf(&b, "  Growth:      %s\n", p.Plant.GrowthRate)
		fmt.Fprintf(&b, "  Light:       %s\n", p.Plant.Light)
		fmt.Fprintf(&b, "  Water:       %s\n", p.Plant.Water)
		fmt.Fprintf(&b, "  Humidity:    %s\n", p.Plant.Humidity)
		fmt.Fprintf(&b, "  Temperature: %s\n", p.Plant.Temperature)
		fmt.Fprintf(&b, "\n%s\n", p.Plant.Description)
		writeList(&b, "Care tips", p.Plant.CareTips)
		if p.Plant.Notes != "" {
			fmt.Fprintf(&b, "\nNote: %s\n", p.Plant.Notes)
		}
	case p.Diagnosis != nil:
		fmt.Fprintf(&b, "%s\n", p.Diagnosis.Condition)
		fmt.Fprintf(&b, "  Status:     %s\n", p.Diagnosis.CareStatus)
		fmt.Fprintf(&b, "  Severity:   %s\n", p.Diagnosis.Severity)
		fmt.Fprintf(&b, "  Urgency:    %s\n", p.Diagnosis.Urgency)
		fmt.Fprintf(&b, "  Confidence: %d%%\n", p.Diagnosis.Confidence)
		fmt.Fprintf(&b, "\n%s\n", p.Diagnosis.Summary)
		writeList(&b, "Issues", p.Diagnosis.Issues)
		writeList(&b, "Recommendations", p.Diagnosis.Recommendations)
		if p.Diagnosis.Notes != "" {
			fmt.Fprintf(&b, "\nNote: %s\n", p.Diagnosis.Notes)
		}
	case p.Chat != nil:
		fmt.Fprintf(&b, "%s\n", p.Chat.Reply)
		writeList(&b, "Suggestions", p.Chat.Suggestions)
	}

	source := string(res.Source)
	if p.Fallback {
		source += ", offline estimate"
	}
	fmt.Fprintf(&b, "\nSource: %s", source)
	if res.Reason != "" {
		fmt.Fprintf(&b, " (%s)", res.Reason)
	}
	b.WriteString("\n")
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

// formatUsage formats usage statuses as a text table.
func formatUsage(user string, tier models.Tier, statuses []models.UsageStatus, reset time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User: %s  Tier: %s  Daily reset in: %s\n\n", user, tier, formatDuration(reset))
	if len(statuses) == 0 {
		b.WriteString("No limits apply.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%-10s %-8s %6s %6s %10s\n", "Feature", "Window", "Used", "Limit", "Remaining")
	b.WriteString(strings.Repeat("-", 44) + "\n")
	for _, s := range statuses {
		limit, remaining := fmt.Sprint(s.Limit), fmt.Sprint(s.Remaining)
		if s.Limit < 0 {
			limit, remaining = "-", "unlimited"
		}
		fmt.Fprintf(&b, "%-10s %-8s %6d %6s %10s\n", s.Feature, s.Window, s.Used, limit, remaining)
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}

// formatAttempts formats provider attempts as a text table.
func formatAttempts(attempts []models.ProviderAttempt) string {
	if len(attempts) == 0 {
		return "No attempts found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-36s %-10s %-12s %3s %-16s %6s %8s\n",
		"Time", "Request ID", "Feature", "Endpoint", "#", "Outcome", "Status", "Latency")
	b.WriteString(strings.Repeat("-", 120) + "\n")
	for _, a := range attempts {
		status := "-"
		if a.StatusCode != 0 {
			status = fmt.Sprint(a.StatusCode)
		}
		fmt.Fprintf(&b, "%-20s %-36s %-10s %-12s %3d %-16s %6s %6dms\n",
			a.StartedAt.Format("2006-01-02 15:04:05"),
			a.RequestID, a.Feature, a.EndpointName, a.AttemptNumber,
			a.Outcome, status, a.LatencyMs)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	return d.Round(time.Minute).String()
}
