package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/verdant-ai/verdant/pkg/ledger"
	"github.com/verdant-ai/verdant/pkg/models"
)

// Tool argument structs.

type identifyArgs struct {
	Image    string `json:"image"`
	Feature  string `json:"feature"`
	Hint     string `json:"hint"`
	Question string `json:"question"`
	User     string `json:"user"`
}

type userArgs struct {
	User string `json:"user"`
}

type attemptsArgs struct {
	RequestID string `json:"request_id"`
	Outcome   string `json:"outcome"`
	Limit     int    `json:"limit"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"verdant_identify":    handleIdentify,
	"verdant_usage":       handleUsage,
	"verdant_cache_stats": handleCacheStats,
	"verdant_attempts":    handleAttempts,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "verdant_identify",
		Description: "Identify a plant, diagnose its health, or answer a question about it from an image.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"image"},
			"properties": map[string]any{
				"image": map[string]any{
					"type":        "string",
					"description": "Image URL or local file path",
				},
				"feature": map[string]any{
					"type":        "string",
					"enum":        []string{"identify", "diagnose", "chat"},
					"description": "What to do with the image (default identify)",
				},
				"hint": map[string]any{
					"type":        "string",
					"description": "Symptoms to focus on when diagnosing (optional)",
				},
				"question": map[string]any{
					"type":        "string",
					"description": "Question to answer, required for chat",
				},
				"user": map[string]any{
					"type":        "string",
					"description": "User whose allowance is charged (optional)",
				},
			},
		},
	},
	{
		Name:        "verdant_usage",
		Description: "Show the tier, usage per feature and window, and time until the daily allowance renews.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user": map[string]any{
					"type":        "string",
					"description": "User to inspect (optional, defaults to the local user)",
				},
			},
		},
	},
	{
		Name:        "verdant_cache_stats",
		Description: "Show result cache statistics (entries, hits, misses, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "verdant_attempts",
		Description: "Search the provider attempt log, newest first.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"request_id": map[string]any{
					"type":        "string",
					"description": "Only attempts of this request (optional)",
				},
				"outcome": map[string]any{
					"type":        "string",
					"description": "Filter by outcome, e.g. timeout or http_error (optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum rows (optional, default 20)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleIdentify(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args identifyArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Image == "" {
		return errorResult("image is required")
	}

	feature := models.FeatureIdentify
	if args.Feature != "" {
		f, err := models.ParseFeature(args.Feature)
		if err != nil {
			return errorResult(err.Error())
		}
		feature = f
	}

	req := models.IdentificationRequest{ImageRef: args.Image, Feature: feature}
	switch feature {
	case models.FeatureDiagnose:
		req.ContextText = args.Hint
	case models.FeatureChat:
		if args.Question == "" {
			return errorResult("question is required for chat")
		}
		req.ContextText = args.Question
	}

	res, err := s.client.Do(ctx, s.user(args.User), req)
	if err != nil {
		var qe *ledger.QuotaError
		if errors.As(err, &qe) {
			return errorResult(fmt.Sprintf("Quota exceeded: %d %s %s requests used, resets in %s.",
				qe.Limit, qe.Window, qe.Feature, formatDuration(qe.ResetIn)))
		}
		return errorResult("Error resolving request: " + err.Error())
	}
	return textResult(formatResolved(res))
}

func handleUsage(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args userArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	user := s.user(args.User)

	tier, statuses, err := s.client.Status(ctx, user)
	if err != nil {
		return errorResult("Error fetching usage: " + err.Error())
	}
	reset, err := s.client.TimeUntilReset(ctx, user)
	if err != nil {
		return errorResult("Error fetching usage: " + err.Error())
	}
	return textResult(formatUsage(user, tier, statuses, reset))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleAttempts(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.attempts == nil {
		return textResult("Attempt logging is not configured.")
	}
	var args attemptsArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}

	attempts, err := s.attempts.Query(ctx, models.AttemptQueryOpts{
		RequestID: args.RequestID,
		Outcome:   models.Outcome(args.Outcome),
		Limit:     args.Limit,
	})
	if err != nil {
		return errorResult("Error searching attempt log: " + err.Error())
	}
	return textResult(formatAttempts(attempts))
}
