// Package identify is the entry point UI code calls. It gates each request
// on the usage ledger, resolves it through the orchestrator and records usage
// for answers that count.
package identify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/verdant-ai/verdant/pkg/ledger"
	"github.com/verdant-ai/verdant/pkg/logger"
	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/orchestrator"
)

// Resolver turns a request into a profile.
type Resolver interface {
	Resolve(ctx context.Context, req models.IdentificationRequest) orchestrator.Resolved
}

// Client combines the ledger and the orchestrator.
type Client struct {
	resolver      Resolver
	ledger        *ledger.Ledger
	countFallback bool
}

// New creates a Client. When countFallback is false, fallback answers do not
// consume allowance.
func New(resolver Resolver, l *ledger.Ledger, countFallback bool) *Client {
	return &Client{resolver: resolver, ledger: l, countFallback: countFallback}
}

// Identify names the plant in the image at ref.
func (c *Client) Identify(ctx context.Context, userID, ref string) (orchestrator.Resolved, error) {
	return c.Do(ctx, userID, models.IdentificationRequest{ImageRef: ref, Feature: models.FeatureIdentify})
}

// Diagnose assesses plant health, optionally guided by hint.
func (c *Client) Diagnose(ctx context.Context, userID, ref, hint string) (orchestrator.Resolved, error) {
	return c.Do(ctx, userID, models.IdentificationRequest{ImageRef: ref, Feature: models.FeatureDiagnose, ContextText: hint})
}

// Chat answers question about the image at ref.
func (c *Client) Chat(ctx context.Context, userID, ref, question string) (orchestrator.Resolved, error) {
	return c.Do(ctx, userID, models.IdentificationRequest{ImageRef: ref, Feature: models.FeatureChat, ContextText: question})
}

// Do runs req for userID. The ledger is consulted before anything else; a
// user without allowance gets a *ledger.QuotaError and no provider is
// contacted. Any other outcome is a profile, never a provider error.
func (c *Client) Do(ctx context.Context, userID string, req models.IdentificationRequest) (orchestrator.Resolved, error) {
	if _, err := models.ParseFeature(string(req.Feature)); err != nil {
		return orchestrator.Resolved{}, err
	}
	log := logger.WithFields(logrus.Fields{"user": userID, "feature": req.Feature})

	if err := c.ledger.Check(ctx, userID, req.Feature); err != nil {
		if errors.Is(err, ledger.ErrQuotaExceeded) {
			log.WithError(err).Info("request rejected by quota")
		}
		return orchestrator.Resolved{}, err
	}

	res := c.resolver.Resolve(ctx, req)

	if res.Profile.Fallback && !c.countFallback {
		return res, nil
	}
	if err := c.ledger.Track(ctx, userID, req.Feature); err != nil {
		// The answer was already produced; a lost race at the limit or a
		// storage failure is logged rather than returned.
		log.WithError(err).Warn("usage not recorded")
	}
	return res, nil
}

// CheckAllowance reports whether userID may use feature.
func (c *Client) CheckAllowance(ctx context.Context, userID string, feature models.Feature) (bool, error) {
	return c.ledger.CanUse(ctx, userID, feature)
}

// RecordUsage counts one use of feature for userID.
func (c *Client) RecordUsage(ctx context.Context, userID string, feature models.Feature) error {
	if err := c.ledger.Track(ctx, userID, feature); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// TimeUntilReset returns the time until userID's daily allowance renews.
func (c *Client) TimeUntilReset(ctx context.Context, userID string) (time.Duration, error) {
	return c.ledger.TimeUntilReset(ctx, userID)
}

// Status returns the tier and usage of userID.
func (c *Client) Status(ctx context.Context, userID string) (models.Tier, []models.UsageStatus, error) {
	return c.ledger.Status(ctx, userID)
}

// SetTier changes the tier of userID.
func (c *Client) SetTier(ctx context.Context, userID string, tier models.Tier) error {
	return c.ledger.SetTier(ctx, userID, tier)
}
