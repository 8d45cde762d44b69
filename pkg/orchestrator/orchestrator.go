// Package orchestrator resolves identification requests into profiles. It
// consults the result cache, walks the provider chain under a bounded attempt
// budget and degrades to a synthesized fallback when nothing usable comes back.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/verdant-ai/verdant/pkg/config"
	"github.com/verdant-ai/verdant/pkg/fallback"
	"github.com/verdant-ai/verdant/pkg/fingerprint"
	"github.com/verdant-ai/verdant/pkg/interpret"
	"github.com/verdant-ai/verdant/pkg/logger"
	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/provider"
	"github.com/verdant-ai/verdant/pkg/router"
)

// ResultCache stores interpreted profiles by cache key.
type ResultCache interface {
	Get(ctx context.Context, key string) (models.CacheEntry, bool)
	Put(ctx context.Context, key string, payload models.Profile, ttl time.Duration) error
}

// Completer sends an encoded request to one endpoint.
type Completer interface {
	Complete(ctx context.Context, ep config.ProviderConfig, body []byte, requestID string) (string, error)
}

// AttemptRecorder persists provider attempts.
type AttemptRecorder interface {
	Record(ctx context.Context, a models.ProviderAttempt) error
}

// Fallback reasons.
const (
	ReasonExhausted   = "all provider attempts failed"
	ReasonTooLarge    = "content too large"
	ReasonNoImage     = "image unavailable"
	ReasonNoProviders = "no providers configured"
	ReasonCanceled    = "request canceled"
)

// Resolved is the outcome of Resolve. Source tells whether the profile came
// from a provider, the fallback generator or the cache.
type Resolved struct {
	Source      models.Source            `json:"source"`
	Profile     models.Profile           `json:"profile"`
	RequestID   string                   `json:"request_id,omitempty"`
	Fingerprint string                   `json:"fingerprint"`
	Key         string                   `json:"cache_key"`
	Attempts    []models.ProviderAttempt `json:"attempts,omitempty"`
	Reason      string                   `json:"reason,omitempty"`
}

// Orchestrator sequences provider attempts for a request.
type Orchestrator struct {
	cfg         config.OrchestratorConfig
	ttl         time.Duration
	fallbackTTL time.Duration
	router      *router.Router
	client      Completer
	cache       ResultCache
	attempts    AttemptRecorder
	fp          *fingerprint.Fingerprinter
	contentFP   bool
	fallback    *fallback.Generator
	group       singleflight.Group
	now         func() time.Time
	newID       func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache enables result caching.
func WithCache(c ResultCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithAttemptRecorder persists every provider attempt.
func WithAttemptRecorder(r AttemptRecorder) Option {
	return func(o *Orchestrator) { o.attempts = r }
}

// WithFallback replaces the fallback generator.
func WithFallback(g *fallback.Generator) Option {
	return func(o *Orchestrator) { o.fallback = g }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRequestIDs overrides request id generation.
func WithRequestIDs(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// New creates an Orchestrator from cfg using client for network calls.
func New(cfg *config.Config, client Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg.Orchestrator,
		ttl:         cfg.Cache.TTL,
		fallbackTTL: cfg.Cache.FallbackTTL,
		router:      router.New(cfg),
		client:      client,
		fp:          fingerprint.New(fingerprint.Mode(cfg.Fingerprint.Mode)),
		contentFP:   cfg.Fingerprint.Mode == config.FingerprintContent,
		fallback:    fallback.New(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.MaxRetries < 1 {
		o.cfg.MaxRetries = 1
	}
	return o
}

// Resolve returns a profile for req. It never fails: provider errors are
// retried within the attempt budget and then replaced by a fallback profile.
// Concurrent calls for the same cache key share one resolution.
func (o *Orchestrator) Resolve(ctx context.Context, req models.IdentificationRequest) Resolved {
	if _, err := models.ParseFeature(string(req.Feature)); err != nil {
		req.Feature = models.FeatureIdentify
	}
	if o.contentFP && len(req.ImageData) == 0 {
		// Load local images up front so identical bytes share a key.
		if img, err := provider.LoadImage(req.ImageRef, nil, o.cfg.MaxImageBytes); err == nil && len(img.Data) > 0 {
			req.ImageData = img.Data
		}
	}
	fp := o.fp.Request(req)
	key := fingerprint.CacheKey(fp, req.Feature, req.ContextText)
	cacheable := o.cache != nil && fp != fingerprint.Invalid

	if cacheable {
		if entry, ok := o.cache.Get(ctx, key); ok {
			logger.WithFields(logrus.Fields{
				"feature":     req.Feature,
				"fingerprint": fp,
			}).Debug("cache hit")
			return Resolved{Source: models.SourceCache, Profile: entry.Payload, Fingerprint: fp, Key: key}
		}
	}

	if fp == fingerprint.Invalid {
		return o.resolve(ctx, req, fp, key, false)
	}
	v, _, _ := o.group.Do(key, func() (any, error) {
		return o.resolve(ctx, req, fp, key, cacheable), nil
	})
	return v.(Resolved)
}

func (o *Orchestrator) resolve(ctx context.Context, req models.IdentificationRequest, fp, key string, cacheable bool) Resolved {
	res := Resolved{Fingerprint: fp, Key: key, RequestID: o.newID()}
	log := logger.WithFields(logrus.Fields{
		"request_id": res.RequestID,
		"feature":    req.Feature,
	})

	bodies, chain, reason := o.prepare(req)
	if reason != "" {
		return o.degrade(ctx, res, req.Feature, reason, cacheable, log)
	}

	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return o.degrade(ctx, res, req.Feature, ReasonCanceled, false, log)
		}
		if attempt > 1 && o.cfg.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return o.degrade(ctx, res, req.Feature, ReasonCanceled, false, log)
			case <-time.After(o.cfg.RetryBackoff):
			}
		}

		ep := router.Select(chain, attempt)
		text, a := o.try(ctx, ep, bodies[ep.Index], attempt, res.RequestID, fp, req.Feature)
		res.Attempts = append(res.Attempts, a)

		entry := log.WithFields(logrus.Fields{
			"endpoint": ep.Provider.Name,
			"attempt":  attempt,
			"outcome":  a.Outcome,
		})
		if a.Outcome != models.OutcomeSuccess {
			entry.WithField("error", a.Error).Warn("provider attempt failed")
			continue
		}
		entry.Info("provider attempt succeeded")

		res.Source = models.SourceLive
		res.Profile = interpret.Parse(text, req.Feature)
		res.Profile.ResolvedAt = o.now()
		if cacheable {
			o.store(ctx, key, res.Profile, o.ttl)
		}
		return res
	}

	if ctx.Err() != nil {
		// The caller gave up during the last attempt; its placeholder must not
		// be served to later callers.
		return o.degrade(ctx, res, req.Feature, ReasonCanceled, false, log)
	}
	return o.degrade(ctx, res, req.Feature, ReasonExhausted, cacheable, log)
}

// prepare loads the image and encodes one body per endpoint. Anything over
// the configured limits is reported as a reason to skip the network.
func (o *Orchestrator) prepare(req models.IdentificationRequest) (map[int][]byte, []router.Endpoint, string) {
	img, err := provider.LoadImage(req.ImageRef, req.ImageData, o.cfg.MaxImageBytes)
	if err != nil {
		if errors.Is(err, provider.ErrContentTooLarge) {
			return nil, nil, ReasonTooLarge
		}
		return nil, nil, ReasonNoImage
	}

	chain, err := o.router.Resolve(req.Feature)
	if err != nil {
		return nil, nil, ReasonNoProviders
	}

	bodies := make(map[int][]byte, len(chain))
	for _, ep := range chain {
		body, err := provider.Encode(req, img, ep.Provider.Model, o.cfg.MaxBodyBytes)
		if err != nil {
			if errors.Is(err, provider.ErrContentTooLarge) {
				return nil, nil, ReasonTooLarge
			}
			return nil, nil, ReasonNoImage
		}
		bodies[ep.Index] = body
	}
	return bodies, chain, ""
}

// try performs one bounded network call and records it.
func (o *Orchestrator) try(ctx context.Context, ep router.Endpoint, body []byte, attempt int, requestID, fp string, feature models.Feature) (string, models.ProviderAttempt) {
	a := models.ProviderAttempt{
		RequestID:     requestID,
		Fingerprint:   fp,
		Feature:       feature,
		EndpointIndex: ep.Index,
		EndpointName:  ep.Provider.Name,
		AttemptNumber: attempt,
		StartedAt:     o.now(),
		TimeoutMs:     o.cfg.AttemptTimeout.Milliseconds(),
	}

	actx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	start := time.Now()
	text, err := o.client.Complete(actx, ep.Provider, body, requestID)
	cancel()
	a.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		a.Outcome = models.OutcomeTransport
		var perr *provider.Error
		if errors.As(err, &perr) {
			a.Outcome = perr.Outcome()
			a.StatusCode = perr.StatusCode
		}
		a.Error = err.Error()
	} else {
		a.Outcome = models.OutcomeSuccess
	}

	if o.attempts != nil {
		if rerr := o.attempts.Record(context.WithoutCancel(ctx), a); rerr != nil {
			logger.WithError(rerr).Warn("failed to record provider attempt")
		}
	}
	return text, a
}

// degrade synthesizes a fallback profile.
func (o *Orchestrator) degrade(ctx context.Context, res Resolved, feature models.Feature, reason string, cacheable bool, log *logrus.Entry) Resolved {
	res.Source = models.SourceFallback
	res.Reason = reason
	res.Profile = interpret.Parse(o.fallback.Text(res.Fingerprint, feature), feature)
	res.Profile.Fallback = true
	res.Profile.ResolvedAt = o.now()
	log.WithFields(logrus.Fields{
		"reason":   reason,
		"attempts": len(res.Attempts),
	}).Warn("serving fallback profile")

	if cacheable && o.fallbackTTL > 0 {
		o.store(ctx, res.Key, res.Profile, o.fallbackTTL)
	}
	return res
}

func (o *Orchestrator) store(ctx context.Context, key string, p models.Profile, ttl time.Duration) {
	if err := o.cache.Put(context.WithoutCancel(ctx), key, p, ttl); err != nil {
		logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}
