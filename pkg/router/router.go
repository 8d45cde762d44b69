package router

import (
	"fmt"

	"github.com/verdant-ai/verdant/pkg/config"
	"github.com/verdant-ai/verdant/pkg/models"
)

// Endpoint is a resolved inference endpoint in a fallback chain.
type Endpoint struct {
	Index    int
	Provider config.ProviderConfig
}

// Router resolves features to ordered endpoint chains.
type Router struct {
	providers []config.ProviderConfig
	routes    []config.RouteConfig
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	return &Router{providers: cfg.Providers, routes: cfg.Router.Routes}
}

// Resolve returns the ordered endpoints for feature.
// If the feature has a configured route, its providers are returned in order.
// Otherwise every configured provider is used in declaration order.
func (r *Router) Resolve(feature models.Feature) ([]Endpoint, error) {
	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	providerIndex := make(map[string]config.ProviderConfig, len(r.providers))
	for _, p := range r.providers {
		providerIndex[p.Name] = p
	}

	for _, route := range r.routes {
		if route.Feature != feature {
			continue
		}
		var chain []Endpoint
		for _, name := range route.Providers {
			provider, ok := providerIndex[name]
			if !ok {
				continue // skip unknown providers
			}
			chain = append(chain, Endpoint{Index: len(chain), Provider: provider})
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("route %q: all providers unknown", feature)
		}
		return chain, nil
	}

	chain := make([]Endpoint, len(r.providers))
	for i, p := range r.providers {
		chain[i] = Endpoint{Index: i, Provider: p}
	}
	return chain, nil
}

// Select returns the endpoint for a 1-based attempt number: attempt n uses
// endpoint min(n-1, len(chain)-1), so the last endpoint absorbs extra attempts.
func Select(chain []Endpoint, attempt int) Endpoint {
	i := attempt - 1
	if i < 0 {
		i = 0
	}
	if i > len(chain)-1 {
		i = len(chain) - 1
	}
	return chain[i]
}
