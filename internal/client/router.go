package client

import (
	"context"
	"errors"
	"time"

	"kodo/internal/config"
	"kodo/internal/logging"
)

// Tier identifies a model-routing tier.
type Tier string

const (
	// TierLocal routes to the configured Ollama model.
	TierLocal Tier = "LOCAL"
	// TierRemote routes to the configured Gemini model.
	TierRemote Tier = "REMOTE"
	// TierHybrid runs on the remote model with local assist where available.
	TierHybrid Tier = "HYBRID"
)

// Router owns one client per configured tier and hands out the right one
// for a subtask's routing tier. The remote client is mandatory; local and
// validation clients are optional and degrade to remote.
type Router struct {
	remote     Client
	local      Client // nil when no local model is configured
	validation Client // nil when no dedicated validation model is configured
}

// NewRouter constructs clients for every configured tier. Failure to build
// the remote client is fatal to the caller; failure to build the optional
// tiers only logs.
func NewRouter(ctx context.Context, cfg *config.Config) (*Router, error) {
	remote, err := NewGeminiClient(ctx, cfg, cfg.Model.Remote)
	if err != nil {
		return nil, err
	}

	r := &Router{remote: remote}

	if cfg.Model.Local != "" {
		local, err := NewOllamaClient(cfg, cfg.Model.Local)
		if err != nil {
			logging.Warn("local model unavailable, LOCAL tier degrades to remote", "error", err)
		} else if err := pingOllama(ctx, local); err != nil {
			logging.Warn("ollama server unreachable, LOCAL tier degrades to remote", "error", err)
		} else {
			r.local = local
		}
	}

	if cfg.Model.Validation != "" && cfg.Model.Validation != cfg.Model.Remote {
		validation, err := NewGeminiClient(ctx, cfg, cfg.Model.Validation)
		if err != nil {
			logging.Warn("validation model unavailable, falling back to remote", "error", err)
		} else {
			r.validation = validation
		}
	}

	return r, nil
}

// pingOllama checks the local server with a short deadline so an absent
// daemon does not stall startup.
func pingOllama(ctx context.Context, c *OllamaClient) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.Ping(ctx)
}

// ForTier returns the client serving the given tier.
// LOCAL degrades to the remote client when no local model is configured.
func (r *Router) ForTier(tier Tier) Client {
	if tier == TierLocal && r.local != nil {
		return r.local
	}
	return r.remote
}

// Remote returns the remote-tier client.
func (r *Router) Remote() Client {
	return r.remote
}

// Local returns the local-tier client, if configured.
func (r *Router) Local() (Client, bool) {
	return r.local, r.local != nil
}

// Validation returns the client for validation verdicts, falling back to
// the remote client when no dedicated model is configured.
func (r *Router) Validation() Client {
	if r.validation != nil {
		return r.validation
	}
	return r.remote
}

// TotalUsage sums token usage across all tiers.
func (r *Router) TotalUsage() Usage {
	total := r.remote.Usage()
	if r.local != nil {
		total = total.Add(r.local.Usage())
	}
	if r.validation != nil {
		total = total.Add(r.validation.Usage())
	}
	return total
}

// TotalCostUSD sums the cost estimate across all tiers.
func (r *Router) TotalCostUSD() float64 {
	total := r.remote.CostUSD()
	if r.local != nil {
		total += r.local.CostUSD()
	}
	if r.validation != nil {
		total += r.validation.CostUSD()
	}
	return total
}

// Close closes all clients.
func (r *Router) Close() error {
	var errs []error
	errs = append(errs, r.remote.Close())
	if r.local != nil {
		errs = append(errs, r.local.Close())
	}
	if r.validation != nil {
		errs = append(errs, r.validation.Close())
	}
	return errors.Join(errs...)
}
