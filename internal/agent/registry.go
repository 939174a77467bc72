package agent

import (
	"github.com/Open330/open-agent-contribution-sub003/internal/config"
	"github.com/Open330/open-agent-contribution-sub003/internal/errors"
	"github.com/Open330/open-agent-contribution-sub003/internal/estimate"
	"github.com/Open330/open-agent-contribution-sub003/internal/logging"
)

// Registry holds the constructed providers, keyed by id, in the order
// they were enabled in configuration.
type Registry struct {
	order     []ProviderID
	providers map[ProviderID]Provider
}

// NewRegistry builds a provider per enabled backend in cfg.
func NewRegistry(cfg config.BackendsConfig, execCfg config.ExecutionConfig, logger *logging.Logger) (*Registry, error) {
	r := &Registry{providers: make(map[ProviderID]Provider)}
	for _, id := range cfg.Enabled {
		backendCfg, err := cfg.Backend(id)
		if err != nil {
			return nil, err
		}
		provider, err := NewProvider(id, backendCfg, execCfg.AbortGrace(), logger)
		if err != nil {
			return nil, err
		}
		if err := r.Add(provider); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a provider. Duplicate ids are rejected.
func (r *Registry) Add(p Provider) error {
	if r.providers == nil {
		r.providers = make(map[ProviderID]Provider)
	}
	if _, exists := r.providers[p.ID()]; exists {
		return errors.NewValidationError("duplicate provider id").
			WithField("provider").WithValue(string(p.ID()))
	}
	r.order = append(r.order, p.ID())
	r.providers[p.ID()] = p
	return nil
}

// Get returns the provider with the given id.
func (r *Registry) Get(id ProviderID) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, errors.NewNotFoundError("provider", string(id))
	}
	return p, nil
}

// All returns the providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// Profiles returns the backend profiles for the estimator.
func (r *Registry) Profiles() []estimate.BackendProfile {
	out := make([]estimate.BackendProfile, 0, len(r.order))
	for _, p := range r.All() {
		out = append(out, p.Profile())
	}
	return out
}
