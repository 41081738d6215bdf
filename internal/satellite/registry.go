package satellite

import (
	"context"
	"time"
)

// FeatureKey identifies one (sensor, feature) pair the executor can compute.
type FeatureKey struct {
	Sensor  SensorType
	Feature string
}

func (k FeatureKey) String() string {
	return string(k.Sensor) + "/" + k.Feature
}

// HandlerRequest is the per-call state a feature handler receives. Token is
// the imagery bearer token, already acquired once for the whole plan.
type HandlerRequest struct {
	Target Target
	Token  string
	Now    time.Time
}

// HandlerFunc computes observations for one target. Gaps name what could not
// be measured and why; the error return aborts the whole plan and is reserved
// for fatal conditions, not per-target misses.
type HandlerFunc func(ctx context.Context, req HandlerRequest) ([]Observation, []string, error)

// Registry maps feature keys to handlers. Planning a feature with no
// registered handler yields a gap at execution time, so the planner taxonomy
// can run ahead of the executor.
type Registry struct {
	handlers map[FeatureKey]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[FeatureKey]HandlerFunc)}
}

// Register binds a handler to a key, replacing any previous binding.
func (r *Registry) Register(key FeatureKey, handler HandlerFunc) {
	r.handlers[key] = handler
}

// Lookup returns the handler for key, if one is registered.
func (r *Registry) Lookup(key FeatureKey) (HandlerFunc, bool) {
	h, ok := r.handlers[key]
	return h, ok
}

// Keys returns the registered feature keys, for logging and diagnostics.
func (r *Registry) Keys() []FeatureKey {
	keys := make([]FeatureKey, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}
