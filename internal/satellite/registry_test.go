package satellite

import (
	"context"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	key := FeatureKey{Sensor: SensorS1, Feature: "SAR_VV_delta_30d"}

	if _, ok := reg.Lookup(key); ok {
		t.Fatalf("empty registry should not resolve %s", key)
	}

	called := false
	reg.Register(key, func(ctx context.Context, req HandlerRequest) ([]Observation, []string, error) {
		called = true
		return nil, nil, nil
	})
	handler, ok := reg.Lookup(key)
	if !ok {
		t.Fatalf("expected handler for %s", key)
	}
	if _, _, err := handler(context.Background(), HandlerRequest{}); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("registered handler was not invoked")
	}

	// Same sensor, different feature stays unresolved.
	if _, ok := reg.Lookup(FeatureKey{Sensor: SensorS1, Feature: "other"}); ok {
		t.Fatalf("lookup should be exact on the (sensor, feature) pair")
	}
}

func TestRegistryReplaceBinding(t *testing.T) {
	reg := NewRegistry()
	key := FeatureKey{Sensor: SensorS2, Feature: FeatureNDVIMean30d}

	reg.Register(key, func(ctx context.Context, req HandlerRequest) ([]Observation, []string, error) {
		return nil, []string{"old"}, nil
	})
	reg.Register(key, func(ctx context.Context, req HandlerRequest) ([]Observation, []string, error) {
		return nil, []string{"new"}, nil
	})

	handler, _ := reg.Lookup(key)
	_, gaps, _ := handler(context.Background(), HandlerRequest{})
	if len(gaps) != 1 || gaps[0] != "new" {
		t.Fatalf("expected the replacement binding, got %v", gaps)
	}
	if n := len(reg.Keys()); n != 1 {
		t.Fatalf("expected a single key after replacement, got %d", n)
	}
}

func TestFeatureKeyString(t *testing.T) {
	key := FeatureKey{Sensor: SensorVIIRS, Feature: "night_lights_pct_delta_30d"}
	if key.String() != "VIIRS/night_lights_pct_delta_30d" {
		t.Fatalf("unexpected key string %q", key.String())
	}
}
