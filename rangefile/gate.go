package rangefile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate operations, used as the op metric label.
const (
	OpProbe = "probe"
	OpFetch = "fetch"
)

// GateConfig holds optional settings for a Gate.
type GateConfig struct {
	// Limit caps the rate of remote calls. Zero means unlimited.
	Limit rate.Limit

	// Burst is the token bucket size when Limit is set. Defaults to 1.
	Burst int

	// Metrics receives per-call observations. Nil disables metrics.
	Metrics *Metrics
}

// Gate is the shared, mutex-guarded handle to a backend family's network
// client. Only one remote call runs through a Gate at a time; cursor and
// cache bookkeeping in File happen outside it.
type Gate struct {
	family  string
	mu      sync.Mutex
	limiter *rate.Limiter
	metrics *Metrics
}

// NewGate creates a gate for the given backend family.
func NewGate(family string, cfg GateConfig) *Gate {
	g := &Gate{family: family, metrics: cfg.Metrics}
	if cfg.Limit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(cfg.Limit, burst)
	}
	return g
}

// Family returns the backend family the gate serializes.
func (g *Gate) Family() string { return g.family }

// Do runs fn while holding the gate. The rate limit, if any, is waited on
// before the gate is taken so that a throttled caller does not block others
// that are already admitted.
func (g *Gate) Do(ctx context.Context, op string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	begin := time.Now()
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s gate: %w", g.family, err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	waited := time.Since(begin).Seconds()

	data, err := fn(ctx)
	g.metrics.observe(g.family, op, waited, len(data), err)
	return data, err
}

var (
	sharedGatesMu sync.Mutex
	sharedGates   = map[string]*Gate{}
)

// SharedGate returns the process-wide gate for family, creating it on first
// use. Sources use it unless WithGate is given.
func SharedGate(family string) *Gate {
	sharedGatesMu.Lock()
	defer sharedGatesMu.Unlock()

	g, ok := sharedGates[family]
	if !ok {
		g = NewGate(family, GateConfig{})
		sharedGates[family] = g
	}
	return g
}
