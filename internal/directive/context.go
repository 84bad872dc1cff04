package directive

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Environment is the kind of host a recipe is executing in.
type Environment string

const (
	EnvConnector    Environment = "CONNECTOR"
	EnvMicroservice Environment = "MICROSERVICE"
	EnvTesting      Environment = "TESTING"
	EnvService      Environment = "SERVICE"
)

// ParseEnvironment accepts any case.
func ParseEnvironment(s string) (Environment, error) {
	switch e := Environment(strings.ToUpper(strings.TrimSpace(s))); e {
	case EnvConnector, EnvMicroservice, EnvTesting, EnvService:
		return e, nil
	}
	return "", fmt.Errorf("unknown execution environment %q", s)
}

// Metrics is the sink directives report counters and gauges to.
type Metrics interface {
	Count(metric string, delta int)
	Gauge(metric string, value float64)
}

type noopMetrics struct{}

func (noopMetrics) Count(string, int)     {}
func (noopMetrics) Gauge(string, float64) {}

// NoopMetrics discards everything.
var NoopMetrics Metrics = noopMetrics{}

// StoreScope separates variables living for one Execute call (local) from
// those that outlive it (global).
type StoreScope string

const (
	ScopeGlobal StoreScope = "global"
	ScopeLocal  StoreScope = "local"
)

// TransientStore is the key/value scratch area shared by the directives of a
// pipeline run. Get looks in the local scope first, then the global one.
// Implementations shared across requests must be safe for concurrent use.
type TransientStore interface {
	Get(ctx context.Context, name string) (any, bool, error)
	Set(ctx context.Context, scope StoreScope, name string, value any) error
	Increment(ctx context.Context, scope StoreScope, name string, delta int64) (int64, error)
	Reset(ctx context.Context, scope StoreScope) error
	Keys(ctx context.Context) ([]string, error)
}

// ExecutorContext carries the per-run environment handed to every directive.
type ExecutorContext interface {
	Environment() Environment
	Namespace() string
	ContextName() string
	Properties() map[string]string
	Metrics() Metrics
	TransientStore() TransientStore
	ServiceURL(appID, serviceID string) (*url.URL, error)
}
