// Package execctx implements the directive.ExecutorContext handed to every
// directive of a pipeline run.
package execctx

import (
	"fmt"
	"net/url"
	"strings"

	"txservice/internal/directive"
)

// DefaultNamespace is used when none is configured.
const DefaultNamespace = "default"

// Context is immutable once built; the transient store it points to is not.
type Context struct {
	env        directive.Environment
	namespace  string
	name       string
	properties map[string]string
	metrics    directive.Metrics
	store      directive.TransientStore
	resolver   *URLResolver
}

type Option func(*Context)

func WithEnvironment(e directive.Environment) Option { return func(c *Context) { c.env = e } }
func WithNamespace(ns string) Option                 { return func(c *Context) { c.namespace = ns } }
func WithName(name string) Option                    { return func(c *Context) { c.name = name } }
func WithMetrics(m directive.Metrics) Option         { return func(c *Context) { c.metrics = m } }
func WithStore(s directive.TransientStore) Option    { return func(c *Context) { c.store = s } }
func WithResolver(r *URLResolver) Option             { return func(c *Context) { c.resolver = r } }

// WithProperties copies props.
func WithProperties(props map[string]string) Option {
	return func(c *Context) {
		for k, v := range props {
			c.properties[k] = v
		}
	}
}

// New builds a context for the microservice environment in the default
// namespace with no-op metrics, then applies opts.
func New(opts ...Option) *Context {
	c := &Context{
		env:        directive.EnvMicroservice,
		namespace:  DefaultNamespace,
		properties: map[string]string{},
		metrics:    directive.NoopMetrics,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = directive.NoopMetrics
	}
	return c
}

func (c *Context) Environment() directive.Environment { return c.env }
func (c *Context) Namespace() string                  { return c.namespace }
func (c *Context) ContextName() string                { return c.name }
func (c *Context) Metrics() directive.Metrics         { return c.metrics }

// Properties returns a copy.
func (c *Context) Properties() map[string]string {
	out := make(map[string]string, len(c.properties))
	for k, v := range c.properties {
		out[k] = v
	}
	return out
}

// TransientStore is nil when no store is attached.
func (c *Context) TransientStore() directive.TransientStore { return c.store }

func (c *Context) ServiceURL(appID, serviceID string) (*url.URL, error) {
	if c.resolver == nil {
		return nil, fmt.Errorf("service discovery is not configured")
	}
	return c.resolver.Resolve(c.namespace, appID, serviceID)
}

// URLResolver builds service method URLs of the form
// {base}/v3/namespaces/{ns}/apps/{app}/services/{service}/methods/.
type URLResolver struct {
	base *url.URL
}

func NewURLResolver(base string) (*URLResolver, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("service base url is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("service base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("service base url %q must be absolute", base)
	}
	return &URLResolver{base: u}, nil
}

func (r *URLResolver) Resolve(namespace, appID, serviceID string) (*url.URL, error) {
	if appID == "" || serviceID == "" {
		return nil, fmt.Errorf("application and service ids are required")
	}
	return r.base.JoinPath("v3", "namespaces", namespace, "apps", appID, "services", serviceID, "methods/"), nil
}
