// Package di resolves the declared dependencies of a flow node before
// the node runs.
//
// A dependency is either an explicit provider (Provide, optionally
// cached or post-processed with Select) or an ambient lookup drawn
// from the current traversal (Event, Runtime, AdapterOf, Logger,
// FlowStore, Records, CurrentSession, SessionStore, CurrentRule,
// Args). Ambient lookups narrow by runtime type: when the ambient
// value does not satisfy the requested type the resolution fails with
// an *UnsatisfiedError, which a flow interprets as "skip this node"
// rather than as a fault.
package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Ambient provides the per-traversal values that automatic lookups
// draw from. The traversal context implements it.
//
// Implementations must return an untyped nil for absent values; a
// typed nil pointer inside an interface reads as present.
type Ambient interface {
	AmbientEvent() any
	AmbientRuntime() any
	AmbientAdapters() []any
	AmbientLogger() *slog.Logger
	AmbientFlowStore() any
	AmbientRecords() any
	AmbientSession() any
	AmbientSessionStore() any
	AmbientRule() any
	AmbientArgs() any
}

// Scope is the bookkeeping for one resolution pass. Providers resolve
// at most once per scope; reusing a Dependency value across several
// bindings therefore shares one instance within a node invocation.
type Scope struct {
	ctx     context.Context
	ambient Ambient
	shared  map[any]any
}

// NewScope creates a resolution scope over the given ambient values.
func NewScope(ctx context.Context, ambient Ambient) *Scope {
	return &Scope{ctx: ctx, ambient: ambient, shared: make(map[any]any)}
}

// Context returns the context the resolution runs under.
func (s *Scope) Context() context.Context { return s.ctx }

// Dependency produces one typed argument value from a Scope.
type Dependency[T any] interface {
	// Resolve produces the value, or an *UnsatisfiedError.
	Resolve(s *Scope) (T, error)

	// Describe names the dependency for diagnostics.
	Describe() string
}

// ErrUnsatisfied is matched by errors.Is for every resolution failure.
var ErrUnsatisfied = errors.New("dependency unsatisfied")

// Reason classifies why a dependency could not be satisfied.
type Reason string

// Unsatisfied reasons.
const (
	ReasonMissing  Reason = "missing ambient value"
	ReasonMismatch Reason = "type mismatch"
	ReasonProvider Reason = "provider failed"
)

// UnsatisfiedError reports a failed resolution. In node position it
// means "skip the node"; anywhere else it is escalated as an error.
type UnsatisfiedError struct {
	// Dep is the Describe() string of the failed dependency.
	Dep string
	// Want is the requested type.
	Want string
	// Got is the runtime type of the ambient value, if any.
	Got string
	// Reason classifies the failure.
	Reason Reason
	// Err is the provider error for ReasonProvider.
	Err error
}

// Error implements the error interface.
func (e *UnsatisfiedError) Error() string {
	if e.Reason == ReasonProvider {
		return fmt.Sprintf("dependency %s unsatisfied: %s: %v", e.Dep, e.Reason, e.Err)
	}
	return fmt.Sprintf("dependency %s unsatisfied: %s (want %s, got %s)", e.Dep, e.Reason, e.Want, e.Got)
}

// Unwrap returns the provider error, if any.
func (e *UnsatisfiedError) Unwrap() error { return e.Err }

// Is reports true for ErrUnsatisfied.
func (e *UnsatisfiedError) Is(target error) bool { return target == ErrUnsatisfied }

// typeName returns the display name of T.
func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// ProviderFunc computes a dependency value. It may block on I/O; it
// receives the resolution's context for cancellation.
type ProviderFunc[T any] func(ctx context.Context) (T, error)

// provider is the Dependency behind Provide.
type provider[T any] struct {
	fn     ProviderFunc[T]
	name   string
	cached bool

	mu   sync.Mutex
	memo *T
}

// ProvideOption configures a provider.
type ProvideOption func(*providerConfig)

type providerConfig struct {
	name   string
	cached bool
}

// Cached memoises the provider beyond a single resolution: the first
// successful value is reused for the provider's lifetime.
func Cached() ProvideOption {
	return func(c *providerConfig) { c.cached = true }
}

// Named sets the diagnostic name of a provider (default "provider").
func Named(name string) ProvideOption {
	return func(c *providerConfig) { c.name = name }
}

// Provide binds a parameter to an explicit provider function.
//
// Within one resolution scope a provider runs at most once; binding
// the same Dependency value to several parameters shares the result.
// A provider error surfaces as *UnsatisfiedError with ReasonProvider.
func Provide[T any](fn ProviderFunc[T], opts ...ProvideOption) Dependency[T] {
	cfg := providerConfig{name: "provider"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &provider[T]{fn: fn, name: cfg.name, cached: cfg.cached}
}

// Describe implements Dependency.
func (p *provider[T]) Describe() string {
	return fmt.Sprintf("%s[%s]", p.name, typeName[T]())
}

// Resolve implements Dependency.
func (p *provider[T]) Resolve(s *Scope) (T, error) {
	if v, ok := s.shared[p]; ok {
		return v.(T), nil
	}

	if p.cached {
		p.mu.Lock()
		if p.memo != nil {
			v := *p.memo
			p.mu.Unlock()
			s.shared[p] = v
			return v, nil
		}
		p.mu.Unlock()
	}

	v, err := p.fn(s.ctx)
	if err != nil {
		var zero T
		return zero, &UnsatisfiedError{
			Dep:    p.Describe(),
			Want:   typeName[T](),
			Reason: ReasonProvider,
			Err:    err,
		}
	}

	if p.cached {
		p.mu.Lock()
		if p.memo == nil {
			p.memo = &v
		}
		v = *p.memo
		p.mu.Unlock()
	}

	s.shared[p] = v
	return v, nil
}

// selected applies a sub-extraction to another dependency's result.
type selected[T, U any] struct {
	dep Dependency[T]
	fn  func(T) (U, error)
}

// Select derives a dependency by applying fn to dep's resolved value.
// An fn error surfaces as an unsatisfied dependency.
func Select[T, U any](dep Dependency[T], fn func(T) (U, error)) Dependency[U] {
	return &selected[T, U]{dep: dep, fn: fn}
}

// Describe implements Dependency.
func (d *selected[T, U]) Describe() string {
	return fmt.Sprintf("select[%s](%s)", typeName[U](), d.dep.Describe())
}

// Resolve implements Dependency.
func (d *selected[T, U]) Resolve(s *Scope) (U, error) {
	var zero U
	v, err := d.dep.Resolve(s)
	if err != nil {
		return zero, err
	}
	u, err := d.fn(v)
	if err != nil {
		return zero, &UnsatisfiedError{
			Dep:    d.Describe(),
			Want:   typeName[U](),
			Reason: ReasonProvider,
			Err:    err,
		}
	}
	return u, nil
}

// Value binds a parameter to a fixed value.
func Value[T any](v T) Dependency[T] {
	return Provide(func(context.Context) (T, error) { return v, nil }, Named("value"))
}
