package di

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAmbient is a configurable Ambient for resolver tests.
type fakeAmbient struct {
	event        any
	runtime      any
	adapters     []any
	logger       *slog.Logger
	flowStore    any
	records      any
	session      any
	sessionStore any
	rule         any
	args         any
}

func (f *fakeAmbient) AmbientEvent() any           { return f.event }
func (f *fakeAmbient) AmbientRuntime() any         { return f.runtime }
func (f *fakeAmbient) AmbientAdapters() []any      { return f.adapters }
func (f *fakeAmbient) AmbientLogger() *slog.Logger { return f.logger }
func (f *fakeAmbient) AmbientFlowStore() any       { return f.flowStore }
func (f *fakeAmbient) AmbientRecords() any         { return f.records }
func (f *fakeAmbient) AmbientSession() any         { return f.session }
func (f *fakeAmbient) AmbientSessionStore() any    { return f.sessionStore }
func (f *fakeAmbient) AmbientRule() any            { return f.rule }
func (f *fakeAmbient) AmbientArgs() any            { return f.args }

type dogEvent struct{ name string }
type catEvent struct{ name string }

// TestProvide_Resolves verifies a provider produces its value.
func TestProvide_Resolves(t *testing.T) {
	dep := Provide(func(ctx context.Context) (int, error) { return 42, nil })
	s := NewScope(context.Background(), &fakeAmbient{})

	v, err := dep.Resolve(s)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

// TestProvide_SharedWithinScope verifies a provider runs once per
// scope even when bound to several parameters.
func TestProvide_SharedWithinScope(t *testing.T) {
	calls := 0
	dep := Provide(func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	})
	s := NewScope(context.Background(), &fakeAmbient{})

	a, err := dep.Resolve(s)
	require.NoError(t, err)
	b, err := dep.Resolve(s)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, calls)
}

// TestProvide_FreshAcrossScopes verifies an uncached provider runs
// again for each new scope.
func TestProvide_FreshAcrossScopes(t *testing.T) {
	calls := 0
	dep := Provide(func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	})

	a, err := dep.Resolve(NewScope(context.Background(), &fakeAmbient{}))
	require.NoError(t, err)
	b, err := dep.Resolve(NewScope(context.Background(), &fakeAmbient{}))
	require.NoError(t, err)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

// TestProvide_Cached verifies Cached memoises across scopes.
func TestProvide_Cached(t *testing.T) {
	calls := 0
	dep := Provide(func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, Cached())

	a, err := dep.Resolve(NewScope(context.Background(), &fakeAmbient{}))
	require.NoError(t, err)
	b, err := dep.Resolve(NewScope(context.Background(), &fakeAmbient{}))
	require.NoError(t, err)

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, calls)
}

// TestProvide_Error verifies a failing provider surfaces as an
// unsatisfied dependency carrying the cause.
func TestProvide_Error(t *testing.T) {
	cause := errors.New("db down")
	dep := Provide(func(ctx context.Context) (string, error) { return "", cause }, Named("db"))

	_, err := dep.Resolve(NewScope(context.Background(), &fakeAmbient{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsatisfied)
	assert.ErrorIs(t, err, cause)

	var ue *UnsatisfiedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ReasonProvider, ue.Reason)
	assert.Contains(t, ue.Dep, "db")
}

// TestEvent_Narrowing verifies the event lookup admits only the
// requested event type.
func TestEvent_Narrowing(t *testing.T) {
	amb := &fakeAmbient{event: &dogEvent{name: "rex"}}

	v, err := Event[*dogEvent]().Resolve(NewScope(context.Background(), amb))
	require.NoError(t, err)
	assert.Equal(t, "rex", v.name)

	_, err = Event[*catEvent]().Resolve(NewScope(context.Background(), amb))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsatisfied)

	var ue *UnsatisfiedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ReasonMismatch, ue.Reason)
	assert.Equal(t, "*di.catEvent", ue.Want)
	assert.Equal(t, "*di.dogEvent", ue.Got)
}

// TestEvent_Missing verifies a nil ambient event is reported as
// missing rather than mismatched.
func TestEvent_Missing(t *testing.T) {
	_, err := Event[*dogEvent]().Resolve(NewScope(context.Background(), &fakeAmbient{}))
	require.Error(t, err)

	var ue *UnsatisfiedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ReasonMissing, ue.Reason)
}

type echoAdapter struct{}

func (echoAdapter) Send(string) {}

type sender interface{ Send(string) }

// TestAdapterOf_Probe verifies the adapter lookup scans the adapter
// list for the first match of the requested type.
func TestAdapterOf_Probe(t *testing.T) {
	amb := &fakeAmbient{adapters: []any{"not it", echoAdapter{}}}

	v, err := AdapterOf[sender]().Resolve(NewScope(context.Background(), amb))
	require.NoError(t, err)
	assert.NotNil(t, v)

	_, err = AdapterOf[*dogEvent]().Resolve(NewScope(context.Background(), amb))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsatisfied)
}

// TestAdapterOf_Empty verifies probing with no adapters registered
// reports a missing value.
func TestAdapterOf_Empty(t *testing.T) {
	_, err := AdapterOf[sender]().Resolve(NewScope(context.Background(), &fakeAmbient{}))
	require.Error(t, err)

	var ue *UnsatisfiedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ReasonMissing, ue.Reason)
}

// TestLogger verifies the logger lookup.
func TestLogger(t *testing.T) {
	l := slog.Default()
	v, err := Logger().Resolve(NewScope(context.Background(), &fakeAmbient{logger: l}))
	require.NoError(t, err)
	assert.Same(t, l, v)

	_, err = Logger().Resolve(NewScope(context.Background(), &fakeAmbient{}))
	assert.ErrorIs(t, err, ErrUnsatisfied)
}

// TestSelect verifies deriving a value from another dependency.
func TestSelect(t *testing.T) {
	base := Event[*dogEvent]()
	name := Select(base, func(e *dogEvent) (string, error) { return e.name, nil })

	amb := &fakeAmbient{event: &dogEvent{name: "rex"}}
	v, err := name.Resolve(NewScope(context.Background(), amb))
	require.NoError(t, err)
	assert.Equal(t, "rex", v)
}

// TestSelect_PropagatesUnsatisfied verifies Select passes through the
// inner dependency's failure unchanged.
func TestSelect_PropagatesUnsatisfied(t *testing.T) {
	name := Select(Event[*dogEvent](), func(e *dogEvent) (string, error) { return e.name, nil })

	amb := &fakeAmbient{event: &catEvent{name: "tom"}}
	_, err := name.Resolve(NewScope(context.Background(), amb))
	require.Error(t, err)

	var ue *UnsatisfiedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ReasonMismatch, ue.Reason)
}

// TestSelect_FnError verifies an extraction error surfaces as an
// unsatisfied dependency.
func TestSelect_FnError(t *testing.T) {
	boom := errors.New("no name")
	name := Select(Event[*dogEvent](), func(e *dogEvent) (string, error) { return "", boom })

	amb := &fakeAmbient{event: &dogEvent{}}
	_, err := name.Resolve(NewScope(context.Background(), amb))
	assert.ErrorIs(t, err, ErrUnsatisfied)
	assert.ErrorIs(t, err, boom)
}

// TestValue verifies the fixed-value dependency.
func TestValue(t *testing.T) {
	v, err := Value("hello").Resolve(NewScope(context.Background(), &fakeAmbient{}))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

// TestCurrentSession_Missing verifies the session lookup is
// unsatisfied outside a session.
func TestCurrentSession_Missing(t *testing.T) {
	_, err := CurrentSession[any]().Resolve(NewScope(context.Background(), &fakeAmbient{}))
	assert.ErrorIs(t, err, ErrUnsatisfied)
}
