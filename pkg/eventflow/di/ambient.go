package di

import (
	"log/slog"
	"reflect"
)

// ambient is the Dependency behind the automatic lookups. get pulls
// the raw value from the Ambient; the assertion to T narrows it.
type ambient[T any] struct {
	name string
	get  func(Ambient) any
}

// Describe implements Dependency.
func (d ambient[T]) Describe() string {
	return d.name + "[" + typeName[T]() + "]"
}

// Resolve implements Dependency.
func (d ambient[T]) Resolve(s *Scope) (T, error) {
	var zero T
	raw := d.get(s.ambient)
	if raw == nil {
		return zero, &UnsatisfiedError{
			Dep:    d.Describe(),
			Want:   typeName[T](),
			Got:    "<nil>",
			Reason: ReasonMissing,
		}
	}
	v, ok := raw.(T)
	if !ok {
		return zero, &UnsatisfiedError{
			Dep:    d.Describe(),
			Want:   typeName[T](),
			Got:    typeNameOf(raw),
			Reason: ReasonMismatch,
		}
	}
	return v, nil
}

func typeNameOf(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}

// Event looks up the event under traversal, narrowed to T. A flow
// handling several event types uses distinct T per node; nodes whose
// T does not match the incoming event are skipped.
func Event[T any]() Dependency[T] {
	return ambient[T]{name: "event", get: Ambient.AmbientEvent}
}

// Runtime looks up the runtime handle (the dispatcher owning the
// traversal), narrowed to T.
func Runtime[T any]() Dependency[T] {
	return ambient[T]{name: "runtime", get: Ambient.AmbientRuntime}
}

// AdapterOf probes the registered adapters for the first one that
// satisfies T.
func AdapterOf[T any]() Dependency[T] {
	return adapterDep[T]{}
}

type adapterDep[T any] struct{}

// Describe implements Dependency.
func (adapterDep[T]) Describe() string { return "adapter[" + typeName[T]() + "]" }

// Resolve implements Dependency.
func (d adapterDep[T]) Resolve(s *Scope) (T, error) {
	var zero T
	adapters := s.ambient.AmbientAdapters()
	for _, a := range adapters {
		if v, ok := a.(T); ok {
			return v, nil
		}
	}
	reason := ReasonMismatch
	if len(adapters) == 0 {
		reason = ReasonMissing
	}
	return zero, &UnsatisfiedError{
		Dep:    d.Describe(),
		Want:   typeName[T](),
		Got:    "<none>",
		Reason: reason,
	}
}

// Logger looks up the traversal's structured logger.
func Logger() Dependency[*slog.Logger] {
	return loggerDep{}
}

type loggerDep struct{}

// Describe implements Dependency.
func (loggerDep) Describe() string { return "logger" }

// Resolve implements Dependency.
func (loggerDep) Resolve(s *Scope) (*slog.Logger, error) {
	l := s.ambient.AmbientLogger()
	if l == nil {
		return nil, &UnsatisfiedError{
			Dep:    "logger",
			Want:   "*slog.Logger",
			Got:    "<nil>",
			Reason: ReasonMissing,
		}
	}
	return l, nil
}

// FlowStore looks up the flow-wide key/value store, narrowed to T.
func FlowStore[T any]() Dependency[T] {
	return ambient[T]{name: "flowstore", get: Ambient.AmbientFlowStore}
}

// Records looks up the traversal's record trail, narrowed to T.
func Records[T any]() Dependency[T] {
	return ambient[T]{name: "records", get: Ambient.AmbientRecords}
}

// CurrentSession looks up the traversal's session, narrowed to T. It
// is unsatisfied until the traversal has entered a session.
func CurrentSession[T any]() Dependency[T] {
	return ambient[T]{name: "session", get: Ambient.AmbientSession}
}

// SessionStore looks up the session's key/value store, narrowed to T.
func SessionStore[T any]() Dependency[T] {
	return ambient[T]{name: "sessionstore", get: Ambient.AmbientSessionStore}
}

// CurrentRule looks up the matching rule the flow was admitted under,
// narrowed to T.
func CurrentRule[T any]() Dependency[T] {
	return ambient[T]{name: "rule", get: Ambient.AmbientRule}
}

// Args looks up the parsed command arguments attached to the event,
// narrowed to T.
func Args[T any]() Dependency[T] {
	return ambient[T]{name: "args", get: Ambient.AmbientArgs}
}
