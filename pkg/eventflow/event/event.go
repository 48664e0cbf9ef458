// Package event defines the immutable stimulus record consumed by the
// flow engine.
//
// An Event is created once by a source or protocol adapter and then
// read by every flow traversal that accepts it. Nothing in this package
// mutates an Event after construction; resumption of a suspended
// session swaps the traversal's active event for a new one instead of
// changing the old one.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Origin describes which source produced an event.
type Origin struct {
	// Source names the I/O source (e.g., "websocket", "console").
	Source string
	// Adapter names the protocol adapter that decoded the event.
	Adapter string
}

// Segment is one typed content fragment of an event.
// Segments allow generic, cross-protocol handling of rich content.
type Segment interface {
	// Kind returns the segment discriminator (e.g., "text", "media").
	Kind() string
}

// Text is a plain-text content segment.
type Text struct {
	Value string
}

// Kind implements Segment.
func (Text) Kind() string { return "text" }

// Media is a reference to out-of-band media content.
type Media struct {
	URL  string
	MIME string
}

// Kind implements Segment.
func (Media) Kind() string { return "media" }

// Raw carries protocol-specific content that has no generic form.
type Raw struct {
	Type  string
	Value any
}

// Kind implements Segment.
func (r Raw) Kind() string { return r.Type }

// Event is one unit of external stimulus.
//
// Events are immutable: all fields are set at construction and only
// exposed through accessors. An Event may be shared freely across
// concurrent traversals.
type Event struct {
	id       string
	at       time.Time
	protocol string
	scope    string
	origin   Origin
	contents []Segment
}

// Option configures event construction.
type Option func(*Event)

// WithID overrides the auto-generated event ID.
func WithID(id string) Option {
	return func(e *Event) { e.id = id }
}

// WithTime overrides the creation timestamp (default: time.Now()).
func WithTime(t time.Time) Option {
	return func(e *Event) { e.at = t }
}

// WithScope sets the conversation/thread scope used by the default
// session rule.
func WithScope(scope string) Option {
	return func(e *Event) { e.scope = scope }
}

// WithOrigin records which source and adapter produced the event.
func WithOrigin(o Origin) Option {
	return func(e *Event) { e.origin = o }
}

// WithContents sets the ordered content segments.
func WithContents(segs ...Segment) Option {
	return func(e *Event) {
		e.contents = make([]Segment, len(segs))
		copy(e.contents, segs)
	}
}

// New creates an event for the given protocol tag.
// The ID is a collision-resistant UUID unless overridden.
func New(protocol string, opts ...Option) *Event {
	e := &Event{
		id:       uuid.New().String(),
		at:       time.Now(),
		protocol: protocol,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the unique event identifier.
func (e *Event) ID() string { return e.id }

// Time returns the creation timestamp.
func (e *Event) Time() time.Time { return e.at }

// Protocol returns the protocol tag.
func (e *Event) Protocol() string { return e.protocol }

// Scope returns the conversation/thread identity, or "" if the
// producing adapter did not set one.
func (e *Event) Scope() string { return e.scope }

// Origin returns the descriptor of the producing source.
func (e *Event) Origin() Origin { return e.origin }

// Contents returns a copy of the ordered content segments.
func (e *Event) Contents() []Segment {
	if e.contents == nil {
		return nil
	}
	out := make([]Segment, len(e.contents))
	copy(out, e.contents)
	return out
}

// PlainText concatenates all text segments, ignoring other kinds.
func (e *Event) PlainText() string {
	var s string
	for _, seg := range e.contents {
		if t, ok := seg.(Text); ok {
			s += t.Value
		}
	}
	return s
}
