package session

import "github.com/randalmurphal/eventflow/pkg/eventflow/event"

// Rule decides whether an incoming event belongs to a suspended
// session. stored is the event the session last held; incoming is the
// candidate.
type Rule interface {
	Match(stored, incoming *event.Event) (bool, error)
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(stored, incoming *event.Event) (bool, error)

// Match implements Rule.
func (f RuleFunc) Match(stored, incoming *event.Event) (bool, error) {
	return f(stored, incoming)
}

// ScopeRule matches events carrying the same scope, the usual choice
// for conversational sessions keyed by chat or user.
func ScopeRule() Rule {
	return RuleFunc(func(stored, incoming *event.Event) (bool, error) {
		return stored.Scope() != "" && stored.Scope() == incoming.Scope(), nil
	})
}
