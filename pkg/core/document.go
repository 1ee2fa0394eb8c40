package core

import "strings"

type Position string

const (
	PositionBefore  Position = "before"
	PositionAfter   Position = "after"
	PositionAppend  Position = "append"
	PositionPrepend Position = "prepend"
)

func ParsePosition(s string) (Position, bool) {
	switch p := Position(strings.TrimSpace(s)); p {
	case PositionBefore, PositionAfter, PositionAppend, PositionPrepend:
		return p, true
	default:
		return "", false
	}
}

// Node is a handle to one element of a Document.
type Node interface {
	OuterHTML() (string, error)
}

// Document is the mutable page the actions run against. Every call observes
// the state left by the previous one; nothing is snapshotted.
//
// Markup passed to Replace and InsertRelative is parsed into a fresh fragment
// on every call, in the context of the node it lands next to.
type Document interface {
	// Query returns every element matching selector, in document order. An
	// invalid selector is a ValidationError.
	Query(selector string) ([]Node, error)
	Remove(node Node) error
	Replace(node Node, markup string) error
	InsertRelative(target Node, position Position, markup string) error
	BodyMarkup() (string, error)
	SetBodyMarkup(markup string) error
}
