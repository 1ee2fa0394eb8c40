package core

import (
	"fmt"
	"math"
	"strconv"
)

const (
	ActionRemove  = "remove"
	ActionReplace = "replace"
	ActionInsert  = "insert"
	ActionAlter   = "alter"
)

// Action is one declarative document mutation. Only the fields of its type are
// meaningful; Raw keeps the record as written.
type Action struct {
	Index    int     `json:"-"`
	Type     string  `json:"type"`
	Priority float64 `json:"priority"`

	Selector   string `json:"selector,omitempty"`   // remove, replace
	NewElement string `json:"newElement,omitempty"` // replace
	Position   string `json:"position,omitempty"`   // insert
	Target     string `json:"target,omitempty"`     // insert
	Element    string `json:"element,omitempty"`    // insert
	OldValue   string `json:"oldValue,omitempty"`   // alter
	NewValue   string `json:"newValue,omitempty"`   // alter

	Raw map[string]any `json:"-"`

	// set while decoding, reported by the pipeline before dispatch
	invalid error
}

func (a *Action) String() string {
	return fmt.Sprintf("%s(#%d, priority=%v)", a.Type, a.Index, a.Priority)
}

// Has reports whether the record carries a usable value for field. Empty
// strings count as missing.
func (a *Action) Has(field string) bool {
	v, ok := a.Raw[field]
	if !ok || v == nil {
		return false
	}
	s, ok := scalarString(v)
	return ok && s != ""
}

// Present reports whether field exists with a scalar value, empty included.
func (a *Action) Present(field string) bool {
	v, ok := a.Raw[field]
	if !ok || v == nil {
		return false
	}
	_, ok = scalarString(v)
	return ok
}

// Require returns a ValidationError naming the first missing field.
func (a *Action) Require(fields ...string) error {
	for _, field := range fields {
		if !a.Has(field) {
			return ValidationErrorf("%s action missing '%s'", a.Type, field)
		}
	}
	return nil
}

// decodeAction converts one entry of the actions sequence. It never fails:
// problems are recorded on the action and surfaced at dispatch so that the
// entry still takes its place in the priority order.
func decodeAction(index int, value any) *Action {
	rel := &Action{Index: index}
	m, ok := asMapping(value)
	if !ok {
		rel.invalid = ValidationErrorf("action must be a mapping, got %T", value)
		return rel
	}
	rel.Raw = m
	if t, ok := scalarString(m["type"]); ok {
		rel.Type = t
	}
	if p, ok := m["priority"]; ok && p != nil {
		priority, err := toPriority(p)
		if err != nil {
			rel.invalid = err
		} else {
			rel.Priority = priority
		}
	}
	rel.Selector = rel.field("selector")
	rel.NewElement = rel.field("newElement")
	rel.Position = rel.field("position")
	rel.Target = rel.field("target")
	rel.Element = rel.field("element")
	rel.OldValue = rel.field("oldValue")
	rel.NewValue = rel.field("newValue")
	return rel
}

func (a *Action) field(name string) string {
	s, _ := scalarString(a.Raw[name])
	return s
}

func toPriority(value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, ValidationErrorf("priority %q is not a number", v)
		}
		f = parsed
	default:
		return 0, ValidationErrorf("priority of type %T is not a number", value)
	}
	if math.IsNaN(f) {
		return 0, ValidationErrorf("priority is NaN")
	}
	return f, nil
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func asMapping(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		rel := make(map[string]any, len(v))
		for key, item := range v {
			k, ok := scalarString(key)
			if !ok {
				return nil, false
			}
			rel[k] = item
		}
		return rel, true
	default:
		return nil, false
	}
}
