package core

import (
	"sort"

	"go.uber.org/zap"
)

// ActionResult is the outcome of one action, in the order it was dispatched.
type ActionResult struct {
	Index    int
	Type     string
	Priority float64
	Err      error
}

type Report struct {
	Resource string
	Results  []ActionResult
}

// Applied counts the actions whose handler completed without error.
func (r *Report) Applied() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, result := range r.Results {
		if result.Err == nil {
			count++
		}
	}
	return count
}

func (r *Report) Failed() []ActionResult {
	if r == nil {
		return nil
	}
	rel := make([]ActionResult, 0)
	for _, result := range r.Results {
		if result.Err != nil {
			rel = append(rel, result)
		}
	}
	return rel
}

// Pipeline validates an action configuration, orders it and routes every
// action to the handler registered for its type.
type Pipeline struct {
	handlers map[string]ActionHandler
}

func NewPipeline(handlers map[string]ActionHandler) *Pipeline {
	wrapped := make(map[string]ActionHandler, len(handlers))
	for name, handler := range handlers {
		wrapped[name] = HandlerWrapper(name, handler)
	}
	return &Pipeline{handlers: wrapped}
}

// Prepare checks that value carries an actions sequence and returns the
// actions stable-sorted by ascending priority.
func (p *Pipeline) Prepare(resource string, value any) ([]*Action, error) {
	m, ok := asMapping(value)
	if !ok {
		err := ValidationErrorf("invalid configuration format: expected a mapping with an 'actions' array")
		err.Resource = resource
		return nil, err
	}
	raw, ok := m["actions"].([]any)
	if !ok {
		err := ValidationErrorf("invalid configuration format: missing or invalid 'actions' array")
		err.Resource = resource
		return nil, err
	}
	actions := make([]*Action, 0, len(raw))
	for i, item := range raw {
		actions = append(actions, decodeAction(i, item))
	}
	// equal priorities keep their written order
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority < actions[j].Priority
	})
	return actions, nil
}

// Dispatch runs the prepared actions against doc. A failing action is
// recorded and skipped; the ones already applied stay applied.
func (p *Pipeline) Dispatch(doc Document, resource string, actions []*Action) *Report {
	report := &Report{
		Resource: resource,
		Results:  make([]ActionResult, 0, len(actions)),
	}
	for _, action := range actions {
		err := p.dispatch(doc, action)
		if err != nil {
			err.Resource = resource
			err.Index = action.Index
			zap.L().Warn("action skipped",
				zap.String("resource", resource),
				zap.Int("index", action.Index),
				zap.String("type", action.Type),
				zap.String("kind", string(err.Kind)),
				zap.Error(err))
			report.Results = append(report.Results, ActionResult{
				Index: action.Index, Type: action.Type, Priority: action.Priority, Err: err,
			})
			continue
		}
		report.Results = append(report.Results, ActionResult{
			Index: action.Index, Type: action.Type, Priority: action.Priority,
		})
	}
	return report
}

// Apply is Prepare followed by Dispatch.
func (p *Pipeline) Apply(doc Document, resource string, value any) (*Report, error) {
	actions, err := p.Prepare(resource, value)
	if err != nil {
		return nil, err
	}
	return p.Dispatch(doc, resource, actions), nil
}

func (p *Pipeline) dispatch(doc Document, action *Action) *Error {
	if action.invalid != nil {
		return asCoreError(action.invalid, KindValidation)
	}
	handler, ok := p.handlers[action.Type]
	if !ok {
		return DispatchErrorf("unsupported action type: %q", action.Type)
	}
	if err := handler(doc, action); err != nil {
		return asCoreError(err, KindDispatch)
	}
	return nil
}

// asCoreError returns a private copy of err's *Error, or wraps a foreign error
// under fallback.
func asCoreError(err error, fallback ErrorKind) *Error {
	if e, ok := err.(*Error); ok {
		c := *e
		return &c
	}
	return &Error{Kind: fallback, Index: -1, Message: "action failed", Cause: err}
}
