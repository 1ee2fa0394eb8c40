package actions

import (
	"gopkg.d7z.net/page-overlay/pkg/core"
)

var ActionInstInsert core.ActionInstance = func(_ core.Params) (core.ActionHandler, error) {
	return func(doc core.Document, action *core.Action) error {
		if err := action.Require("position", "target", "element"); err != nil {
			return err
		}
		nodes, err := doc.Query(action.Target)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return core.TargetNotFoundErrorf("insert action target not found: %s", action.Target)
		}
		position, ok := core.ParsePosition(action.Position)
		if !ok {
			return core.DispatchErrorf("unsupported insert position: %q", action.Position)
		}
		return doc.InsertRelative(nodes[0], position, action.Element)
	}, nil
}
