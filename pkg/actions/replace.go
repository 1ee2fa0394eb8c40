package actions

import (
	"gopkg.d7z.net/page-overlay/pkg/core"
)

// ActionInstReplace swaps every match with its own copy of the new markup.
var ActionInstReplace core.ActionInstance = func(_ core.Params) (core.ActionHandler, error) {
	return func(doc core.Document, action *core.Action) error {
		if err := action.Require("selector", "newElement"); err != nil {
			return err
		}
		nodes, err := doc.Query(action.Selector)
		if err != nil {
			return err
		}
		for _, node := range nodes {
			if err = doc.Replace(node, action.NewElement); err != nil {
				return err
			}
		}
		return nil
	}, nil
}
