package actions

import (
	"gopkg.d7z.net/page-overlay/pkg/core"
)

var ActionInstRemove core.ActionInstance = func(_ core.Params) (core.ActionHandler, error) {
	return func(doc core.Document, action *core.Action) error {
		if err := action.Require("selector"); err != nil {
			return err
		}
		nodes, err := doc.Query(action.Selector)
		if err != nil {
			return err
		}
		for _, node := range nodes {
			if err = doc.Remove(node); err != nil {
				return err
			}
		}
		return nil
	}, nil
}
