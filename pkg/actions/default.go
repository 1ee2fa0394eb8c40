package actions

import (
	"errors"

	"go.uber.org/zap"

	"gopkg.d7z.net/page-overlay/pkg/core"
)

func DefaultActions(config map[string]map[string]any) (map[string]core.ActionHandler, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	result := make(map[string]core.ActionHandler)
	for key, instance := range map[string]core.ActionInstance{
		core.ActionRemove:  ActionInstRemove,
		core.ActionReplace: ActionInstReplace,
		core.ActionInsert:  ActionInstInsert,
		core.ActionAlter:   ActionInstAlter,
	} {
		item, ok := config[key]
		if !ok {
			item = make(map[string]any)
		}
		if it, ok := item["enabled"]; ok && it == false {
			zap.L().Debug("skip action", zap.String("key", key))
			continue
		}
		inst, err := instance(item)
		if err != nil {
			return nil, err
		}
		result[key] = inst
	}
	return result, nil
}
