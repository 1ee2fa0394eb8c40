package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Params map[string]any

func (f Params) String() string {
	marshal, _ := json.Marshal(f)
	return strings.ReplaceAll(string(marshal), "\"", "'")
}

func (f Params) Unmarshal(target any) error {
	marshal, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return json.Unmarshal(marshal, target)
}

// ActionHandler applies one action to the document.
type ActionHandler func(doc Document, action *Action) error

// ActionInstance builds a handler from its entry in the actions config.
type ActionInstance func(config Params) (ActionHandler, error)

func HandlerWrapper(name string, call ActionHandler) ActionHandler {
	return func(doc Document, action *Action) error {
		zap.L().Debug(fmt.Sprintf("call action(%s) before", name), zap.Any("action", action))
		err := call(doc, action)
		zap.L().Debug(fmt.Sprintf("call action(%s) after", name), zap.Any("action", action), zap.Error(err))
		return err
	}
}
