package core

import (
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MainConfig 选择配置资源的入口文件
type MainConfig struct {
	Datasource *Datasource `yaml:"datasource"`
}

type Datasource struct {
	Hosts map[string]Sources `yaml:"hosts"` // 按域名
	URLs  map[string]Sources `yaml:"urls"`  // 按路径
	Pages map[string]Sources `yaml:"pages"` // 按页面类型
}

// Sources is a list of resource identifiers, written in YAML either as one
// scalar or as a sequence. Items that are not scalars are skipped with a
// warning.
type Sources []string

func (s *Sources) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*s = nil
			return nil
		}
		*s = Sources{}.with(value.Value)
		return nil
	case yaml.SequenceNode:
		rel := Sources{}
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				zap.L().Warn("skip resource identifier that is not a string", zap.Int("line", item.Line))
				continue
			}
			if item.Tag == "!!null" {
				continue
			}
			rel = rel.with(item.Value)
		}
		*s = rel
		return nil
	default:
		zap.L().Warn("skip entry that is neither a resource identifier nor a list of them", zap.Int("line", value.Line))
		*s = nil
		return nil
	}
}

func (s Sources) with(item string) Sources {
	item = strings.TrimSpace(item)
	if item == "" {
		return s
	}
	return append(s, item)
}

// DecodeMainConfig converts a parsed structured value into a MainConfig.
func DecodeMainConfig(value any) (*MainConfig, error) {
	if _, ok := asMapping(value); !ok {
		return nil, ValidationErrorf("main config must be a mapping")
	}
	cfg := new(MainConfig)
	if err := decodeValue(value, cfg); err != nil {
		return nil, &Error{Kind: KindValidation, Index: -1, Message: "invalid main config", Cause: err}
	}
	if cfg.Datasource == nil {
		return nil, ValidationErrorf("main config missing 'datasource'")
	}
	return cfg, nil
}

// decodeValue re-encodes a generic value so it can be decoded into a typed
// target with the usual yaml tags.
func decodeValue(value, target any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, target)
}
