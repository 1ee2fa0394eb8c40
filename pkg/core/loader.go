package core

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Fetcher turns a resource path into its raw text. A missing resource or a
// non-success response is an error.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

type FetcherFunc func(ctx context.Context, path string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// Parser turns raw structured text into plain values (maps, slices, scalars).
type Parser func(data []byte) (any, error)

// ParseYAML is the default Parser. YAML is a superset of JSON, so JSON
// resources load through it as well.
func ParseYAML(data []byte) (any, error) {
	var rel any
	if err := yaml.Unmarshal(data, &rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// Loader retrieves one named resource. It neither caches nor retries.
type Loader struct {
	fetcher Fetcher
	parser  Parser
	prefix  string
}

func NewLoader(fetcher Fetcher, parser Parser, prefix string) *Loader {
	if parser == nil {
		parser = ParseYAML
	}
	return &Loader{
		fetcher: fetcher,
		parser:  parser,
		prefix:  prefix,
	}
}

// Path is the fetch address of resource id.
func (l *Loader) Path(id string) string {
	if l.prefix == "" {
		return id
	}
	return strings.TrimSuffix(l.prefix, "/") + "/" + strings.TrimPrefix(id, "/")
}

func (l *Loader) Load(ctx context.Context, id string) (any, error) {
	path := l.Path(id)
	zap.L().Debug("load config resource", zap.String("resource", id), zap.String("path", path))
	data, err := l.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, &Error{Kind: KindLoad, Resource: id, Index: -1, Message: "failed to load configuration file", Cause: err}
	}
	value, err := l.parser(data)
	if err != nil {
		return nil, &Error{Kind: KindParse, Resource: id, Index: -1, Message: "failed to parse configuration file", Cause: err}
	}
	return value, nil
}
