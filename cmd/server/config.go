package main

import (
	_ "embed"
	"net/http"
	"os"
	"text/template"
	"time"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"gopkg.d7z.net/page-overlay/pkg/utils"
)

//go:embed errors.html.tmpl
var defaultErrPage string

type Config struct {
	Bind string `yaml:"bind"` // HTTP 绑定

	Backend ConfigBackend `yaml:"backend"` // 页面来源
	Cache   ConfigCache   `yaml:"cache"`   // 页面缓存
	Overlay ConfigOverlay `yaml:"overlay"` // 改写配置

	Actions map[string]map[string]any `yaml:"actions"` // 动作配置

	Page ConfigPage `yaml:"page"` // 错误页面

	pageErrNotFound, pageErrUnknown *template.Template
}

func (c *Config) ErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	page := c.pageErrUnknown
	if errors.Is(err, os.ErrNotExist) {
		code = http.StatusNotFound
		page = c.pageErrNotFound
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err = page.Execute(w, utils.NewTemplateInject(r, map[string]any{
		"UUID":  r.Header.Get("Session-ID"),
		"Error": err,
		"Path":  r.URL.Path,
		"Code":  code,
	})); err != nil {
		zap.L().Error("failed to render error page", zap.Error(err))
	}
}

type ConfigBackend struct {
	Type string `yaml:"type"` // local, gitea, upstream

	Path string `yaml:"path"` // local 目录

	Server string `yaml:"server"` // gitea 服务器地址
	Token  string `yaml:"token"`
	Owner  string `yaml:"owner"`
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`

	URL string `yaml:"url"` // upstream 地址
}

type ConfigCache struct {
	Size int           `yaml:"size"` // 缓存条目数, 0 关闭
	TTL  time.Duration `yaml:"ttl"`
}

type ConfigOverlay struct {
	Source     string           `yaml:"source"` // backend, http
	URL        string           `yaml:"url"`
	Prefix     *string          `yaml:"prefix"`
	Main       *string          `yaml:"main"`
	Defaults   []string         `yaml:"defaults"`
	Sequential bool             `yaml:"sequential"`
	Documents  []string         `yaml:"documents"`
	MaxSize    units.Base2Bytes `yaml:"max_size"` // 单个文件最大大小
}

type ConfigPage struct {
	ErrNotFoundPage string `yaml:"404"`
	ErrUnknownPage  string `yaml:"500"`
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var c Config
	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(&c)
	if err != nil {
		return nil, err
	}
	if err = c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.Bind == "" {
		c.Bind = ":8080"
	}
	switch c.Backend.Type {
	case "", "local":
		c.Backend.Type = "local"
		if c.Backend.Path == "" {
			return errors.New("backend.path is required")
		}
		stat, err := os.Stat(c.Backend.Path)
		if err != nil {
			return errors.Wrap(err, "backend dir not exists")
		}
		if !stat.IsDir() {
			return errors.New("backend path is not a directory")
		}
	case "gitea":
		if c.Backend.Server == "" || c.Backend.Owner == "" || c.Backend.Repo == "" {
			return errors.New("backend.server, backend.owner and backend.repo are required")
		}
		if c.Backend.Branch == "" {
			c.Backend.Branch = "gh-pages"
		}
	case "upstream":
		if c.Backend.URL == "" {
			return errors.New("backend.url is required")
		}
	default:
		return errors.Errorf("unknown backend type: %s", c.Backend.Type)
	}
	if c.Cache.Size < 0 {
		return errors.New("cache.size must not be negative")
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = time.Minute
	}
	switch c.Overlay.Source {
	case "":
		c.Overlay.Source = "backend"
	case "backend":
	case "http":
		if c.Overlay.URL == "" {
			return errors.New("overlay.url is required when source is http")
		}
	default:
		return errors.Errorf("unknown overlay source: %s", c.Overlay.Source)
	}
	if c.Overlay.MaxSize < 0 {
		return errors.New("overlay.max_size must not be negative")
	}
	if c.Actions == nil {
		c.Actions = make(map[string]map[string]any)
	}

	defaultErr := utils.MustTemplate(defaultErrPage)
	c.pageErrUnknown = defaultErr
	c.pageErrNotFound = defaultErr
	if c.Page.ErrUnknownPage != "" {
		page, err := loadTemplate(c.Page.ErrUnknownPage)
		if err != nil {
			return err
		}
		c.pageErrUnknown = page
	}
	if c.Page.ErrNotFoundPage != "" {
		page, err := loadTemplate(c.Page.ErrNotFoundPage)
		if err != nil {
			return err
		}
		c.pageErrNotFound = page
	}
	return nil
}

func loadTemplate(path string) (*template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %s", path)
	}
	page, err := utils.NewTemplate(path, string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse template %s", path)
	}
	return page, nil
}
