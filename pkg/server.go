package pkg

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gopkg.d7z.net/page-overlay/pkg/actions"
	"gopkg.d7z.net/page-overlay/pkg/core"
	"gopkg.d7z.net/page-overlay/pkg/dom"
	"gopkg.d7z.net/page-overlay/pkg/utils"
)

type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type serverOptions struct {
	fetcher       core.Fetcher
	configBackend core.Backend
	parser        core.Parser
	prefix        string
	main          string
	defaults      []string
	sequential    bool
	documents     []string
	maxSize       int64
	actionConfig  map[string]map[string]any
	errorHandler  ErrorHandler
}

type ServerOption func(o *serverOptions)

// WithFetcher loads configuration resources from somewhere other than the
// page backend.
func WithFetcher(fetcher core.Fetcher) ServerOption {
	return func(o *serverOptions) {
		o.fetcher = fetcher
	}
}

// WithConfigBackend reads configuration resources straight from backend,
// typically the one the page cache wraps, so edits show up on the next load.
func WithConfigBackend(backend core.Backend) ServerOption {
	return func(o *serverOptions) {
		o.configBackend = backend
	}
}

func WithParser(parser core.Parser) ServerOption {
	return func(o *serverOptions) {
		o.parser = parser
	}
}

// WithConfigPrefix sets the path every resource identifier is resolved under.
func WithConfigPrefix(prefix string) ServerOption {
	return func(o *serverOptions) {
		o.prefix = prefix
	}
}

// WithMainConfig sets the main config identifier; "" always uses the defaults.
func WithMainConfig(id string) ServerOption {
	return func(o *serverOptions) {
		o.main = id
	}
}

func WithDefaultConfigs(ids ...string) ServerOption {
	return func(o *serverOptions) {
		o.defaults = ids
	}
}

func WithSequential(sequential bool) ServerOption {
	return func(o *serverOptions) {
		o.sequential = sequential
	}
}

// WithDocuments sets the glob patterns of the paths that are parsed and
// mutated. Other files pass through untouched.
func WithDocuments(patterns ...string) ServerOption {
	return func(o *serverOptions) {
		o.documents = patterns
	}
}

func WithMaxSize(size int64) ServerOption {
	return func(o *serverOptions) {
		o.maxSize = size
	}
}

func WithActionConfig(config map[string]map[string]any) ServerOption {
	return func(o *serverOptions) {
		o.actionConfig = config
	}
}

func WithErrorHandler(handler ErrorHandler) ServerOption {
	return func(o *serverOptions) {
		o.errorHandler = handler
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "page not found.", http.StatusNotFound)
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type Server struct {
	backend   core.Backend
	vfs       *core.PageVFS
	engine    *core.Engine
	documents []glob.Glob
	maxSize   int64

	errorHandler ErrorHandler
}

func NewOverlayServer(backend core.Backend, opts ...ServerOption) (*Server, error) {
	options := &serverOptions{
		prefix:       "config/",
		main:         "mainConfig.yaml",
		defaults:     []string{"config1.yaml", "config2.yaml"},
		documents:    []string{"**.html", "**.htm"},
		maxSize:      core.MaxFileLoadSize,
		actionConfig: make(map[string]map[string]any),
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(options)
	}
	vfs := core.NewPageVFS(backend, options.maxSize)
	if options.fetcher == nil {
		if options.configBackend != nil {
			options.fetcher = core.NewPageVFS(options.configBackend, options.maxSize)
		} else {
			options.fetcher = vfs
		}
	}
	documents := make([]glob.Glob, 0, len(options.documents))
	for _, pattern := range options.documents {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid document pattern: %s", pattern)
		}
		documents = append(documents, g)
	}
	handlers, err := actions.DefaultActions(options.actionConfig)
	if err != nil {
		return nil, errors.Wrap(err, "init actions")
	}
	engine := core.NewEngine(
		core.NewLoader(options.fetcher, options.parser, options.prefix),
		core.NewPipeline(handlers),
		core.WithMainConfig(options.main),
		core.WithDefaultResources(options.defaults...),
		core.WithSequential(options.sequential),
	)
	return &Server{
		backend:      backend,
		vfs:          vfs,
		engine:       engine,
		documents:    documents,
		maxSize:      options.maxSize,
		errorHandler: options.errorHandler,
	}, nil
}

func (s *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	sessionID := request.Header.Get("Session-ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
		request.Header.Set("Session-ID", sessionID)
	}
	writer.Header().Set("Session-ID", sessionID)
	if request.Method != http.MethodGet && request.Method != http.MethodHead {
		writer.Header().Set("Allow", "GET, HEAD")
		http.Error(writer, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	tracked := utils.NewStatusWriter(writer)
	err := s.Serve(tracked, request)
	if err != nil && !tracked.Committed() {
		zap.L().Debug("serve failed",
			zap.String("session", sessionID),
			zap.String("host", request.Host),
			zap.String("path", request.URL.Path),
			zap.Error(err))
		s.errorHandler(writer, request, err)
		return
	}
	if err != nil {
		zap.L().Warn("response interrupted",
			zap.String("session", sessionID),
			zap.String("path", request.URL.Path),
			zap.Int64("written", tracked.Written),
			zap.Error(err))
	}
}

func (s *Server) Serve(writer http.ResponseWriter, request *http.Request) error {
	path := request.URL.Path
	if path == "" || strings.HasSuffix(path, "/") {
		path += "index.html"
	}
	resp, err := s.vfs.NativeOpen(request.Context(), path, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(os.ErrNotExist, "%s: upstream status %d", path, resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if !s.isDocument(path, contentType) {
		return s.passthrough(writer, resp, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return err
	}
	if int64(len(data)) > s.maxSize {
		zap.L().Warn("document too large, served unchanged", zap.String("path", path), zap.Int64("limit", s.maxSize))
		resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), resp.Body))
		return s.passthrough(writer, resp, contentType)
	}
	body, applied := s.overlay(request, data)

	writer.Header().Set("X-Overlay-Resources", strconv.Itoa(applied))
	writer.Header().Set("Content-Type", contentType)
	writer.Header().Set("Content-Length", strconv.Itoa(len(body)))
	writer.WriteHeader(http.StatusOK)
	if request.Method != http.MethodHead {
		_, _ = writer.Write(body)
	}
	return nil
}

// overlay applies the configuration resources of the request's context to
// data and reports how many resources were applied. On any failure the page
// is returned as it came.
func (s *Server) overlay(request *http.Request, data []byte) ([]byte, int) {
	doc, err := dom.Parse(bytes.NewReader(data))
	if err != nil {
		zap.L().Warn("failed to parse document, served unchanged", zap.String("path", request.URL.Path), zap.Error(err))
		return data, 0
	}
	result := s.engine.Apply(request.Context(), doc, core.NewContext(request.Host, request.URL.Path))
	if len(result.Resources) == 0 {
		return data, 0
	}
	var out bytes.Buffer
	if err = doc.Render(&out); err != nil {
		zap.L().Warn("failed to render document, served unchanged", zap.String("path", request.URL.Path), zap.Error(err))
		return data, 0
	}
	zap.L().Debug("document overlaid",
		zap.String("session", request.Header.Get("Session-ID")),
		zap.String("path", request.URL.Path),
		zap.Strings("resources", result.Resources),
		zap.Int("applied", result.Applied()))
	return out.Bytes(), result.Applied()
}

func (s *Server) isDocument(path, contentType string) bool {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "text/html" {
		return false
	}
	path = strings.TrimPrefix(path, "/")
	for _, g := range s.documents {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func (s *Server) passthrough(writer http.ResponseWriter, resp *http.Response, contentType string) error {
	if contentType != "" {
		writer.Header().Set("Content-Type", contentType)
	}
	for _, key := range []string{"Content-Length", "Last-Modified", "X-Cache"} {
		if value := resp.Header.Get(key); value != "" {
			writer.Header().Set(key, value)
		}
	}
	writer.WriteHeader(http.StatusOK)
	_, err := io.Copy(writer, resp.Body)
	return err
}

func (s *Server) Close() error {
	return s.backend.Close()
}
