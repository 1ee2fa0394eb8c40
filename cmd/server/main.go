package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gopkg.d7z.net/page-overlay/pkg"
	"gopkg.d7z.net/page-overlay/pkg/core"
	"gopkg.d7z.net/page-overlay/pkg/providers"
)

var (
	configPath = "config-local.yaml"
	debug      = false
)

func main() {
	flag.StringVar(&configPath, "conf", configPath, "config file path")
	flag.BoolVar(&debug, "debug", debug, "debug mode")
	flag.Parse()

	call := logInject()
	defer call()
	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("fail to load config file: %v", err)
	}

	source, err := newBackend(config)
	if err != nil {
		log.Fatalln(err)
	}
	overlayServer, err := pkg.NewOverlayServer(withCache(config, source), serverOptions(config, source)...)
	if err != nil {
		log.Fatalln(err)
	}
	defer overlayServer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	svc := http.Server{Addr: config.Bind, Handler: overlayServer}
	go func() {
		<-ctx.Done()
		zap.L().Debug("shutdown gracefully")
		_ = svc.Close()
	}()
	zap.L().Info("listening", zap.String("bind", config.Bind), zap.String("backend", config.Backend.Type))
	if err = svc.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().Error("server stopped", zap.Error(err))
	}
}

func newBackend(config *Config) (core.Backend, error) {
	var backend core.Backend
	switch config.Backend.Type {
	case "gitea":
		gitea, err := providers.NewGitea(http.DefaultClient, config.Backend.Server, config.Backend.Token,
			config.Backend.Owner, config.Backend.Repo, config.Backend.Branch)
		if err != nil {
			return nil, err
		}
		backend = gitea
	case "upstream":
		upstream, err := providers.NewUpstream(http.DefaultClient, config.Backend.URL)
		if err != nil {
			return nil, err
		}
		backend = upstream
	default:
		backend = providers.NewLocalProvider(config.Backend.Path)
	}
	return backend, nil
}

// withCache puts the page cache in front of backend when it is enabled.
func withCache(config *Config, backend core.Backend) core.Backend {
	if config.Cache.Size <= 0 {
		return backend
	}
	return providers.NewProviderCache(backend, config.Cache.Size, config.Cache.TTL, int64(config.Overlay.MaxSize))
}

// serverOptions translates the config; source is the uncached page backend,
// which configuration resources are read from.
func serverOptions(config *Config, source core.Backend) []pkg.ServerOption {
	opts := []pkg.ServerOption{
		pkg.WithSequential(config.Overlay.Sequential),
		pkg.WithActionConfig(config.Actions),
		pkg.WithErrorHandler(config.ErrorHandler),
	}
	if config.Overlay.Source == "http" {
		opts = append(opts, pkg.WithFetcher(providers.NewHTTPFetcher(http.DefaultClient, config.Overlay.URL, int64(config.Overlay.MaxSize))))
	} else {
		opts = append(opts, pkg.WithConfigBackend(source))
	}
	if config.Overlay.Prefix != nil {
		opts = append(opts, pkg.WithConfigPrefix(*config.Overlay.Prefix))
	}
	if config.Overlay.Main != nil {
		opts = append(opts, pkg.WithMainConfig(*config.Overlay.Main))
	}
	if config.Overlay.Defaults != nil {
		opts = append(opts, pkg.WithDefaultConfigs(config.Overlay.Defaults...))
	}
	if len(config.Overlay.Documents) > 0 {
		opts = append(opts, pkg.WithDocuments(config.Overlay.Documents...))
	}
	if config.Overlay.MaxSize > 0 {
		opts = append(opts, pkg.WithMaxSize(int64(config.Overlay.MaxSize)))
	}
	return opts
}

func logInject() func() {
	atom := zap.NewAtomicLevel()
	if debug {
		atom.SetLevel(zap.DebugLevel)
	} else {
		atom.SetLevel(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = atom

	logger, _ := cfg.Build()
	zap.ReplaceGlobals(logger)
	zap.L().Debug("debug enabled")
	return func() {
		if err := logger.Sync(); err != nil {
			fmt.Println(err)
		}
	}
}
