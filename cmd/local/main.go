package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gopkg.d7z.net/page-overlay/pkg"
	"gopkg.d7z.net/page-overlay/pkg/core"
	"gopkg.d7z.net/page-overlay/pkg/providers"
)

var (
	path       = ""
	prefix     = "config/"
	mainConfig = "mainConfig.yaml"
	sequential = false

	port = ":8080"
)

func init() {
	atom := zap.NewAtomicLevel()
	atom.SetLevel(zap.DebugLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	logger, _ := cfg.Build()
	zap.ReplaceGlobals(logger)
	dir, _ := os.Getwd()
	path = dir
	flag.StringVar(&path, "path", path, "path")
	flag.StringVar(&prefix, "prefix", prefix, "config resource prefix")
	flag.StringVar(&mainConfig, "main", mainConfig, "main config resource")
	flag.BoolVar(&sequential, "sequential", sequential, "apply resources in order")
	flag.StringVar(&port, "port", port, "port")
	flag.Parse()
}

func main() {
	fmt.Printf("请访问 http://localhost%s/ ,本地路径: %s\n", port, path)
	if stat, err := os.Stat(path); err != nil || !stat.IsDir() {
		zap.L().Fatal("path is not a directory", zap.String("path", path))
	}
	provider := providers.NewLocalProvider(path)

	// 校验本地主配置, 方便调试
	vfs := core.NewPageVFS(provider, 0)
	loader := core.NewLoader(vfs, nil, prefix)
	mainPath := loader.Path(mainConfig)
	if ok, _ := vfs.Exists(context.Background(), mainPath); !ok {
		zap.L().Warn("main config not found, default resources will be applied", zap.String("path", mainPath))
	} else if value, err := loader.Load(context.Background(), mainConfig); err != nil {
		zap.L().Fatal("load main config", zap.String("path", mainPath), zap.Error(err))
	} else if _, err = core.DecodeMainConfig(value); err != nil {
		zap.L().Warn("main config is invalid, nothing will be applied", zap.Error(err))
	}

	server, err := pkg.NewOverlayServer(
		provider,
		pkg.WithConfigPrefix(prefix),
		pkg.WithMainConfig(mainConfig),
		pkg.WithSequential(sequential),
		pkg.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, os.ErrNotExist) {
				http.Error(w, "page not found.", http.StatusNotFound)
			} else if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}),
	)
	if err != nil {
		zap.L().Fatal("failed to init overlay", zap.Error(err))
	}
	defer server.Close()
	err = http.ListenAndServe(port, server)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().Fatal("failed to start server", zap.Error(err))
	}
}
