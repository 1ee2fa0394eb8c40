package providers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// LocalProvider serves files from a directory. Overlays shadow files on disk
// without touching them.
type LocalProvider struct {
	path string

	lock    sync.RWMutex
	overlay map[string][]byte
}

func NewLocalProvider(path string) *LocalProvider {
	return &LocalProvider{
		path:    path,
		overlay: map[string][]byte{},
	}
}

func (l *LocalProvider) AddOverlay(path string, overlay []byte) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.overlay[strings.Trim(path, "/")] = overlay
}

func (l *LocalProvider) Close() error {
	return nil
}

func (l *LocalProvider) Open(_ context.Context, path string, _ http.Header) (*http.Response, error) {
	var all []byte
	recorder := httptest.NewRecorder()
	l.lock.RLock()
	data, ok := l.overlay[strings.Trim(path, "/")]
	l.lock.RUnlock()
	if ok {
		all = data
		recorder.Header().Add("Content-Length", strconv.FormatInt(int64(len(data)), 10))
	} else {
		open, err := os.Open(filepath.Join(l.path, filepath.FromSlash(filepath.Clean("/"+path))))
		if err != nil {
			return nil, errors.Join(err, os.ErrNotExist)
		}
		defer open.Close()
		stat, err := open.Stat()
		if err != nil || stat.IsDir() {
			return nil, errors.Join(err, os.ErrNotExist)
		}
		all, err = io.ReadAll(open)
		if err != nil {
			return nil, errors.Join(err, os.ErrNotExist)
		}
		recorder.Header().Add("Content-Length", strconv.FormatInt(stat.Size(), 10))
		recorder.Header().Add("Last-Modified", stat.ModTime().UTC().Format(http.TimeFormat))
	}

	recorder.Body = bytes.NewBuffer(all)
	recorder.Header().Add("Content-Type", mime.TypeByExtension(filepath.Ext(path)))

	return recorder.Result(), nil
}
