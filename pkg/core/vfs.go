package core

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// MaxFileLoadSize limits the maximum size of file loaded into memory (10MB)
const MaxFileLoadSize = 10 * 1024 * 1024

// PageVFS reads whole files out of a Backend. It is also the Fetcher used
// when configuration resources live next to the pages.
type PageVFS struct {
	backend Backend
	limit   int64
}

var _ Fetcher = (*PageVFS)(nil)

func NewPageVFS(backend Backend, limit int64) *PageVFS {
	if limit <= 0 {
		limit = MaxFileLoadSize
	}
	return &PageVFS{
		backend: backend,
		limit:   limit,
	}
}

func (p *PageVFS) NativeOpen(ctx context.Context, path string, headers http.Header) (*http.Response, error) {
	return p.backend.Open(ctx, "/"+strings.TrimPrefix(path, "/"), headers)
}

// Exists reports whether path opens with 200 OK.
func (p *PageVFS) Exists(ctx context.Context, path string) (bool, error) {
	open, err := p.NativeOpen(ctx, path, nil)
	if open != nil {
		defer open.Body.Close()
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil || open == nil {
		return false, err
	}
	if open.StatusCode != http.StatusOK {
		return false, nil
	}
	return true, nil
}

func (p *PageVFS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := p.NativeOpen(ctx, path, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, os.ErrNotExist
	}
	return resp.Body, nil
}

func (p *PageVFS) Read(ctx context.Context, path string) ([]byte, error) {
	open, err := p.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer open.Close()

	data, err := io.ReadAll(io.LimitReader(open, p.limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.limit {
		return nil, &os.PathError{Op: "read", Path: path, Err: ErrTooLarge}
	}
	return data, nil
}

func (p *PageVFS) Fetch(ctx context.Context, path string) ([]byte, error) {
	return p.Read(ctx, path)
}
