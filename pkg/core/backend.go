package core

import (
	"context"
	"io"
	"net/http"
)

// Backend serves the raw files of a site: pages, assets and, usually,
// the configuration resources.
type Backend interface {
	io.Closer
	// Open return file or error (os.ErrNotExist when the file is missing)
	Open(ctx context.Context, path string, headers http.Header) (*http.Response, error)
}
