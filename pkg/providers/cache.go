package providers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gopkg.d7z.net/page-overlay/pkg/core"
	"gopkg.d7z.net/page-overlay/pkg/utils"
)

type cachedBlob struct {
	notFound bool
	header   http.Header
	data     []byte
}

// ProviderCache keeps recently served files in memory. Only files up to
// cacheBlobLimit bytes are kept; missing files are remembered too.
type ProviderCache struct {
	parent core.Backend

	cacheBlob      *expirable.LRU[string, *cachedBlob]
	cacheBlobLimit int64
}

func NewProviderCache(backend core.Backend, size int, ttl time.Duration, cacheBlobLimit int64) *ProviderCache {
	if cacheBlobLimit <= 0 {
		cacheBlobLimit = core.MaxFileLoadSize
	}
	return &ProviderCache{
		parent:         backend,
		cacheBlob:      expirable.NewLRU[string, *cachedBlob](size, nil, ttl),
		cacheBlobLimit: cacheBlobLimit,
	}
}

func (c *ProviderCache) Close() error {
	c.cacheBlob.Purge()
	return c.parent.Close()
}

func (c *ProviderCache) Open(ctx context.Context, path string, headers http.Header) (*http.Response, error) {
	if headers != nil && headers.Get("Range") != "" {
		// ignore custom header
		return c.parent.Open(ctx, path, headers)
	}
	if blob, ok := c.cacheBlob.Get(path); ok {
		if blob.notFound {
			return nil, os.ErrNotExist
		}
		respHeader := blob.header.Clone()
		respHeader.Set("X-Cache", "HIT")
		return &http.Response{
			Status:        "200 OK",
			StatusCode:    http.StatusOK,
			Proto:         "HTTP/1.1",
			ProtoMajor:    1,
			ProtoMinor:    1,
			Body:          utils.NopCloser{ReadSeeker: bytes.NewReader(blob.data)},
			ContentLength: int64(len(blob.data)),
			Header:        respHeader,
		}, nil
	}

	open, err := c.parent.Open(ctx, path, http.Header{})
	if err != nil {
		if open != nil {
			_ = open.Body.Close()
		}
		if errors.Is(err, os.ErrNotExist) {
			c.cacheBlob.Add(path, &cachedBlob{notFound: true})
		}
		return nil, err
	}
	if open.StatusCode != http.StatusOK {
		return open, nil
	}
	if length, err := strconv.ParseInt(open.Header.Get("Content-Length"), 10, 64); err == nil && length > c.cacheBlobLimit {
		return open, nil
	}

	head, err := io.ReadAll(io.LimitReader(open.Body, c.cacheBlobLimit+1))
	if err != nil {
		_ = open.Body.Close()
		return nil, err
	}
	if int64(len(head)) > c.cacheBlobLimit {
		zap.L().Debug("skip cache, file too large", zap.String("path", path))
		body := open.Body
		open.Body = &utils.CloserWrapper{
			ReadCloser: io.NopCloser(io.MultiReader(bytes.NewReader(head), body)),
			OnClose:    func() { _ = body.Close() },
		}
		return open, nil
	}
	_ = open.Body.Close()

	header := http.Header{}
	for _, key := range []string{"Content-Type", "Last-Modified"} {
		if value := open.Header.Get(key); value != "" {
			header.Set(key, value)
		}
	}
	header.Set("Content-Length", strconv.Itoa(len(head)))
	c.cacheBlob.Add(path, &cachedBlob{header: header, data: head})

	open.Header.Set("X-Cache", "MISS")
	open.Body = utils.NopCloser{ReadSeeker: bytes.NewReader(head)}
	return open, nil
}
