package providers

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ProviderUpstream reads pages from an origin server.
type ProviderUpstream struct {
	base   *url.URL
	client *http.Client
}

func NewUpstream(client *http.Client, target string) (*ProviderUpstream, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, errors.Wrap(err, "parse upstream url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("upstream url must be http or https: %s", target)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ProviderUpstream{base: u, client: client}, nil
}

func (p *ProviderUpstream) Open(ctx context.Context, path string, headers http.Header) (*http.Response, error) {
	target := *p.base
	target.Path = strings.TrimSuffix(p.base.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, errors.Wrap(os.ErrNotExist, target.String())
	}
	return resp, nil
}

func (p *ProviderUpstream) Close() error {
	return nil
}
