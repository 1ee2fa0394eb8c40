package providers

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"code.gitea.io/sdk/gitea"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const GiteaMaxCount = 9999

// ProviderGitea serves one branch of a Gitea repository. The branch is
// pinned to a commit for commitTTL so a page and its configuration resources
// come from the same revision.
type ProviderGitea struct {
	BaseUrl string
	Token   string

	owner  string
	repo   string
	branch string

	client    *http.Client
	gitea     *gitea.Client
	commitTTL time.Duration

	lock     sync.Mutex
	commit   string
	resolved time.Time
}

func NewGitea(client *http.Client, url, token, owner, repo, branch string) (*ProviderGitea, error) {
	if owner == "" || repo == "" {
		return nil, errors.New("gitea owner and repo are required")
	}
	if branch == "" {
		branch = "gh-pages"
	}
	giteaClient, err := gitea.NewClient(url, gitea.SetGiteaVersion(""), gitea.SetToken(token), gitea.SetHTTPClient(client))
	if err != nil {
		return nil, err
	}
	return &ProviderGitea{
		BaseUrl:   url,
		Token:     token,
		owner:     owner,
		repo:      repo,
		branch:    branch,
		client:    client,
		gitea:     giteaClient,
		commitTTL: time.Minute,
	}, nil
}

// Commit resolves the pinned commit of the branch.
func (g *ProviderGitea) Commit(_ context.Context) (string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.commit != "" && time.Since(g.resolved) < g.commitTTL {
		return g.commit, nil
	}
	branches, resp, err := g.gitea.ListRepoBranches(g.owner, g.repo, gitea.ListRepoBranchesOptions{
		ListOptions: gitea.ListOptions{
			PageSize: GiteaMaxCount,
		},
	})
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return "", errors.Wrapf(err, "list branches of %s/%s", g.owner, g.repo)
	}
	for _, branch := range branches {
		if branch.Name == g.branch && branch.Commit != nil {
			g.commit = branch.Commit.ID
			g.resolved = time.Now()
			zap.L().Debug("gitea branch resolved", zap.String("branch", g.branch), zap.String("commit", g.commit))
			return g.commit, nil
		}
	}
	return "", errors.Wrapf(os.ErrNotExist, "branch %s of %s/%s", g.branch, g.owner, g.repo)
}

func (g *ProviderGitea) Open(ctx context.Context, path string, headers http.Header) (*http.Response, error) {
	commit, err := g.Commit(ctx)
	if err != nil {
		return nil, err
	}
	giteaURL, err := url.JoinPath(g.BaseUrl, "api/v1/repos", g.owner, g.repo, "media", strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}
	giteaURL += "?ref=" + url.QueryEscape(commit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, giteaURL, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if g.Token != "" {
		req.Header.Add("Authorization", "token "+g.Token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, errors.Wrap(os.ErrNotExist, path)
	}
	return resp, nil
}

func (g *ProviderGitea) Close() error {
	return nil
}
