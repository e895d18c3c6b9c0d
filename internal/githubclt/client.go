// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/mergebot/internal/boterr"
	"github.com/simplesurance/mergebot/internal/branch"
	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

const (
	stateOpen   = "open"
	stateClosed = "closed"
)

// PullRequestBody is the description of pull requests created by the
// Client.
const PullRequestBody = "Created by mergebot"

// New returns a new github api client.
func New(oauthAPItoken string) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	return &Client{
		restClt: github.NewClient(httpClient),
		logger:  zap.L().Named(loggerName),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is a github API client that implements gitprovider.Client.
// Repositories are identified by their API url
// (https://api.github.com/repos/<owner>/<repo>).
// Non-2xx responses are returned as *boterr.HTTPError.
type Client struct {
	restClt *github.Client
	logger  *zap.Logger
}

// ParseRepositoryURL returns the owner and name of the repository from a
// github API repository url.
func ParseRepositoryURL(repoURL string) (owner, repo string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing repository url failed: %w", err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if l := len(segments); l >= 3 && segments[l-3] == "repos" && segments[l-2] != "" && segments[l-1] != "" {
		return segments[l-2], segments[l-1], nil
	}

	return "", "", fmt.Errorf("%q is not a github repository api url", repoURL)
}

// GetRefs returns all branches of the repository.
func (clt *Client) GetRefs(ctx context.Context, repoURL string) ([]*gitprovider.Ref, error) {
	owner, repo, err := ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, err
	}

	var result []*gitprovider.Ref

	opts := github.ReferenceListOptions{
		Ref:         "heads/",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		refs, resp, err := clt.restClt.Git.ListMatchingRefs(ctx, owner, repo, &opts)
		if err != nil {
			return nil, clt.wrapErrors(err)
		}

		for _, ref := range refs {
			result = append(result, &gitprovider.Ref{
				Name:     ref.GetRef(),
				ObjectID: ref.GetObject().GetSHA(),
			})
		}

		if resp.NextPage == 0 || len(refs) == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// GetOpenPullRequests returns the open pull requests from sourceBranch to
// targetBranch.
func (clt *Client) GetOpenPullRequests(ctx context.Context, repoURL, sourceBranch, targetBranch string) ([]*gitprovider.PullRequest, error) {
	owner, repo, err := ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, err
	}

	var result []*gitprovider.PullRequest

	opts := github.PullRequestListOptions{
		State:       stateOpen,
		Head:        owner + ":" + branch.ShortName(sourceBranch),
		Base:        branch.ShortName(targetBranch),
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		prs, resp, err := clt.restClt.PullRequests.List(ctx, owner, repo, &opts)
		if err != nil {
			return nil, clt.wrapErrors(err)
		}

		for _, pr := range prs {
			result = append(result, toPullRequest(repoURL, pr))
		}

		if resp.NextPage == 0 || len(prs) == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// CreatePullRequest creates a pull request from sourceBranch to
// targetBranch.
func (clt *Client) CreatePullRequest(ctx context.Context, repoURL, sourceBranch, targetBranch string) (*gitprovider.PullRequest, error) {
	owner, repo, err := ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, err
	}

	src := branch.ShortName(sourceBranch)
	dst := branch.ShortName(targetBranch)

	pr, _, err := clt.restClt.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(fmt.Sprintf("Automatic PR from %s to %s", src, dst)),
		Head:  github.String(src),
		Base:  github.String(dst),
		Body:  github.String(PullRequestBody),
	})
	if err != nil {
		return nil, clt.wrapErrors(err)
	}

	return toPullRequest(repoURL, pr), nil
}

// GetPullRequest returns the pull request with the number id.
// The merge status is queued while github computes if the pull request is
// mergeable.
func (clt *Client) GetPullRequest(ctx context.Context, repoURL string, id int) (*gitprovider.PullRequest, error) {
	owner, repo, err := ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, err
	}

	pr, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, id)
	if err != nil {
		return nil, clt.wrapErrors(err)
	}

	return toPullRequest(repoURL, pr), nil
}

// CompletePullRequest merges the pull request.
// The merge fails if lastMergeSourceCommit is not the head of the pull
// request branch.
func (clt *Client) CompletePullRequest(ctx context.Context, repoURL string, id int, lastMergeSourceCommit string) (*gitprovider.PullRequest, error) {
	owner, repo, err := ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, err
	}

	res, _, err := clt.restClt.PullRequests.Merge(ctx, owner, repo, id, "", &github.PullRequestOptions{
		SHA:         lastMergeSourceCommit,
		MergeMethod: "merge",
	})
	if err != nil {
		return nil, clt.wrapErrors(err)
	}

	if !res.GetMerged() {
		return nil, fmt.Errorf("pull request was not merged: %s", res.GetMessage())
	}

	clt.logger.Debug(
		"pull request merged",
		logfields.Event("github_pull_request_merged"),
		logfields.RepositoryURL(repoURL),
		logfields.PullRequest(id),
		logfields.Commit(res.GetSHA()),
	)

	return &gitprovider.PullRequest{
		Repository:            gitprovider.Repository{Name: repo, URL: repoURL},
		ID:                    id,
		Status:                gitprovider.StatusCompleted,
		MergeStatus:           gitprovider.MergeStatusSucceeded,
		LastMergeSourceCommit: &gitprovider.Commit{CommitID: lastMergeSourceCommit},
	}, nil
}

func toPullRequest(repoURL string, pr *github.PullRequest) *gitprovider.PullRequest {
	result := gitprovider.PullRequest{
		Repository: gitprovider.Repository{
			Name: pr.GetBase().GetRepo().GetName(),
			URL:  repoURL,
		},
		ID:            pr.GetNumber(),
		Title:         pr.GetTitle(),
		SourceRefName: branch.Canonize(pr.GetHead().GetRef()),
		TargetRefName: branch.Canonize(pr.GetBase().GetRef()),
	}

	if id := pr.GetBase().GetRepo().GetID(); id != 0 {
		result.Repository.ID = strconv.FormatInt(id, 10)
	}

	if sha := pr.GetHead().GetSHA(); sha != "" {
		result.LastMergeSourceCommit = &gitprovider.Commit{CommitID: sha}
	}

	switch pr.GetState() {
	case stateClosed:
		if pr.GetMerged() {
			result.Status = gitprovider.StatusCompleted
		} else {
			result.Status = gitprovider.StatusAbandoned
		}
	default:
		result.Status = gitprovider.StatusActive
	}

	switch {
	case pr.Mergeable == nil:
		result.MergeStatus = gitprovider.MergeStatusQueued
	case *pr.Mergeable:
		result.MergeStatus = gitprovider.MergeStatusSucceeded
	default:
		result.MergeStatus = gitprovider.MergeStatusConflicts
	}

	return &result
}

func (clt *Client) wrapErrors(err error) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", rateLimitErr.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", rateLimitErr.Rate.Reset.Time),
		)

		return err
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		httpErr := boterr.HTTPError{
			Status: respErr.Response.StatusCode,
			Body:   []byte(respErr.Message),
		}

		if req := respErr.Response.Request; req != nil {
			httpErr.Method = req.Method
			httpErr.URL = req.URL.String()
		}

		return &httpErr
	}

	return err
}
