// Package azdoclt is a client for the Azure DevOps git and extension data
// APIs.
package azdoclt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/extensionmanagement"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/git"
	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/boterr"
	"github.com/simplesurance/mergebot/internal/branch"
	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
)

const loggerName = "azure_devops_client"

// PullRequestDescription is the description of pull requests created by
// the Client.
const PullRequestDescription = "Created by mergebot"

// gitAPI is the subset of git.Client that is used.
type gitAPI interface {
	GetRefs(context.Context, git.GetRefsArgs) (*git.GetRefsResponseValue, error)
	GetPullRequests(context.Context, git.GetPullRequestsArgs) (*[]git.GitPullRequest, error)
	GetPullRequest(context.Context, git.GetPullRequestArgs) (*git.GitPullRequest, error)
	CreatePullRequest(context.Context, git.CreatePullRequestArgs) (*git.GitPullRequest, error)
	UpdatePullRequest(context.Context, git.UpdatePullRequestArgs) (*git.GitPullRequest, error)
}

// documentAPI is the subset of extensionmanagement.Client that is used.
type documentAPI interface {
	GetDocumentsByName(context.Context, extensionmanagement.GetDocumentsByNameArgs) (*[]interface{}, error)
}

// Client is an Azure DevOps git client that authenticates with a personal
// access token.
// It implements gitprovider.Client.
// The SDK clients are created per organization url on first use.
type Client struct {
	logger *zap.Logger

	newGitAPI      func(ctx context.Context, orgURL string) (gitAPI, error)
	newDocumentAPI func(ctx context.Context, orgURL string) (documentAPI, error)

	lock       sync.Mutex
	gitClients map[string]gitAPI
	docClients map[string]documentAPI
}

// New returns a client that authenticates with the personal access token.
func New(token string) *Client {
	return &Client{
		logger: zap.L().Named(loggerName),
		newGitAPI: func(ctx context.Context, orgURL string) (gitAPI, error) {
			return git.NewClient(ctx, azuredevops.NewPatConnection(orgURL, token))
		},
		newDocumentAPI: func(ctx context.Context, orgURL string) (documentAPI, error) {
			return extensionmanagement.NewClient(ctx, azuredevops.NewPatConnection(orgURL, token))
		},
		gitClients: map[string]gitAPI{},
		docClients: map[string]documentAPI{},
	}
}

func (c *Client) gitClient(ctx context.Context, orgURL string) (gitAPI, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if clt, exist := c.gitClients[orgURL]; exist {
		return clt, nil
	}

	clt, err := c.newGitAPI(ctx, orgURL)
	if err != nil {
		return nil, fmt.Errorf("creating git client for %s failed: %w", orgURL, err)
	}

	c.gitClients[orgURL] = clt

	return clt, nil
}

func (c *Client) documentClient(ctx context.Context, orgURL string) (documentAPI, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if clt, exist := c.docClients[orgURL]; exist {
		return clt, nil
	}

	clt, err := c.newDocumentAPI(ctx, orgURL)
	if err != nil {
		return nil, fmt.Errorf("creating extension management client for %s failed: %w", orgURL, err)
	}

	c.docClients[orgURL] = clt

	return clt, nil
}

// repository returns the git client for the organization of repoURL and
// the location of the repository.
func (c *Client) repository(ctx context.Context, operation, repoURL string) (gitAPI, *repositoryLocation, error) {
	loc, err := parseRepositoryURL(repoURL)
	if err != nil {
		return nil, nil, err
	}

	c.logger.Debug(
		"sending azure devops request",
		logfields.Event("azure_devops_request_sending"),
		zap.String("azure_devops.operation", operation),
		logfields.RepositoryURL(repoURL),
	)

	clt, err := c.gitClient(ctx, loc.OrganizationURL)
	if err != nil {
		return nil, nil, err
	}

	return clt, loc, nil
}

// GetRefs returns the branches of the repository.
func (c *Client) GetRefs(ctx context.Context, repoURL string) ([]*gitprovider.Ref, error) {
	clt, loc, err := c.repository(ctx, "GetRefs", repoURL)
	if err != nil {
		return nil, err
	}

	var result []*gitprovider.Ref
	var continuationToken *string

	for {
		resp, err := clt.GetRefs(ctx, git.GetRefsArgs{
			RepositoryId:      &loc.RepositoryID,
			Project:           loc.Project,
			Filter:            ptr("heads/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, wrapError("GetRefs", repoURL, err)
		}

		if resp == nil {
			return result, nil
		}

		for i := range resp.Value {
			result = append(result, &gitprovider.Ref{
				Name:     deref(resp.Value[i].Name),
				ObjectID: deref(resp.Value[i].ObjectId),
			})
		}

		if resp.ContinuationToken == "" {
			return result, nil
		}

		continuationToken = ptr(resp.ContinuationToken)
	}
}

// GetOpenPullRequests returns the active pull requests from sourceBranch to
// targetBranch.
func (c *Client) GetOpenPullRequests(ctx context.Context, repoURL, sourceBranch, targetBranch string) ([]*gitprovider.PullRequest, error) {
	clt, loc, err := c.repository(ctx, "GetPullRequests", repoURL)
	if err != nil {
		return nil, err
	}

	prs, err := clt.GetPullRequests(ctx, git.GetPullRequestsArgs{
		RepositoryId: &loc.RepositoryID,
		Project:      loc.Project,
		SearchCriteria: &git.GitPullRequestSearchCriteria{
			SourceRefName: &sourceBranch,
			TargetRefName: &targetBranch,
			Status:        ptr(git.PullRequestStatusValues.Active),
		},
	})
	if err != nil {
		return nil, wrapError("GetPullRequests", repoURL, err)
	}

	if prs == nil {
		return nil, nil
	}

	result := make([]*gitprovider.PullRequest, 0, len(*prs))
	for i := range *prs {
		result = append(result, toPullRequest(&(*prs)[i], repoURL))
	}

	return result, nil
}

func (c *Client) GetPullRequest(ctx context.Context, repoURL string, id int) (*gitprovider.PullRequest, error) {
	clt, loc, err := c.repository(ctx, "GetPullRequest", repoURL)
	if err != nil {
		return nil, err
	}

	pr, err := clt.GetPullRequest(ctx, git.GetPullRequestArgs{
		RepositoryId:  &loc.RepositoryID,
		Project:       loc.Project,
		PullRequestId: &id,
	})
	if err != nil {
		return nil, wrapError("GetPullRequest", repoURL, err)
	}

	return toPullRequest(pr, repoURL), nil
}

// CreatePullRequest creates a pull request from sourceBranch to
// targetBranch.
func (c *Client) CreatePullRequest(ctx context.Context, repoURL, sourceBranch, targetBranch string) (*gitprovider.PullRequest, error) {
	clt, loc, err := c.repository(ctx, "CreatePullRequest", repoURL)
	if err != nil {
		return nil, err
	}

	pr, err := clt.CreatePullRequest(ctx, git.CreatePullRequestArgs{
		RepositoryId: &loc.RepositoryID,
		Project:      loc.Project,
		GitPullRequestToCreate: &git.GitPullRequest{
			SourceRefName: &sourceBranch,
			TargetRefName: &targetBranch,
			Title:         ptr(PullRequestTitle(sourceBranch, targetBranch)),
			Description:   ptr(PullRequestDescription),
		},
	})
	if err != nil {
		return nil, wrapError("CreatePullRequest", repoURL, err)
	}

	return toPullRequest(pr, repoURL), nil
}

// CompletePullRequest merges the pull request, branch policies are
// bypassed.
// The pull request is only merged if lastMergeSourceCommit is the head of
// its source branch.
func (c *Client) CompletePullRequest(ctx context.Context, repoURL string, id int, lastMergeSourceCommit string) (*gitprovider.PullRequest, error) {
	clt, loc, err := c.repository(ctx, "UpdatePullRequest", repoURL)
	if err != nil {
		return nil, err
	}

	pr, err := clt.UpdatePullRequest(ctx, git.UpdatePullRequestArgs{
		RepositoryId:  &loc.RepositoryID,
		Project:       loc.Project,
		PullRequestId: &id,
		GitPullRequestToUpdate: &git.GitPullRequest{
			Status:                ptr(git.PullRequestStatusValues.Completed),
			LastMergeSourceCommit: &git.GitCommitRef{CommitId: &lastMergeSourceCommit},
			CompletionOptions:     &git.GitPullRequestCompletionOptions{BypassPolicy: ptr(true)},
		},
	})
	if err != nil {
		return nil, wrapError("UpdatePullRequest", repoURL, err)
	}

	return toPullRequest(pr, repoURL), nil
}

// PullRequestTitle returns the title for a pull request created by the
// Client.
func PullRequestTitle(sourceBranch, targetBranch string) string {
	return fmt.Sprintf("Automatic PR from %s to %s", branch.ShortName(sourceBranch), branch.ShortName(targetBranch))
}

// toPullRequest converts pr. The repository url is set to the url that was
// used to retrieve it, the url in the API response can contain the project
// id instead of the project name.
func toPullRequest(pr *git.GitPullRequest, repoURL string) *gitprovider.PullRequest {
	if pr == nil {
		return nil
	}

	result := gitprovider.PullRequest{
		ID:            derefInt(pr.PullRequestId),
		CodeReviewID:  derefInt(pr.CodeReviewId),
		Title:         deref(pr.Title),
		SourceRefName: deref(pr.SourceRefName),
		TargetRefName: deref(pr.TargetRefName),
	}

	if pr.Status != nil {
		result.Status = gitprovider.Status(*pr.Status)
	}

	if pr.MergeStatus != nil {
		result.MergeStatus = gitprovider.MergeStatus(*pr.MergeStatus)
	}

	if pr.LastMergeSourceCommit != nil {
		result.LastMergeSourceCommit = &gitprovider.Commit{CommitID: deref(pr.LastMergeSourceCommit.CommitId)}
	}

	if pr.Repository != nil {
		if pr.Repository.Id != nil {
			result.Repository.ID = pr.Repository.Id.String()
		}
		result.Repository.Name = deref(pr.Repository.Name)
	}
	result.Repository.URL = repoURL

	return &result
}

// wrapError converts errors that carry a http status code into a
// *boterr.HTTPError.
func wrapError(operation, repoURL string, err error) error {
	var wErr *azuredevops.WrappedError
	if errors.As(err, &wErr) && wErr.StatusCode != nil {
		return &boterr.HTTPError{
			Method: operation,
			URL:    repoURL,
			Status: *wErr.StatusCode,
			Body:   []byte(deref(wErr.Message)),
		}
	}

	return fmt.Errorf("%s %s failed: %w", operation, repoURL, err)
}

func ptr[T any](v T) *T {
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}

	return *i
}
