package azdoclt

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL returns rawURL without query string, fragment and trailing
// slashes.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url failed: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")

	return u.String(), nil
}

// Organization returns the organization of an Azure DevOps repository url,
// it is the first segment of the path.
func Organization(repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("parsing url failed: %w", err)
	}

	org, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if org == "" {
		return "", errors.New("url path is empty")
	}

	return org, nil
}

const repositoriesPathSep = "/_apis/git/repositories/"

// repositoryLocation is the organization, project and repository that a
// repository url refers to.
type repositoryLocation struct {
	OrganizationURL string
	// Project is nil when the url does not contain a project segment.
	Project      *string
	RepositoryID string
}

// parseRepositoryURL splits an Azure DevOps repository API url.
// The last path segment before /_apis/git/repositories/ is the project, the
// preceding segments are part of the organization url:
//
//	https://dev.azure.com/<org>/<project>/_apis/git/repositories/<id>
//	https://tfs.example.com/tfs/<collection>/<project>/_apis/git/repositories/<id>
//
// When only one segment precedes it, it is the organization.
func parseRepositoryURL(repoURL string) (*repositoryLocation, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url failed: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("url %q is not absolute", repoURL)
	}

	prefix, repoID, found := strings.Cut(strings.TrimRight(u.Path, "/"), repositoriesPathSep)
	if !found || repoID == "" || strings.Contains(repoID, "/") {
		return nil, fmt.Errorf("url %q is not an azure devops repository url", repoURL)
	}

	segments := strings.Split(strings.Trim(prefix, "/"), "/")
	if segments[0] == "" {
		return nil, fmt.Errorf("url %q does not contain an organization", repoURL)
	}

	loc := repositoryLocation{RepositoryID: repoID}

	if len(segments) > 1 {
		project := segments[len(segments)-1]
		loc.Project = &project
		segments = segments[:len(segments)-1]
	}

	orgURL := url.URL{
		Scheme: u.Scheme,
		User:   u.User,
		Host:   u.Host,
		Path:   "/" + strings.Join(segments, "/"),
	}
	loc.OrganizationURL = orgURL.String()

	return &loc, nil
}
