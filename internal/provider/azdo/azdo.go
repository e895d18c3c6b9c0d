// Package azdo decodes Azure DevOps service hook events.
package azdo

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/simplesurance/mergebot/internal/azdoclt"
	"github.com/simplesurance/mergebot/internal/gitprovider"
)

// ProviderName identifies events sent by Azure DevOps.
const ProviderName = "azure_devops"

// EventTypeGitPush is the event type of code pushed service hooks.
const EventTypeGitPush = "git.push"

type payload struct {
	EventType string    `json:"eventType"`
	Resource  *resource `json:"resource"`
}

type resource struct {
	RefUpdates []*gitprovider.PushUpdate `json:"refUpdates"`
	Repository *gitprovider.Repository   `json:"repository"`
}

// Decode parses a service hook payload.
// If the payload is not a git push event or lacks the ref updates or the
// repository, nil is returned.
// An error is only returned if the payload is not valid JSON or the
// repository url is invalid.
// The url of the returned repository is normalized with
// azdoclt.NormalizeURL.
func Decode(r io.Reader) (*gitprovider.PushEvent, error) {
	var p payload

	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding service hook payload failed: %w", err)
	}

	if p.EventType != EventTypeGitPush || p.Resource == nil ||
		p.Resource.RefUpdates == nil || p.Resource.Repository == nil {
		return nil, nil
	}

	repo := *p.Resource.Repository

	normalizedURL, err := azdoclt.NormalizeURL(repo.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid repository url: %w", err)
	}
	repo.URL = normalizedURL

	updates := make([]*gitprovider.PushUpdate, 0, len(p.Resource.RefUpdates))
	for _, upd := range p.Resource.RefUpdates {
		if upd != nil {
			updates = append(updates, upd)
		}
	}

	return &gitprovider.PushEvent{
		Repository: repo,
		RefUpdates: updates,
	}, nil
}
