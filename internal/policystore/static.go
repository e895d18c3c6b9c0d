// Package policystore provides policy.Store implementations that are not
// backed by a git hosting service.
package policystore

import (
	"context"
	"sort"

	"github.com/simplesurance/mergebot/internal/cfg"
	"github.com/simplesurance/mergebot/internal/policy"
)

// Static provides the policies from the configuration file.
type Static struct {
	policies []*cfg.Policy
}

func NewStatic(policies []*cfg.Policy) *Static {
	return &Static{policies: policies}
}

// MergePolicies returns the policies for repositoryID whose organization is
// empty or equal to organization.
// They are ordered by their creation time, policies with the same creation
// time keep their order from the configuration file.
func (s *Static) MergePolicies(_ context.Context, organization, repositoryID string) ([]*policy.Config, error) {
	var result []*policy.Config

	for _, p := range s.policies {
		if p.RepositoryID != repositoryID {
			continue
		}

		if p.Organization != "" && p.Organization != organization {
			continue
		}

		result = append(result, &policy.Config{
			CreateDate:   p.CreatedAt,
			RepositoryID: p.RepositoryID,
			Strategy:     p.Strategy,
			Source:       p.Source,
			Target:       p.Target,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreateDate.Before(result[j].CreateDate)
	})

	return result, nil
}
