package azdoclt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/extensionmanagement"
	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/boterr"
	"github.com/simplesurance/mergebot/internal/logfields"
	"github.com/simplesurance/mergebot/internal/policy"
)

// DefaultOrganizationBaseURL is the url that the organization name is
// appended to, to get the organization url.
const DefaultOrganizationBaseURL = "https://dev.azure.com"

const (
	documentScopeType  = "Default"
	documentScopeValue = "Current"
)

// PolicyStore reads the policy configurations that the mergebot extension
// stores as extension data documents in the collection
// MergePolicies-<repository-id>.
// It implements policy.Store.
type PolicyStore struct {
	clt         *Client
	baseURL     string
	publisherID string
	extensionID string
}

func NewPolicyStore(clt *Client, baseURL, publisherID, extensionID string) *PolicyStore {
	if baseURL == "" {
		baseURL = DefaultOrganizationBaseURL
	}

	return &PolicyStore{
		clt:         clt,
		baseURL:     strings.TrimRight(baseURL, "/"),
		publisherID: publisherID,
		extensionID: extensionID,
	}
}

// MergePolicies returns the configured policies of a repository.
// If the collection does not exist, an empty list is returned.
func (s *PolicyStore) MergePolicies(ctx context.Context, organization, repositoryID string) ([]*policy.Config, error) {
	orgURL := s.baseURL + "/" + organization
	collection := "MergePolicies-" + repositoryID

	s.clt.logger.Debug(
		"retrieving merge policies",
		logfields.Event("azure_devops_policies_retrieving"),
		logfields.Organization(organization),
		zap.String("azure_devops.collection", collection),
	)

	clt, err := s.clt.documentClient(ctx, orgURL)
	if err != nil {
		return nil, err
	}

	docs, err := clt.GetDocumentsByName(ctx, extensionmanagement.GetDocumentsByNameArgs{
		PublisherName:  &s.publisherID,
		ExtensionName:  &s.extensionID,
		ScopeType:      ptr(documentScopeType),
		ScopeValue:     ptr(documentScopeValue),
		CollectionName: &collection,
	})
	if err != nil {
		err = wrapError("GetDocumentsByName", orgURL+"/"+collection, err)
		if boterr.IsNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	if docs == nil {
		return nil, nil
	}

	return decodeConfigs(*docs)
}

// decodeConfigs converts the generic documents returned by the extension
// data API into policy configurations.
func decodeConfigs(docs []interface{}) ([]*policy.Config, error) {
	buf, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("marshalling extension documents failed: %w", err)
	}

	var result []*policy.Config
	if err := json.Unmarshal(buf, &result); err != nil {
		return nil, fmt.Errorf("decoding merge policies failed: %w", err)
	}

	return result, nil
}
