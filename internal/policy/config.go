package policy

import (
	"time"
)

// Config is the stored configuration of a single policy.
// The json representation matches the documents stored by the policy
// configuration UI.
type Config struct {
	ID string `json:"id,omitempty"`
	// CreateDate defines the evaluation order of the policies of a
	// repository, the earliest created policy runs first.
	CreateDate   time.Time `json:"createDate"`
	RepositoryID string    `json:"repositoryId"`
	// Strategy is the name of the policy variant, see ParseStrategy.
	Strategy string `json:"strategy"`
	Source   string `json:"source,omitempty"`
	Target   string `json:"target,omitempty"`
}
