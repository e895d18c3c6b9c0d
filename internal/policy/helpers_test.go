package policy

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/mergebot/internal/gitprovider"
)

const (
	repoID  = "3e5c4d0a-repo"
	repoURL = "https://dev.azure.com/org/project/_apis/git/repositories/3e5c4d0a-repo"
	oldObj  = "1111111111111111111111111111111111111111"
	newObj  = "2222222222222222222222222222222222222222"
	zeroObj = "0000000000000000000000000000000000000000"
)

type trackingMonitor struct {
	lock    sync.Mutex
	tracked []*gitprovider.PullRequest
}

func (m *trackingMonitor) Track(_ gitprovider.Client, pr *gitprovider.PullRequest) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.tracked = append(m.tracked, pr)
}

func (m *trackingMonitor) Tracked() []*gitprovider.PullRequest {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]*gitprovider.PullRequest(nil), m.tracked...)
}

type storeFunc func(ctx context.Context, organization, repositoryID string) ([]*Config, error)

func (fn storeFunc) MergePolicies(ctx context.Context, organization, repositoryID string) ([]*Config, error) {
	return fn(ctx, organization, repositoryID)
}

func staticStore(cfgs ...*Config) Store {
	return storeFunc(func(context.Context, string, string) ([]*Config, error) {
		return cfgs, nil
	})
}

func initLogger(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))
}

func pushEvent(updates ...*gitprovider.PushUpdate) *gitprovider.PushEvent {
	return &gitprovider.PushEvent{
		Repository: gitprovider.Repository{
			ID:   repoID,
			Name: "repo",
			URL:  repoURL,
		},
		RefUpdates: updates,
	}
}

func update(name string) *gitprovider.PushUpdate {
	return &gitprovider.PushUpdate{Name: name, OldObjectID: oldObj, NewObjectID: newObj}
}

func refs(names ...string) []*gitprovider.Ref {
	result := make([]*gitprovider.Ref, 0, len(names))
	for _, n := range names {
		result = append(result, &gitprovider.Ref{Name: n, ObjectID: newObj})
	}

	return result
}
