package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/mergebot/internal/authtoken"
	"github.com/simplesurance/mergebot/internal/azdoclt"
	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/gitprovider/mocks"
	"github.com/simplesurance/mergebot/internal/policy"
	"github.com/simplesurance/mergebot/internal/prmonitor"
	ghprovider "github.com/simplesurance/mergebot/internal/provider/github"
)

const (
	pat         = "personal-access-token"
	azurePath   = "/webhook"
	ghEndpoint  = "/webhook/github"
	ghSecret    = "hook-secret"
	azureRepoID = "278d5cd2-584d-4b63-824a-2ba458937249"
	azureOrg    = "fabrikam-fiber-inc"
)

const azurePushPayload = `{
  "id": "03c164c2-8912-4d5e-8009-3707d5f83734",
  "eventType": "git.push",
  "publisherId": "tfs",
  "resource": {
    "refUpdates": [
      {
        "name": "refs/heads/release/1.0",
        "oldObjectId": "aad331d8d3b131fa9ae03cf5e53965b51942618a",
        "newObjectId": "33b55f7cb7e7e245323987634f960cf4a6e6bc74"
      }
    ],
    "repository": {
      "id": "278d5cd2-584d-4b63-824a-2ba458937249",
      "name": "Fabrikam-Fiber-Git",
      "url": "https://dev.azure.com/fabrikam-fiber-inc/DefaultCollection/_apis/git/repositories/278d5cd2-584d-4b63-824a-2ba458937249/"
    }
  }
}`

const githubPushPayload = `{
  "ref": "refs/heads/release/1.0",
  "before": "6113728f27ae82c7b1a177c8d03f9e96e0adf246",
  "after": "0000000000000000000000000000000000000001",
  "repository": {
    "id": 186853002,
    "name": "Hello-World",
    "full_name": "Codertocat/Hello-World",
    "owner": {"name": "Codertocat", "login": "Codertocat"}
  }
}`

type runnerFunc func(ctx context.Context, clt gitprovider.Client, ev *gitprovider.PushEvent) error

func (fn runnerFunc) Run(ctx context.Context, clt gitprovider.Client, ev *gitprovider.PushEvent) error {
	return fn(ctx, clt, ev)
}

type run struct {
	key    policy.CacheKey
	client gitprovider.Client
	event  *gitprovider.PushEvent
}

type fakeFactory struct {
	lock  sync.Mutex
	runs  []*run
	runFn func() error
}

func (f *fakeFactory) GetOrCreate(_ context.Context, key policy.CacheKey, _ policy.Store) (policy.Runner, error) {
	return runnerFunc(func(_ context.Context, clt gitprovider.Client, ev *gitprovider.PushEvent) error {
		f.lock.Lock()
		f.runs = append(f.runs, &run{key: key, client: clt, event: ev})
		f.lock.Unlock()

		if f.runFn != nil {
			return f.runFn()
		}
		return nil
	}), nil
}

func (*fakeFactory) Invalidate(policy.CacheKey) {}

func (f *fakeFactory) Runs() []*run {
	f.lock.Lock()
	defer f.lock.Unlock()

	return append([]*run(nil), f.runs...)
}

type itemList []*prmonitor.Item

func (l itemList) Items() []*prmonitor.Item {
	return l
}

type countingStore struct {
	lock  sync.Mutex
	calls int
}

func (s *countingStore) MergePolicies(context.Context, string, string) ([]*policy.Config, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.calls++
	return nil, nil
}

func (s *countingStore) Calls() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.calls
}

func initLogger(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))
}

func newAuthority() *authtoken.Authority {
	return authtoken.New("signing-key", "mergebot", time.Hour)
}

func newTestService(factory RunnerFactory, clients *azdoclt.Factory, opts ...Option) *Service {
	opts = append([]Option{
		WithAzureDevOps(azurePath, clients, func(*azdoclt.Client) policy.Store {
			return &countingStore{}
		}),
	}, opts...)

	return New(factory, itemList(nil), newAuthority(), opts...)
}

func issueToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/jwt", strings.NewReader(pat))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())

	return rec.Body.String()
}

func azureWebhookReq(token, payload string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, azurePath, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHome(t *testing.T) {
	initLogger(t)

	handler := newTestService(&fakeFactory{}, azdoclt.NewFactory()).Router()

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mergebot", rec.Body.String())
}

func TestIssuedTokenIsAcceptedByAzureWebhook(t *testing.T) {
	initLogger(t)

	factory := fakeFactory{}
	clients := azdoclt.NewFactory()
	handler := newTestService(&factory, clients).Router()

	token := issueToken(t, handler)

	rec := serve(handler, azureWebhookReq(token, azurePushPayload))
	assert.Equal(t, http.StatusOK, rec.Code)

	runs := factory.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, policy.CacheKey{Organization: azureOrg, RepositoryID: azureRepoID}, runs[0].key)
	assert.Same(t, clients.Get(pat), runs[0].client)
	assert.Equal(t,
		"https://dev.azure.com/fabrikam-fiber-inc/DefaultCollection/_apis/git/repositories/278d5cd2-584d-4b63-824a-2ba458937249",
		runs[0].event.Repository.URL,
	)
}

func TestIssueTokenRequiresBody(t *testing.T) {
	initLogger(t)

	handler := newTestService(&fakeFactory{}, azdoclt.NewFactory()).Router()

	rec := serve(handler, httptest.NewRequest(http.MethodPost, "/jwt", strings.NewReader(" \n")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAzureWebhookRequiresValidToken(t *testing.T) {
	initLogger(t)

	otherAuthority := authtoken.New("other-signing-key", "mergebot", time.Hour)
	foreignToken, err := otherAuthority.Issue(pat)
	require.NoError(t, err)

	for _, tc := range []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "malformed", token: "abc"},
		{name: "wrong signature", token: foreignToken},
	} {
		t.Run(tc.name, func(t *testing.T) {
			factory := fakeFactory{}
			handler := newTestService(&factory, azdoclt.NewFactory()).Router()

			rec := serve(handler, azureWebhookReq(tc.token, azurePushPayload))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, factory.Runs())
		})
	}
}

func TestAzureWebhookRespondsOKOnFailures(t *testing.T) {
	initLogger(t)

	for _, tc := range []struct {
		name  string
		runFn func() error
	}{
		{name: "error", runFn: func() error { return errors.New("api unavailable") }},
		{name: "panic", runFn: func() error { panic("boom") }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			factory := fakeFactory{runFn: tc.runFn}
			handler := newTestService(&factory, azdoclt.NewFactory()).Router()

			rec := serve(handler, azureWebhookReq(issueToken(t, handler), azurePushPayload))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, factory.Runs(), 1)
		})
	}
}

func TestAzureWebhookIgnoresNonJSONAndOtherEvents(t *testing.T) {
	initLogger(t)

	factory := fakeFactory{}
	handler := newTestService(&factory, azdoclt.NewFactory()).Router()
	token := issueToken(t, handler)

	req := azureWebhookReq(token, azurePushPayload)
	req.Header.Set("Content-Type", "text/plain")
	rec := serve(handler, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	payload := strings.Replace(azurePushPayload, `"git.push"`, `"git.pullrequest.created"`, 1)
	rec = serve(handler, azureWebhookReq(token, payload))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(handler, azureWebhookReq(token, "{"))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, factory.Runs())
}

func TestFilterSuppressesProcessing(t *testing.T) {
	initLogger(t)

	filter, err := NewFilter(`.resource.refUpdates[0].name | startswith("refs/heads/main")`)
	require.NoError(t, err)

	factory := fakeFactory{}
	handler := newTestService(&factory, azdoclt.NewFactory(), WithFilter(filter)).Router()
	token := issueToken(t, handler)

	rec := serve(handler, azureWebhookReq(token, azurePushPayload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, factory.Runs())

	payload := strings.Replace(azurePushPayload, `"refs/heads/release/1.0"`, `"refs/heads/main"`, 1)
	rec = serve(handler, azureWebhookReq(token, payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, factory.Runs(), 1)
}

func TestDryRunWrapsClient(t *testing.T) {
	initLogger(t)

	factory := fakeFactory{}
	handler := newTestService(&factory, azdoclt.NewFactory(), WithDryRun()).Router()

	rec := serve(handler, azureWebhookReq(issueToken(t, handler), azurePushPayload))
	assert.Equal(t, http.StatusOK, rec.Code)

	runs := factory.Runs()
	require.Len(t, runs, 1)
	assert.IsType(t, &gitprovider.DryClient{}, runs[0].client)
}

func TestInvalidateRebuildsRunner(t *testing.T) {
	initLogger(t)

	store := countingStore{}
	svc := New(
		policy.NewFactory(nil),
		itemList(nil),
		newAuthority(),
		WithAzureDevOps(azurePath, azdoclt.NewFactory(), func(*azdoclt.Client) policy.Store {
			return &store
		}),
	)
	handler := svc.Router()
	token := issueToken(t, handler)

	for i := 0; i < 2; i++ {
		rec := serve(handler, azureWebhookReq(token, azurePushPayload))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, store.Calls())

	req := httptest.NewRequest(
		http.MethodDelete,
		"/policies?organization="+azureOrg+"&repositoryId="+azureRepoID,
		nil,
	)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(handler, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(handler, azureWebhookReq(token, azurePushPayload))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, store.Calls())
}

func TestInvalidateValidatesRequest(t *testing.T) {
	initLogger(t)

	handler := newTestService(&fakeFactory{}, azdoclt.NewFactory()).Router()
	token := issueToken(t, handler)

	req := httptest.NewRequest(http.MethodDelete, "/policies?organization="+azureOrg, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, serve(handler, req).Code)

	req = httptest.NewRequest(http.MethodDelete, "/policies?organization=a&repositoryId=b", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(handler, req).Code)
}

func sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(ghSecret))
	_, _ = mac.Write([]byte(payload))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func githubWebhookReq(eventType, payload, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, ghEndpoint, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", "3355fab0-b22c-11eb-9936-51d9540c0cdc")
	req.Header.Set("X-Hub-Signature-256", signature)

	return req
}

func TestGithubPushEvent(t *testing.T) {
	initLogger(t)

	mockctrl := gomock.NewController(t)
	ghClient := mocks.NewMockClient(mockctrl)

	factory := fakeFactory{}
	handler := newTestService(
		&factory,
		azdoclt.NewFactory(),
		WithGithub(ghEndpoint, ghprovider.New(ghprovider.WithPayloadSecret(ghSecret)), ghClient, &countingStore{}),
	).Router()

	rec := serve(handler, githubWebhookReq("push", githubPushPayload, sign(githubPushPayload)))
	assert.Equal(t, http.StatusOK, rec.Code)

	runs := factory.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, policy.CacheKey{Organization: "Codertocat", RepositoryID: "186853002"}, runs[0].key)
	assert.Same(t, ghClient, runs[0].client)
	assert.Equal(t, "https://api.github.com/repos/Codertocat/Hello-World", runs[0].event.Repository.URL)
}

func TestGithubInvalidSignatureIsNotProcessed(t *testing.T) {
	initLogger(t)

	mockctrl := gomock.NewController(t)

	factory := fakeFactory{}
	handler := newTestService(
		&factory,
		azdoclt.NewFactory(),
		WithGithub(ghEndpoint, ghprovider.New(ghprovider.WithPayloadSecret(ghSecret)), mocks.NewMockClient(mockctrl), &countingStore{}),
	).Router()

	rec := serve(handler, githubWebhookReq("push", githubPushPayload, sign("other")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, factory.Runs())
}

func TestMonitorList(t *testing.T) {
	initLogger(t)

	items := itemList{
		{
			PullRequest: &gitprovider.PullRequest{
				ID:            17,
				SourceRefName: "refs/heads/release/1.0",
				TargetRefName: "refs/heads/release/1.1",
				MergeStatus:   gitprovider.MergeStatusQueued,
			},
		},
	}

	handler := New(&fakeFactory{}, items, newAuthority()).Router()

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/monitor", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "PR: 17")
	assert.Contains(t, string(body), "refs/heads/release/1.0 -> refs/heads/release/1.1")

	handler = New(&fakeFactory{}, itemList(nil), newAuthority()).Router()
	rec = serve(handler, httptest.NewRequest(http.MethodGet, "/monitor", nil))
	assert.Equal(t, "no pull requests are monitored\n", rec.Body.String())
}
