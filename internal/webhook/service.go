// Package webhook provides the HTTP service of mergebot.
//
// It receives push events from Azure DevOps service hooks and github
// webhooks, runs the merge policies of the repository for them and serves
// endpoints to issue access tokens, invalidate cached policies and inspect
// the monitored pull requests.
package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/authtoken"
	"github.com/simplesurance/mergebot/internal/azdoclt"
	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
	"github.com/simplesurance/mergebot/internal/policy"
	"github.com/simplesurance/mergebot/internal/prmonitor"
	"github.com/simplesurance/mergebot/internal/provider/azdo"
	ghprovider "github.com/simplesurance/mergebot/internal/provider/github"
)

const loggerName = "webhook"

// maxPayloadSize is the max. number of bytes read from a request body.
const maxPayloadSize = 10 * 1024 * 1024

// RunnerFactory provides the policy runners of repositories.
type RunnerFactory interface {
	GetOrCreate(ctx context.Context, key policy.CacheKey, store policy.Store) (policy.Runner, error)
	Invalidate(key policy.CacheKey)
}

// ItemLister returns the pull requests that are monitored for completion.
type ItemLister interface {
	Items() []*prmonitor.Item
}

// AzureStoreFunc returns the store that provides the policies for events
// that are processed with clt.
type AzureStoreFunc func(clt *azdoclt.Client) policy.Store

type azureEndpoint struct {
	path    string
	clients *azdoclt.Factory
	store   AzureStoreFunc
}

type githubEndpoint struct {
	path     string
	provider *ghprovider.Provider
	client   gitprovider.Client
	store    policy.Store
}

// Service serves the HTTP endpoints.
type Service struct {
	logger  *zap.Logger
	factory RunnerFactory
	monitor ItemLister
	auth    *authtoken.Authority

	filter *Filter
	dryRun bool

	azure  *azureEndpoint
	github *githubEndpoint
}

type Option func(*Service)

// WithAzureDevOps enables processing Azure DevOps service hook events
// at path.
// Policies are retrieved from the store returned by storeFn, pull requests
// are created with the client of the personal access token of the request.
func WithAzureDevOps(path string, clients *azdoclt.Factory, storeFn AzureStoreFunc) Option {
	return func(s *Service) {
		s.azure = &azureEndpoint{
			path:    path,
			clients: clients,
			store:   storeFn,
		}
	}
}

// WithGithub enables processing github push events at path.
func WithGithub(path string, prov *ghprovider.Provider, clt gitprovider.Client, store policy.Store) Option {
	return func(s *Service) {
		s.github = &githubEndpoint{
			path:     path,
			provider: prov,
			client:   clt,
			store:    store,
		}
	}
}

// WithFilter sets a filter that events must match to be processed.
func WithFilter(f *Filter) Option {
	return func(s *Service) {
		s.filter = f
	}
}

// WithDryRun simulates write operations at the git hosting services.
func WithDryRun() Option {
	return func(s *Service) {
		s.dryRun = true
	}
}

func New(factory RunnerFactory, monitor ItemLister, auth *authtoken.Authority, opts ...Option) *Service {
	s := Service{
		logger:  zap.L().Named(loggerName),
		factory: factory,
		monitor: monitor,
		auth:    auth,
	}

	for _, o := range opts {
		o(&s)
	}

	return &s
}

// Router returns the http.Handler that serves all endpoints.
func (s *Service) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.logRequests)
	router.Use(middleware.Recoverer)

	router.Get("/", s.handleHome)
	router.Post("/jwt", s.handleIssueToken)
	router.Get("/monitor", s.handleMonitorList)
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Delete("/policies", s.handleInvalidate)

		if s.azure != nil {
			r.Post(s.azure.path, s.errorBoundary(azdo.ProviderName, s.processAzureEvent))
		}
	})

	if s.github != nil {
		router.Post(s.github.path, s.errorBoundary(ghprovider.ProviderName, s.processGithubEvent))
	}

	return router
}

func (s *Service) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug(
				"http request served",
				logfields.Event("http_request_served"),
				zap.String("http.method", r.Method),
				zap.String("http.path", r.URL.Path),
				zap.Int("http.status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Service) handleHome(w http.ResponseWriter, _ *http.Request) {
	resp := newHTTPRespWriter(s.logger, w)
	resp.Header().Set("Content-Type", "text/plain")
	resp.WriteStr("mergebot")
}
