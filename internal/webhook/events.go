package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/authtoken"
	"github.com/simplesurance/mergebot/internal/azdoclt"
	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
	"github.com/simplesurance/mergebot/internal/policy"
	"github.com/simplesurance/mergebot/internal/provider/azdo"
)

// processFunc processes a webhook request. It must not write to the
// response, the errorBoundary responds.
type processFunc func(req *http.Request, logger *zap.Logger) (eventResult, error)

// errorBoundary returns a handler that runs fn and always responds with
// 200 OK, also when fn fails or panics.
// Git hosting services disable webhooks that fail repeatedly.
func (s *Service) errorBoundary(provider string, fn processFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		logger := s.logger.With(logfields.EventProvider(provider))

		defer func() {
			if r := recover(); r != nil {
				logger.Error(
					"processing webhook event panicked",
					logfields.Event("webhook_processing_panicked"),
					zap.Any("panic", r),
					zap.StackSkip("stacktrace", 1),
				)
				metrics.EventsInc(provider, resultFailed)
				w.WriteHeader(http.StatusOK)
			}
		}()

		res, err := fn(req, logger)
		if err != nil {
			logger.Error(
				"processing webhook event failed",
				logfields.Event("webhook_processing_failed"),
				zap.Error(err),
			)
			res = resultFailed
		}

		metrics.EventsInc(provider, res)
		w.WriteHeader(http.StatusOK)
	}
}

func isJSONContentType(val string) bool {
	mediaType, _, err := mime.ParseMediaType(val)
	if err != nil {
		return false
	}

	return mediaType == "application/json"
}

// filterMatches returns true if no filter is configured or the filter
// matches payload.
func (s *Service) filterMatches(ctx context.Context, logger *zap.Logger, payload []byte) (bool, error) {
	if s.filter == nil {
		return true, nil
	}

	match, err := s.filter.Match(ctx, payload)
	if err != nil {
		return false, fmt.Errorf("evaluating filter query failed: %w", err)
	}

	if !match {
		logger.Debug(
			"ignoring event, filter query does not match",
			logfields.Event("webhook_event_filtered"),
			zap.String("filter_query", s.filter.String()),
		)
	}

	return match, nil
}

func (s *Service) processAzureEvent(req *http.Request, logger *zap.Logger) (eventResult, error) {
	if !isJSONContentType(req.Header.Get("Content-Type")) {
		logger.Debug(
			"ignoring event, content-type is not json",
			logfields.Event("webhook_event_ignored"),
			zap.String("http.content_type", req.Header.Get("Content-Type")),
		)
		return resultIgnored, nil
	}

	subject, ok := authtoken.SubjectFromContext(req.Context())
	if !ok {
		return resultFailed, errors.New("request context has no token subject")
	}

	payload, err := io.ReadAll(io.LimitReader(req.Body, maxPayloadSize))
	if err != nil {
		return resultFailed, fmt.Errorf("reading request body failed: %w", err)
	}

	match, err := s.filterMatches(req.Context(), logger, payload)
	if err != nil {
		return resultFailed, err
	}
	if !match {
		return resultFiltered, nil
	}

	ev, err := azdo.Decode(bytes.NewReader(payload))
	if err != nil {
		return resultFailed, err
	}

	if ev == nil {
		logger.Debug(
			"ignoring event, it is not a git push event",
			logfields.Event("webhook_event_ignored"),
		)
		return resultIgnored, nil
	}

	org, err := azdoclt.Organization(ev.Repository.URL)
	if err != nil {
		return resultFailed, fmt.Errorf("could not determine organization of repository: %w", err)
	}

	logger = logger.With(logfields.Organization(org))
	logger = logger.With(ev.Repository.LogFields()...)

	logger.Info(
		"received push event",
		logfields.Event("push_event_received"),
		logfields.RepositoryURL(ev.Repository.URL),
	)

	clt := s.azure.clients.Get(subject)

	return s.runPolicies(
		req.Context(),
		logger,
		policy.CacheKey{Organization: org, RepositoryID: ev.Repository.ID},
		s.azure.store(clt),
		clt,
		ev,
	)
}

func (s *Service) processGithubEvent(req *http.Request, logger *zap.Logger) (eventResult, error) {
	ev, err := s.github.provider.Decode(req)
	if err != nil {
		return resultFailed, err
	}

	logger = logger.With(ev.LogFields()...)

	if ev.Push == nil {
		return resultIgnored, nil
	}

	match, err := s.filterMatches(req.Context(), logger, ev.JSON)
	if err != nil {
		return resultFailed, err
	}
	if !match {
		return resultFiltered, nil
	}

	logger.Info(
		"received push event",
		logfields.Event("push_event_received"),
		logfields.RepositoryURL(ev.Push.Repository.URL),
	)

	return s.runPolicies(
		req.Context(),
		logger,
		policy.CacheKey{Organization: ev.Organization, RepositoryID: ev.Push.Repository.ID},
		s.github.store,
		s.github.client,
		ev.Push,
	)
}

func (s *Service) runPolicies(
	ctx context.Context,
	logger *zap.Logger,
	key policy.CacheKey,
	store policy.Store,
	clt gitprovider.Client,
	ev *gitprovider.PushEvent,
) (eventResult, error) {
	runner, err := s.factory.GetOrCreate(ctx, key, store)
	if err != nil {
		return resultFailed, fmt.Errorf("retrieving policies of %s failed: %w", key, err)
	}

	if s.dryRun {
		clt = gitprovider.NewDryClient(clt, logger)
	}

	if err := runner.Run(ctx, clt, ev); err != nil {
		return resultFailed, fmt.Errorf("running policies failed: %w", err)
	}

	logger.Debug("push event processed", logfields.Event("push_event_processed"))

	return resultProcessed, nil
}
