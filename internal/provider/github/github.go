// Package github validates and decodes github webhook events.
package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
	"github.com/simplesurance/mergebot/internal/provider"
)

const loggerName = "github_event_provider"

// ProviderName identifies events sent by github.
const ProviderName = "github"

// DefaultAPIURL is the base url of the github REST API.
const DefaultAPIURL = "https://api.github.com/"

// Provider validates github webhook requests and converts push events to
// provider.Events.
type Provider struct {
	logger        *zap.Logger
	webhookSecret []byte
	apiURL        string
}

type option func(*Provider)

// WithPayloadSecret sets the secret that is used to validate the signature
// of the webhook payloads.
func WithPayloadSecret(secret string) option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

// WithAPIURL sets the base url of the github REST API, it is used to build
// the repository urls of events.
func WithAPIURL(u string) option {
	return func(p *Provider) {
		p.apiURL = u
	}
}

func New(opts ...option) *Provider {
	p := Provider{
		apiURL: DefaultAPIURL,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logger == nil {
		p.logger = zap.L().Named(loggerName)
	}

	if !strings.HasSuffix(p.apiURL, "/") {
		p.apiURL += "/"
	}

	return &p
}

// Decode validates the signature of a webhook request and parses the
// payload.
// For events that are not push events, Event.Push is nil.
func (p *Provider) Decode(req *http.Request) (*provider.Event, error) {
	deliveryID := github.DeliveryID(req)
	hookType := github.WebHookType(req)

	logger := p.logger.With(
		logfields.EventProvider(ProviderName),
		zap.String("webhook.delivery_id", deliveryID),
		zap.String("webhook.event_type", hookType),
	)

	payload, err := github.ValidatePayload(req, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("payload validation failed: %w", err)
	}

	logger.Debug(
		"received http request",
		logfields.Event("github_event_received"),
		zap.ByteString("http_body", payload),
	)

	event, err := github.ParseWebHook(hookType, payload)
	if err != nil {
		return nil, fmt.Errorf("parsing webhook payload failed: %w", err)
	}

	ev := provider.Event{
		Provider:   ProviderName,
		DeliveryID: deliveryID,
		EventType:  hookType,
		JSON:       payload,
	}

	pushEv, ok := event.(*github.PushEvent)
	if !ok {
		logger.Debug(
			"ignoring event, event type is unsupported",
			logfields.Event("github_unsupported_event_received"),
		)

		return &ev, nil
	}

	org, push, err := p.toPushEvent(pushEv)
	if err != nil {
		return nil, err
	}

	ev.Organization = org
	ev.Push = push

	return &ev, nil
}

func (p *Provider) toPushEvent(ev *github.PushEvent) (owner string, push *gitprovider.PushEvent, err error) {
	repo := ev.GetRepo()
	if repo == nil {
		return "", nil, errors.New("push event has no repository")
	}

	owner, name, found := strings.Cut(repo.GetFullName(), "/")
	if !found || owner == "" || name == "" {
		return "", nil, fmt.Errorf("push event has an invalid repository name: %q", repo.GetFullName())
	}

	return owner, &gitprovider.PushEvent{
		Repository: gitprovider.Repository{
			ID:   strconv.FormatInt(repo.GetID(), 10),
			Name: name,
			URL:  p.apiURL + "repos/" + owner + "/" + name,
		},
		RefUpdates: []*gitprovider.PushUpdate{
			{
				Name:        ev.GetRef(),
				OldObjectID: ev.GetBefore(),
				NewObjectID: ev.GetAfter(),
			},
		},
	}, nil
}
