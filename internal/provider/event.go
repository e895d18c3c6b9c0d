// Package provider contains the representation of webhook events that are
// shared by the event providers.
package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
)

// Event is a received webhook event.
type Event struct {
	// Provider is the name of the hosting service that sent the event.
	Provider string
	// DeliveryID is the unique ID of the event, it is empty if the
	// provider does not send one.
	DeliveryID string
	EventType  string
	// JSON is the event payload.
	JSON []byte

	// Organization is the owner of the repository.
	Organization string
	// Push is nil if the event is not a push event.
	Push *gitprovider.PushEvent
}

func (e *Event) String() string {
	if e.DeliveryID == "" {
		return fmt.Sprintf("%s %s", e.Provider, e.EventType)
	}

	return fmt.Sprintf("%s %s (deliveryID: %s)", e.Provider, e.EventType, e.DeliveryID)
}

func (e *Event) LogFields() []zap.Field {
	fields := make([]zap.Field, 0, 6) // cap == max. size of fields we append

	fields = append(fields, logfields.EventProvider(e.Provider))

	if e.DeliveryID != "" {
		fields = append(fields, zap.String("webhook.delivery_id", e.DeliveryID))
	}

	if e.EventType != "" {
		fields = append(fields, zap.String("webhook.event_type", e.EventType))
	}

	if e.Organization != "" {
		fields = append(fields, logfields.Organization(e.Organization))
	}

	if e.Push != nil {
		fields = append(fields, e.Push.Repository.LogFields()...)
	}

	return fields
}
