package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/forgebridge/graph"
)

// Notification is one change event routed to a subscription: the entity the
// mutation touched or impacted, and how it was reached.
type Notification struct {
	// Subscription identifies the receiving subscription.
	Subscription string `json:"subscription"`
	// Endpoint is the subscriber's endpoint id.
	Endpoint string `json:"endpoint"`

	// Entity is the affected entity.
	Entity graph.EntityRef `json:"entity"`
	// Origin is the mutated entity whose change propagated here. Equal to
	// Entity when the subscription matched the mutation itself.
	Origin graph.EntityRef `json:"origin"`

	Kind graph.MutationKind `json:"kind"`

	// Relations lists the relations asserted on the origin in the
	// committing batch.
	Relations []string `json:"relations,omitempty"`

	Time time.Time `json:"time"`
}

// Deliverer pushes one notification to a subscriber. Implementations must
// be safe for concurrent use; delivery workers for different subscriptions
// may share one deliverer.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, n Notification) error

func (f DelivererFunc) Deliver(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// NotifySubjectPrefix is the NATS subject root for change notifications.
// A subscriber for endpoint "flame" receives on forge.notify.flame.
const NotifySubjectPrefix = "forge.notify"

// NATSDeliverer publishes notifications as JSON over NATS, one subject per
// endpoint.
type NATSDeliverer struct {
	nc *nats.Conn
}

// NewNATSDeliverer wraps an established NATS connection.
func NewNATSDeliverer(nc *nats.Conn) *NATSDeliverer {
	return &NATSDeliverer{nc: nc}
}

// Deliver publishes the notification to forge.notify.<endpoint>.
func (d *NATSDeliverer) Deliver(_ context.Context, n Notification) error {
	if d.nc == nil {
		// No connection means notifications degrade to no-ops.
		return nil
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", NotifySubjectPrefix, n.Endpoint)
	if err := d.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}
