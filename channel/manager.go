// Package channel routes committed graph mutations to endpoint
// subscriptions. Each subscription owns a buffered delivery queue drained
// by its own worker, so a slow subscriber never stalls ingestion: the
// publishing side enqueues without blocking and drops on a full queue.
// Delivery is at-least-once and best-effort.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/c360studio/forgebridge/graph"
	"github.com/c360studio/forgebridge/vocabulary"
)

// ErrUnknownSubscription is returned when a handle does not name a live
// subscription.
var ErrUnknownSubscription = errors.New("unknown subscription")

const (
	defaultQueueSize        = 64
	defaultDeliveryAttempts = 3
)

// Subscription is the registered interest filter for one endpoint.
type Subscription struct {
	Handle   string
	Endpoint string

	// TypeFilter is a glob matched against affected entity types, for
	// example "media" or "*". Empty matches everything.
	TypeFilter string
	// RelationFilter is a glob matched against the mutation kind and the
	// relations asserted by the mutation. Empty matches everything.
	RelationFilter string
}

type subscription struct {
	Subscription
	deliverer Deliverer
	queue     chan Notification
	done      chan struct{}
}

// Manager owns the subscription registry and the delivery workers.
type Manager struct {
	store    *graph.Store
	logger   *slog.Logger
	metrics  *Metrics
	queue    int
	attempts int

	mu   sync.RWMutex
	subs map[string]*subscription
	wg   sync.WaitGroup

	closed chan struct{}
	once   sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithQueueSize sets the per-subscription queue capacity.
func WithQueueSize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.queue = n
		}
	}
}

// WithDeliveryAttempts bounds how often a failing delivery is retried
// before the notification is dropped.
func WithDeliveryAttempts(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.attempts = n
		}
	}
}

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerMetrics attaches delivery metrics.
func WithManagerMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a manager computing affected sets against the given
// store.
func NewManager(store *graph.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		logger:   slog.Default(),
		queue:    defaultQueueSize,
		attempts: defaultDeliveryAttempts,
		subs:     make(map[string]*subscription),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers an interest filter for an endpoint and starts its
// delivery worker. The returned handle cancels it via Unsubscribe.
func (m *Manager) Subscribe(endpoint, typeFilter, relationFilter string, d Deliverer) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint id is required")
	}
	if d == nil {
		return "", fmt.Errorf("deliverer is required")
	}
	for _, pattern := range []string{typeFilter, relationFilter} {
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return "", fmt.Errorf("invalid filter pattern %q", pattern)
		}
	}

	sub := &subscription{
		Subscription: Subscription{
			Handle:         uuid.NewString(),
			Endpoint:       endpoint,
			TypeFilter:     typeFilter,
			RelationFilter: relationFilter,
		},
		deliverer: d,
		queue:     make(chan Notification, m.queue),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.subs[sub.Handle] = sub
	m.mu.Unlock()

	m.wg.Add(1)
	go m.deliverLoop(sub)

	m.logger.Info("subscription registered",
		"handle", sub.Handle,
		"endpoint", endpoint,
		"type_filter", typeFilter,
		"relation_filter", relationFilter)
	return sub.Handle, nil
}

// Unsubscribe cancels a subscription. Notifications still queued for it are
// discarded, not delivered.
func (m *Manager) Unsubscribe(handle string) error {
	m.mu.Lock()
	sub, ok := m.subs[handle]
	if ok {
		delete(m.subs, handle)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, handle)
	}

	close(sub.done)
	m.logger.Info("subscription cancelled", "handle", handle, "endpoint", sub.Endpoint)
	return nil
}

// Subscriptions returns the live subscriptions.
func (m *Manager) Subscriptions() []Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		out = append(out, sub.Subscription)
	}
	return out
}

// OnMutation fans a committed batch out to matching subscriptions. For each
// mutated entity it computes the impacted set (the entity plus its
// dependents) and enqueues one notification per matching (subscription,
// entity) pair. Enqueueing never blocks: a full queue drops the
// notification with a log line.
func (m *Manager) OnMutation(ctx context.Context, events []graph.MutationEvent) {
	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	for _, event := range events {
		affected := []graph.EntityRef{event.Entity}

		impacted, err := m.store.BlastRadius(ctx, event.Entity.ID, graph.DirectionReverse, 0)
		if err != nil {
			m.logger.Error("affected-set traversal failed",
				"entity", event.Entity.ID,
				"error", err)
		} else {
			affected = append(affected, impacted...)
		}

		relations := relationStrings(event.Relations)
		for _, sub := range subs {
			for _, ref := range affected {
				if !sub.matches(ref, event, relations) {
					continue
				}
				m.enqueue(sub, Notification{
					Subscription: sub.Handle,
					Endpoint:     sub.Endpoint,
					Entity:       ref,
					Origin:       event.Entity,
					Kind:         event.Kind,
					Relations:    relations,
					Time:         event.Time,
				})
			}
		}
	}
}

func (m *Manager) enqueue(sub *subscription, n Notification) {
	select {
	case <-sub.done:
	case sub.queue <- n:
		m.count("enqueued")
	default:
		m.count("dropped_full")
		m.logger.Warn("delivery queue full, dropping notification",
			"handle", sub.Handle,
			"endpoint", sub.Endpoint,
			"entity", n.Entity.ID)
	}
}

// deliverLoop drains one subscription's queue until cancellation.
func (m *Manager) deliverLoop(sub *subscription) {
	defer m.wg.Done()

	for {
		select {
		case <-sub.done:
			return
		case <-m.closed:
			return
		case n := <-sub.queue:
			m.deliver(sub, n)
		}
	}
}

// deliver pushes one notification with bounded retry. A delivery that
// still fails after the last attempt is logged and dropped.
func (m *Manager) deliver(sub *subscription, n Notification) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sub.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	operation := func() error {
		return sub.deliverer.Deliver(ctx, n)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(deliveryBackOff(), uint64(m.attempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		m.count("failed")
		m.logger.Warn("notification delivery failed, dropping",
			"handle", sub.Handle,
			"endpoint", sub.Endpoint,
			"entity", n.Entity.ID,
			"attempts", m.attempts,
			"error", err)
		return
	}
	m.count("delivered")
}

// Close cancels every subscription and waits for the workers to stop.
func (m *Manager) Close() {
	m.once.Do(func() {
		close(m.closed)
	})

	m.mu.Lock()
	for handle, sub := range m.subs {
		close(sub.done)
		delete(m.subs, handle)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) count(outcome string) {
	if m.metrics != nil {
		m.metrics.Deliveries.WithLabelValues(outcome).Inc()
	}
}

// matches applies the subscription's filters to one affected entity.
func (s *subscription) matches(ref graph.EntityRef, event graph.MutationEvent, relations []string) bool {
	if !globMatches(s.TypeFilter, string(ref.Type)) {
		return false
	}
	if s.RelationFilter == "" {
		return true
	}
	if globMatches(s.RelationFilter, string(event.Kind)) {
		return true
	}
	for _, rel := range relations {
		if globMatches(s.RelationFilter, rel) {
			return true
		}
	}
	return false
}

func globMatches(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(pattern, value)
	return err == nil && ok
}

func relationStrings(relations []vocabulary.Relation) []string {
	if len(relations) == 0 {
		return nil
	}
	out := make([]string, len(relations))
	for i, r := range relations {
		out[i] = string(r)
	}
	return out
}

func deliveryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}
