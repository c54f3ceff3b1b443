// Package bridge assembles the forge bridge core: the vocabulary registry,
// ingest classifier, inference engine, graph store, and channel manager
// behind one operation surface. Endpoint adapters talk to a Core; nothing
// else in the module knows more than its own concern.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/forgebridge/channel"
	"github.com/c360studio/forgebridge/classify"
	"github.com/c360studio/forgebridge/config"
	"github.com/c360studio/forgebridge/graph"
	"github.com/c360studio/forgebridge/infer"
	"github.com/c360studio/forgebridge/registry"
	"github.com/c360studio/forgebridge/vocabulary"
)

// Core is the bridge's external operation surface.
type Core struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *registry.Registry
	classifier *classify.Classifier
	inference  *infer.Engine
	store      *graph.Store
	channels   *channel.Manager

	nc      *nats.Conn
	watcher *registry.MappingWatcher

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// CoreOption configures a Core.
type CoreOption func(*coreOptions)

type coreOptions struct {
	logger  *slog.Logger
	metrics prometheus.Registerer
	nc      *nats.Conn
}

// WithLogger sets the core's logger, shared by every component.
func WithLogger(logger *slog.Logger) CoreOption {
	return func(o *coreOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics registers graph and delivery metrics with reg.
func WithMetrics(reg prometheus.Registerer) CoreOption {
	return func(o *coreOptions) { o.metrics = reg }
}

// WithNATSConn supplies an established NATS connection, overriding
// nats.url from the config.
func WithNATSConn(nc *nats.Conn) CoreOption {
	return func(o *coreOptions) { o.nc = nc }
}

// New assembles a core from configuration. A configured mapping seed file
// is applied before the core accepts records; a configured NATS URL is
// dialed for notification publishing.
func New(cfg *config.Config, opts ...CoreOption) (*Core, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &coreOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	reg := registry.Default()

	var graphOpts []graph.Option
	graphOpts = append(graphOpts,
		graph.WithLogger(o.logger),
		graph.WithLockRetries(cfg.Ingest.LockRetries))
	var channelOpts []channel.ManagerOption
	channelOpts = append(channelOpts,
		channel.WithManagerLogger(o.logger),
		channel.WithQueueSize(cfg.Channel.QueueSize),
		channel.WithDeliveryAttempts(cfg.Channel.DeliveryAttempts))
	if o.metrics != nil {
		graphOpts = append(graphOpts, graph.WithMetrics(graph.NewMetrics(o.metrics)))
		channelOpts = append(channelOpts, channel.WithManagerMetrics(channel.NewMetrics(o.metrics)))
	}

	store := graph.NewStore(reg, graphOpts...)

	c := &Core{
		cfg:        cfg,
		logger:     o.logger,
		registry:   reg,
		classifier: classify.New(reg, o.logger),
		inference:  infer.New(o.logger),
		store:      store,
		channels:   channel.NewManager(store, channelOpts...),
		nc:         o.nc,
	}

	if c.nc == nil && cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("forgebridge"))
		if err != nil {
			return nil, fmt.Errorf("connect to NATS %s: %w", cfg.NATS.URL, err)
		}
		c.nc = nc
	}

	if cfg.Mappings.File != "" {
		if cfg.Mappings.Watch {
			w, err := registry.NewMappingWatcher(reg, cfg.Mappings.File, o.logger)
			if err != nil {
				c.Close()
				return nil, err
			}
			c.watcher = w
		} else {
			mf, err := registry.LoadMappingFile(cfg.Mappings.File)
			if err != nil {
				c.Close()
				return nil, err
			}
			if err := mf.Apply(reg); err != nil {
				c.Close()
				return nil, fmt.Errorf("apply mapping file %s: %w", cfg.Mappings.File, err)
			}
		}
	}

	return c, nil
}

// Run blocks serving background work (mapping hot-reload) until ctx is
// cancelled. Cores without background work return immediately.
func (c *Core) Run(ctx context.Context) {
	if c.watcher == nil {
		return
	}
	c.watcher.Watch(ctx)
}

// Close stops delivery workers and releases the NATS connection. Queued
// notifications are discarded.
func (c *Core) Close() {
	c.closeOnce.Do(func() {
		c.channels.Close()
		if c.watcher != nil {
			c.watcher.Close()
		}
		c.wg.Wait()
		if c.nc != nil {
			c.nc.Close()
		}
	})
}

// Push ingests one raw record from an endpoint: classify, infer edges,
// commit atomically, then fan the committed mutations out to subscribers.
// The configured ingest timeout bounds the whole mutating path; exceeding
// it fails the push with nothing committed.
func (c *Core) Push(ctx context.Context, endpointID string, record classify.Record) (*graph.BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Ingest.Timeout)
	defer cancel()

	batch, err := c.classifier.Classify(endpointID, record)
	if err != nil {
		return nil, err
	}

	edges := c.inference.Derive(batch)

	result, err := c.store.ApplyBatch(ctx, batch, edges)
	if err != nil {
		return nil, err
	}

	// Notification fan-out runs off the ingest path; the pusher never
	// waits on subscribers.
	events := result.Events
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.channels.OnMutation(context.Background(), events)
	}()

	return result, nil
}

// Lookup returns entities of a type matching attribute-equality filters.
func (c *Core) Lookup(ctx context.Context, t vocabulary.EntityType, filters map[string]any) ([]*graph.Entity, error) {
	return c.store.Lookup(ctx, t, filters)
}

// BlastRadius traverses the dependency structure from an entity.
func (c *Core) BlastRadius(ctx context.Context, id string, direction graph.Direction, maxDepth int) ([]graph.EntityRef, error) {
	return c.store.BlastRadius(ctx, id, direction, maxDepth)
}

// Stack materializes a shot's comp stack.
func (c *Core) Stack(ctx context.Context, shotID string) ([]*graph.Entity, error) {
	return c.store.Stack(ctx, shotID)
}

// ResolveName resolves a natural-key reference to an entity.
func (c *Core) ResolveName(t vocabulary.EntityType, name string) (*graph.Entity, error) {
	return c.store.ResolveName(t, name)
}

// Subscribe registers a change subscription for an endpoint. A nil
// deliverer publishes over the core's NATS connection.
func (c *Core) Subscribe(endpointID, typeFilter, relationFilter string, d channel.Deliverer) (string, error) {
	if d == nil {
		if c.nc == nil {
			return "", fmt.Errorf("no deliverer and no NATS connection configured")
		}
		d = channel.NewNATSDeliverer(c.nc)
	}
	return c.channels.Subscribe(endpointID, typeFilter, relationFilter, d)
}

// Unsubscribe cancels a subscription, discarding queued notifications.
func (c *Core) Unsubscribe(handle string) error {
	return c.channels.Unsubscribe(handle)
}

// RegisterEntityType extends the vocabulary with an entity type.
func (c *Core) RegisterEntityType(def registry.EntityTypeDef) error {
	return c.registry.RegisterEntityType(def)
}

// RegisterRole extends the vocabulary with a role.
func (c *Core) RegisterRole(role vocabulary.Role) error {
	return c.registry.RegisterRole(role)
}

// RegisterEndpointMapping installs or extends an endpoint's term table.
func (c *Core) RegisterEndpointMapping(endpointID string, m registry.Mapping) error {
	return c.registry.RegisterEndpointMapping(endpointID, m)
}

// ProposeChange applies a vocabulary change through the compatibility gate.
func (c *Core) ProposeChange(kind registry.ChangeKind, change registry.Change, major bool) (registry.ChangeRecord, error) {
	return c.registry.ProposeChange(kind, change, major)
}

// VocabularyVersion returns the registry's semantic version.
func (c *Core) VocabularyVersion() string {
	return c.registry.Version()
}

// Changelog returns the registry's append-only change history.
func (c *Core) Changelog() []registry.ChangeRecord {
	return c.registry.Changelog()
}
