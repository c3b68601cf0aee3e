// Package hooks notifies interested parties — in-process subscribers
// and HTTP webhooks — when a document changes. Unlike the CRUD-shaped
// events a fixed-schema "entry" store would fire, a generic JSON CRDT
// document has no canonical notion of create/update/delete: the only
// things that actually happen are a local Operator producing a delta,
// or a peer's delta being Joined in. Events carry the changed path and
// the dot that was introduced, not an entry id/type.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

// EventType distinguishes a locally-applied operator from a delta
// received from a peer.
type EventType string

const (
	// EventApply fires when a local Operator was applied via
	// Engine.Apply.
	EventApply EventType = "apply"
	// EventJoin fires when a delta from a peer was folded in via
	// Engine.Join.
	EventJoin EventType = "join"
)

// Event is the data passed to callbacks and webhooks.
type Event struct {
	Type      EventType `json:"type"`
	Path      string    `json:"path,omitempty"` // dotted path of the changed node, if known
	Dots      []crdt.Dot `json:"dots,omitempty"`
	PeerID    string    `json:"peer_id,omitempty"` // set for EventJoin
	Timestamp time.Time `json:"timestamp"`
}

// NewApplyEvent builds an EventApply for the dots a local Apply call
// introduced at path.
func NewApplyEvent(path string, dots []crdt.Dot) Event {
	return Event{Type: EventApply, Path: path, Dots: dots, Timestamp: time.Now()}
}

// NewJoinEvent builds an EventJoin for the dots a delta received from
// peerID introduced.
func NewJoinEvent(peerID string, dots []crdt.Dot) Event {
	return Event{Type: EventJoin, PeerID: peerID, Dots: dots, Timestamp: time.Now()}
}

// Callback is an in-process event handler.
type Callback func(event Event)

// WebhookConfig configures an HTTP webhook.
type WebhookConfig struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Events     []EventType       `json:"events"`
	Headers    map[string]string `json:"headers"`
	Secret     string            `json:"secret"`
	MaxRetries int               `json:"max_retries"`
	Timeout    time.Duration     `json:"timeout"`
	Async      bool              `json:"async"`
}

// Subscription is a channel-based, in-process event stream — the
// lighter-weight alternative to a Callback for a consumer that wants
// to select/range over events rather than be called back on the
// publisher's goroutine.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// SubscriptionOptions filters a Subscription's events.
type SubscriptionOptions struct {
	// Types restricts the subscription to these event types. Empty
	// means all types.
	Types []EventType
}

type subscription struct {
	ch     chan Event
	opts   SubscriptionOptions
	once   sync.Once
	closed chan struct{}
}

func (s *subscription) Events() <-chan Event { return s.ch }

func (s *subscription) Close() {
	s.once.Do(func() { close(s.closed) })
}

func (s *subscription) matches(event Event) bool {
	if len(s.opts.Types) == 0 {
		return true
	}
	for _, t := range s.opts.Types {
		if t == event.Type {
			return true
		}
	}
	return false
}

// send delivers event without blocking: a full subscriber buffer
// drops the event rather than stalling the publisher.
func (s *subscription) send(event Event) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.ch <- event:
	case <-s.closed:
	default:
	}
}

// Manager fans a stream of document-change Events out to in-process
// callbacks, channel subscriptions, and HTTP webhooks.
type Manager struct {
	mu        sync.RWMutex
	callbacks []Callback
	subs      map[*subscription]struct{}
	webhooks  map[string]*WebhookConfig
	client    *http.Client
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		subs:     make(map[*subscription]struct{}),
		webhooks: make(map[string]*WebhookConfig),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// OnApply registers a callback for locally-applied operators.
func (m *Manager) OnApply(cb Callback) {
	m.On(EventApply, cb)
}

// OnJoin registers a callback for deltas joined from peers.
func (m *Manager) OnJoin(cb Callback) {
	m.On(EventJoin, cb)
}

// On registers cb for eventType only: cb is wrapped so that it is
// called for events of that type and skipped for all others.
func (m *Manager) On(eventType EventType, cb Callback) {
	wrapped := func(event Event) {
		if event.Type == eventType {
			cb(event)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, wrapped)
}

// Subscribe returns a channel-based Subscription for every event.
func (m *Manager) Subscribe() Subscription {
	return m.SubscribeWithOptions(SubscriptionOptions{})
}

// SubscribeWithOptions returns a channel-based Subscription filtered
// by opts.
func (m *Manager) SubscribeWithOptions(opts SubscriptionOptions) Subscription {
	sub := &subscription{
		ch:     make(chan Event, 32),
		opts:   opts,
		closed: make(chan struct{}),
	}
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()
	return sub
}

// RegisterWebhook adds an HTTP webhook.
func (m *Manager) RegisterWebhook(config WebhookConfig) error {
	if config.URL == "" {
		return fmt.Errorf("hooks: webhook URL is required")
	}
	if config.ID == "" {
		return fmt.Errorf("hooks: webhook ID is required")
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[config.ID] = &config
	return nil
}

// UnregisterWebhook removes a webhook.
func (m *Manager) UnregisterWebhook(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.webhooks, id)
}

// ListWebhooks returns every registered webhook.
func (m *Manager) ListWebhooks() []WebhookConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configs := make([]WebhookConfig, 0, len(m.webhooks))
	for _, wh := range m.webhooks {
		configs = append(configs, *wh)
	}
	return configs
}

// Trigger fans event out to every callback, subscription, and
// matching webhook.
func (m *Manager) Trigger(event Event) {
	m.mu.RLock()
	callbacks := append([]Callback(nil), m.callbacks...)
	subs := make([]*subscription, 0, len(m.subs))
	for s := range m.subs {
		subs = append(subs, s)
	}
	webhooks := make([]*WebhookConfig, 0)
	for _, wh := range m.webhooks {
		for _, et := range wh.Events {
			if et == event.Type {
				webhooks = append(webhooks, wh)
				break
			}
		}
	}
	m.mu.RUnlock()

	for _, cb := range callbacks {
		cb(event)
	}
	for _, s := range subs {
		if s.matches(event) {
			s.send(event)
		}
	}
	for _, wh := range webhooks {
		if wh.Async {
			go m.executeWebhook(wh, event)
		} else {
			m.executeWebhook(wh, event)
		}
	}
}

// TriggerAsync fires Trigger on its own goroutine.
func (m *Manager) TriggerAsync(event Event) {
	go m.Trigger(event)
}

func (m *Manager) executeWebhook(config *WebhookConfig, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * time.Second)
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(payload))
		if err != nil {
			cancel()
			lastErr = err
			continue
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Jsoncrdt-Event", string(event.Type))
		for k, v := range config.Headers {
			req.Header.Set(k, v)
		}

		resp, err := m.client.Do(req)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("hooks: webhook returned status %d", resp.StatusCode)
	}

	return lastErr
}
