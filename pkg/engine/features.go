package engine

// Re-export the supporting internal packages so callers never need to
// import anything under internal/ themselves: pkg/engine is the one
// public entry point for transport, search, security, and hooks alike.

import (
	"time"

	"github.com/libp2p/go-libp2p/core/host"

	"github.com/amaydixit11/jsoncrdt/internal/hooks"
	"github.com/amaydixit11/jsoncrdt/internal/search"
	"github.com/amaydixit11/jsoncrdt/internal/security"
	"github.com/amaydixit11/jsoncrdt/internal/snapshot"
	"github.com/amaydixit11/jsoncrdt/internal/transport"
)

// ========== Peer Sync Transport ==========

// SyncService runs peer discovery and state-hash/full-state sync for a
// replica's Engine over libp2p.
type SyncService = transport.Service

// SyncConfig configures a SyncService.
type SyncConfig = transport.Config

// DefaultSyncConfig returns the default transport configuration: mDNS
// discovery on, DHT off, no allowlist persistence.
func DefaultSyncConfig() SyncConfig {
	return transport.DefaultConfig()
}

// NewSyncService starts no goroutines by itself; call Start on the
// result to begin listening and discovering peers. adapter wraps an
// *Engine so the transport layer can Join peer deltas without
// importing this package.
func NewSyncService(e *Engine, cfg SyncConfig) (SyncService, error) {
	return transport.NewP2PService(transport.NewEngineAdapter(e), cfg)
}

// SyncMetrics reports sync activity counters.
type SyncMetrics = transport.Metrics

// Allowlist restricts which peers a SyncService will sync with.
type Allowlist = transport.Allowlist

// NewAllowlist opens or creates the allowlist file under dataDir. An
// empty dataDir gives an in-memory-only allowlist.
func NewAllowlist(dataDir string, strict bool) (*Allowlist, error) {
	return transport.NewAllowlist(dataDir, strict)
}

// ========== Pairing & Invites ==========

// PairingKey is a symmetric key. A SecretStore's pairing secret is one,
// and so is the password-derived key that encrypts it on disk.
type PairingKey = security.Key

// GeneratePairingKey returns a fresh random key.
func GeneratePairingKey() (PairingKey, error) {
	return security.GenerateKey()
}

// SecretStore persists a replica's pairing secret, encrypted under a
// password-derived key.
type SecretStore = security.SecretStore

// NewSecretStore opens or creates the pairing-secret file under dir.
func NewSecretStore(dir string) SecretStore {
	return security.NewFileSecretStore(dir)
}

// PeerInvite is a signed, shareable credential a replica presents to
// invite another host to sync with it.
type PeerInvite = security.PeerInvite

// CreateInvite mints a PeerInvite for h, signed with h's host key and
// valid for expiry (0 uses security.DefaultInviteExpiry).
func CreateInvite(h host.Host, expiry time.Duration) (*PeerInvite, error) {
	return security.CreateInvite(h, expiry)
}

// ParseInvite decodes an invite string produced by PeerInvite.Encode.
// The short ToMinimalCode form, which ToQR and ToQRString render, has
// no signature and is rejected.
func ParseInvite(s string) (*PeerInvite, error) {
	return security.ParseInvite(s)
}

// ========== Durable Snapshots ==========

// SnapshotStore persists replica states to SQLite so a process can
// resume without re-syncing from peers from scratch. It is a
// durability optimization only: the CausalContext remains the source
// of truth for what has been observed.
type SnapshotStore = snapshot.Store

// NewSnapshotStore opens or creates the snapshot database at path.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	return snapshot.New(path)
}

// ========== Full-Text Search ==========

// SearchIndex is a Bleve-backed full-text index over a document's
// string leaves.
type SearchIndex = search.Index

// NewSearchIndex creates or opens a persisted index under dataDir.
func NewSearchIndex(dataDir string) (*SearchIndex, error) {
	return search.NewIndex(dataDir)
}

// NewMemorySearchIndex creates a non-persisted index, useful for
// short-lived processes or tests.
func NewMemorySearchIndex() (*SearchIndex, error) {
	return search.NewMemoryIndex()
}

// SearchOptions configures a search query.
type SearchOptions = search.SearchOptions

// SearchResult is one search hit.
type SearchResult = search.SearchResult

// ========== Change Notifications ==========

// HookManager fans document-change events out to in-process callbacks,
// channel subscriptions, and HTTP webhooks.
type HookManager = hooks.Manager

// NewHookManager returns an empty HookManager.
func NewHookManager() *HookManager {
	return hooks.NewManager()
}

// HookEvent is the data passed to callbacks and webhooks.
type HookEvent = hooks.Event

// HookEventType distinguishes a locally-applied Operator from a delta
// joined from a peer.
type HookEventType = hooks.EventType

const (
	HookEventApply = hooks.EventApply
	HookEventJoin  = hooks.EventJoin
)

// HookCallback is an in-process event handler.
type HookCallback = hooks.Callback

// HookSubscription is a channel-based event stream.
type HookSubscription = hooks.Subscription

// WebhookConfig configures an HTTP webhook.
type WebhookConfig = hooks.WebhookConfig
