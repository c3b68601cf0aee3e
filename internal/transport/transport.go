// Package transport provides peer-to-peer synchronization for replicas
// of a jsoncrdt document.
//
// It uses libp2p for networking and mDNS for local peer discovery. The
// protocol is state-hash comparison followed by a full-state transfer:
// the initiating peer sends a SHA-256 hash of its JSON-encoded state,
// and if the responder's hash differs, the responder sends its full
// state, which the initiator joins. Joining that state is the
// only thing that ever changes replica state; this package never
// touches internal/crdt's unexported types directly, only the public
// surface pkg/engine exposes.
package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

// Config contains configuration for the Service.
type Config struct {
	// ListenAddrs are the multiaddrs to listen on.
	// Default: /ip4/0.0.0.0/tcp/0 (random port)
	ListenAddrs []string

	// SyncInterval is how often to sync with known peers.
	// Default: 5 seconds
	SyncInterval time.Duration

	// EnableMDNS enables mDNS for LAN peer discovery.
	// Default: true
	EnableMDNS bool

	// EnableDHT enables Kademlia DHT for global peer discovery.
	// Default: false (uses IPFS bootstrap nodes)
	EnableDHT bool

	// AllowlistPath is the directory holding the trusted-peers file.
	// Default: "" (no persistence)
	AllowlistPath string

	// StrictAllowlist rejects peers not in the allowlist.
	// Default: false (accept all)
	StrictAllowlist bool

	// Logger receives sync diagnostics (optional).
	Logger Logger

	// PrivateKey is the identity key for the host. Generated if nil.
	PrivateKey crypto.PrivKey
}

// Logger is the minimal diagnostic sink this package logs through.
type Logger interface {
	Printf(format string, v ...interface{})
}

type noopLogger struct{}

func (noopLogger) Printf(format string, v ...interface{}) {}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddrs:  []string{"/ip4/0.0.0.0/tcp/0"},
		SyncInterval: 5 * time.Second,
		EnableMDNS:   true,
	}
}

// Service manages peer-to-peer synchronization of a StateProvider.
type Service interface {
	// Start begins listening and discovering peers.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the service.
	Stop() error

	// Peers returns the list of connected peers.
	Peers() []peer.ID

	// SyncWith triggers a sync with a specific peer.
	SyncWith(ctx context.Context, peerID peer.ID) error

	// Metrics returns sync statistics.
	Metrics() Metrics

	// GetHost returns the underlying libp2p host.
	GetHost() host.Host

	// ConnectPeer connects to a peer at the given libp2p peer ID and
	// multiaddrs (typically decoded from an internal/security.PeerInvite)
	// and, if connection succeeds, triggers an immediate sync.
	ConnectPeer(peerIDStr string, addrs []string) error
}

// Metrics reports sync activity counters.
type Metrics struct {
	SyncAttempts  int64
	SyncSuccesses int64
	SyncFailures  int64
}

// StateProvider decouples the transport layer from pkg/engine: it
// needs only a replica's current state, a way to fold a peer's state
// in, and a cheap comparison hash — the engine's Snapshot and Join,
// named generically so this package never imports
// pkg/engine (pkg/engine imports this package, not the reverse).
type StateProvider interface {
	// State returns the replica's current full state.
	State() crdt.State

	// Join merges a peer's state (or delta) into the local state.
	Join(state crdt.State) error

	// StateHash returns a hash of the current state for cheap
	// divergence detection.
	StateHash() []byte
}

// MessageType identifies the kind of a sync protocol message.
type MessageType uint8

const (
	MsgStateHash    MessageType = 1 // exchange state hashes
	MsgStateRequest MessageType = 2 // request full state
	MsgState        MessageType = 3 // full state payload
)

// Message is a sync protocol message.
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	StateHash []byte      `json:"state_hash,omitempty"`
	State     []byte      `json:"state,omitempty"` // JSON-encoded crdt.State
}

// Encode serializes the message to bytes.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage deserializes a message from bytes.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GenerateSessionID creates a unique session identifier:
// "<unix-nano>-<8 hex chars>".
func GenerateSessionID() string {
	ts := time.Now().UnixNano()
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	return fmt.Sprintf("%d-%s", ts, hex.EncodeToString(randomBytes))
}
