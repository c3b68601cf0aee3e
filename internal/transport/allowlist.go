package transport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Allowlist manages the set of peers this replica trusts to sync with.
type Allowlist struct {
	peers  map[peer.ID]AllowedPeer
	mu     gosync.RWMutex
	path   string
	strict bool // if true, IsAllowed rejects unknown peers
}

// AllowedPeer is a trusted peer's persisted record.
type AllowedPeer struct {
	PeerID    string   `json:"peer_id"`
	Name      string   `json:"name,omitempty"`
	AddedAt   int64    `json:"added_at"`
	Addresses []string `json:"addresses,omitempty"`
}

type allowlistFile struct {
	Peers []AllowedPeer `json:"peers"`
}

// NewAllowlist returns an allowlist, loading peers.json from dataDir if
// it exists. An empty dataDir means the allowlist is in-memory only.
func NewAllowlist(dataDir string, strict bool) (*Allowlist, error) {
	al := &Allowlist{
		peers:  make(map[peer.ID]AllowedPeer),
		strict: strict,
	}
	if dataDir != "" {
		al.path = filepath.Join(dataDir, "peers.json")
	}

	if al.path != "" {
		if err := al.load(); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	return al, nil
}

// Add records peerID as trusted and persists the allowlist.
func (al *Allowlist) Add(peerID peer.ID, name string, addresses []string) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	al.peers[peerID] = AllowedPeer{
		PeerID:    peerID.String(),
		Name:      name,
		AddedAt:   time.Now().Unix(),
		Addresses: addresses,
	}
	return al.save()
}

// Remove drops peerID from the allowlist and persists the change.
func (al *Allowlist) Remove(peerID peer.ID) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	delete(al.peers, peerID)
	return al.save()
}

// IsAllowed reports whether peerID may sync with this replica. When the
// allowlist isn't strict, every peer is allowed.
func (al *Allowlist) IsAllowed(peerID peer.ID) bool {
	al.mu.RLock()
	defer al.mu.RUnlock()

	if !al.strict {
		return true
	}
	_, ok := al.peers[peerID]
	return ok
}

// List returns every trusted peer.
func (al *Allowlist) List() []AllowedPeer {
	al.mu.RLock()
	defer al.mu.RUnlock()

	result := make([]AllowedPeer, 0, len(al.peers))
	for _, p := range al.peers {
		result = append(result, p)
	}
	return result
}

// Count returns the number of trusted peers.
func (al *Allowlist) Count() int {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return len(al.peers)
}

func (al *Allowlist) load() error {
	data, err := os.ReadFile(al.path)
	if err != nil {
		return err
	}

	var file allowlistFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}

	for _, p := range file.Peers {
		peerID, err := peer.Decode(p.PeerID)
		if err != nil {
			continue
		}
		al.peers[peerID] = p
	}
	return nil
}

func (al *Allowlist) save() error {
	if al.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(al.path), 0700); err != nil {
		return fmt.Errorf("transport: create allowlist directory: %w", err)
	}

	file := allowlistFile{Peers: make([]AllowedPeer, 0, len(al.peers))}
	for _, p := range al.peers {
		file.Peers = append(file.Peers, p)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(al.path, data, 0600)
}
