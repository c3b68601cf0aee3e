package transport

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"

	"github.com/amaydixit11/jsoncrdt/internal/crdt"
)

// ProtocolID identifies the jsoncrdt sync stream protocol.
const ProtocolID = "/jsoncrdt/sync/1.0.0"

// ServiceName is the mDNS service tag peers advertise under.
const ServiceName = "_jsoncrdt-discovery._udp"

// p2pService implements Service using libp2p.
type p2pService struct {
	host     host.Host
	provider StateProvider
	config   Config
	logger   Logger

	allowlist    *Allowlist
	mdnsService  mdns.Service
	dhtDiscovery *DHTDiscovery
	peers        map[peer.ID]struct{}
	peersMu      gosync.RWMutex

	// activeSyncs prevents duplicate concurrent syncs with a peer.
	activeSyncs   map[string]struct{}
	activeSyncsMu gosync.Mutex

	syncAttempts  int64
	syncSuccesses int64
	syncFailures  int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// NewP2PService creates a new libp2p-based sync service over provider.
func NewP2PService(provider StateProvider, cfg Config) (Service, error) {
	listenAddrs := make([]multiaddr.Multiaddr, len(cfg.ListenAddrs))
	for i, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid listen address %s: %w", addr, err)
		}
		listenAddrs[i] = ma
	}

	opts := []libp2p.Option{libp2p.ListenAddrs(listenAddrs...)}
	if cfg.PrivateKey != nil {
		opts = append(opts, libp2p.Identity(cfg.PrivateKey))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	var allowlist *Allowlist
	if cfg.AllowlistPath != "" {
		al, err := NewAllowlist(cfg.AllowlistPath, cfg.StrictAllowlist)
		if err != nil {
			return nil, fmt.Errorf("failed to load allowlist: %w", err)
		}
		allowlist = al
		logger.Printf("allowlist enabled (strict=%v): %d peers loaded", cfg.StrictAllowlist, al.Count())
	}

	return &p2pService{
		host:        h,
		provider:    provider,
		config:      cfg,
		logger:      logger,
		allowlist:   allowlist,
		peers:       make(map[peer.ID]struct{}),
		activeSyncs: make(map[string]struct{}),
	}, nil
}

// Start begins listening and discovering peers.
func (s *p2pService) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.host.SetStreamHandler(protocol.ID(ProtocolID), s.handleStream)

	if s.config.EnableMDNS {
		mdnsService := mdns.NewMdnsService(s.host, ServiceName, s)
		if err := mdnsService.Start(); err != nil {
			return fmt.Errorf("failed to start mDNS: %w", err)
		}
		s.mdnsService = mdnsService
		s.logger.Printf("mDNS discovery enabled")
	}

	if s.config.EnableDHT {
		bootstrapPeers := GetDefaultBootstrapPeers()
		dhtDiscovery, err := NewDHTDiscovery(s.host, bootstrapPeers, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create DHT: %w", err)
		}
		if err := dhtDiscovery.Start(s.HandlePeerFound); err != nil {
			return fmt.Errorf("failed to start DHT: %w", err)
		}
		s.dhtDiscovery = dhtDiscovery
		s.logger.Printf("DHT discovery enabled (global)")
	}

	s.wg.Add(1)
	go s.syncLoop()

	s.logger.Printf("sync service started, listening on %v", s.host.Addrs())
	return nil
}

// Stop gracefully shuts down the service.
func (s *p2pService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.mdnsService != nil {
		s.mdnsService.Close()
	}
	if s.dhtDiscovery != nil {
		s.dhtDiscovery.Stop()
	}

	return s.host.Close()
}

// Peers returns the list of connected peers.
func (s *p2pService) Peers() []peer.ID {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()

	result := make([]peer.ID, 0, len(s.peers))
	for p := range s.peers {
		result = append(result, p)
	}
	return result
}

// Metrics returns sync statistics.
func (s *p2pService) Metrics() Metrics {
	return Metrics{
		SyncAttempts:  atomic.LoadInt64(&s.syncAttempts),
		SyncSuccesses: atomic.LoadInt64(&s.syncSuccesses),
		SyncFailures:  atomic.LoadInt64(&s.syncFailures),
	}
}

// GetHost returns the underlying libp2p host.
func (s *p2pService) GetHost() host.Host {
	return s.host
}

// ConnectPeer adds a peer to the allowlist (if enabled), connects, and
// triggers an immediate sync.
func (s *p2pService) ConnectPeer(peerIDStr string, addrs []string) error {
	peerID, err := peer.Decode(peerIDStr)
	if err != nil {
		return fmt.Errorf("invalid peer ID: %w", err)
	}

	if s.allowlist != nil {
		if err := s.allowlist.Add(peerID, "", addrs); err != nil {
			return fmt.Errorf("failed to add peer to allowlist: %w", err)
		}
	}

	peerInfo := peer.AddrInfo{ID: peerID}
	for _, addrStr := range addrs {
		ma, err := multiaddr.NewMultiaddr(addrStr)
		if err != nil {
			continue
		}
		peerInfo.Addrs = append(peerInfo.Addrs, ma)
	}
	if len(peerInfo.Addrs) == 0 {
		return fmt.Errorf("no valid addresses for peer")
	}

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	if err := s.host.Connect(ctx, peerInfo); err != nil {
		return fmt.Errorf("failed to connect to peer: %w", err)
	}

	go s.SyncWith(s.ctx, peerID)
	return nil
}

func (s *p2pService) checkAllowlist(p peer.ID) bool {
	if s.allowlist == nil {
		return true
	}
	return s.allowlist.IsAllowed(p)
}

// SyncWith triggers a sync with a specific peer: send our state hash,
// and if the peer's differs, the peer replies with its full state and
// this side joins it (Join handles the merge, so whichever order the
// two sides sync in converges to the same result).
func (s *p2pService) SyncWith(parentCtx context.Context, peerID peer.ID) error {
	ctx, cancel := context.WithTimeout(parentCtx, 2*time.Minute)
	defer cancel()

	atomic.AddInt64(&s.syncAttempts, 1)
	sessionID := GenerateSessionID()

	s.activeSyncsMu.Lock()
	if _, active := s.activeSyncs[peerID.String()]; active {
		s.activeSyncsMu.Unlock()
		return nil
	}
	s.activeSyncs[peerID.String()] = struct{}{}
	s.activeSyncsMu.Unlock()

	defer func() {
		s.activeSyncsMu.Lock()
		delete(s.activeSyncs, peerID.String())
		s.activeSyncsMu.Unlock()
	}()

	stream, err := s.host.NewStream(ctx, peerID, protocol.ID(ProtocolID))
	if err != nil {
		atomic.AddInt64(&s.syncFailures, 1)
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	stream.SetDeadline(time.Now().Add(30 * time.Second))

	hash := s.provider.StateHash()
	msg := &Message{Type: MsgStateHash, SessionID: sessionID, StateHash: hash}
	if err := writeMessage(stream, msg); err != nil {
		atomic.AddInt64(&s.syncFailures, 1)
		return fmt.Errorf("failed to send state hash: %w", err)
	}

	resp, err := readMessage(stream)
	if err != nil {
		atomic.AddInt64(&s.syncFailures, 1)
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.Type {
	case MsgStateHash:
		atomic.AddInt64(&s.syncSuccesses, 1)
		return nil

	case MsgState:
		var state crdt.State
		if err := json.Unmarshal(resp.State, &state); err != nil {
			atomic.AddInt64(&s.syncFailures, 1)
			return fmt.Errorf("failed to decode state: %w", err)
		}
		if err := s.provider.Join(state); err != nil {
			atomic.AddInt64(&s.syncFailures, 1)
			return err
		}
		atomic.AddInt64(&s.syncSuccesses, 1)
		s.logger.Printf("synced with peer %s", peerID.String()[:8])
		return nil

	case MsgStateRequest:
		state := s.provider.State()
		stateData, _ := json.Marshal(state)
		stateMsg := &Message{Type: MsgState, SessionID: sessionID, State: stateData}
		if err := writeMessage(stream, stateMsg); err != nil {
			atomic.AddInt64(&s.syncFailures, 1)
			return fmt.Errorf("failed to send state: %w", err)
		}
		atomic.AddInt64(&s.syncSuccesses, 1)
		return nil
	}

	atomic.AddInt64(&s.syncSuccesses, 1)
	return nil
}

// HandlePeerFound is called by mDNS/DHT when a peer is discovered.
func (s *p2pService) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == s.host.ID() {
		return
	}

	s.peersMu.Lock()
	_, exists := s.peers[pi.ID]
	s.peers[pi.ID] = struct{}{}
	s.peersMu.Unlock()

	if !exists {
		s.logger.Printf("discovered peer %s", pi.ID.String()[:8])
	}

	if err := s.host.Connect(s.ctx, pi); err != nil {
		s.peersMu.Lock()
		delete(s.peers, pi.ID)
		s.peersMu.Unlock()
		return
	}

	go func() {
		if err := s.SyncWith(s.ctx, pi.ID); err != nil {
			s.logger.Printf("sync with %s failed: %v", pi.ID.String()[:8], err)
		}
	}()
}

// handleStream handles an incoming sync request.
func (s *p2pService) handleStream(stream network.Stream) {
	defer stream.Close()
	stream.SetDeadline(time.Now().Add(30 * time.Second))

	if !s.checkAllowlist(stream.Conn().RemotePeer()) {
		s.logger.Printf("rejected connection from unauthorized peer %s", stream.Conn().RemotePeer())
		return
	}

	msg, err := readMessage(stream)
	if err != nil {
		return
	}

	var resp *Message
	switch msg.Type {
	case MsgStateHash:
		ourHash := s.provider.StateHash()
		if string(ourHash) == string(msg.StateHash) {
			resp = &Message{Type: MsgStateHash, SessionID: msg.SessionID, StateHash: ourHash}
		} else {
			state := s.provider.State()
			stateData, _ := json.Marshal(state)
			resp = &Message{Type: MsgState, SessionID: msg.SessionID, State: stateData}
		}

	case MsgStateRequest:
		state := s.provider.State()
		stateData, _ := json.Marshal(state)
		resp = &Message{Type: MsgState, SessionID: msg.SessionID, State: stateData}

	case MsgState:
		var state crdt.State
		if err := json.Unmarshal(msg.State, &state); err == nil {
			s.provider.Join(state)
		}
		resp = &Message{Type: MsgStateHash, SessionID: msg.SessionID, StateHash: s.provider.StateHash()}
	}

	if resp != nil {
		writeMessage(stream, resp)
	}
}

// syncLoop periodically syncs with all known peers.
func (s *p2pService) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			for _, peerID := range s.Peers() {
				peerID := peerID
				go func() {
					if err := s.SyncWith(s.ctx, peerID); err != nil {
						s.logger.Printf("periodic sync with %s failed: %v", peerID.String()[:8], err)
					}
				}()
			}
		}
	}
}

// writeMessage writes a length-prefixed message to the stream.
func writeMessage(w io.Writer, msg *Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	length := uint32(len(data))
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readMessage reads a length-prefixed message from the stream.
func readMessage(r io.Reader) (*Message, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > 10*1024*1024 {
		return nil, fmt.Errorf("message too large: %d bytes", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return DecodeMessage(data)
}

// ComputeStateHash computes a hash of a replica's full state.
func ComputeStateHash(state crdt.State) []byte {
	data, _ := json.Marshal(state)
	hash := sha256.Sum256(data)
	return hash[:]
}
