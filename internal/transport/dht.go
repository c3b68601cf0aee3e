package transport

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"
)

// RendezvousNamespace is the DHT namespace jsoncrdt replicas advertise
// themselves under and search within.
const RendezvousNamespace = "/jsoncrdt/1.0.0"

// DHTDiscovery finds peers globally via the Kademlia DHT, for replicas
// that aren't reachable by mDNS (i.e. not on the same LAN).
type DHTDiscovery struct {
	host       host.Host
	dht        *dht.IpfsDHT
	discovery  *drouting.RoutingDiscovery
	logger     Logger
	peerNotify func(peer.AddrInfo)

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// NewDHTDiscovery creates a DHT discovery service bound to h. The DHT
// runs in auto-server mode (dht.ModeAutoServer): it switches between
// server and client by the host's reachability, and acts as a server
// while reachability is still unknown.
func NewDHTDiscovery(h host.Host, bootstrapPeers []peer.AddrInfo, logger Logger) (*DHTDiscovery, error) {
	ctx, cancel := context.WithCancel(context.Background())

	kadDHT, err := dht.New(ctx, h,
		dht.Mode(dht.ModeAutoServer),
		dht.BootstrapPeers(bootstrapPeers...),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: create DHT: %w", err)
	}

	return &DHTDiscovery{
		host:   h,
		dht:    kadDHT,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start bootstraps the DHT and begins discovering peers.
func (d *DHTDiscovery) Start(peerNotify func(peer.AddrInfo)) error {
	d.peerNotify = peerNotify

	d.logger.Printf("dht: bootstrapping")
	if err := d.dht.Bootstrap(d.ctx); err != nil {
		return fmt.Errorf("transport: bootstrap DHT: %w", err)
	}

	d.wg.Add(1)
	go d.waitForBootstrap()

	return nil
}

// waitForBootstrap waits for at least one DHT connection (or a 15s
// timeout, since a fresh install has nothing to connect to yet) before
// starting peer discovery.
func (d *DHTDiscovery) waitForBootstrap() {
	defer d.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	timeout := time.After(15 * time.Second)
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-timeout:
			d.logger.Printf("dht: bootstrap timeout with 0 peers, discovery may be limited")
			goto startDiscovery
		case <-ticker.C:
			if len(d.host.Network().Peers()) > 0 {
				d.logger.Printf("dht: connected to %d peers", len(d.host.Network().Peers()))
				goto startDiscovery
			}
		}
	}

startDiscovery:
	d.discovery = drouting.NewRoutingDiscovery(d.dht)

	d.logger.Printf("dht: advertising at %s", RendezvousNamespace)
	dutil.Advertise(d.ctx, d.discovery, RendezvousNamespace)

	d.wg.Add(1)
	go d.discoverPeers()
}

func (d *DHTDiscovery) discoverPeers() {
	defer d.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.findPeers()
		}
	}
}

func (d *DHTDiscovery) findPeers() {
	if d.discovery == nil {
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()

	peerCh, err := d.discovery.FindPeers(ctx, RendezvousNamespace)
	if err != nil {
		return
	}

	for pi := range peerCh {
		if pi.ID == d.host.ID() {
			continue
		}
		if len(pi.Addrs) == 0 {
			continue
		}

		d.logger.Printf("dht: found peer %s", pi.ID.String()[:8])
		if d.peerNotify != nil {
			d.peerNotify(pi)
		}
	}
}

// Stop cancels discovery and closes the DHT.
func (d *DHTDiscovery) Stop() error {
	d.cancel()
	d.wg.Wait()
	return d.dht.Close()
}

// GetDefaultBootstrapPeers returns libp2p's default IPFS bootstrap
// peers, used when no bootstrap list is configured.
func GetDefaultBootstrapPeers() []peer.AddrInfo {
	bootstrapPeers := dht.DefaultBootstrapPeers

	result := make([]peer.AddrInfo, 0, len(bootstrapPeers))
	for _, addr := range bootstrapPeers {
		pi, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			continue
		}
		result = append(result, *pi)
	}
	return result
}
