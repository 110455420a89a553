package radio

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/model"
)

// UDPBridge connects robots outside the process to a Hub. Each inbound
// datagram is a two-byte station code followed by a claim packet; every
// broadcast is sent to all peers seen so far.
type UDPBridge struct {
	conn *net.UDPConn
	hub  *Hub
	log  logging.Logger

	mu    sync.Mutex
	peers map[string]*net.UDPAddr

	stopListen func()
}

// ListenUDP binds addr and wires broadcasts from hub to known peers.
func ListenUDP(addr string, hub *Hub, log logging.Logger) (*UDPBridge, error) {
	if log == nil {
		log = logging.Noop()
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	b := &UDPBridge{
		conn:  conn,
		hub:   hub,
		log:   log,
		peers: make(map[string]*net.UDPAddr),
	}
	b.stopListen = hub.Listen(b.broadcast)
	return b, nil
}

// Addr returns the bound local address.
func (b *UDPBridge) Addr() net.Addr { return b.conn.LocalAddr() }

// Serve reads datagrams until ctx is cancelled.
func (b *UDPBridge) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = b.conn.Close()
	}()
	defer b.stopListen()

	buf := make([]byte, 512)
	for {
		n, peer, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		b.remember(peer)
		if n < 2 {
			b.log.Warn(ctx, "dropping short datagram", logging.String("peer", peer.String()), logging.Int("bytes", n))
			continue
		}
		station := model.StationCode(buf[:2])
		if err := b.hub.Deliver(station, buf[2:n]); err != nil {
			b.log.Warn(ctx, "dropping datagram", logging.String("peer", peer.String()), logging.Err(err))
		}
	}
}

func (b *UDPBridge) remember(peer *net.UDPAddr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.peers[peer.String()] = peer
}

func (b *UDPBridge) broadcast(_ model.StationCode, payload []byte) {
	b.mu.Lock()
	peers := make([]*net.UDPAddr, 0, len(b.peers))
	for _, p := range b.peers {
		peers = append(peers, p)
	}
	b.mu.Unlock()

	for _, p := range peers {
		if _, err := b.conn.WriteToUDP(payload, p); err != nil && !errors.Is(err, net.ErrClosed) {
			b.log.Debug(context.Background(), "broadcast to peer failed", logging.String("peer", p.String()), logging.Err(err))
		}
	}
}
