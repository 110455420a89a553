package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/internal/radio"
	"github.com/signalsfoundry/territory-controller/model"
)

func newPair(t *testing.T) (*net.UDPConn, *robot) {
	t.Helper()
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	conn, err := net.Dial("udp", server.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return server, &robot{conn: conn, station: "EY", claimant: model.Zone1, log: logging.Noop()}
}

func TestClaimSendsBeginThenConclude(t *testing.T) {
	server, r := newPair(t)

	if err := r.claim(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("claim: %v", err)
	}

	want := [][]byte{
		{'E', 'Y', 0x01, 0x00},
		{'E', 'Y', 0x01, 0x01},
	}
	buf := make([]byte, 16)
	for i, w := range want {
		_ = server.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := server.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("datagram %d: %v", i, err)
		}
		if !bytes.Equal(buf[:n], w) {
			t.Fatalf("datagram %d = %x, want %x", i, buf[:n], w)
		}
	}
}

func TestWatchPrintsBroadcasts(t *testing.T) {
	server, r := newPair(t)

	if err := r.send(false); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = server.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	_, peer, err := server.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}

	for _, owner := range []model.Claimant{model.Zone1, model.Unclaimed} {
		payload, err := radio.EncodeBroadcast("EY", owner)
		if err != nil {
			t.Fatalf("EncodeBroadcast: %v", err)
		}
		if _, err := server.WriteToUDP(payload, peer); err != nil {
			t.Fatalf("WriteToUDP: %v", err)
		}
	}
	_, _ = server.WriteToUDP([]byte{0x01}, peer)

	var out bytes.Buffer
	if err := r.watch(context.Background(), 300*time.Millisecond, &out); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if got, want := out.String(), "EY ZONE_1\nEY UNCLAIMED\n"; got != want {
		t.Fatalf("watch output = %q, want %q", got, want)
	}
}
