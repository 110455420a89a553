package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/internal/radio"
	"github.com/signalsfoundry/territory-controller/model"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "controller UDP radio address")
	station := flag.String("station", "PN", "two-letter station code to claim")
	claimant := flag.Int("claimant", 0, "claimant id of this robot")
	hold := flag.Duration("hold", 1950*time.Millisecond, "time between begin and conclude packets")
	listen := flag.Duration("listen", 2*time.Second, "how long to print ownership broadcasts after the claim")
	beginOnly := flag.Bool("begin-only", false, "send the begin packet and stop")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := model.ParseStationCode(*station)
	if err != nil {
		log.Error(ctx, "invalid station", logging.Err(err))
		os.Exit(2)
	}

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		log.Error(ctx, "dial controller", logging.String("addr", *addr), logging.Err(err))
		os.Exit(1)
	}
	defer conn.Close()

	r := &robot{conn: conn, station: code, claimant: model.Claimant(*claimant), log: log}
	if *beginOnly {
		err = r.send(false)
	} else {
		err = r.claim(ctx, *hold)
	}
	if err != nil {
		log.Error(ctx, "claim failed", logging.Err(err))
		os.Exit(1)
	}
	if err := r.watch(ctx, *listen, os.Stdout); err != nil {
		log.Error(ctx, "watch broadcasts", logging.Err(err))
		os.Exit(1)
	}
}

// robot speaks the station radio protocol over the controller's UDP bridge.
type robot struct {
	conn     net.Conn
	station  model.StationCode
	claimant model.Claimant
	log      logging.Logger
}

func (r *robot) send(conclude bool) error {
	datagram := append([]byte(r.station), radio.EncodeClaim(r.claimant, conclude)...)
	_, err := r.conn.Write(datagram)
	return err
}

// claim sends a begin packet, holds, then sends the conclude packet.
func (r *robot) claim(ctx context.Context, hold time.Duration) error {
	if err := r.send(false); err != nil {
		return fmt.Errorf("send begin: %w", err)
	}
	r.log.Info(ctx, "claim begun", logging.Station(r.station), logging.Claimant(r.claimant))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(hold):
	}

	if err := r.send(true); err != nil {
		return fmt.Errorf("send conclude: %w", err)
	}
	r.log.Info(ctx, "claim concluded", logging.Station(r.station), logging.Duration("hold", hold))
	return nil
}

// watch prints every ownership broadcast received for d.
func (r *robot) watch(ctx context.Context, d time.Duration, out io.Writer) error {
	deadline := time.Now().Add(d)
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		if err := r.conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		n, err := r.conn.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil
			}
			return err
		}
		station, owner, err := radio.DecodeBroadcast(buf[:n])
		if err != nil {
			r.log.Debug(ctx, "ignoring datagram", logging.Err(err))
			continue
		}
		fmt.Fprintf(out, "%s %s\n", station, owner)
	}
	return nil
}
