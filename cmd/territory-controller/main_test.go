package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/territory-controller/internal/api"
	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/internal/observability"
	"github.com/signalsfoundry/territory-controller/internal/radio"
	"github.com/signalsfoundry/territory-controller/timectrl"
)

func TestControllerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := Config{
		MatchID: "smoke",
		Variant: "territory",
	}
	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	runCtx, stopRun := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(runCtx, cfg, log, lis)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	own, err := api.NewClient(conn).Ownership(ctx, grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("Ownership: %v", err)
	}
	if len(own.Owners) != 19 {
		t.Fatalf("Ownership returned %d stations, want 19", len(own.Owners))
	}

	stopRun()
	if err := <-errCh; err != nil {
		t.Fatalf("run returned error: %v", err)
	}
}

func TestRunBoundedAcceleratedMatch(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		MatchID:     "bounded",
		Variant:     "tower",
		DataDir:     dir,
		Codec:       "zstd",
		IndexPath:   filepath.Join(dir, "index.db"),
		Trace:       true,
		Accelerated: true,
		Duration:    3 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, cfg, logging.Noop(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(radio.TracePath(dir, "bounded")); err != nil {
		t.Fatalf("trace file missing: %v", err)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown variant", cfg: Config{Variant: "capture-the-flag"}},
		{name: "missing arena file", cfg: Config{ArenaPath: filepath.Join(t.TempDir(), "missing.yaml")}},
		{name: "trace without data dir", cfg: Config{Trace: true}},
		{name: "bad codec", cfg: Config{DataDir: t.TempDir(), Codec: "gzip"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := run(context.Background(), tc.cfg, logging.Noop(), nil); err == nil {
				t.Fatalf("run accepted %+v", tc.cfg)
			}
		})
	}
}

func TestTrackMatchTimeFollowsClock(t *testing.T) {
	metrics, err := observability.NewMatchCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMatchCollector: %v", err)
	}
	clock := timectrl.NewTimeController(time.Now(), 250*time.Millisecond, timectrl.Accelerated)
	trackMatchTime(clock, metrics)

	for i := 0; i < 6; i++ {
		if _, err := clock.Step(context.Background()); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if got := testutil.ToFloat64(metrics.MatchTime); got != 1.5 {
		t.Fatalf("territory_match_time_seconds = %v, want 1.5", got)
	}
}
