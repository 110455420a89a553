package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/internal/api"
	"github.com/signalsfoundry/territory-controller/internal/controller"
	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/internal/matchdata"
	"github.com/signalsfoundry/territory-controller/internal/matchdata/index"
	"github.com/signalsfoundry/territory-controller/internal/observability"
	"github.com/signalsfoundry/territory-controller/internal/radio"
	"github.com/signalsfoundry/territory-controller/internal/viz"
	"github.com/signalsfoundry/territory-controller/timectrl"
)

// Config is the process wiring assembled from flags.
type Config struct {
	ArenaPath   string
	MatchID     string
	Variant     string
	DataDir     string
	Codec       string
	IndexPath   string
	GRPCAddr    string
	HTTPAddr    string
	UDPAddr     string
	Trace       bool
	Accelerated bool
	Duration    time.Duration
}

type matchController interface {
	controller.Ticker
	controller.SnapshotSource
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.ArenaPath, "arena", "", "arena YAML file (built-in arena when empty)")
	flag.StringVar(&cfg.MatchID, "match-id", "", "match identifier (random UUID when empty)")
	flag.StringVar(&cfg.Variant, "variant", "territory", "game variant: territory | tower")
	flag.StringVar(&cfg.DataDir, "data-dir", "", "directory for match-data files (recording disabled when empty)")
	flag.StringVar(&cfg.Codec, "codec", "none", "match-data compression: none | zstd | lz4")
	flag.StringVar(&cfg.IndexPath, "index", "", "SQLite index of match-data revisions (disabled when empty)")
	flag.StringVar(&cfg.GRPCAddr, "grpc-addr", ":50051", "TCP address of the MatchService gRPC server")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP address for /metrics, /api/ownership and /ws")
	flag.StringVar(&cfg.UDPAddr, "udp-addr", ":7070", "UDP address robots send claim packets to (disabled when empty)")
	flag.BoolVar(&cfg.Trace, "trace", false, "record every received radio packet under -data-dir")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "step the match as fast as possible instead of in real time")
	flag.DurationVar(&cfg.Duration, "duration", 0, "match length (run until interrupted when zero)")
	flag.Parse()

	log := logging.NewFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, nil); err != nil {
		log.Error(context.Background(), "territory controller exited", logging.Err(err))
		os.Exit(1)
	}
}

// run wires every component and blocks until the match ends or ctx is done.
// When lis is nil the gRPC server listens on cfg.GRPCAddr; an empty address
// disables it.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}

	arena, err := loadArena(cfg.ArenaPath)
	if err != nil {
		return err
	}
	if cfg.MatchID == "" {
		cfg.MatchID = uuid.NewString()
	}
	log = log.With(logging.String("match_id", cfg.MatchID), logging.String("arena", arena.Name))

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.MatchID = cfg.MatchID
	tracingCfg.Arena = arena.Name
	tracingCfg.Variant = cfg.Variant
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	matchMetrics, err := observability.NewMatchCollector(reg)
	if err != nil {
		return fmt.Errorf("match metrics: %w", err)
	}
	apiMetrics, err := observability.NewAPICollector(reg)
	if err != nil {
		return fmt.Errorf("api metrics: %w", err)
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	clock := timectrl.NewTimeController(time.Now(), arena.Rules.Tick, mode)
	defer clock.Stop()
	trackMatchTime(clock, matchMetrics)

	var hubOpts []radio.HubOption
	if cfg.Trace {
		if cfg.DataDir == "" {
			return errors.New("-trace requires -data-dir")
		}
		tracer, err := radio.NewTraceRecorder(cfg.DataDir, cfg.MatchID)
		if err != nil {
			return fmt.Errorf("open packet trace: %w", err)
		}
		defer func() {
			if err := tracer.Close(); err != nil {
				log.Warn(context.Background(), "close packet trace failed", logging.Err(err))
			}
		}()
		hubOpts = append(hubOpts, radio.WithTracer(tracer))
	}
	hub := radio.NewHub(clock, arena.Stations, hubOpts...)

	frames := viz.NewHub(log)
	ctrlOpts := []controller.Option{
		controller.WithLogger(log),
		controller.WithMetrics(matchMetrics),
		controller.WithFrameSink(frames),
	}

	if cfg.DataDir != "" {
		codec, err := matchdata.ParseCodec(cfg.Codec)
		if err != nil {
			return err
		}
		writerOpts := []matchdata.WriterOption{
			matchdata.WithCodec(codec),
			matchdata.WithWriteObserver(matchMetrics),
			matchdata.WithWriterLogger(log),
		}
		if cfg.IndexPath != "" {
			idx, err := index.Open(cfg.IndexPath)
			if err != nil {
				return err
			}
			defer idx.Close()
			writerOpts = append(writerOpts, matchdata.WithIndexer(idx))
		}
		writer, err := matchdata.NewWriter(cfg.DataDir, cfg.MatchID, arena.Name, writerOpts...)
		if err != nil {
			return err
		}
		ctrlOpts = append(ctrlOpts, controller.WithRecorder(writer))
		log.Info(ctx, "recording match data", logging.String("path", writer.Path()))
	}

	var ctrl matchController
	switch cfg.Variant {
	case "territory", "":
		ctrl, err = controller.NewTerritoryController(arena, hub, ctrlOpts...)
	case "tower":
		ctrl, err = controller.NewTowerController(arena, hub, ctrlOpts...)
	default:
		err = fmt.Errorf("unknown variant %q", cfg.Variant)
	}
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.UDPAddr != "" {
		bridge, err := radio.ListenUDP(cfg.UDPAddr, hub, log)
		if err != nil {
			return fmt.Errorf("listen udp: %w", err)
		}
		log.Info(ctx, "radio bridge listening", logging.String("addr", bridge.Addr().String()))
		go func() {
			if err := bridge.Serve(runCtx); err != nil {
				log.Warn(runCtx, "radio bridge exited", logging.Err(err))
			}
		}()
	}

	if lis == nil && cfg.GRPCAddr != "" {
		lis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
	}
	if lis != nil {
		server := api.NewServer(ctrl, log, apiMetrics)
		log.Info(ctx, "starting MatchService gRPC server", logging.String("addr", lis.Addr().String()))
		go func() {
			if err := server.Serve(lis); err != nil {
				log.Error(ctx, "gRPC server exited", logging.Err(err))
			}
		}()
		defer server.Stop()
	}

	if cfg.HTTPAddr != "" {
		httpSrv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           viz.NewServer(frames, ctrl, matchMetrics.Handler(), log).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn(context.Background(), "http server exited", logging.Err(err))
			}
		}()
		log.Info(ctx, "serving metrics and visualization", logging.String("addr", cfg.HTTPAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	log.Info(ctx, "match started",
		logging.String("variant", cfg.Variant),
		logging.Duration("tick", arena.Rules.Tick),
		logging.String("mode", mode.String()),
	)
	if err := controller.RunFor(runCtx, clock, ctrl, cfg.Duration); err != nil {
		return err
	}
	snap := ctrl.Snapshot()
	log.Info(context.Background(), "match finished",
		logging.MatchTime(snap.MatchTime),
		logging.Int("claims", len(snap.Entries)),
	)
	return nil
}

// trackMatchTime feeds the match-time gauge from every clock step.
func trackMatchTime(clock *timectrl.TimeController, metrics *observability.MatchCollector) {
	start := clock.StartTime
	clock.AddListener(func(now time.Time) {
		metrics.SetMatchTime(now.Sub(start))
	})
}

func loadArena(path string) (*core.Arena, error) {
	if path == "" {
		return core.DefaultArena()
	}
	return core.LoadArenaFile(path)
}
