package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	_ "go.uber.org/automaxprocs"

	"github.com/mgrant26/clubcthulu/internal/bridge"
	"github.com/mgrant26/clubcthulu/internal/console"
	"github.com/mgrant26/clubcthulu/internal/core"
	"github.com/mgrant26/clubcthulu/internal/metrics"
	"github.com/mgrant26/clubcthulu/internal/relay"
	"github.com/mgrant26/clubcthulu/internal/server"
	"github.com/mgrant26/clubcthulu/internal/store"
	"github.com/mgrant26/clubcthulu/internal/world"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

// consoleExecutorID names the synthetic operator client console commands
// run as.
var consoleExecutorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func main() {
	port := flag.Int("port", 0, "UDP listen port (overrides CLUBCTHULU_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides CLUBCTHULU_DB)")
	bridgeAddr := flag.String("bridge", "", "HTTP bridge address (overrides CLUBCTHULU_BRIDGE_ADDR)")
	debug := flag.Bool("debug", false, "Enable debug logging (auto-enabled for dev builds)")
	flag.Parse()

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "db":
			cfg.DBPath = *dbPath
		case "bridge":
			cfg.BridgeAddr = *bridgeAddr
		case "debug":
			cfg.Debug = *debug
		}
	})

	// Auto-enable debug logging for dev builds; override with -debug flag.
	level := slog.LevelInfo
	if cfg.Debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	cfg.LogConfig()

	if RunCLI(flag.Args(), cfg.DBPath) {
		return
	}

	slog.Info("starting server", "version", Version, "port", cfg.Port, "db", cfg.DBPath)

	conn, err := server.Listen(cfg.Host, cfg.Port)
	if err != nil {
		slog.Error("bind udp socket", "err", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open sqlite store", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("close sqlite store", "err", closeErr)
		}
	}()

	rly := relay.New(conn)
	reg := core.NewRegistry(rly, cfg.DCTime)
	w := world.New(cfg.WorldName, rly,
		cfg.WorldWidth, cfg.WorldHeight,
		cfg.ChunkWidth, cfg.ChunkHeight, cfg.TPS)
	reg.AttachWorld(w)

	srv, err := server.New(conn, rly, reg, w, st)
	if err != nil {
		slog.Error("initialize dispatcher", "err", err)
		os.Exit(1)
	}

	hub := bridge.NewHub()
	rly.AttachHub(hub)
	ws := bridge.NewWSHandler(hub, srv)
	app := bridge.NewApp(reg, ws)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			slog.Info("received interrupt, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	rly.Start()
	reg.Start()
	w.Start()
	srv.Start()

	if cfg.WTAddr != "" {
		hostname, _ := os.Hostname()
		wt, err := bridge.NewWTServer(cfg.WTAddr, hostname, hub, srv)
		if err != nil {
			slog.Error("initialize webtransport listener", "err", err)
			os.Exit(1)
		}
		go func() {
			if err := wt.Run(ctx); err != nil {
				slog.Error("webtransport listener", "err", err)
				cancel()
			}
		}()
	}

	go metrics.RunStats(ctx, cfg.StatsInterval, func() metrics.Stats {
		return metrics.Stats{
			Sessions: reg.Count(),
			Pending:  len(rly.Waiting()),
			Clients:  w.ClientCount(),
		}
	})

	proc := console.NewProcessor(&console.Context{
		Registry: reg,
		Relay:    rly,
		Shutdown: cancel,
		Out:      os.Stdout,
	})
	executor := core.NewClient(consoleExecutorID, "SERVER", 99)
	if isatty.IsTerminal(os.Stdin.Fd()) {
		go consoleLoop(os.Stdin, proc, executor, os.Stdout)
	}

	slog.Info("listening", "addr", srv.Addr(), "bridge", cfg.BridgeAddr, "world", cfg.WorldName)
	runErr := app.Run(ctx, cfg.BridgeAddr)
	srv.Shutdown()
	if runErr != nil {
		slog.Error("bridge app error", "err", runErr)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
