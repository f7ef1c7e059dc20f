package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/nbryant42/halorbits"
)

// Plots the trajectories described by one scenario file, either in the browser or to static files.

const defaultScenario = "~~unset~~"

var (
	scenario string
	static   bool
	verbose  bool
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "scenario TOML file")
	flag.BoolVar(&static, "static", false, "write the HTML page (and PNG preview) instead of opening a browser")
	flag.BoolVar(&verbose, "verbose", false, "log debug messages")
}

func main() {
	flag.Parse()
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "run", uuid.NewString())
	if verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	fatal := func(msg string, err error) {
		level.Error(logger).Log("msg", msg, "err", err)
		os.Exit(1)
	}
	if scenario == defaultScenario {
		fatal("no scenario provided", nil)
	}

	sc, err := halorbits.LoadScenario(scenario)
	if err != nil {
		fatal("could not read scenario", err)
	}
	level.Info(logger).Log("msg", "scenario loaded", "name", sc.General.Name, "backend", sc.Ephemeris.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eph, err := halorbits.OpenEphemeris(sc.Ephemeris, logger)
	if err != nil {
		fatal("could not open ephemeris", err)
	}
	defer eph.Close()

	var metrics *halorbits.Metrics
	if sc.Metrics.Textfile != "" {
		metrics = halorbits.NewMetrics()
	}
	opts := halorbits.RunOptions{
		Static:     static,
		Logger:     logger,
		Rasterizer: halorbits.KaleidoRasterizer{Python: sc.Ephemeris.Python},
		Viewer:     halorbits.BrowserViewer{Logger: logger},
		Metrics:    metrics,
	}
	if _, err := halorbits.Run(ctx, sc, eph, opts); err != nil {
		eph.Close()
		fatal("run failed", err)
	}
}
