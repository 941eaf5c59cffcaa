package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"gca-engine/alloc"
	"gca-engine/config"
	"gca-engine/engine"
	"gca-engine/record"
	"gca-engine/sensor"
	"gca-engine/telemetry"
	"gca-engine/thruster"
	"gca-engine/vehicle"
	"gca-engine/web"
)

func main() {
	cfgPath := flag.String("config", "gca.yaml", "Path to configuration file")
	ctxOverride := flag.String("context", "", "Override vehicle context (real|simulated)")
	recPath := flag.String("record", "", "Override cycle log path ('' keeps config, 'off' disables)")
	pretty := flag.Bool("pretty", false, "Human-readable console log")
	flag.Parse()

	logw := os.Stderr
	var log zerolog.Logger
	if *pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: logw}).With().Timestamp().Logger()
	} else {
		log = zerolog.New(logw).With().Timestamp().Logger()
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *cfgPath).Msg("configuration load failed")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(lvl)
	}

	ctxName := cfg.VehicleContext
	if *ctxOverride != "" {
		ctxName = *ctxOverride
	}
	vctx, err := vehicle.ParseContext(ctxName)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid vehicle context")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var src sensor.Source
	var out thruster.Output
	var eng *engine.Engine

	opts := engine.Options{}

	// telemetry
	if len(cfg.Telemetry.UDPTargets) > 0 || len(cfg.Telemetry.TCPTargets) > 0 {
		tel := telemetry.NewSender(log)
		tel.SetHeader(cfg.Telemetry.Header)
		for _, t := range cfg.Telemetry.UDPTargets {
			if err := tel.AddUDPTarget(t, telemetry.FlagStatus|telemetry.FlagFault); err != nil {
				log.Fatal().Err(err).Str("target", t).Msg("bad telemetry target")
			}
		}
		for _, t := range cfg.Telemetry.TCPTargets {
			tel.AddTCPTarget(t, telemetry.FlagStatus|telemetry.FlagFault)
		}
		if err := tel.Start(); err != nil {
			log.Fatal().Err(err).Msg("telemetry start failed")
		}
		defer tel.Stop()
		opts.Telemetry = tel
	}

	// cycle log
	logPath := cfg.Record.Path
	if *recPath == "off" {
		logPath = ""
	} else if *recPath != "" {
		logPath = *recPath
	}
	if logPath != "" {
		rec, err := record.NewWriter(logPath, len(cfg.Thrusters))
		if err != nil {
			log.Fatal().Err(err).Str("path", logPath).Msg("cycle log open failed")
		}
		defer rec.Close()
		opts.Recorder = rec
	}

	// operator surface
	var srv *web.Server
	if cfg.Web.Listen != "" {
		srv = web.NewServer(log)
		opts.Hub = srv.Hub
	}

	switch vctx {
	case vehicle.ContextReal:
		usrc, err := sensor.NewUDPSource(cfg.Sensor.UDPListen, log)
		if err != nil {
			log.Fatal().Err(err).Msg("sensor listener failed")
		}
		src = usrc

		cout, err := thruster.NewCANOutput(ctx, cfg.Thruster.CANInterface, cfg.Thruster.CANBaseID, len(cfg.Thrusters), log)
		if err != nil {
			log.Fatal().Err(err).Msg("thruster interface failed")
		}
		out = cout

		eng, err = engine.New(cfg, vctx, src, out, opts, log)
		if err != nil {
			log.Fatal().Err(err).Msg("engine init failed")
		}

	case vehicle.ContextSimulated:
		sout := thruster.NewSimOutput()
		out = sout

		// the simulated plant closes the loop through the same thruster
		// geometry the allocator uses
		ac, err := alloc.NewConfig(cfg.Thrusters, cfg.Alloc)
		if err != nil {
			log.Fatal().Err(err).Msg("thruster geometry invalid")
		}
		src = sensor.NewSimSource(ac, sout.Commands(), cfg.Rates.EstimatorHz, 0.005, log)

		eng, err = engine.New(cfg, vctx, src, out, opts, log)
		if err != nil {
			log.Fatal().Err(err).Msg("engine init failed")
		}
	}
	defer out.Close()

	go func() {
		if err := src.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("sensor source stopped")
			cancel()
		}
	}()

	if srv != nil {
		srv.Status = func() any { return eng.Snapshot() }
		srv.SubmitTarget = eng.SubmitTarget
		srv.SetSafe = eng.SetSafe
		go func() {
			if err := srv.Start(cfg.Web.Listen); err != nil {
				log.Error().Err(err).Msg("operator server stopped")
			}
		}()
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		s := <-sig
		fmt.Fprintln(os.Stderr)
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
	}()

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("pipeline stopped")
	}
}
