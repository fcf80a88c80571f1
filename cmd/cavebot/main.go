// Command cavebot runs the bot without the GUI until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/engine"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/logger"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "YAML or TOML configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	dryRun := flag.Bool("dry-run", false, "record input instead of sending it")
	flag.Parse()

	cfg, notices, err := config.Load(*configPath)
	if err != nil {
		exitf("config: %v", err)
	}
	if *debug {
		cfg.Runtime.Debug = true
	}

	log := logger.New(logger.Options{Debug: cfg.Runtime.Debug, Format: cfg.Runtime.LogFormat})
	for _, n := range notices {
		log.Info("%s", n)
	}
	log.Info("Navigation strategy: %s", cfg.ActiveStrategy())

	var opts engine.Options
	var rec *input.Recorder
	if *dryRun {
		rec = &input.Recorder{}
		opts.Device = rec
		log.Warn("Dry run - no input will be sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot := engine.NewBot(cfg, log, opts)
	if err := bot.Start(ctx); err != nil {
		exitf("start: %v", err)
	}

	<-ctx.Done()
	log.Info("Shutting down")
	bot.Stop()

	if rec != nil {
		for _, a := range rec.Actions() {
			log.Debug("%s", a)
		}
		log.Info("Dry run recorded %d actions", len(rec.Actions()))
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "cavebot: "+format+"\n", args...)
	os.Exit(1)
}
