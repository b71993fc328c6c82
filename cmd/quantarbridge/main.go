package main

/*------------------------------------------------------------------
 *
 * Purpose:	Entry point: parse configuration, build C1-C6, start the
 *		bridge loop, and wait for a termination signal.
 *
 * Description:	Grounded on cmd/direwolf/main.go's overall shape (flag
 *		parsing, then a long-running service loop) but without its
 *		cgo audio-engine bring-up; --version/--help handling mirrors
 *		its pflag.Usage override.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	bridge "github.com/hdlc25/quantarbridge/src"
)

var (
	buildVersion = "2.3.0"
	buildHash    = "dev"
)

func main() {
	flags := bridge.ParseFlags()

	if flags.Version() {
		fmt.Printf("quantarbridge %s (%s)\n", buildVersion, buildHash)
		return
	}

	cfg, err := bridge.LoadConfig(flags.ConfigFile())
	if err != nil {
		fmt.Fprintln(os.Stderr, "quantarbridge: config error:", err)
		os.Exit(1)
	}
	cfg = flags.Apply(cfg)

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	root := bridge.NewRootLogger(os.Stderr, level)

	runner, err := bridge.Build(cfg, root)
	if err != nil {
		root.Fatal("failed to build bridge", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root.Info("quantarbridge starting", "version", buildVersion, "site", cfg.Site)
	runner.Run(ctx)
	root.Info("quantarbridge stopped")
}
