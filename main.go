// Package main implements the main entry point for a retargetable instruction set simulator
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrosim/internal/cli"
	"github.com/retroenv/retrosim/internal/config"
	"github.com/retroenv/retrosim/internal/pipeline"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	opts, simOptions, err := cli.ParseFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			cli.PrintBanner(logger, opts, version, commit, date)
			usageErr.ShowUsage()
		} else {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	cli.PrintBanner(logger, opts, version, commit, date)

	result, err := pipeline.New(logger).Execute(ctx, opts, simOptions, os.Stdout)
	if err != nil {
		// Handle context cancellation (Ctrl+C) gracefully
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
			return
		}
		logger.Error("Simulation failed", log.Err(err))
		os.Exit(1)
	}

	if result.Exited && result.ExitStatus != 0 {
		os.Exit(int(result.ExitStatus))
	}
}
