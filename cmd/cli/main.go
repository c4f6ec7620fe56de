package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/proofgridgo/internal/app"
	"github.com/specialistvlad/proofgridgo/internal/cli"
	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/hclplan"
	"github.com/specialistvlad/proofgridgo/internal/watch"
)

// main is the entrypoint for the proofgridgo application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			stop()
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. Results go to outW, logs and usage to errW.
func run(ctx context.Context, outW, errW io.Writer, args []string) (err error) {
	if len(args) > 0 && args[0] == cli.WatchCommand {
		return runWatch(ctx, outW, errW, args[1:])
	}

	appConfig, shouldExit, err := cli.Parse(args, errW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// Handlers are plain Go code; a panic during startup is reported rather
	// than crashing with a stack trace.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	proofgridApp, err := app.NewApp(errW, appConfig, hclplan.NewLoader(), app.WithResultWriter(outW))
	if err != nil {
		return err
	}
	if err := proofgridApp.Run(ctx); err != nil {
		if errors.Is(err, app.ErrInterrupted) {
			return &cli.ExitError{Code: 130, Message: err.Error()}
		}
		return err
	}
	return nil
}

func runWatch(ctx context.Context, outW, errW io.Writer, args []string) error {
	opts, shouldExit, err := cli.ParseWatch(args, errW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}
	logger := slog.New(slog.NewTextHandler(errW, &slog.HandlerOptions{Level: slog.LevelWarn}))
	err = watch.Run(ctxlog.WithLogger(ctx, logger), outW, *opts)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
