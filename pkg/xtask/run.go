package xtask

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mmr-tortoise/xtask/pkg/model"
	"github.com/mmr-tortoise/xtask/pkg/process"
)

var (
	interruptOnce sync.Once
	interruptCtx  context.Context
	stopInterrupt context.CancelFunc
)

// InterruptContext returns the process-wide context cancelled by SIGINT or
// SIGTERM. The signal handler is installed on the first call only.
func InterruptContext() context.Context {
	interruptOnce.Do(func() {
		interruptCtx, stopInterrupt = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	})
	return interruptCtx
}

// Run executes the binary described by cfg with os.Args and exits the
// process with the resulting code.
func Run(cfg Config) {
	code := Main(InterruptContext(), cfg, os.Args[1:])
	if stopInterrupt != nil {
		stopInterrupt()
	}
	os.Exit(code)
}

// Main executes args, prints any error and returns the exit code.
func Main(ctx context.Context, cfg Config, args []string) int {
	cfg = cfg.withDefaults()

	err := Execute(ctx, cfg, args)
	if err == nil {
		return int(model.ExitSuccess)
	}

	code := process.ExitCodeOf(err)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		code = model.ExitInterrupted
	}
	printError(cfg.Stderr, err)
	return int(code)
}

// Execute parses args against the commands in cfg and runs the selected
// handler. It returns the handler's error unprinted.
func Execute(ctx context.Context, cfg Config, args []string) error {
	cfg = cfg.withDefaults()

	reg, err := NewRegistry(cfg.Commands...)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid command registration", err)
	}

	a := &app{cfg: cfg}
	root := a.newRootCommand(reg)
	root.SetArgs(args)
	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)

	defer a.finish()
	return root.ExecuteContext(ctx)
}

// printError writes "Error: <message>" to w.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}
