package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"berth/cmd/berth/ui"
	"berth/internal/logging"
	"berth/internal/provision"
)

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	stop()

	// Shell exit statuses pass through without a diagnostic; the command's
	// own output already went to the terminal.
	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}

	fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
	var step *provision.StepError
	if errors.As(err, &step) && step.Exit > 0 {
		os.Exit(step.Exit)
	}
	os.Exit(1)
}
