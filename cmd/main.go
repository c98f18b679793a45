package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MimeLyc/philby/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdin)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var philbyErr *service.PhilbyError
		if errors.As(err, &philbyErr) {
			fmt.Fprintf(os.Stderr, "Advice: %s\n", service.NewDefaultErrorHandler().GetAdvice(philbyErr))
		}
	}
	stop()
	os.Exit(service.ExitCode(err))
}
