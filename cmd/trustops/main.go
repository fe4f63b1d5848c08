package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quailyquaily/trustops/fault"
	"github.com/quailyquaily/trustops/internal/clifmt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, clifmt.Error("error:"), err.Error())
		os.Exit(exitCode(err))
	}
}

// exitCode is 3 when a mutation applied but its audit entry was lost, 2 for
// caller mistakes such as an unknown id or a bad transition, 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var partial *partialError
	if errors.As(err, &partial) {
		return 3
	}
	if fault.KindOf(err).IsClientError() {
		return 2
	}
	return 1
}
