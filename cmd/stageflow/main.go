package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"stageflow/internal/flowerr"
)

// Exit codes let scripts tell a refused move from a lost race or a fault.
const (
	exitFailure  = 1
	exitRefused  = 2
	exitConflict = 3
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "stageflow:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, flowerr.ErrConcurrencyConflict):
		return exitConflict
	case errors.Is(err, flowerr.ErrTransitionNotAllowed),
		errors.Is(err, flowerr.ErrTransitionNotFound),
		errors.Is(err, flowerr.ErrApprovalUnauthorized),
		errors.Is(err, flowerr.ErrApprovalNotRequired):
		return exitRefused
	default:
		return exitFailure
	}
}
