// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
)

type App interface {
	// Start kicks off the application and returns immediately
	Start() error

	// Stop notifies the application to exit and returns immediately
	Stop() error

	// ExitCode should only be called after [Start] returns with no error. It
	// should block until the application finishes
	ExitCode() (int, error)
}

// Run starts [app] and blocks until it exits. If [ctx] is cancelled first, the
// app is asked to stop and Run still waits for it to exit.
func Run(ctx context.Context, app App) int {
	if err := app.Start(); err != nil {
		return ExitCodeFailure
	}

	exited := make(chan struct{})
	var eg errgroup.Group
	eg.Go(func() error {
		select {
		case <-ctx.Done():
			return app.Stop()
		case <-exited:
			return nil
		}
	})

	exitCode, err := app.ExitCode()
	close(exited)

	stopErr := eg.Wait()
	if err != nil || stopErr != nil {
		return ExitCodeFailure
	}
	return exitCode
}
