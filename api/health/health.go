// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package health

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanche-consensus/utils/logging"
)

// Health periodically evaluates the registered checks and reports their most
// recent results.
type Health interface {
	Registerer
	Reporter

	Start(ctx context.Context, freq time.Duration)
	Stop()
}

// Registerer defines how to register new components to check the health of.
type Registerer interface {
	RegisterCheck(name string, checker Checker) error
}

// Reporter returns the current health status.
type Reporter interface {
	Results() (map[string]Result, bool)
}

func New(log logging.Logger, namespace string, registerer prometheus.Registerer) (Health, error) {
	return newWorker(log, namespace, registerer)
}
