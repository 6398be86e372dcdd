// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanche-consensus/api/metrics"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowball"
	"github.com/ava-labs/avalanche-consensus/trace"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
)

const maxTestRounds = 1_000_000

var testParams = snowball.Parameters{
	K:                     5,
	Alpha:                 4,
	BetaVirtuous:          3,
	BetaRogue:             5,
	ConcurrentRepolls:     1,
	OptimalProcessing:     1,
	MaxOutstandingItems:   1024,
	MaxItemProcessingTime: time.Hour,
}

func testConfig() Config {
	return Config{
		Consensus:       testParams,
		NumNodes:        20,
		NumBlocks:       5,
		Seed:            0,
		MaxRounds:       maxTestRounds,
		HealthCheckFreq: time.Hour,
		HTTPConfig: HTTPConfig{
			Host:            "127.0.0.1",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: time.Second,
		},
	}
}

func newTestNetwork(t *testing.T, config Config) *Network {
	t.Helper()

	n, err := NewNetwork(
		context.Background(),
		config,
		logging.NoLog{},
		trace.Noop,
		prometheus.NewRegistry(),
		metrics.NewPrefixGatherer(),
	)
	require.NoError(t, err)
	return n
}
