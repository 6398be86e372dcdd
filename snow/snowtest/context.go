// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowtest

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/snow"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
)

const NetworkID uint32 = 1337

var SubnetID = ids.GenerateTestID()

// Context returns a context suitable for tests. Every call creates a fresh
// metrics registry so that consensus instances never collide.
func Context(tb testing.TB, chainID ids.ID) *snow.Context {
	tb.Helper()

	return &snow.Context{
		NetworkID: NetworkID,
		SubnetID:  SubnetID,
		ChainID:   chainID,
		NodeID:    ids.GenerateTestNodeID(),
		Log:       logging.NoLog{},
	}
}

func ConsensusContext(ctx *snow.Context) *snow.ConsensusContext {
	return &snow.ConsensusContext{
		Context:    ctx,
		Registerer: prometheus.NewRegistry(),
	}
}
