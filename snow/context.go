// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snow

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
)

// Context is information about the current execution.
// [NetworkID] is the ID of the network this context exists within.
// [ChainID] is the ID of the chain this context exists within.
// [NodeID] is the ID of this node
type Context struct {
	NetworkID uint32
	SubnetID  ids.ID
	ChainID   ids.ID
	NodeID    ids.NodeID

	Log logging.Logger

	// Lock serializes every call into a consensus instance built on top of
	// this context. Consensus itself never acquires it.
	Lock sync.RWMutex
}

// Registerer can register metrics and expose them for collection.
type Registerer interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// ConsensusContext is the information handed to a consensus instance when it
// is initialized.
type ConsensusContext struct {
	*Context

	// Registers all consensus metrics.
	Registerer Registerer
}
