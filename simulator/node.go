// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"context"
	"fmt"

	"github.com/ava-labs/avalanche-consensus/api/health"
	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/snow"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowman"
)

var _ health.Checker = (*node)(nil)

// node is a single simulated participant. Every call into [consensus] is
// serialized by the context lock.
type node struct {
	index     int
	ctx       *snow.ConsensusContext
	consensus snowman.Consensus
}

func (n *node) name() string {
	return fmt.Sprintf("node_%d", n.index)
}

func (n *node) preference() ids.ID {
	n.ctx.Lock.RLock()
	defer n.ctx.Lock.RUnlock()

	return n.consensus.Preference()
}

func (n *node) HealthCheck(ctx context.Context) (interface{}, error) {
	n.ctx.Lock.RLock()
	defer n.ctx.Lock.RUnlock()

	return n.consensus.HealthCheck(ctx)
}

// NodeStatus is a snapshot of a simulated node.
type NodeStatus struct {
	NodeID             string `json:"nodeID" yaml:"nodeID"`
	Preference         ids.ID `json:"preference" yaml:"preference"`
	LastAcceptedID     ids.ID `json:"lastAcceptedID" yaml:"lastAcceptedID"`
	LastAcceptedHeight uint64 `json:"lastAcceptedHeight" yaml:"lastAcceptedHeight"`
	NumProcessing      int    `json:"numProcessing" yaml:"numProcessing"`
	Finalized          bool   `json:"finalized" yaml:"finalized"`
}

func (n *node) status() NodeStatus {
	n.ctx.Lock.RLock()
	defer n.ctx.Lock.RUnlock()

	lastAcceptedID, lastAcceptedHeight := n.consensus.LastAccepted()
	return NodeStatus{
		NodeID:             n.ctx.NodeID.String(),
		Preference:         n.consensus.Preference(),
		LastAcceptedID:     lastAcceptedID,
		LastAcceptedHeight: lastAcceptedHeight,
		NumProcessing:      n.consensus.NumProcessing(),
		Finalized:          n.consensus.Finalized(),
	}
}
